package app

import (
	"time"

	"github.com/bft-labs/fahmunge/internal/domain"
)

// Observer is notified as the engines make progress. The metrics package
// implements it; a nil Observer is allowed.
type Observer interface {
	OnUnitMerged(unit domain.SourceUnit, frames int, took time.Duration)
	OnUnitSkipped(unit domain.SourceUnit)
	OnUnitFailed(unit domain.SourceUnit, err error)
	OnDerived(frames, units int)
}

type nopObserver struct{}

func (nopObserver) OnUnitMerged(domain.SourceUnit, int, time.Duration) {}
func (nopObserver) OnUnitSkipped(domain.SourceUnit)                   {}
func (nopObserver) OnUnitFailed(domain.SourceUnit, error)             {}
func (nopObserver) OnDerived(int, int)                                {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
