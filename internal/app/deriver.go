package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
)

// DeriveStatus says what a Derive call did.
type DeriveStatus int

const (
	// DeriveAppended means frames and ledger entries were copied.
	DeriveAppended DeriveStatus = iota

	// DeriveSourceMissing means the full store does not exist yet.
	DeriveSourceMissing

	// DeriveTooFewFrames means the full store is below the frame threshold.
	DeriveTooFewFrames

	// DeriveInSync means the derived store already matches the full store.
	DeriveInSync
)

// String returns a short description of the status.
func (s DeriveStatus) String() string {
	switch s {
	case DeriveAppended:
		return "appended"
	case DeriveSourceMissing:
		return "source missing"
	case DeriveTooFewFrames:
		return "too few frames"
	case DeriveInSync:
		return "in sync"
	default:
		return "unknown"
	}
}

// DeriveResult summarises one Derive call.
type DeriveResult struct {
	Status DeriveStatus

	// Frames and Units are the frames and ledger entries appended.
	Frames int
	Units  int

	// FullFrames and FullUnits are the full store's counts, which the
	// derived store matches after a successful call.
	FullFrames int
	FullUnits  int
}

// Deriver keeps an atom-subset store in lockstep with a full store.
type Deriver struct {
	opener   ports.StoreOpener
	logger   ports.Logger
	observer Observer
}

// NewDeriver creates a Deriver opening stores with opener.
func NewDeriver(opener ports.StoreOpener, logger ports.Logger, observer Observer) *Deriver {
	return &Deriver{opener: opener, logger: logger, observer: observerOrNop(observer)}
}

// Derive appends to the store at derivedPath every frame of the store at
// fullPath it does not have yet, restricted to atomIndices, together with
// the matching ledger entries copied verbatim. The full store is never
// modified. Both stores hold the same number of frames and ledger entries
// afterwards.
func (d *Deriver) Derive(ctx context.Context, fullPath, derivedPath string, atomIndices []int, minFullFrames int) (DeriveResult, error) {
	var res DeriveResult
	if err := ctx.Err(); err != nil {
		return res, err
	}

	full, err := d.opener.Open(fullPath, ports.ReadMode)
	if errors.Is(err, domain.ErrNotFound) {
		d.logger.Info("skipping, full store not found", ports.String("store", fullPath))
		res.Status = DeriveSourceMissing
		return res, nil
	}
	if err != nil {
		return res, err
	}
	defer full.Close()

	fullFrames, err := full.FrameCount()
	if err != nil {
		return res, err
	}
	res.FullFrames = fullFrames
	d.logger.Info("full store opened", ports.String("store", fullPath), ports.Int("frames", fullFrames))
	if fullFrames < minFullFrames {
		d.logger.Info("full store has too few frames to derive",
			ports.String("store", fullPath),
			ports.Int("frames", fullFrames),
			ports.Int("min_frames", minFullFrames),
		)
		res.Status = DeriveTooFewFrames
		return res, nil
	}

	fullLedger, err := full.Ledger()
	if err != nil {
		return res, err
	}
	fullTop, err := full.Topology()
	if err != nil {
		return res, err
	}
	if fullTop == nil {
		return res, fmt.Errorf("%w: %s has no topology", domain.ErrSchemaMismatch, fullPath)
	}
	subTop, err := fullTop.Subset(atomIndices)
	if err != nil {
		return res, fmt.Errorf("derive from %s: %w", fullPath, err)
	}

	derived, err := d.opener.Open(derivedPath, ports.AppendMode)
	if err != nil {
		return res, err
	}
	defer derived.Close()

	if err := derived.Initialize(derivedKind(fullLedger.Kind()), subTop); err != nil {
		return res, err
	}
	derivedTop, err := derived.Topology()
	if err != nil {
		return res, err
	}
	if derivedTop.Len() != len(atomIndices) {
		return res, fmt.Errorf("%w: %s has %d atoms, selection has %d",
			domain.ErrSchemaMismatch, derivedPath, derivedTop.Len(), len(atomIndices))
	}
	derivedLedger, err := derived.Ledger()
	if err != nil {
		return res, err
	}

	fullUnits, err := fullLedger.Len()
	if err != nil {
		return res, err
	}
	res.FullUnits = fullUnits
	derivedFrames, err := derived.FrameCount()
	if err != nil {
		return res, err
	}
	derivedUnits, err := derivedLedger.Len()
	if err != nil {
		return res, err
	}
	d.logger.Info("comparing stores",
		ports.String("full", fullPath),
		ports.String("derived", derivedPath),
		ports.Int("full_frames", fullFrames),
		ports.Int("derived_frames", derivedFrames),
		ports.Int("full_units", fullUnits),
		ports.Int("derived_units", derivedUnits),
	)

	if err := checkLockstep(fullFrames, fullUnits, derivedFrames, derivedUnits); err != nil {
		return res, fmt.Errorf("derive %s from %s: %w", derivedPath, fullPath, err)
	}
	if err := checkSpans(fullPath, fullLedger, fullFrames); err != nil {
		return res, err
	}
	if err := checkSpans(derivedPath, derivedLedger, derivedFrames); err != nil {
		return res, err
	}
	if derivedFrames == fullFrames {
		d.logger.Info("same number of frames and units, skipping", ports.String("derived", derivedPath))
		res.Status = DeriveInSync
		return res, nil
	}

	entries, err := fullLedger.EntriesFrom(derivedUnits)
	if err != nil {
		return res, err
	}
	if entries[0].First != derivedFrames {
		return res, fmt.Errorf("%w: %s ends at frame %d, but unit %d of %s starts at frame %d",
			domain.ErrInvariantViolation, derivedPath, derivedFrames, derivedUnits, fullPath, entries[0].First)
	}

	if err := full.Seek(derivedFrames); err != nil {
		return res, err
	}
	block, err := full.ReadRemaining()
	if err != nil {
		return res, err
	}
	if derivedFrames+block.Len() != fullFrames {
		return res, fmt.Errorf("%w: read %d frames from %s past frame %d, store reports %d",
			domain.ErrCountMismatch, block.Len(), fullPath, derivedFrames, fullFrames)
	}
	if err := derived.Commit(block.Project(atomIndices), entries...); err != nil {
		return res, err
	}

	res.Status = DeriveAppended
	res.Frames = block.Len()
	res.Units = len(entries)
	d.observer.OnDerived(res.Frames, res.Units)
	d.logger.Info("derived frames",
		ports.String("derived", derivedPath),
		ports.Int("frames", res.Frames),
		ports.Int("units", res.Units),
	)
	return res, nil
}

// checkLockstep enforces that the derived store never runs ahead of the full
// store and that its frame and unit counts are either both equal to the full
// store's or both behind.
func checkLockstep(fullFrames, fullUnits, derivedFrames, derivedUnits int) error {
	if derivedFrames > fullFrames {
		return fmt.Errorf("%w: derived store has %d frames, full store has %d",
			domain.ErrInvariantViolation, derivedFrames, fullFrames)
	}
	if derivedUnits > fullUnits {
		return fmt.Errorf("%w: derived store has %d units, full store has %d",
			domain.ErrInvariantViolation, derivedUnits, fullUnits)
	}
	if (derivedFrames == fullFrames) != (derivedUnits == fullUnits) {
		return fmt.Errorf("%w: stores must match in both frames (%d/%d) and units (%d/%d) or in neither",
			domain.ErrInvariantViolation, derivedFrames, fullFrames, derivedUnits, fullUnits)
	}
	return nil
}

func checkSpans(path string, ledger ports.Ledger, frames int) error {
	end, err := ledger.End()
	if err != nil {
		return err
	}
	if end != frames {
		return fmt.Errorf("%w: %s has %d frames but its ledger accounts for %d",
			domain.ErrCountMismatch, path, frames, end)
	}
	return nil
}

// derivedKind maps the full store's ledger kind to the one a derived store
// is created with. The legacy directory container is never created.
func derivedKind(k domain.LedgerKind) domain.LedgerKind {
	if k == domain.LedgerFolders {
		return domain.LedgerDirectories
	}
	return k
}
