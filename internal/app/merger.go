package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
	"github.com/bft-labs/fahmunge/internal/topology"
)

// MergerConfig configures a Merger.
type MergerConfig struct {
	// MinFrames is the smallest block a unit may produce. Units with fewer
	// frames are load failures. Values below 1 mean 1.
	MinFrames int

	// Policy decides what happens when a unit fails to load.
	Policy domain.FailurePolicy
}

// UnitFailure pairs a unit with the reason it could not be merged.
type UnitFailure struct {
	Unit domain.SourceUnit
	Err  error
}

// MergeResult summarises one merge run.
type MergeResult struct {
	Merged  []domain.SourceUnit
	Skipped []domain.SourceUnit
	Failed  []UnitFailure
	Frames  int
}

// Err folds the failures of a skip-and-continue run into one error, or
// returns nil if every unit was merged or skipped.
func (r MergeResult) Err() error {
	var result *multierror.Error
	for _, f := range r.Failed {
		result = multierror.Append(result, fmt.Errorf("%s: %w", f.Unit.ID, f.Err))
	}
	return result.ErrorOrNil()
}

// Merger appends the frames of not-yet-merged units to a store, one unit at
// a time, recording each in the store's ledger.
type Merger struct {
	config   MergerConfig
	logger   ports.Logger
	observer Observer
}

// NewMerger creates a Merger.
func NewMerger(config MergerConfig, logger ports.Logger, observer Observer) *Merger {
	if config.MinFrames < 1 {
		config.MinFrames = 1
	}
	return &Merger{config: config, logger: logger, observer: observerOrNop(observer)}
}

// Merge processes units in order. A unit whose ID is already in the ledger
// is skipped. Every other unit is loaded and committed together with its
// ledger entry, so a run interrupted at any point resumes cleanly.
//
// Under the Abort policy the first load failure ends the run with an error
// wrapping domain.ErrFragmentLoad. Under SkipAndContinue failures are logged
// and collected in the result. Store errors always end the run.
func (m *Merger) Merge(ctx context.Context, store ports.Store, units []domain.SourceUnit, loader ports.Loader) (MergeResult, error) {
	var res MergeResult

	ledger, err := store.Ledger()
	if err != nil {
		return res, err
	}
	top, err := store.Topology()
	if err != nil {
		return res, err
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		done, err := ledger.Contains(unit.ID)
		if err != nil {
			return res, fmt.Errorf("ledger of %s: %w", store.Path(), err)
		}
		if done {
			m.logger.Info("already processed", ports.String("unit", unit.ID))
			res.Skipped = append(res.Skipped, unit)
			m.observer.OnUnitSkipped(unit)
			continue
		}

		m.logger.Info("processing", ports.String("unit", unit.ID))
		start := time.Now()
		block, err := m.load(ctx, unit, top, loader)
		if err != nil {
			m.observer.OnUnitFailed(unit, err)
			if m.config.Policy == domain.Abort {
				m.logger.Error("failed to load unit", ports.String("unit", unit.ID), ports.Err(err))
				return res, err
			}
			m.logger.Warn("skipping unit that failed to load", ports.String("unit", unit.ID), ports.Err(err))
			res.Failed = append(res.Failed, UnitFailure{Unit: unit, Err: err})
			continue
		}

		first, err := store.FrameCount()
		if err != nil {
			return res, err
		}
		entry := domain.LedgerEntry{ID: unit.ID, First: first, Count: block.Len()}
		if err := store.Commit(block, entry); err != nil {
			return res, err
		}

		took := time.Since(start)
		m.logger.Debug("merged unit",
			ports.String("unit", unit.ID),
			ports.Int("frames", block.Len()),
			ports.Int("first_frame", first),
			ports.Duration("took", took),
		)
		res.Merged = append(res.Merged, unit)
		res.Frames += block.Len()
		m.observer.OnUnitMerged(unit, block.Len(), took)
	}
	return res, nil
}

func (m *Merger) load(ctx context.Context, unit domain.SourceUnit, top *topology.Topology, loader ports.Loader) (domain.FrameBlock, error) {
	block, err := loader.Load(ctx, unit, top)
	if err != nil {
		return domain.FrameBlock{}, fmt.Errorf("%w: %s: %w", domain.ErrFragmentLoad, unit.ID, err)
	}
	if block.Len() < m.config.MinFrames {
		return domain.FrameBlock{}, fmt.Errorf("%w: %s has %d frames, need at least %d",
			domain.ErrFragmentLoad, unit.ID, block.Len(), m.config.MinFrames)
	}
	if n := top.Len(); n > 0 && block.NAtoms != n {
		return domain.FrameBlock{}, fmt.Errorf("%w: %s has %d atoms, topology has %d",
			domain.ErrFragmentLoad, unit.ID, block.NAtoms, n)
	}
	return block, nil
}

// Source describes where a merge run finds its units.
type Source struct {
	// Kind names the ledger container a new store is created with.
	Kind domain.LedgerKind

	// Discover lists the candidate units in merge order.
	Discover func() ([]domain.SourceUnit, error)

	// Loader materialises one unit.
	Loader ports.Loader
}

// MergeInto discovers src's units and merges them into the store at
// storePath, creating it with topology top when needed. A nil top uses the
// topology already in the store and fails with domain.ErrInvalidConfig when
// the store has none. Nothing is created when there are no units.
func (m *Merger) MergeInto(ctx context.Context, opener ports.StoreOpener, storePath string, top *topology.Topology, src Source) (MergeResult, error) {
	units, err := src.Discover()
	if err != nil {
		return MergeResult{}, err
	}
	if len(units) == 0 {
		m.logger.Info("no units found", ports.String("store", storePath))
		return MergeResult{}, nil
	}

	store, err := opener.Open(storePath, ports.AppendMode)
	if err != nil {
		return MergeResult{}, err
	}
	defer store.Close()

	if err := store.Initialize(src.Kind, top); err != nil {
		return MergeResult{}, err
	}
	stored, err := store.Topology()
	if err != nil {
		return MergeResult{}, err
	}
	if stored == nil {
		return MergeResult{}, fmt.Errorf("%w: %s has no topology, one is required to create it",
			domain.ErrInvalidConfig, storePath)
	}
	if top != nil && stored.Len() != top.Len() {
		return MergeResult{}, fmt.Errorf("%w: %s has %d atoms, topology has %d",
			domain.ErrSchemaMismatch, storePath, stored.Len(), top.Len())
	}

	res, err := m.Merge(ctx, store, units, src.Loader)
	m.logger.Info("merge finished",
		ports.String("store", storePath),
		ports.Int("merged", len(res.Merged)),
		ports.Int("skipped", len(res.Skipped)),
		ports.Int("failed", len(res.Failed)),
		ports.Int("frames", res.Frames),
	)
	return res, err
}
