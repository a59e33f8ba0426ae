package fahmunge

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/fahmunge/internal/adapters/archive"
	"github.com/bft-labs/fahmunge/internal/adapters/bolt"
	"github.com/bft-labs/fahmunge/internal/adapters/fs"
	logAdapter "github.com/bft-labs/fahmunge/internal/adapters/log"
	"github.com/bft-labs/fahmunge/internal/app"
	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
	"github.com/bft-labs/fahmunge/internal/topology"
)

// Errors returned by Munger operations. Check them with errors.Is.
var (
	ErrNotFound           = domain.ErrNotFound
	ErrSchemaMismatch     = domain.ErrSchemaMismatch
	ErrInvariantViolation = domain.ErrInvariantViolation
	ErrFragmentLoad       = domain.ErrFragmentLoad
	ErrCountMismatch      = domain.ErrCountMismatch
	ErrInvalidSelection   = domain.ErrInvalidSelection
	ErrStoreLocked        = domain.ErrStoreLocked
	ErrInvalidConfig      = domain.ErrInvalidConfig
)

type (
	// MergeResult summarises one merge call.
	MergeResult = app.MergeResult

	// DeriveResult summarises one DeriveSubset call.
	DeriveResult = app.DeriveResult

	// DeriveStatus says which branch a DeriveSubset call took.
	DeriveStatus = app.DeriveStatus

	// ProjectResult summarises one MungeProject call.
	ProjectResult = app.ProjectResult

	// StoreInfo summarises a store.
	StoreInfo = bolt.Stats

	// Topology describes the atoms of a system.
	Topology = topology.Topology
)

const (
	DeriveAppended      = app.DeriveAppended
	DeriveSourceMissing = app.DeriveSourceMissing
	DeriveTooFewFrames  = app.DeriveTooFewFrames
	DeriveInSync        = app.DeriveInSync
)

// ProjectConfig configures MungeProject.
type ProjectConfig struct {
	// ProjectDir holds RUN<r>/CLONE<c> directories of result archives.
	ProjectDir string

	// OutputDir receives all-atoms/ and subset/ stores.
	OutputDir string

	// TopologyPath is a .pdb or .json topology of the full system.
	TopologyPath string

	// Selection restricts the subset stores. Nil disables derivation.
	Selection []int

	// MinFrames is the smallest fragment accepted.
	MinFrames int

	// MinFullFrames is the smallest full store a subset is derived from.
	MinFullFrames int
}

// Munger runs merges and derivations. A Munger holds no open stores between
// calls and may be reused. It must not run two writers on one store at once.
type Munger struct {
	opts   options
	opener *bolt.Opener
	logger ports.Logger
}

// New creates a Munger.
func New(opts ...Option) (*Munger, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.lockTimeout <= 0 {
		return nil, fmt.Errorf("%w: lock timeout must be positive", domain.ErrInvalidConfig)
	}
	if o.archivePattern == "" {
		return nil, fmt.Errorf("%w: empty archive pattern", domain.ErrInvalidConfig)
	}

	var logger ports.Logger
	if o.logger != nil {
		logger = o.logger
	} else {
		logger = logAdapter.NewNoopLogger()
	}

	return &Munger{
		opts:   o,
		opener: bolt.NewOpener(o.lockTimeout),
		logger: logger,
	}, nil
}

func (m *Munger) merger(minFrames int) *app.Merger {
	return app.NewMerger(app.MergerConfig{MinFrames: minFrames, Policy: m.opts.policy}, m.logger, m.opts.observer)
}

func (m *Munger) deriver() *app.Deriver {
	return app.NewDeriver(m.opener, m.logger, m.opts.observer)
}

func (m *Munger) archiveSource(dir string) app.Source {
	return app.Source{
		Kind:     domain.LedgerFilenames,
		Discover: func() ([]domain.SourceUnit, error) { return fs.DiscoverArchives(dir, m.opts.archivePattern) },
		Loader:   fs.NewArchiveLoader(archive.NewExtractor(), m.opts.archiveMember, m.opts.tempDir, m.logger),
	}
}

func (m *Munger) dirSource(dir string) app.Source {
	return app.Source{
		Kind:     domain.LedgerDirectories,
		Discover: func() ([]domain.SourceUnit, error) { return fs.DiscoverFrameDirs(dir, m.logger) },
		Loader:   fs.NewDirLoader(m.opts.frameFile),
	}
}

// loadTopology returns nil for an empty path, leaving the store's own
// topology in charge.
func loadTopology(path string) (*topology.Topology, error) {
	if path == "" {
		return nil, nil
	}
	return topology.Load(path)
}

// MergeArchivedFragments merges the result archives of sourceDir, in natural
// order of their names, into outputStore. Archives already recorded in the
// store are skipped; archives with fewer than minFrames frames fail to load.
//
// topologyPath may be empty once the store exists. Under SkipAndContinue the
// returned error is nil even when fragments failed; see MergeResult.Err.
func (m *Munger) MergeArchivedFragments(ctx context.Context, sourceDir, topologyPath, outputStore string, minFrames int) (MergeResult, error) {
	top, err := loadTopology(topologyPath)
	if err != nil {
		return MergeResult{}, err
	}
	return m.merger(minFrames).MergeInto(ctx, m.opener, outputStore, top, m.archiveSource(sourceDir))
}

// MergeDirectoryFragments merges the numbered frame directories of streamDir,
// in numeric order, into outputStore.
func (m *Munger) MergeDirectoryFragments(ctx context.Context, streamDir, topologyPath, outputStore string) (MergeResult, error) {
	top, err := loadTopology(topologyPath)
	if err != nil {
		return MergeResult{}, err
	}
	return m.merger(1).MergeInto(ctx, m.opener, outputStore, top, m.dirSource(streamDir))
}

// DeriveSubset brings the store at derivedStorePath level with the store at
// fullStorePath, keeping only atomIndices of every frame. Nothing happens
// while the full store is missing or holds fewer than minFrames frames.
func (m *Munger) DeriveSubset(ctx context.Context, fullStorePath, derivedStorePath string, atomIndices []int, minFrames int) (DeriveResult, error) {
	return m.deriver().Derive(ctx, fullStorePath, derivedStorePath, atomIndices, minFrames)
}

// MungeProject merges every clone of a project directory and derives the
// subset store of each when a selection is configured.
func (m *Munger) MungeProject(ctx context.Context, cfg ProjectConfig) (ProjectResult, error) {
	top, err := topology.Load(cfg.TopologyPath)
	if err != nil {
		return ProjectResult{}, err
	}
	if cfg.Selection != nil {
		if err := topology.ValidateIndices(cfg.Selection, top.Len()); err != nil {
			return ProjectResult{}, err
		}
	}

	p := app.NewProject(app.ProjectConfig{
		ProjectDir:    cfg.ProjectDir,
		OutputDir:     cfg.OutputDir,
		Topology:      top,
		Selection:     cfg.Selection,
		MinFullFrames: cfg.MinFullFrames,
		Policy:        m.opts.policy,
	}, m.merger(cfg.MinFrames), m.deriver(), m.opener, m.archiveSource, m.logger)
	return p.Run(ctx)
}

// Info opens the store at path read-only and reports its counts.
func (m *Munger) Info(path string) (StoreInfo, error) {
	s, err := bolt.Open(path, ports.ReadMode, m.opts.lockTimeout)
	if err != nil {
		return StoreInfo{}, err
	}
	defer s.Close()
	return s.Stats()
}

// Topology returns the topology stored in the store at path.
func (m *Munger) Topology(path string) (*Topology, error) {
	s, err := bolt.Open(path, ports.ReadMode, m.opts.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	top, err := s.Topology()
	if err != nil {
		return nil, err
	}
	if top == nil {
		return nil, fmt.Errorf("%w: %s has no topology", domain.ErrNotFound, path)
	}
	return top, nil
}

// IsRetryable reports whether err may clear up on its own, such as another
// writer holding the store.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrStoreLocked)
}
