package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/natsort"
	"github.com/bft-labs/fahmunge/internal/ports"
	"github.com/bft-labs/fahmunge/internal/topology"
)

// ProjectConfig configures a Project walk.
type ProjectConfig struct {
	// ProjectDir holds RUN<r>/CLONE<c> directories.
	ProjectDir string

	// OutputDir receives all-atoms/ and subset/ stores.
	OutputDir string

	// Topology describes the full system.
	Topology *topology.Topology

	// Selection restricts the subset stores. Nil disables derivation.
	Selection []int

	// MinFullFrames is passed to Derive.
	MinFullFrames int

	// Policy decides whether a failing clone stops the walk.
	Policy domain.FailurePolicy
}

// Clone identifies one RUN/CLONE directory of a project.
type Clone struct {
	Run   int
	Clone int
	Dir   string
}

// Name returns the store base name of the clone.
func (c Clone) Name() string {
	return fmt.Sprintf("run%d-clone%d.fahdb", c.Run, c.Clone)
}

// ProjectResult summarises a Project walk.
type ProjectResult struct {
	Clones  int
	Frames  int
	Derived int
	Failed  map[string]error
}

// Err folds clone failures into one error.
func (r ProjectResult) Err() error {
	var result *multierror.Error
	for dir, err := range r.Failed {
		result = multierror.Append(result, fmt.Errorf("%s: %w", dir, err))
	}
	return result.ErrorOrNil()
}

// Project merges every clone of a Folding@home project directory and, with a
// selection configured, derives the subset store of each.
type Project struct {
	config    ProjectConfig
	merger    *Merger
	deriver   *Deriver
	opener    ports.StoreOpener
	sourceFor func(cloneDir string) Source
	logger    ports.Logger
}

// NewProject creates a Project. sourceFor builds the merge source of one
// clone directory.
func NewProject(config ProjectConfig, merger *Merger, deriver *Deriver, opener ports.StoreOpener, sourceFor func(cloneDir string) Source, logger ports.Logger) *Project {
	return &Project{
		config:    config,
		merger:    merger,
		deriver:   deriver,
		opener:    opener,
		sourceFor: sourceFor,
		logger:    logger,
	}
}

// AllAtomsPath returns the full store path of c.
func (p *Project) AllAtomsPath(c Clone) string {
	return filepath.Join(p.config.OutputDir, "all-atoms", c.Name())
}

// SubsetPath returns the derived store path of c.
func (p *Project) SubsetPath(c Clone) string {
	return filepath.Join(p.config.OutputDir, "subset", c.Name())
}

// Run walks the project once.
func (p *Project) Run(ctx context.Context) (ProjectResult, error) {
	res := ProjectResult{Failed: map[string]error{}}
	clones, err := FindClones(p.config.ProjectDir, p.logger)
	if err != nil {
		return res, err
	}

	for _, c := range clones {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		frames, derived, err := p.runClone(ctx, c)
		if err != nil {
			if p.config.Policy == domain.Abort {
				return res, fmt.Errorf("%s: %w", c.Dir, err)
			}
			p.logger.Warn("clone failed, continuing", ports.String("clone", c.Dir), ports.Err(err))
			res.Failed[c.Dir] = err
			res.Frames += frames
			res.Derived += derived
			continue
		}
		res.Clones++
		res.Frames += frames
		res.Derived += derived
	}
	return res, nil
}

func (p *Project) runClone(ctx context.Context, c Clone) (int, int, error) {
	p.logger.Info("munging clone", ports.Int("run", c.Run), ports.Int("clone", c.Clone))

	full := p.AllAtomsPath(c)
	mres, err := p.merger.MergeInto(ctx, p.opener, full, p.config.Topology, p.sourceFor(c.Dir))
	if err != nil {
		return 0, 0, err
	}
	// Units skipped under the skip policy still leave a usable store, so the
	// subset is brought up to date before their failures are reported.
	if p.config.Selection == nil {
		return mres.Frames, 0, mres.Err()
	}

	dres, err := p.deriver.Derive(ctx, full, p.SubsetPath(c), p.config.Selection, p.config.MinFullFrames)
	if err != nil {
		return mres.Frames, 0, multierror.Append(mres.Err(), err).ErrorOrNil()
	}
	return mres.Frames, dres.Frames, mres.Err()
}

// FindClones lists the RUN<r>/CLONE<c> directories of dir, ordered by run
// then clone. Entries whose suffix is not an integer are logged and ignored.
func FindClones(dir string, logger ports.Logger) ([]Clone, error) {
	runs, err := numberedDirs(dir, "RUN", logger)
	if err != nil {
		return nil, err
	}
	var clones []Clone
	for _, r := range runs {
		runDir := filepath.Join(dir, r.name)
		cs, err := numberedDirs(runDir, "CLONE", logger)
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			clones = append(clones, Clone{Run: r.n, Clone: c.n, Dir: filepath.Join(runDir, c.name)})
		}
	}
	return clones, nil
}

type numberedDir struct {
	name string
	n    int
}

func numberedDirs(dir, prefix string, logger ports.Logger) ([]numberedDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, dir)
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	natsort.Sort(names)

	out := make([]numberedDir, 0, len(names))
	for _, name := range names {
		n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil || n < 0 {
			logger.Debug("ignoring directory", ports.String("dir", dir), ports.String("name", name))
			continue
		}
		out = append(out, numberedDir{name: name, n: n})
	}
	return out, nil
}
