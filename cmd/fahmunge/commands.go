package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	logAdapter "github.com/bft-labs/fahmunge/internal/adapters/log"
	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/topology"
	"github.com/bft-labs/fahmunge/internal/watch"
	"github.com/bft-labs/fahmunge/pkg/fahmunge"
)

// selection holds the mutually exclusive ways of naming atoms.
type selection struct {
	atoms     string
	indexFile string
	named     string
}

func (s *selection) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.atoms, "atoms", "", `atom indices to keep, e.g. "0-99,120"`)
	cmd.Flags().StringVar(&s.indexFile, "index-file", "", "file of atom indices to keep")
	cmd.Flags().StringVar(&s.named, "select", "", "named selection to keep: protein, heavy, not-water or all")
}

func (s *selection) set() bool {
	return s.atoms != "" || s.indexFile != "" || s.named != ""
}

// resolve turns the selection into atom indices. top is only consulted for
// named selections and may be loaded lazily.
func (s *selection) resolve(top func() (*topology.Topology, error)) ([]int, error) {
	given := 0
	for _, v := range []string{s.atoms, s.indexFile, s.named} {
		if v != "" {
			given++
		}
	}
	if given != 1 {
		return nil, fmt.Errorf("%w: give exactly one of --atoms, --index-file or --select", domain.ErrInvalidSelection)
	}

	switch {
	case s.atoms != "":
		return topology.ParseIndices(s.atoms)
	case s.indexFile != "":
		return topology.ReadIndexFile(s.indexFile)
	default:
		t, err := top()
		if err != nil {
			return nil, err
		}
		return t.Select(s.named)
	}
}

// run performs fn once, or keeps re-running it on new fragments in dirs
// when watching. Metrics are written after every pass.
func (c *cli) run(dirs []string, recursive bool, fn watch.RunFunc) error {
	ctx, cancel := c.signalContext()
	defer cancel()

	pass := func(ctx context.Context) error {
		err := fn(ctx)
		c.recorder.MarkRun(time.Now())
		if werr := c.recorder.WriteTextfile(c.cfg.MetricsFile); werr != nil {
			c.log.Warn().Err(werr).Str("file", c.cfg.MetricsFile).Msg("failed to write metrics")
		}
		return err
	}

	if !c.cfg.Watch {
		return pass(ctx)
	}

	w := watch.New(watch.Config{
		Dirs:      dirs,
		Recursive: recursive,
		Debounce:  c.cfg.WatchDebounce,
	}, logAdapter.NewZerologAdapterWithLogger(c.log))
	c.log.Info().Strs("dirs", dirs).Msg("watching for new fragments")
	return w.Run(ctx, pass)
}

// reportMerge logs the fragments a skip-and-continue merge left behind.
func (c *cli) reportMerge(res fahmunge.MergeResult) {
	for _, f := range res.Failed {
		c.log.Warn().Str("unit", f.Unit.ID).Err(f.Err).Msg("fragment left unmerged")
	}
}

func (c *cli) mergeArchivesCmd() *cobra.Command {
	var topPath string
	cmd := &cobra.Command{
		Use:   "merge-archives <source-dir> <output-store>",
		Short: "Merge results-N.tar.bz2 archives of one clone into a store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, out := args[0], args[1]
			return c.run([]string{src}, false, func(ctx context.Context) error {
				res, err := c.munger.MergeArchivedFragments(ctx, src, topPath, out, c.cfg.MinFrames)
				c.reportMerge(res)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&topPath, "topology", "", "topology (.pdb or .json) of the system; needed when creating the store")
	cmd.Flags().BoolVar(&c.cfg.Watch, "watch", c.cfg.Watch, "keep running and merge new fragments as they appear")
	return cmd
}

func (c *cli) mergeDirsCmd() *cobra.Command {
	var topPath string
	cmd := &cobra.Command{
		Use:   "merge-dirs <stream-dir> <output-store>",
		Short: "Merge numbered frame directories into a store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, out := args[0], args[1]
			return c.run([]string{src}, false, func(ctx context.Context) error {
				res, err := c.munger.MergeDirectoryFragments(ctx, src, topPath, out)
				c.reportMerge(res)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&topPath, "topology", "", "topology (.pdb or .json) of the system; needed when creating the store")
	cmd.Flags().BoolVar(&c.cfg.Watch, "watch", c.cfg.Watch, "keep running and merge new fragments as they appear")
	return cmd
}

func (c *cli) stripCmd() *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "strip <full-store> <derived-store>",
		Short: "Bring an atom-subset store level with its full store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			full, derived := args[0], args[1]
			indices, err := sel.resolve(func() (*topology.Topology, error) { return c.munger.Topology(full) })
			if err != nil {
				return err
			}
			ctx, cancel := c.signalContext()
			defer cancel()

			res, err := c.munger.DeriveSubset(ctx, full, derived, indices, c.cfg.MinFullFrames)
			if err != nil {
				return err
			}
			c.log.Info().
				Str("status", res.Status.String()).
				Int("frames", res.Frames).
				Int("units", res.Units).
				Int("full_frames", res.FullFrames).
				Msg("strip finished")
			c.recorder.MarkRun(time.Now())
			return c.recorder.WriteTextfile(c.cfg.MetricsFile)
		},
	}
	sel.bind(cmd)
	return cmd
}

func (c *cli) mungeProjectCmd() *cobra.Command {
	var (
		topPath string
		sel     selection
	)
	cmd := &cobra.Command{
		Use:   "munge-project <project-dir> <output-dir>",
		Short: "Merge every RUN*/CLONE* of a project and derive subset stores",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if topPath == "" {
				return fmt.Errorf("%w: --topology is required", domain.ErrInvalidConfig)
			}
			var indices []int
			if sel.set() {
				var err error
				indices, err = sel.resolve(func() (*topology.Topology, error) { return topology.Load(topPath) })
				if err != nil {
					return err
				}
			}
			cfg := fahmunge.ProjectConfig{
				ProjectDir:    args[0],
				OutputDir:     args[1],
				TopologyPath:  topPath,
				Selection:     indices,
				MinFrames:     c.cfg.MinFrames,
				MinFullFrames: c.cfg.MinFullFrames,
			}
			return c.run([]string{cfg.ProjectDir}, true, func(ctx context.Context) error {
				res, err := c.munger.MungeProject(ctx, cfg)
				for dir, ferr := range res.Failed {
					c.log.Warn().Str("clone", dir).Err(ferr).Msg("clone left incomplete")
				}
				if err != nil {
					return err
				}
				c.log.Info().
					Int("clones", res.Clones).
					Int("frames", res.Frames).
					Int("derived", res.Derived).
					Msg("project finished")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&topPath, "topology", "", "topology (.pdb or .json) of the system")
	cmd.Flags().BoolVar(&c.cfg.Watch, "watch", c.cfg.Watch, "keep running and munge new fragments as they appear")
	sel.bind(cmd)
	return cmd
}

func (c *cli) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <store>...",
		Short: "Show frame and ledger counts of stores",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				st, err := c.munger.Info(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n", st.Path)
				fmt.Fprintf(out, "  atoms:   %d\n", st.NAtoms)
				fmt.Fprintf(out, "  frames:  %d\n", st.Frames)
				fmt.Fprintf(out, "  ledger:  %s (%d entries)\n", st.LedgerKind, st.Entries)
				fmt.Fprintf(out, "  size:    %d bytes\n", st.SizeBytes)
			}
			return nil
		},
	}
}
