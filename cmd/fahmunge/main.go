package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logAdapter "github.com/bft-labs/fahmunge/internal/adapters/log"
	"github.com/bft-labs/fahmunge/internal/cliconfig"
	"github.com/bft-labs/fahmunge/internal/metrics"
	"github.com/bft-labs/fahmunge/pkg/fahmunge"
)

const helpDescription = `
Merge Folding@home trajectory fragments into one resumable store per clone.

Highlights:
  - Every fragment is recorded in the store's ledger together with its frames,
    so an interrupted run resumes where it stopped and never duplicates frames.
  - Reads results-N.tar.bz2 archives (Core17/18) or numbered frame directories.
  - Keeps atom-subset stores (protein only, heavy atoms, ...) in lockstep with
    their full stores.
  - Configure via file, env, or flags; --watch re-runs on new fragments.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  fahmunge merge-archives PROJ10495/RUN0/CLONE0 out/run0-clone0.fahdb --topology top.pdb
  fahmunge merge-dirs stream/ out/stream.fahdb --topology top.pdb --watch
  fahmunge strip out/run0-clone0.fahdb protein/run0-clone0.fahdb --select protein
  fahmunge munge-project PROJ10495 out --topology top.pdb --select not-water
  fahmunge info out/run0-clone0.fahdb
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the state shared by all subcommands once the root has loaded
// its configuration.
type cli struct {
	cfg      cliconfig.Config
	cfgPath  string
	log      zerolog.Logger
	recorder *metrics.Recorder
	munger   *fahmunge.Munger
}

// setup loads the config file (default $HOME/.fahmunge/config.toml), applies
// FAHMUNGE_* env vars, then validates. Explicitly set flags win over both.
func (c *cli) setup(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	// Build set of changed flags
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.log = cliconfig.Logger(c.cfg.LogLevel)
	c.log.Debug().Interface("config", c.cfg).Msg("configuration")

	c.recorder = metrics.NewRecorder()
	m, err := fahmunge.New(
		fahmunge.WithLogger(logAdapter.NewZerologAdapterWithLogger(c.log)),
		fahmunge.WithObserver(c.recorder),
		fahmunge.WithFailurePolicy(c.cfg.Policy),
		fahmunge.WithLockTimeout(c.cfg.LockTimeout),
		fahmunge.WithArchivePattern(c.cfg.ArchivePattern),
		fahmunge.WithArchiveMember(c.cfg.ArchiveMember),
		fahmunge.WithFrameFile(c.cfg.FrameFile),
		fahmunge.WithTempDir(c.cfg.TempDir),
	)
	if err != nil {
		return fmt.Errorf("create munger: %w", err)
	}
	c.munger = m
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func (c *cli) signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			c.log.Info().Msg("received signal, stopping after the current unit...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}
	c.log = cliconfig.Logger("info")

	root := &cobra.Command{
		Use:           "fahmunge",
		Short:         "Merge Folding@home trajectory fragments into resumable stores",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	// Flags
	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.fahmunge/config.toml)")
	flags.StringVar(&c.cfg.ArchivePattern, "archive-pattern", c.cfg.ArchivePattern, "glob matching result archives inside a clone directory")
	flags.StringVar(&c.cfg.ArchiveMember, "archive-member", c.cfg.ArchiveMember, "trajectory member extracted from each archive")
	flags.StringVar(&c.cfg.FrameFile, "frame-file", c.cfg.FrameFile, "trajectory file inside each frame directory")
	flags.IntVar(&c.cfg.MinFrames, "min-frames", c.cfg.MinFrames, "smallest fragment accepted, in frames")
	flags.IntVar(&c.cfg.MinFullFrames, "min-full-frames", c.cfg.MinFullFrames, "smallest full store a subset is derived from, in frames")
	flags.StringVar(&c.cfg.FailurePolicy, "failure-policy", c.cfg.FailurePolicy, "what to do with a fragment that fails to load: abort or skip")
	flags.DurationVar(&c.cfg.LockTimeout, "lock-timeout", c.cfg.LockTimeout, "how long to wait for another writer to release a store")
	flags.DurationVar(&c.cfg.WatchDebounce, "watch-debounce", c.cfg.WatchDebounce, "quiet period after new fragments before a watch re-run")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&c.cfg.MetricsFile, "metrics-file", c.cfg.MetricsFile, "write Prometheus textfile metrics here after each run")
	flags.StringVar(&c.cfg.TempDir, "temp-dir", c.cfg.TempDir, "directory for archive extraction (default: system temp dir)")

	root.AddCommand(
		c.mergeArchivesCmd(),
		c.mergeDirsCmd(),
		c.stripCmd(),
		c.mungeProjectCmd(),
		c.infoCmd(),
	)

	if err := root.Execute(); err != nil {
		c.log.Error().Err(err).Msg("fahmunge")
		os.Exit(1)
	}
}
