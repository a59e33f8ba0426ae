package fahmunge

import (
	"time"

	"github.com/bft-labs/fahmunge/internal/adapters/bolt"
	"github.com/bft-labs/fahmunge/internal/adapters/fs"
	"github.com/bft-labs/fahmunge/internal/app"
	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
)

// Logger is the interface for structured logging.
type Logger = ports.Logger

// LogField represents a structured log field.
type LogField = ports.Field

// Observer receives per-unit merge and derive notifications.
// Calls happen synchronously on the merging goroutine.
type Observer = app.Observer

// FailurePolicy decides what a merge does with a fragment that fails to load.
type FailurePolicy = domain.FailurePolicy

const (
	Abort           = domain.Abort
	SkipAndContinue = domain.SkipAndContinue
)

// Option configures optional behavior of a Munger.
type Option func(*options)

type options struct {
	logger         ports.Logger
	observer       app.Observer
	policy         domain.FailurePolicy
	lockTimeout    time.Duration
	archivePattern string
	archiveMember  string
	frameFile      string
	tempDir        string
}

func defaultOptions() options {
	return options{
		policy:         domain.Abort,
		lockTimeout:    bolt.DefaultLockTimeout,
		archivePattern: fs.DefaultArchivePattern,
		archiveMember:  fs.DefaultArchiveMember,
		frameFile:      fs.DefaultFrameFile,
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver sets a receiver for merge and derive notifications.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithFailurePolicy sets the policy for fragments that fail to load.
// Defaults to Abort.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithLockTimeout sets how long opening a store waits for another writer
// to release it before failing with ErrStoreLocked.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// WithArchivePattern sets the glob archived fragments are discovered with.
func WithArchivePattern(pattern string) Option {
	return func(o *options) {
		o.archivePattern = pattern
	}
}

// WithArchiveMember sets the trajectory member extracted from each archive.
func WithArchiveMember(member string) Option {
	return func(o *options) {
		o.archiveMember = member
	}
}

// WithFrameFile sets the trajectory file read from each frame directory.
func WithFrameFile(name string) Option {
	return func(o *options) {
		o.frameFile = name
	}
}

// WithTempDir sets the directory archive members are extracted under.
// Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}
