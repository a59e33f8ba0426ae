package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/fahmunge/internal/domain"
)

// Defaults for the merge and derive commands.
const (
	DefaultArchivePattern = "results-*.tar.bz2"
	DefaultArchiveMember  = "positions.xtc"
	DefaultFrameFile      = "frames.xtc"
)

// Config holds CLI configuration for fahmunge.
type Config struct {
	ArchivePattern string
	ArchiveMember  string
	FrameFile      string

	MinFrames     int
	MinFullFrames int

	FailurePolicy string
	Policy        domain.FailurePolicy // derived from FailurePolicy by Validate

	LockTimeout   time.Duration
	WatchDebounce time.Duration

	LogLevel    string
	MetricsFile string
	TempDir     string
	Watch       bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ArchivePattern: DefaultArchivePattern,
		ArchiveMember:  DefaultArchiveMember,
		FrameFile:      DefaultFrameFile,
		MinFrames:      1,
		MinFullFrames:  1,
		FailurePolicy:  domain.Abort.String(),
		LockTimeout:    2 * time.Second,
		WatchDebounce:  2 * time.Second,
		LogLevel:       "info",
	}
}

// Validate checks the configuration for errors and sets derived values.
func (c *Config) Validate() error {
	if c.ArchivePattern == "" {
		c.ArchivePattern = DefaultArchivePattern
	}
	if c.ArchiveMember == "" {
		c.ArchiveMember = DefaultArchiveMember
	}
	if c.FrameFile == "" {
		c.FrameFile = DefaultFrameFile
	}

	if c.MinFrames < 1 {
		return fmt.Errorf("%w: min-frames must be at least 1", domain.ErrInvalidConfig)
	}
	if c.MinFullFrames < 0 {
		return fmt.Errorf("%w: min-full-frames must not be negative", domain.ErrInvalidConfig)
	}

	policy, err := domain.ParseFailurePolicy(c.FailurePolicy)
	if err != nil {
		return err
	}
	c.Policy = policy

	if c.LockTimeout <= 0 {
		return fmt.Errorf("%w: lock timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.WatchDebounce <= 0 {
		return fmt.Errorf("%w: watch debounce must be positive", domain.ErrInvalidConfig)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	case "":
		c.LogLevel = "info"
	default:
		return fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer if not nil and flag not changed.
// Unlike setInt it keeps zero; Validate rejects negatives.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setCountFromString is setIntFromString for settings where zero is meaningful.
func (s *configSetter) setCountFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
