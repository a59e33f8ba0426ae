package cliconfig

import "os"

// EnvPrefix prefixes every environment variable fahmunge reads.
const EnvPrefix = "FAHMUNGE_"

// ApplyEnvConfig applies configuration from environment variables (FAHMUNGE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("archive-pattern", os.Getenv(EnvPrefix+"ARCHIVE_PATTERN"), &cfg.ArchivePattern)
	s.setString("archive-member", os.Getenv(EnvPrefix+"ARCHIVE_MEMBER"), &cfg.ArchiveMember)
	s.setString("frame-file", os.Getenv(EnvPrefix+"FRAME_FILE"), &cfg.FrameFile)
	s.setString("failure-policy", os.Getenv(EnvPrefix+"FAILURE_POLICY"), &cfg.FailurePolicy)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-file", os.Getenv(EnvPrefix+"METRICS_FILE"), &cfg.MetricsFile)
	s.setString("temp-dir", os.Getenv(EnvPrefix+"TEMP_DIR"), &cfg.TempDir)

	if err := s.setDuration("lock-timeout", os.Getenv(EnvPrefix+"LOCK_TIMEOUT"), &cfg.LockTimeout); err != nil {
		return err
	}
	if err := s.setDuration("watch-debounce", os.Getenv(EnvPrefix+"WATCH_DEBOUNCE"), &cfg.WatchDebounce); err != nil {
		return err
	}

	if err := s.setIntFromString("min-frames", os.Getenv(EnvPrefix+"MIN_FRAMES"), &cfg.MinFrames); err != nil {
		return err
	}
	if err := s.setCountFromString("min-full-frames", os.Getenv(EnvPrefix+"MIN_FULL_FRAMES"), &cfg.MinFullFrames); err != nil {
		return err
	}

	s.setBoolFromString("watch", os.Getenv(EnvPrefix+"WATCH"), &cfg.Watch)

	return nil
}
