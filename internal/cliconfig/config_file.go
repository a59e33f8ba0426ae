package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ArchivePattern string `toml:"archive_pattern"`
	ArchiveMember  string `toml:"archive_member"`
	FrameFile      string `toml:"frame_file"`
	MinFrames      int    `toml:"min_frames"`
	MinFullFrames  *int   `toml:"min_full_frames"`
	FailurePolicy  string `toml:"failure_policy"`
	LockTimeout    string `toml:"lock_timeout"`
	WatchDebounce  string `toml:"watch_debounce"`
	LogLevel       string `toml:"log_level"`
	MetricsFile    string `toml:"metrics_file"`
	TempDir        string `toml:"temp_dir"`
	Watch          *bool  `toml:"watch"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.fahmunge/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".fahmunge", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("archive-pattern", fc.ArchivePattern, &cfg.ArchivePattern)
	s.setString("archive-member", fc.ArchiveMember, &cfg.ArchiveMember)
	s.setString("frame-file", fc.FrameFile, &cfg.FrameFile)
	s.setString("failure-policy", fc.FailurePolicy, &cfg.FailurePolicy)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-file", fc.MetricsFile, &cfg.MetricsFile)
	s.setString("temp-dir", fc.TempDir, &cfg.TempDir)

	if err := s.setDuration("lock-timeout", fc.LockTimeout, &cfg.LockTimeout); err != nil {
		return err
	}
	if err := s.setDuration("watch-debounce", fc.WatchDebounce, &cfg.WatchDebounce); err != nil {
		return err
	}

	s.setInt("min-frames", fc.MinFrames, &cfg.MinFrames)
	s.setIntPtr("min-full-frames", fc.MinFullFrames, &cfg.MinFullFrames)

	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
