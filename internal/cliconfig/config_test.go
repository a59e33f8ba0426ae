package cliconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/fahmunge/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ArchivePattern != DefaultArchivePattern {
		t.Errorf("ArchivePattern = %v, want %v", cfg.ArchivePattern, DefaultArchivePattern)
	}
	if cfg.ArchiveMember != "positions.xtc" {
		t.Errorf("ArchiveMember = %v, want positions.xtc", cfg.ArchiveMember)
	}
	if cfg.MinFrames != 1 {
		t.Errorf("MinFrames = %v, want 1", cfg.MinFrames)
	}
	if cfg.FailurePolicy != "abort" {
		t.Errorf("FailurePolicy = %v, want abort", cfg.FailurePolicy)
	}
	if cfg.LockTimeout != 2*time.Second {
		t.Errorf("LockTimeout = %v, want 2s", cfg.LockTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig

	tests := []struct {
		name       string
		mutate     func(*Config)
		wantErr    bool
		wantPolicy domain.FailurePolicy
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:       "skip policy",
			mutate:     func(c *Config) { c.FailurePolicy = "skip" },
			wantPolicy: domain.SkipAndContinue,
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.FailurePolicy = "retry" },
			wantErr: true,
		},
		{
			name:    "zero min frames",
			mutate:  func(c *Config) { c.MinFrames = 0 },
			wantErr: true,
		},
		{
			name:    "negative min full frames",
			mutate:  func(c *Config) { c.MinFullFrames = -1 },
			wantErr: true,
		},
		{
			name:   "zero min full frames is allowed",
			mutate: func(c *Config) { c.MinFullFrames = 0 },
		},
		{
			name:    "zero lock timeout",
			mutate:  func(c *Config) { c.LockTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.WatchDebounce = -time.Second },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if err == nil && cfg.Policy != tt.wantPolicy {
				t.Errorf("Policy = %v, want %v", cfg.Policy, tt.wantPolicy)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	c := Config{
		MinFrames:     1,
		LockTimeout:   time.Second,
		WatchDebounce: time.Second,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c.ArchivePattern != DefaultArchivePattern {
		t.Errorf("ArchivePattern = %v, want %v", c.ArchivePattern, DefaultArchivePattern)
	}
	if c.FrameFile != DefaultFrameFile {
		t.Errorf("FrameFile = %v, want %v", c.FrameFile, DefaultFrameFile)
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", c.LogLevel)
	}
	if c.Policy != domain.Abort {
		t.Errorf("Policy = %v, want abort", c.Policy)
	}
}
