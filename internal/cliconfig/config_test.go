package cliconfig

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bft-labs/auditship/internal/domain"
)

// assertConfig compares the fields exercised by the loader tests.
func assertConfig(t *testing.T, got, want Config) {
	t.Helper()
	if !slices.Equal(got.Collectors, want.Collectors) {
		t.Errorf("Collectors = %v, want %v", got.Collectors, want.Collectors)
	}
	if got.MaxConnectChannels != want.MaxConnectChannels {
		t.Errorf("MaxConnectChannels = %v, want %v", got.MaxConnectChannels, want.MaxConnectChannels)
	}
	if got.MaxCacheRows != want.MaxCacheRows {
		t.Errorf("MaxCacheRows = %v, want %v", got.MaxCacheRows, want.MaxCacheRows)
	}
	if got.MaxFileSize != want.MaxFileSize {
		t.Errorf("MaxFileSize = %v, want %v", got.MaxFileSize, want.MaxFileSize)
	}
	if got.FilePath != want.FilePath {
		t.Errorf("FilePath = %v, want %v", got.FilePath, want.FilePath)
	}
	if got.DisasterFile != want.DisasterFile {
		t.Errorf("DisasterFile = %v, want %v", got.DisasterFile, want.DisasterFile)
	}
	if got.ClearInterval != want.ClearInterval {
		t.Errorf("ClearInterval = %v, want %v", got.ClearInterval, want.ClearInterval)
	}
	if got.DialTimeout != want.DialTimeout {
		t.Errorf("DialTimeout = %v, want %v", got.DialTimeout, want.DialTimeout)
	}
	if got.WriteTimeout != want.WriteTimeout {
		t.Errorf("WriteTimeout = %v, want %v", got.WriteTimeout, want.WriteTimeout)
	}
	if got.IP != want.IP {
		t.Errorf("IP = %v, want %v", got.IP, want.IP)
	}
	if got.DockerID != want.DockerID {
		t.Errorf("DockerID = %v, want %v", got.DockerID, want.DockerID)
	}
	if got.MetricsAddr != want.MetricsAddr {
		t.Errorf("MetricsAddr = %v, want %v", got.MetricsAddr, want.MetricsAddr)
	}
	if got.LogLevel != want.LogLevel {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, want.LogLevel)
	}
	if got.Input != want.Input {
		t.Errorf("Input = %v, want %v", got.Input, want.Input)
	}
	if got.Once != want.Once {
		t.Errorf("Once = %v, want %v", got.Once, want.Once)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxConnectChannels != domain.DefaultConnectChannels {
		t.Errorf("MaxConnectChannels = %d, want %d", cfg.MaxConnectChannels, domain.DefaultConnectChannels)
	}
	if cfg.MaxCacheRows != 2_000_000 {
		t.Errorf("MaxCacheRows = %d, want 2000000", cfg.MaxCacheRows)
	}
	if cfg.MaxFileSize != 1<<30 {
		t.Errorf("MaxFileSize = %d, want %d", cfg.MaxFileSize, 1<<30)
	}
	if cfg.ClearInterval != time.Minute {
		t.Errorf("ClearInterval = %v, want 1m", cfg.ClearInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.FilePath == "" {
		t.Error("FilePath should default to a data directory")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Collectors = []string{"10.0.0.1:9000", "10.0.0.2:9000"}
		cfg.FilePath = "/var/lib/auditship"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "all channels", mutate: func(c *Config) { c.MaxConnectChannels = domain.AllConnectChannels }},
		{name: "no collectors", mutate: func(c *Config) { c.Collectors = nil }, wantErr: true},
		{name: "collector without port", mutate: func(c *Config) { c.Collectors = []string{"10.0.0.1"} }, wantErr: true},
		{name: "zero channels", mutate: func(c *Config) { c.MaxConnectChannels = 0 }, wantErr: true},
		{name: "negative channels", mutate: func(c *Config) { c.MaxConnectChannels = -2 }, wantErr: true},
		{name: "zero cache rows", mutate: func(c *Config) { c.MaxCacheRows = 0 }, wantErr: true},
		{name: "zero file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: true},
		{name: "missing file path", mutate: func(c *Config) { c.FilePath = "" }, wantErr: true},
		{name: "zero clear interval", mutate: func(c *Config) { c.ClearInterval = 0 }, wantErr: true},
		{name: "zero dial timeout", mutate: func(c *Config) { c.DialTimeout = 0 }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidConfig) {
					t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collectors = []string{"collector:9000"}
	cfg.FilePath = "/data"
	cfg.LogLevel = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if want := filepath.Join("/data", domain.DisasterFileName); cfg.DisasterFile != want {
		t.Errorf("DisasterFile = %q, want %q", cfg.DisasterFile, want)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}

	s := cfg.Settings()
	if s.DisasterFile != cfg.DisasterFile || s.MaxCacheRows != cfg.MaxCacheRows {
		t.Errorf("Settings() = %+v, does not mirror config", s)
	}
}

func TestConfig_Validate_KeepsExplicitDisasterFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collectors = []string{"collector:9000"}
	cfg.FilePath = "/data"
	cfg.DisasterFile = "/elsewhere/spill.json"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.DisasterFile != "/elsewhere/spill.json" {
		t.Errorf("DisasterFile = %q, want explicit path kept", cfg.DisasterFile)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a:1", []string{"a:1"}},
		{"a:1, b:2 ,,c:3", []string{"a:1", "b:2", "c:3"}},
		{" , ", nil},
	}
	for _, tt := range tests {
		if got := SplitList(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
