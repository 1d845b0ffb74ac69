package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	allChannels := -1
	three := 3

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Collectors:         []string{"a:1", "b:2"},
				MaxConnectChannels: &three,
				ClearInterval:      "5m",
				MaxCacheRows:       1000,
				Once:               &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Collectors:         []string{"a:1", "b:2"},
				MaxConnectChannels: 3,
				ClearInterval:      5 * time.Minute,
				MaxCacheRows:       1000,
				Once:               true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Collectors: []string{"file:1"},
				FilePath:   "/file/data",
			},
			changed: map[string]bool{"collectors": true},
			initial: Config{
				Collectors: []string{"flag:1"},
				FilePath:   "/flag/data",
			},
			expected: Config{
				Collectors: []string{"flag:1"}, // unchanged because flag was set
				FilePath:   "/file/data",
			},
		},
		{
			name:       "accepts all channels",
			fileConfig: FileConfig{MaxConnectChannels: &allChannels},
			changed:    map[string]bool{},
			initial:    Config{MaxConnectChannels: 2},
			expected:   Config{MaxConnectChannels: -1},
		},
		{
			name: "handles all field types correctly",
			fileConfig: FileConfig{
				Collectors:    []string{"c:9000"},
				MaxCacheRows:  10,
				MaxFileSize:   2048,
				FilePath:      "/data",
				DisasterFile:  "/data/spill.json",
				ClearInterval: "1m",
				DialTimeout:   "2s",
				WriteTimeout:  "3s",
				IP:            "10.1.1.1",
				DockerID:      "box",
				MetricsAddr:   ":9100",
				LogLevel:      "debug",
				Input:         "/tmp/in.ndjson",
				Once:          &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Collectors:    []string{"c:9000"},
				MaxCacheRows:  10,
				MaxFileSize:   2048,
				FilePath:      "/data",
				DisasterFile:  "/data/spill.json",
				ClearInterval: time.Minute,
				DialTimeout:   2 * time.Second,
				WriteTimeout:  3 * time.Second,
				IP:            "10.1.1.1",
				DockerID:      "box",
				MetricsAddr:   ":9100",
				LogLevel:      "debug",
				Input:         "/tmp/in.ndjson",
				Once:          true,
			},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{ClearInterval: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyFileConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyFileConfig() unexpected error: %v", err)
				return
			}

			if !tt.wantErr {
				assertConfig(t, cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
collectors = ["10.0.0.1:9000", "10.0.0.2:9000"]
max_connect_channels = -1
max_cache_rows = 5000
clear_interval = "30s"
once = true
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if len(fc.Collectors) != 2 || fc.Collectors[1] != "10.0.0.2:9000" {
		t.Errorf("Collectors = %v", fc.Collectors)
	}
	if fc.MaxConnectChannels == nil || *fc.MaxConnectChannels != -1 {
		t.Errorf("MaxConnectChannels = %v, want -1", fc.MaxConnectChannels)
	}
	if fc.MaxCacheRows != 5000 {
		t.Errorf("MaxCacheRows = %v, want 5000", fc.MaxCacheRows)
	}
	if fc.ClearInterval != "30s" {
		t.Errorf("ClearInterval = %v, want 30s", fc.ClearInterval)
	}
	if fc.Once == nil || !*fc.Once {
		t.Errorf("Once = %v, want true", fc.Once)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
collectors = ["a:1"]
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".auditship") {
		t.Errorf("DefaultConfigPath() = %v, should contain .auditship", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
