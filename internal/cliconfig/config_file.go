package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Collectors         []string `toml:"collectors"`
	MaxConnectChannels *int     `toml:"max_connect_channels"`
	MaxCacheRows       int      `toml:"max_cache_rows"`
	MaxFileSize        int64    `toml:"max_file_size"`
	FilePath           string   `toml:"file_path"`
	DisasterFile       string   `toml:"disaster_file"`
	ClearInterval      string   `toml:"clear_interval"`
	DialTimeout        string   `toml:"dial_timeout"`
	WriteTimeout       string   `toml:"write_timeout"`
	IP                 string   `toml:"ip"`
	DockerID           string   `toml:"docker_id"`
	MetricsAddr        string   `toml:"metrics_addr"`
	LogLevel           string   `toml:"log_level"`
	Input              string   `toml:"input"`
	Once               *bool    `toml:"once"`
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
// Returns ~/.auditship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".auditship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setStrings("collectors", fc.Collectors, &cfg.Collectors)
	s.setChannels("max-channels", fc.MaxConnectChannels, &cfg.MaxConnectChannels)
	s.setInt("max-cache-rows", fc.MaxCacheRows, &cfg.MaxCacheRows)
	s.setInt64("max-file-size", fc.MaxFileSize, &cfg.MaxFileSize)
	s.setString("file-path", fc.FilePath, &cfg.FilePath)
	s.setString("disaster-file", fc.DisasterFile, &cfg.DisasterFile)
	s.setString("ip", fc.IP, &cfg.IP)
	s.setString("docker-id", fc.DockerID, &cfg.DockerID)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("input", fc.Input, &cfg.Input)

	if err := s.setDuration("clear-interval", fc.ClearInterval, &cfg.ClearInterval); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("write-timeout", fc.WriteTimeout, &cfg.WriteTimeout); err != nil {
		return err
	}

	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
