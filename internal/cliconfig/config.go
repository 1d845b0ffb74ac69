package cliconfig

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/auditship/internal/domain"
)

// Config holds CLI configuration for auditship.
type Config struct {
	Collectors         []string
	MaxConnectChannels int

	MaxCacheRows int
	MaxFileSize  int64
	FilePath     string
	DisasterFile string

	ClearInterval time.Duration
	DialTimeout   time.Duration
	WriteTimeout  time.Duration

	IP       string
	DockerID string

	MetricsAddr string
	LogLevel    string
	Input       string
	Once        bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	def := domain.DefaultSettings("")
	return Config{
		MaxConnectChannels: domain.DefaultConnectChannels,
		MaxCacheRows:       def.MaxCacheRows,
		MaxFileSize:        def.MaxFileSize,
		FilePath:           DefaultDataDir(),
		ClearInterval:      time.Minute,
		DialTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		LogLevel:           "info",
		Input:              "-",
		DockerID:           os.Getenv("HOSTNAME"),
	}
}

// DefaultDataDir returns ~/.auditship/data, or a relative directory when the
// home directory is unknown.
func DefaultDataDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".auditship", "data")
	}
	return filepath.Join(".auditship", "data")
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if len(c.Collectors) == 0 {
		return fmt.Errorf("%w: at least one collector is required", domain.ErrInvalidConfig)
	}
	for _, ep := range c.Collectors {
		if _, _, err := net.SplitHostPort(ep); err != nil {
			return fmt.Errorf("%w: collector %q: %v", domain.ErrInvalidConfig, ep, err)
		}
	}
	if c.MaxConnectChannels == 0 || c.MaxConnectChannels < domain.AllConnectChannels {
		return fmt.Errorf("%w: max connect channels must be positive or %d for all",
			domain.ErrInvalidConfig, domain.AllConnectChannels)
	}
	if c.ClearInterval <= 0 {
		return fmt.Errorf("%w: clear interval must be positive", domain.ErrInvalidConfig)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial timeout must be positive", domain.ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	case "":
		c.LogLevel = "info"
	default:
		return fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidConfig, c.LogLevel)
	}

	s := c.Settings()
	if err := s.Validate(); err != nil {
		return err
	}
	c.DisasterFile = s.DisasterFile
	return nil
}

// Settings returns the sender limits described by c.
func (c Config) Settings() domain.Settings {
	return domain.Settings{
		MaxCacheRows: c.MaxCacheRows,
		MaxFileSize:  c.MaxFileSize,
		FilePath:     c.FilePath,
		DisasterFile: c.DisasterFile,
	}
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

// setStrings sets a list value if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt64 sets an int64 value if positive and flag not changed.
func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setChannels sets a channel count from a pointer, where -1 means all.
func (s *configSetter) setChannels(flag string, value *int, dst *int) {
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

// setListFromString splits a comma-separated list.
// Used for environment variables that come as strings.
func (s *configSetter) setListFromString(flag, value string, dst *[]string) {
	s.setStrings(flag, SplitList(value), dst)
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

// setInt64FromString parses a string to int64 and sets the destination if valid.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setChannelsFromString parses a channel count, accepting -1 for all.
func (s *configSetter) setChannelsFromString(flag, value string, dst *int) error {
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

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
