package domain

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
)

// DisasterFileName is the default file name of the overflow snapshot.
const DisasterFileName = "audit-disaster.json"

// Settings are the read-only sender limits and file locations.
// A Settings value is never mutated in place; updates swap a new value into a
// SettingsHolder.
type Settings struct {
	// MaxCacheRows is the pending-cache size above which records overflow to disk.
	MaxCacheRows int

	// MaxFileSize is the size in bytes above which an existing disaster file is discarded.
	MaxFileSize int64

	// FilePath is the directory holding the disaster file.
	FilePath string

	// DisasterFile is the full path of the disaster file.
	DisasterFile string
}

// DefaultSettings returns Settings rooted at dir.
func DefaultSettings(dir string) Settings {
	return Settings{
		MaxCacheRows: 2_000_000,
		MaxFileSize:  1 << 30,
		FilePath:     dir,
		DisasterFile: filepath.Join(dir, DisasterFileName),
	}
}

// Validate checks the settings and derives DisasterFile from FilePath when empty.
func (s *Settings) Validate() error {
	if s.MaxCacheRows <= 0 {
		return fmt.Errorf("%w: max cache rows must be positive", ErrInvalidConfig)
	}
	if s.MaxFileSize <= 0 {
		return fmt.Errorf("%w: max file size must be positive", ErrInvalidConfig)
	}
	if s.FilePath == "" {
		return fmt.Errorf("%w: file path is required", ErrInvalidConfig)
	}
	if s.DisasterFile == "" {
		s.DisasterFile = filepath.Join(s.FilePath, DisasterFileName)
	}
	return nil
}

// SettingsHolder publishes the current Settings to concurrent readers.
type SettingsHolder struct {
	v atomic.Pointer[Settings]
}

// NewSettingsHolder creates a holder with an initial value.
func NewSettingsHolder(s Settings) *SettingsHolder {
	h := &SettingsHolder{}
	h.Store(s)
	return h
}

// Load returns the current settings.
func (h *SettingsHolder) Load() Settings {
	if p := h.v.Load(); p != nil {
		return *p
	}
	return Settings{}
}

// Store replaces the current settings.
func (h *SettingsHolder) Store(s Settings) {
	h.v.Store(&s)
}
