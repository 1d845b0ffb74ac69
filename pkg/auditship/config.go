package auditship

import (
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/auditship/internal/domain"
)

// Default values applied by Config.SetDefaults.
const (
	DefaultClearInterval = time.Minute
	DefaultDialTimeout   = 5 * time.Second
	DefaultWriteTimeout  = 10 * time.Second
)

// AllConnectChannels makes every collector endpoint active.
const AllConnectChannels = domain.AllConnectChannels

// Config holds the configuration of an Auditship instance.
type Config struct {
	// Collectors are the candidate collector endpoints (host:port).
	Collectors []string

	// MaxConnectChannels is how many collectors are used at once.
	// AllConnectChannels uses every candidate. Default: 2.
	MaxConnectChannels int

	// MaxCacheRows is the number of pending reports above which maintenance
	// spills them to the disaster file. Default: 2,000,000.
	MaxCacheRows int

	// MaxFileSize is the size in bytes above which an existing disaster file
	// is discarded instead of appended to. Default: 1 GiB.
	MaxFileSize int64

	// FilePath is the directory holding the disaster file. Required.
	FilePath string

	// DisasterFile overrides the disaster file location.
	// Default: FilePath/audit-disaster.json.
	DisasterFile string

	// ClearInterval is the pause between buffer maintenance cycles.
	ClearInterval time.Duration

	// DialTimeout bounds each collector connection attempt.
	DialTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// IP and DockerID identify this process in report headers.
	IP       string
	DockerID string
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	def := domain.DefaultSettings(c.FilePath)
	if c.MaxConnectChannels == 0 {
		c.MaxConnectChannels = domain.DefaultConnectChannels
	}
	if c.MaxCacheRows == 0 {
		c.MaxCacheRows = def.MaxCacheRows
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = def.MaxFileSize
	}
	if c.ClearInterval == 0 {
		c.ClearInterval = DefaultClearInterval
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// Validate checks the configuration and derives DisasterFile when empty.
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
		return fmt.Errorf("%w: max connect channels must be positive or %d", domain.ErrInvalidConfig, domain.AllConnectChannels)
	}
	if c.ClearInterval < 0 || c.DialTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: intervals must not be negative", domain.ErrInvalidConfig)
	}
	s := c.settings()
	if err := s.Validate(); err != nil {
		return err
	}
	c.DisasterFile = s.DisasterFile
	return nil
}

func (c Config) settings() Settings {
	return Settings{
		MaxCacheRows: c.MaxCacheRows,
		MaxFileSize:  c.MaxFileSize,
		FilePath:     c.FilePath,
		DisasterFile: c.DisasterFile,
	}
}
