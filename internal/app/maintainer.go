package app

import (
	"context"
	"errors"
	"time"

	"github.com/bft-labs/auditship/pkg/log"
)

// DefaultClearInterval is the default pause between maintenance cycles.
const DefaultClearInterval = time.Minute

// MaintainerConfig contains configuration for the maintenance loop.
type MaintainerConfig struct {
	// ClearInterval is the pause between maintenance cycles.
	ClearInterval time.Duration

	// RecoverOnStart replays the disaster file before the first cycle.
	RecoverOnStart bool
}

// Buffer is the part of the sender the maintenance loop drives.
type Buffer interface {
	Refresh(ctx context.Context) error
	ClearBuffer(ctx context.Context) error
	CheckAuditFile(ctx context.Context) error
	Pending() int
}

// CycleEmitter is called after every maintenance cycle.
type CycleEmitter interface {
	OnCycle(pending int, duration time.Duration, err error)
}

// Maintainer runs the periodic buffer maintenance: it refreshes the collector
// selection (re-selecting after transport errors) and then redispatches,
// overflows or recovers pending records.
type Maintainer struct {
	config  MaintainerConfig
	buffer  Buffer
	logger  log.Logger
	emitter CycleEmitter
}

// NewMaintainer creates a maintenance loop over buffer.
func NewMaintainer(config MaintainerConfig, buffer Buffer, logger log.Logger, emitter CycleEmitter) *Maintainer {
	if config.ClearInterval <= 0 {
		config.ClearInterval = DefaultClearInterval
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Maintainer{
		config:  config,
		buffer:  buffer,
		logger:  logger,
		emitter: emitter,
	}
}

// Run executes maintenance cycles until ctx is canceled.
func (m *Maintainer) Run(ctx context.Context) error {
	if m.config.RecoverOnStart {
		if err := m.buffer.CheckAuditFile(ctx); err != nil && !isCanceled(err) {
			m.logger.Error("startup recovery failed", log.Err(err))
		}
	}

	ticker := time.NewTicker(m.config.ClearInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Cycle(ctx)
		}
	}
}

// Cycle performs one maintenance pass.
func (m *Maintainer) Cycle(ctx context.Context) {
	start := time.Now()

	if err := m.buffer.Refresh(ctx); err != nil && !isCanceled(err) {
		m.logger.Warn("collector refresh failed", log.Err(err))
	}

	err := m.buffer.ClearBuffer(ctx)
	if err != nil && !isCanceled(err) {
		m.logger.Error("buffer maintenance failed", log.Err(err))
	}

	duration := time.Since(start)
	pending := m.buffer.Pending()
	m.logger.Debug("maintenance cycle complete",
		log.Int("pending", pending),
		log.Duration("duration", duration),
	)
	if m.emitter != nil {
		m.emitter.OnCycle(pending, duration, err)
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
