package sender

import (
	"math/rand/v2"
	"time"

	"github.com/bft-labs/auditship/internal/connection"
	"github.com/bft-labs/auditship/internal/domain"
)

// Option configures a Manager.
type Option func(*Manager)

// WithMaxConnectChannels sets how many endpoints are used at once.
// domain.AllConnectChannels uses every candidate.
func WithMaxConnectChannels(n int) Option {
	return func(m *Manager) {
		m.maxChannels = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRandom sets the source used for endpoint selection.
func WithRandom(r *rand.Rand) Option {
	return func(m *Manager) {
		m.selector.rng = r
	}
}

// WithSendInterval sets the pause between bulk redispatches.
// Zero disables pacing.
func WithSendInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.sendInterval = d
		}
	}
}

// WithResendThreshold sets the age after which the scan redispatches a record.
func WithResendThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.resendThreshold = d
		}
	}
}

// WithMaxRequestID sets the largest id handed out before wrapping.
func WithMaxRequestID(n uint64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.ids.max = n
		}
	}
}

// WithDialTimeout bounds every collector connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.groupOpts = append(m.groupOpts, connection.WithDialTimeout(d))
	}
}

func defaultManager() *Manager {
	return &Manager{
		now:             time.Now,
		sendInterval:    domain.SendInterval,
		resendThreshold: domain.ResendThreshold,
		maxChannels:     domain.DefaultConnectChannels,
		ids:             idSequence{max: domain.MaxRequestID},
		cache:           newPendingCache(),
	}
}
