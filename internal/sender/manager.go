// Package sender implements the delivery core: request id allocation, the
// pending-acknowledgment cache with its age-based resend scan, overflow to
// and recovery from the disaster file, reply handling, and endpoint selection
// for the connection group.
package sender

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/bft-labs/auditship/internal/connection"
	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/internal/metrics"
	"github.com/bft-labs/auditship/internal/ports"
	"github.com/bft-labs/auditship/pkg/log"
)

// Deps are the collaborators of a Manager.
type Deps struct {
	Transport ports.Transport
	Store     ports.DisasterStore
	Settings  *domain.SettingsHolder
	Logger    log.Logger
	Metrics   *metrics.Sender
}

// Manager tracks every audit request from first transmission to
// acknowledgment. All methods are safe for concurrent use.
type Manager struct {
	group    *connection.Group
	store    ports.DisasterStore
	settings *domain.SettingsHolder
	logger   log.Logger
	metrics  *metrics.Sender

	now             func() time.Time
	sendInterval    time.Duration
	resendThreshold time.Duration
	groupOpts       []connection.Option

	ids      idSequence
	cache    *pendingCache
	lastScan atomic.Int64

	selMu       sync.Mutex
	selector    selector
	maxChannels int
	candidates  []string

	// maintMu keeps buffer maintenance single-flight.
	maintMu sync.Mutex
}

// NewManager creates a Manager with no endpoints.
func NewManager(deps Deps, opts ...Option) *Manager {
	m := defaultManager()
	for _, opt := range opts {
		opt(m)
	}
	m.store = deps.Store
	m.settings = deps.Settings
	m.metrics = deps.Metrics
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = log.NoopLogger{}
	}
	if m.settings == nil {
		m.settings = domain.NewSettingsHolder(domain.Settings{MaxCacheRows: 2_000_000, MaxFileSize: 1 << 30})
	}
	m.group = connection.NewGroup(deps.Transport, m, m.logger, m.metrics, m.groupOpts...)
	m.lastScan.Store(m.now().UnixNano())
	return m
}

// NextRequestID returns the next request id, wrapping to 0 after the maximum.
func (m *Manager) NextRequestID() uint64 {
	return m.ids.next()
}

// Send records payload under requestID and transmits it. A duplicate id keeps
// the cached record but is still transmitted. Send never fails; transmission
// problems raise the connection group's error flag. Every call may also run
// the resend scan.
func (m *Manager) Send(requestID uint64, payload []byte) {
	now := m.now()
	rec := domain.AuditRecord{RequestID: requestID, Payload: payload, SendTime: now}
	if m.cache.insertIfAbsent(rec) {
		m.cache.queue.push(requestID)
		m.metrics.SetPending(m.cache.len())
	}
	m.dispatch(payload)
	m.maybeScan(now)
}

// maybeScan runs the resend scan when a full threshold has elapsed since the
// previous one. The checkpoint advances per scan, and only the caller that
// advances it performs the scan.
func (m *Manager) maybeScan(now time.Time) {
	last := m.lastScan.Load()
	if now.UnixNano()-last <= int64(m.resendThreshold) {
		return
	}
	if !m.lastScan.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	m.scan(now)
}

// scan walks the age queue once. Live ids are re-queued at the tail and
// redispatched when stale; ids without a record are dropped.
func (m *Manager) scan(now time.Time) {
	n := m.cache.queue.len()
	resent := 0
	for i := 0; i < n; i++ {
		id, ok := m.cache.queue.pop()
		if !ok {
			break
		}
		rec, ok := m.cache.get(id)
		if !ok {
			continue
		}
		m.cache.queue.push(id)
		if !rec.Stale(now, m.resendThreshold) {
			continue
		}
		if rec, ok = m.cache.touch(id, now); ok {
			m.dispatch(rec.Payload)
			m.metrics.Redispatched(metrics.ReasonScan)
			resent++
		}
	}
	if resent > 0 {
		m.logger.Debug("resent stale records", log.Int("count", resent), log.Int("queued", n))
	}
}

func (m *Manager) dispatch(payload []byte) bool {
	res := m.group.Dispatch(payload)
	m.metrics.Dispatched(res.OK)
	if !res.OK {
		m.group.SetError(true)
		m.logger.Debug("dispatch failed",
			log.String("endpoint", res.Endpoint),
			log.Err(res.Err),
		)
	}
	return res.OK
}

func (m *Manager) newLimiter() *rate.Limiter {
	if m.sendInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(m.sendInterval), 1)
}

// SetEndpoints updates the desired collector set. When candidates match the
// last applied set and the error flag is clear, nothing happens. Otherwise a
// fresh random subset of at most maxChannels endpoints is pushed to the
// connection group.
func (m *Manager) SetEndpoints(ctx context.Context, candidates []string, maxChannels int) error {
	m.selMu.Lock()
	defer m.selMu.Unlock()

	desired := dedupe(candidates)
	if maxChannels == m.maxChannels && sameSet(desired, m.candidates) && !m.group.HasError() {
		return nil
	}
	m.candidates = desired
	m.maxChannels = maxChannels

	selected := m.selector.pick(desired, maxChannels)
	m.logger.Info("selecting collector endpoints",
		log.Int("candidates", len(desired)),
		log.Int("max_channels", maxChannels),
		log.Strings("selected", selected),
	)
	if err := m.group.Reconfigure(ctx, selected); err != nil {
		m.logger.Warn("collector reconfiguration incomplete", log.Err(err))
		return err
	}
	return nil
}

// Refresh reapplies the last candidate set, re-selecting endpoints when the
// error flag is raised.
func (m *Manager) Refresh(ctx context.Context) error {
	m.selMu.Lock()
	candidates, maxChannels := slices.Clone(m.candidates), m.maxChannels
	m.selMu.Unlock()
	if len(candidates) == 0 {
		return nil
	}
	return m.SetEndpoints(ctx, candidates, maxChannels)
}

// MaxConnectChannels returns the channel count used for the next selection.
func (m *Manager) MaxConnectChannels() int {
	m.selMu.Lock()
	defer m.selMu.Unlock()
	return m.maxChannels
}

// SetSettings swaps in new limits and file locations.
func (m *Manager) SetSettings(s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.settings.Store(s)
	return nil
}

// Settings returns the current limits and file locations.
func (m *Manager) Settings() domain.Settings {
	return m.settings.Load()
}

// Release removes a failed connection from the group.
func (m *Manager) Release(c ports.Conn) {
	m.group.Release(c)
}

// Pending returns the number of unacknowledged records in memory.
func (m *Manager) Pending() int {
	return m.cache.len()
}

// Contains reports whether requestID is pending.
func (m *Manager) Contains(requestID uint64) bool {
	_, ok := m.cache.get(requestID)
	return ok
}

// Record returns the pending record for requestID.
func (m *Manager) Record(requestID uint64) (domain.AuditRecord, bool) {
	return m.cache.get(requestID)
}

// Group returns the connection group.
func (m *Manager) Group() *connection.Group {
	return m.group
}

// Close tears down every collector connection.
func (m *Manager) Close() error {
	return m.group.Close()
}
