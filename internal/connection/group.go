// Package connection maintains the pool of live collector connections.
//
// A Group holds an immutable configuration snapshot (the active endpoints and
// one slot per endpoint) that is swapped atomically on reconfiguration, so
// dispatch never takes a group-wide lock. Each slot owns at most one
// connection and redials it in the background on a per-endpoint exponential
// backoff schedule.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/internal/metrics"
	"github.com/bft-labs/auditship/internal/ports"
	"github.com/bft-labs/auditship/pkg/log"
)

const (
	defaultDialTimeout    = 5 * time.Second
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
)

// Option configures a Group.
type Option func(*Group)

// WithDialTimeout bounds every connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(g *Group) {
		if d > 0 {
			g.dialTimeout = d
		}
	}
}

// WithBackoff sets the redial schedule for a failed endpoint.
func WithBackoff(initial, ceiling time.Duration) Option {
	return func(g *Group) {
		if initial > 0 {
			g.initialBackoff = initial
		}
		if ceiling > 0 {
			g.maxBackoff = ceiling
		}
	}
}

// WithClock overrides the time source used for redial deadlines.
func WithClock(now func() time.Time) Option {
	return func(g *Group) {
		if now != nil {
			g.now = now
		}
	}
}

type slot struct {
	endpoint string

	mu       sync.Mutex
	conn     ports.Conn
	dialing  bool
	retired  bool
	nextDial time.Time
	backoff  *backoff.ExponentialBackOff
}

func (s *slot) live() ports.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

type snapshot struct {
	endpoints []string
	slots     []*slot
}

// Group is a bounded set of connections to collector endpoints.
// It implements ports.ConnHandler for the connections it dials.
type Group struct {
	transport ports.Transport
	handler   ports.ReplyHandler
	logger    log.Logger
	metrics   *metrics.Sender

	dialTimeout    time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time

	cfg      atomic.Pointer[snapshot]
	next     atomic.Uint64
	errFlag  atomic.Bool
	reconfMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	// redialMu orders redial launches against Close so the wait group is
	// never added to while Close is waiting on it.
	redialMu sync.RWMutex
	closed   bool
	redials  conc.WaitGroup
}

// NewGroup creates an empty Group. Replies and faults from its connections
// are forwarded to handler.
func NewGroup(transport ports.Transport, handler ports.ReplyHandler, logger log.Logger, m *metrics.Sender, opts ...Option) *Group {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Group{
		transport:      transport,
		handler:        handler,
		logger:         logger,
		metrics:        m,
		dialTimeout:    defaultDialTimeout,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cfg.Store(&snapshot{})
	return g
}

// Dispatch writes payload to one live connection, chosen round-robin.
// It never dials; dead slots past their backoff deadline are redialed in
// the background.
func (g *Group) Dispatch(payload []byte) domain.SendResult {
	if len(payload) == 0 {
		return domain.SendResult{Err: domain.ErrEmptyPayload}
	}
	cfg := g.cfg.Load()
	n := len(cfg.slots)
	if n == 0 {
		return domain.SendResult{Err: domain.ErrNoConnection}
	}

	start := g.next.Add(1)
	for i := 0; i < n; i++ {
		s := cfg.slots[(start+uint64(i))%uint64(n)]
		c := s.live()
		if c == nil {
			g.maybeRedial(s)
			continue
		}
		if err := c.Write(payload); err != nil {
			g.logger.Warn("collector write failed",
				log.String("endpoint", s.endpoint),
				log.Err(err),
			)
			g.Release(c)
			return domain.SendResult{Endpoint: s.endpoint, Err: err}
		}
		return domain.SendResult{OK: true, Endpoint: s.endpoint}
	}
	return domain.SendResult{Err: domain.ErrNoConnection}
}

// Reconfigure replaces the active endpoint set. Connections to endpoints that
// remain are kept, removed endpoints are closed, and new endpoints are dialed
// in parallel, each attempt bounded by the dial timeout. The error flag is
// cleared; endpoints that fail to connect raise it again and are returned as
// a joined error.
func (g *Group) Reconfigure(ctx context.Context, endpoints []string) error {
	g.reconfMu.Lock()
	defer g.reconfMu.Unlock()

	if g.isClosed() {
		return errors.New("connection group closed")
	}

	old := g.cfg.Load()
	byEndpoint := make(map[string]*slot, len(old.slots))
	for _, s := range old.slots {
		byEndpoint[s.endpoint] = s
	}

	next := &snapshot{}
	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if ep == "" || seen[ep] {
			continue
		}
		seen[ep] = true
		s, ok := byEndpoint[ep]
		if !ok {
			s = g.newSlot(ep)
		}
		next.endpoints = append(next.endpoints, ep)
		next.slots = append(next.slots, s)
	}

	for _, s := range old.slots {
		if seen[s.endpoint] {
			continue
		}
		s.mu.Lock()
		s.retired = true
		c := s.conn
		s.conn = nil
		s.mu.Unlock()
		if c != nil {
			_ = c.Close()
		}
	}

	g.cfg.Store(next)
	g.errFlag.Store(false)
	g.metrics.Reconfigured()
	g.logger.Info("collector endpoints reconfigured",
		log.Strings("endpoints", next.endpoints),
	)

	p := pool.New().WithErrors()
	for _, s := range next.slots {
		s.mu.Lock()
		claim := s.conn == nil && !s.dialing
		if claim {
			s.dialing = true
		}
		s.mu.Unlock()
		if !claim {
			continue
		}
		p.Go(func() error {
			return g.dial(ctx, s)
		})
	}
	err := p.Wait()
	g.metrics.SetLive(g.LiveCount())
	return err
}

// Release removes c from its slot, closes it and schedules a redial.
// Releasing an unknown or already released connection only closes it.
func (g *Group) Release(c ports.Conn) {
	if c == nil {
		return
	}
	for _, s := range g.cfg.Load().slots {
		s.mu.Lock()
		if s.conn != c {
			s.mu.Unlock()
			continue
		}
		s.conn = nil
		s.nextDial = g.now().Add(nextBackoff(s.backoff, g.maxBackoff))
		s.mu.Unlock()
		g.logger.Info("collector connection released",
			log.String("endpoint", s.endpoint),
		)
		break
	}
	_ = c.Close()
	g.metrics.SetLive(g.LiveCount())
}

// OnFrame forwards an inbound frame to the reply handler.
func (g *Group) OnFrame(_ ports.Conn, body []byte) {
	g.handler.OnReply(body)
}

// OnFault releases the failed connection and reports the fault.
func (g *Group) OnFault(c ports.Conn, err error) {
	g.metrics.Fault()
	g.Release(c)
	g.handler.OnTransportError(err)
}

// HasError reports whether the sticky error flag is raised.
func (g *Group) HasError() bool { return g.errFlag.Load() }

// SetError raises or clears the sticky error flag.
func (g *Group) SetError(v bool) { g.errFlag.Store(v) }

// Endpoints returns a copy of the active endpoint set.
func (g *Group) Endpoints() []string {
	eps := g.cfg.Load().endpoints
	out := make([]string, len(eps))
	copy(out, eps)
	return out
}

// LiveCount returns the number of slots holding a connection.
func (g *Group) LiveCount() int {
	n := 0
	for _, s := range g.cfg.Load().slots {
		if s.live() != nil {
			n++
		}
	}
	return n
}

// Close tears down every connection and waits for background redials.
func (g *Group) Close() error {
	g.redialMu.Lock()
	if g.closed {
		g.redialMu.Unlock()
		return nil
	}
	g.closed = true
	g.redialMu.Unlock()
	g.cancel()

	g.reconfMu.Lock()
	old := g.cfg.Swap(&snapshot{})
	g.reconfMu.Unlock()

	for _, s := range old.slots {
		s.mu.Lock()
		s.retired = true
		c := s.conn
		s.conn = nil
		s.mu.Unlock()
		if c != nil {
			_ = c.Close()
		}
	}
	g.redials.Wait()
	g.metrics.SetLive(0)
	return nil
}

func (g *Group) isClosed() bool {
	g.redialMu.RLock()
	defer g.redialMu.RUnlock()
	return g.closed
}

func (g *Group) newSlot(endpoint string) *slot {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.initialBackoff
	bo.MaxInterval = g.maxBackoff
	bo.Reset()
	return &slot{endpoint: endpoint, backoff: bo}
}

func (g *Group) maybeRedial(s *slot) {
	s.mu.Lock()
	if s.conn != nil || s.dialing || s.retired || g.now().Before(s.nextDial) {
		s.mu.Unlock()
		return
	}
	s.dialing = true
	s.mu.Unlock()

	g.redialMu.RLock()
	defer g.redialMu.RUnlock()
	if g.closed {
		s.mu.Lock()
		s.dialing = false
		s.mu.Unlock()
		return
	}
	g.redials.Go(func() {
		if err := g.dial(g.ctx, s); err != nil {
			g.logger.Debug("collector redial failed",
				log.String("endpoint", s.endpoint),
				log.Err(err),
			)
		}
		g.metrics.SetLive(g.LiveCount())
	})
}

// dial connects s. The caller must have set s.dialing.
func (g *Group) dial(ctx context.Context, s *slot) error {
	dctx, cancel := context.WithTimeout(ctx, g.dialTimeout)
	defer cancel()
	c, err := g.transport.Dial(dctx, s.endpoint, g)

	s.mu.Lock()
	s.dialing = false
	if err != nil {
		s.nextDial = g.now().Add(nextBackoff(s.backoff, g.maxBackoff))
		s.mu.Unlock()
		g.errFlag.Store(true)
		return fmt.Errorf("dial %s: %w", s.endpoint, err)
	}
	if s.retired || g.isClosed() {
		s.mu.Unlock()
		_ = c.Close()
		return nil
	}
	s.conn = c
	s.backoff.Reset()
	s.nextDial = time.Time{}
	s.mu.Unlock()

	g.logger.Info("collector connected", log.String("endpoint", s.endpoint))
	return nil
}

func nextBackoff(b *backoff.ExponentialBackOff, ceiling time.Duration) time.Duration {
	d := b.NextBackOff()
	if d == backoff.Stop {
		d = ceiling
	}
	return d
}
