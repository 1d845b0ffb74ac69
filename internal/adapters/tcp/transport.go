// Package tcp implements the collector transport over plain TCP.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/bft-labs/auditship/internal/codec"
	"github.com/bft-labs/auditship/internal/ports"
	"github.com/bft-labs/auditship/pkg/log"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Option configures a Transport.
type Option func(*Transport)

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.dialTimeout = d
		}
	}
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.writeTimeout = d
		}
	}
}

// WithMaxFrame bounds inbound frame bodies.
func WithMaxFrame(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxFrame = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// Transport dials collectors over TCP and runs one reader goroutine per
// connection.
type Transport struct {
	dialTimeout  time.Duration
	writeTimeout time.Duration
	maxFrame     int
	logger       log.Logger

	mu      sync.Mutex
	closed  bool
	conns   map[*Conn]struct{}
	readers conc.WaitGroup
}

// NewTransport creates a Transport.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		dialTimeout:  defaultDialTimeout,
		writeTimeout: defaultWriteTimeout,
		maxFrame:     codec.MaxFrameLen,
		logger:       log.NoopLogger{},
		conns:        make(map[*Conn]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dial connects to endpoint. Inbound frames are delivered to h until the
// connection fails or is closed.
func (t *Transport) Dial(ctx context.Context, endpoint string, h ports.ConnHandler) (ports.Conn, error) {
	d := net.Dialer{Timeout: t.dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, err
	}

	c := &Conn{endpoint: endpoint, nc: nc, writeTimeout: t.writeTimeout, t: t}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = nc.Close()
		return nil, errors.New("tcp transport closed")
	}
	t.conns[c] = struct{}{}
	t.readers.Go(func() { c.readLoop(h, t.maxFrame) })
	t.mu.Unlock()

	t.logger.Debug("dialed collector", log.String("endpoint", endpoint))
	return c, nil
}

// Close closes every open connection and waits for their readers to exit.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conns := make([]*Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	t.readers.Wait()
	return nil
}

func (t *Transport) forget(c *Conn) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
}

// Conn is one TCP connection to a collector.
type Conn struct {
	endpoint     string
	nc           net.Conn
	writeTimeout time.Duration
	t            *Transport

	wmu       sync.Mutex
	closing   atomic.Bool
	closeOnce sync.Once
}

// Endpoint returns the dialed address.
func (c *Conn) Endpoint() string { return c.endpoint }

// Write sends one framed payload.
func (c *Conn) Write(payload []byte) error {
	if c.closing.Load() {
		return net.ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if _, err := c.nc.Write(payload); err != nil {
		return fmt.Errorf("write %s: %w", c.endpoint, err)
	}
	return nil
}

// Close closes the socket. The reader goroutine exits on its own; Close does
// not wait for it so it may be called from the reader's own callbacks.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		err = c.nc.Close()
		c.t.forget(c)
	})
	return err
}

func (c *Conn) readLoop(h ports.ConnHandler, maxFrame int) {
	r := bufio.NewReader(c.nc)
	for {
		body, err := codec.ReadFrame(r, maxFrame)
		if err != nil {
			if !c.closing.Load() {
				h.OnFault(c, fmt.Errorf("read %s: %w", c.endpoint, err))
			}
			return
		}
		if keepalive(body) {
			continue
		}
		h.OnFrame(c, body)
	}
}

func keepalive(body []byte) bool {
	cmd, err := codec.DecodeCommand(body)
	if err != nil {
		return false
	}
	return cmd.Type == codec.CommandPing || cmd.Type == codec.CommandPong
}
