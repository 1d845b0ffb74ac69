package sender

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/auditship/internal/adapters/fs"
	"github.com/bft-labs/auditship/internal/codec"
	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/internal/ports"
)

type fakeConn struct {
	endpoint string
	t        *fakeTransport
}

func (c *fakeConn) Endpoint() string { return c.endpoint }

func (c *fakeConn) Write(p []byte) error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if c.t.failWrites {
		return errors.New("broken pipe")
	}
	c.t.writes[string(p)]++
	c.t.total++
	return nil
}

func (c *fakeConn) Close() error { return nil }

type fakeTransport struct {
	mu         sync.Mutex
	dials      int
	dialed     []string
	failWrites bool
	writes     map[string]int
	total      int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{writes: map[string]int{}}
}

func (t *fakeTransport) Dial(_ context.Context, endpoint string, _ ports.ConnHandler) (ports.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	t.dialed = append(t.dialed, endpoint)
	return &fakeConn{endpoint: endpoint, t: t}, nil
}

func (t *fakeTransport) sent(payload string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes[payload]
}

func (t *fakeTransport) totalWrites() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct {
	persistErr error
	loadErr    error
	removed    bool
}

func (s *failingStore) Persist(context.Context, []domain.AuditRecord) error { return s.persistErr }

func (s *failingStore) Load(context.Context) ([]domain.AuditRecord, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return []domain.AuditRecord{{RequestID: 1, Payload: []byte("x")}}, nil
}

func (s *failingStore) Remove(context.Context) error {
	s.removed = true
	return nil
}

func (s *failingStore) Size() (int64, error) { return 0, nil }

type harness struct {
	m        *Manager
	tr       *fakeTransport
	clock    *fakeClock
	settings *domain.SettingsHolder
	store    *fs.DisasterFile
}

func newHarness(t *testing.T, maxCacheRows int, opts ...Option) *harness {
	t.Helper()
	s := domain.DefaultSettings(filepath.Join(t.TempDir(), "audit"))
	s.MaxCacheRows = maxCacheRows
	h := &harness{
		tr:       newFakeTransport(),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		settings: domain.NewSettingsHolder(s),
	}
	h.store = fs.NewDisasterFile(h.settings)
	opts = append([]Option{WithClock(h.clock.Now), WithSendInterval(0)}, opts...)
	h.m = NewManager(Deps{
		Transport: h.tr,
		Store:     h.store,
		Settings:  h.settings,
	}, opts...)
	t.Cleanup(func() { _ = h.m.Close() })
	return h
}

func (h *harness) connect(t *testing.T, endpoints ...string) {
	t.Helper()
	if len(endpoints) == 0 {
		endpoints = []string{"collector-1:10081"}
	}
	if err := h.m.SetEndpoints(context.Background(), endpoints, domain.AllConnectChannels); err != nil {
		t.Fatalf("SetEndpoints() error = %v", err)
	}
}

func replyFrame(t *testing.T, id uint64, status domain.StatusCode) []byte {
	t.Helper()
	body, err := codec.Unframe(codec.EncodeReply(codec.AuditReply{RequestID: id, Status: int32(status)}))
	if err != nil {
		t.Fatalf("Unframe() error = %v", err)
	}
	return body
}
