package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/internal/ports"
)

type fakeConn struct {
	endpoint string

	mu        sync.Mutex
	writes    [][]byte
	failWrite bool
	closed    bool
}

func (c *fakeConn) Endpoint() string { return c.endpoint }

func (c *fakeConn) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.failWrite {
		return errors.New("broken pipe")
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

type fakeTransport struct {
	mu    sync.Mutex
	fail  map[string]bool
	conns map[string][]*fakeConn
	dials int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{fail: map[string]bool{}, conns: map[string][]*fakeConn{}}
}

func (t *fakeTransport) Dial(ctx context.Context, endpoint string, h ports.ConnHandler) (ports.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if t.fail[endpoint] {
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{endpoint: endpoint}
	t.conns[endpoint] = append(t.conns[endpoint], c)
	return c, nil
}

func (t *fakeTransport) setFail(endpoint string, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail[endpoint] = v
}

func (t *fakeTransport) latest(endpoint string) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs := t.conns[endpoint]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

type recordingHandler struct {
	mu      sync.Mutex
	replies [][]byte
	errs    []error
}

func (h *recordingHandler) OnReply(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replies = append(h.replies, b)
}

func (h *recordingHandler) OnTransportError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
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

func newTestGroup(t *testing.T, tr *fakeTransport, opts ...Option) (*Group, *recordingHandler) {
	t.Helper()
	h := &recordingHandler{}
	g := NewGroup(tr, h, nil, nil, opts...)
	t.Cleanup(func() { _ = g.Close() })
	return g, h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatchWithoutEndpoints(t *testing.T) {
	g, _ := newTestGroup(t, newFakeTransport())

	if res := g.Dispatch([]byte("x")); res.OK || !errors.Is(res.Err, domain.ErrNoConnection) {
		t.Errorf("Dispatch() = %+v, want ErrNoConnection", res)
	}
	if res := g.Dispatch(nil); res.OK || !errors.Is(res.Err, domain.ErrEmptyPayload) {
		t.Errorf("Dispatch(nil) = %+v, want ErrEmptyPayload", res)
	}
}

func TestDispatchRoundRobin(t *testing.T) {
	tr := newFakeTransport()
	g, _ := newTestGroup(t, tr)

	if err := g.Reconfigure(context.Background(), []string{"a:1", "b:1", "a:1"}); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if got := g.Endpoints(); len(got) != 2 {
		t.Fatalf("Endpoints() = %v, want 2 distinct", got)
	}
	if g.LiveCount() != 2 {
		t.Fatalf("LiveCount() = %d, want 2", g.LiveCount())
	}

	for i := 0; i < 10; i++ {
		if res := g.Dispatch([]byte("payload")); !res.OK {
			t.Fatalf("Dispatch() = %+v", res)
		}
	}
	a, b := tr.latest("a:1").writeCount(), tr.latest("b:1").writeCount()
	if a != 5 || b != 5 {
		t.Errorf("writes a=%d b=%d, want 5 each", a, b)
	}
}

func TestReconfigureKeepsAndCloses(t *testing.T) {
	tr := newFakeTransport()
	g, _ := newTestGroup(t, tr)
	ctx := context.Background()

	if err := g.Reconfigure(ctx, []string{"a:1", "b:1"}); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	a, b := tr.latest("a:1"), tr.latest("b:1")

	if err := g.Reconfigure(ctx, []string{"a:1", "c:1"}); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if tr.latest("a:1") != a || a.isClosed() {
		t.Error("connection to retained endpoint was replaced or closed")
	}
	if !b.isClosed() {
		t.Error("connection to removed endpoint was not closed")
	}
	if tr.latest("c:1") == nil {
		t.Error("new endpoint was not dialed")
	}
	if tr.dialCount() != 3 {
		t.Errorf("dials = %d, want 3", tr.dialCount())
	}
}

func TestReconfigureErrorFlag(t *testing.T) {
	tr := newFakeTransport()
	tr.setFail("bad:1", true)
	g, _ := newTestGroup(t, tr)
	ctx := context.Background()

	g.SetError(true)
	err := g.Reconfigure(ctx, []string{"good:1", "bad:1"})
	if err == nil {
		t.Fatal("Reconfigure() with unreachable endpoint returned nil")
	}
	if !g.HasError() {
		t.Error("HasError() = false after failed dial")
	}
	if g.LiveCount() != 1 {
		t.Errorf("LiveCount() = %d, want 1", g.LiveCount())
	}

	tr.setFail("bad:1", false)
	if err := g.Reconfigure(ctx, []string{"good:1", "bad:1"}); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if g.HasError() {
		t.Error("HasError() = true after successful reconfigure")
	}
	if g.LiveCount() != 2 {
		t.Errorf("LiveCount() = %d, want 2", g.LiveCount())
	}
}

func TestWriteFailureReleasesAndRedials(t *testing.T) {
	tr := newFakeTransport()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g, _ := newTestGroup(t, tr, WithClock(clock.Now), WithBackoff(time.Second, time.Second))

	if err := g.Reconfigure(context.Background(), []string{"a:1"}); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	first := tr.latest("a:1")
	first.mu.Lock()
	first.failWrite = true
	first.mu.Unlock()

	res := g.Dispatch([]byte("x"))
	if res.OK || res.Endpoint != "a:1" {
		t.Fatalf("Dispatch() = %+v, want failure on a:1", res)
	}
	if !first.isClosed() || g.LiveCount() != 0 {
		t.Fatal("failed connection was not released")
	}

	// Still inside the backoff window: no dial.
	g.Dispatch([]byte("x"))
	if tr.dialCount() != 1 {
		t.Fatalf("dials = %d, want 1 before backoff expires", tr.dialCount())
	}

	clock.Advance(5 * time.Second)
	if res := g.Dispatch([]byte("x")); res.OK {
		t.Error("Dispatch() succeeded while redial is pending")
	}
	waitFor(t, func() bool { return g.LiveCount() == 1 })
	if tr.latest("a:1") == first {
		t.Error("redial did not create a new connection")
	}
	if res := g.Dispatch([]byte("x")); !res.OK {
		t.Errorf("Dispatch() after redial = %+v", res)
	}
}

func TestOnFaultAndFrame(t *testing.T) {
	tr := newFakeTransport()
	g, h := newTestGroup(t, tr)

	if err := g.Reconfigure(context.Background(), []string{"a:1"}); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	c := tr.latest("a:1")

	g.OnFrame(c, []byte("reply"))
	g.OnFault(c, errors.New("reset by peer"))
	g.Release(c)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.replies) != 1 || string(h.replies[0]) != "reply" {
		t.Errorf("replies = %q", h.replies)
	}
	if len(h.errs) != 1 {
		t.Errorf("transport errors = %v, want 1", h.errs)
	}
	if !c.isClosed() || g.LiveCount() != 0 {
		t.Error("faulted connection still live")
	}
}

func TestCloseTearsDown(t *testing.T) {
	tr := newFakeTransport()
	g, _ := newTestGroup(t, tr)

	if err := g.Reconfigure(context.Background(), []string{"a:1", "b:1"}); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !tr.latest("a:1").isClosed() || !tr.latest("b:1").isClosed() {
		t.Error("connections left open after Close")
	}
	if err := g.Reconfigure(context.Background(), []string{"a:1"}); err == nil {
		t.Error("Reconfigure() after Close returned nil")
	}
	if err := g.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
