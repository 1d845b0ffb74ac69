package tcp

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/auditship/internal/codec"
	"github.com/bft-labs/auditship/internal/ports"
)

// collector acknowledges every request it reads with the given status.
func collector(t *testing.T, status int32) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer nc.Close()
				r := bufio.NewReader(nc)
				for {
					body, err := codec.ReadFrame(r, 0)
					if err != nil {
						return
					}
					req, err := codec.DecodeRequest(body)
					if err != nil {
						return
					}
					_, _ = nc.Write(codec.EncodePing())
					reply := codec.EncodeReply(codec.AuditReply{RequestID: req.RequestID, Status: status})
					if _, err := nc.Write(reply); err != nil {
						return
					}
				}
			}()
		}
	}()
	return ln.Addr().String(), func() {
		_ = ln.Close()
		wg.Wait()
	}
}

type handler struct {
	frames chan []byte
	faults chan error
}

func newHandler() *handler {
	return &handler{frames: make(chan []byte, 16), faults: make(chan error, 4)}
}

func (h *handler) OnFrame(_ ports.Conn, body []byte) { h.frames <- body }
func (h *handler) OnFault(_ ports.Conn, err error)   { h.faults <- err }

func TestRequestReplyLoopback(t *testing.T) {
	addr, stop := collector(t, 0)
	defer stop()

	tr := NewTransport(WithDialTimeout(time.Second))
	defer tr.Close()
	h := newHandler()

	c, err := tr.Dial(context.Background(), addr, h)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if c.Endpoint() != addr {
		t.Errorf("Endpoint() = %q, want %q", c.Endpoint(), addr)
	}

	for _, id := range []uint64{11, 12} {
		if err := c.Write(codec.EncodeRequest(codec.AuditRequest{RequestID: id})); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		select {
		case body := <-h.frames:
			reply, err := codec.ParseReply(body)
			if err != nil {
				t.Fatalf("ParseReply() error = %v", err)
			}
			if reply.RequestID != id || !reply.Status.IsSuccess() {
				t.Errorf("reply = %+v, want success for %d", reply, id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no reply for request %d", id)
		}
	}
}

func TestLocalCloseIsNotAFault(t *testing.T) {
	addr, stop := collector(t, 0)
	defer stop()

	tr := NewTransport()
	h := newHandler()
	c, err := tr.Dial(context.Background(), addr, h)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = c.Close()
	if err := tr.Close(); err != nil {
		t.Fatalf("Transport.Close() error = %v", err)
	}

	select {
	case err := <-h.faults:
		t.Errorf("unexpected fault after local close: %v", err)
	default:
	}
	if err := c.Write([]byte{0, 0, 0, 1, 0}); err == nil {
		t.Error("Write() after Close succeeded")
	}
}

func TestRemoteCloseFaults(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	go func() {
		nc, err := ln.Accept()
		if err == nil {
			_ = nc.Close()
		}
	}()

	tr := NewTransport()
	defer tr.Close()
	h := newHandler()
	if _, err := tr.Dial(context.Background(), ln.Addr().String(), h); err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	select {
	case err := <-h.faults:
		if err == nil {
			t.Error("fault with nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote close was not reported")
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	tr := NewTransport(WithDialTimeout(500 * time.Millisecond))
	defer tr.Close()
	if _, err := tr.Dial(context.Background(), addr, newHandler()); err == nil {
		t.Fatal("Dial() to closed port succeeded")
	}
}
