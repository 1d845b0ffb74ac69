package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockBuffer struct {
	mu        sync.Mutex
	refreshes int
	clears    int
	recovers  int
	clearErr  error
	pending   int
}

func (b *mockBuffer) Refresh(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshes++
	return nil
}

func (b *mockBuffer) ClearBuffer(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
	return b.clearErr
}

func (b *mockBuffer) CheckAuditFile(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recovers++
	return nil
}

func (b *mockBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

func (b *mockBuffer) counts() (int, int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes, b.clears, b.recovers
}

type mockCycleEmitter struct {
	mu     sync.Mutex
	cycles int
	errs   []error
}

func (e *mockCycleEmitter) OnCycle(pending int, duration time.Duration, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycles++
	if err != nil {
		e.errs = append(e.errs, err)
	}
}

func TestMaintainer_CycleOrder(t *testing.T) {
	buf := &mockBuffer{pending: 4, clearErr: errors.New("disk full")}
	emitter := &mockCycleEmitter{}
	m := NewMaintainer(MaintainerConfig{}, buf, &mockLogger{}, emitter)

	if m.config.ClearInterval != DefaultClearInterval {
		t.Errorf("ClearInterval = %v, want default", m.config.ClearInterval)
	}

	m.Cycle(context.Background())

	refreshes, clears, recovers := buf.counts()
	if refreshes != 1 || clears != 1 || recovers != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/1/0", refreshes, clears, recovers)
	}
	if emitter.cycles != 1 || len(emitter.errs) != 1 {
		t.Errorf("emitter cycles=%d errs=%v", emitter.cycles, emitter.errs)
	}
}

func TestMaintainer_RunUntilCanceled(t *testing.T) {
	buf := &mockBuffer{}
	m := NewMaintainer(MaintainerConfig{ClearInterval: 5 * time.Millisecond, RecoverOnStart: true}, buf, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, clears, _ := buf.counts()
		if clears >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("maintenance cycles did not run")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if _, _, recovers := buf.counts(); recovers != 1 {
		t.Errorf("startup recoveries = %d, want 1", recovers)
	}
}
