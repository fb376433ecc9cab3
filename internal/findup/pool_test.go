package findup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsAllTasks(t *testing.T) {
	p := NewPool(4, 8)

	var ran atomic.Int64
	for i := 0; i < 100; i++ {
		if err := p.Submit(context.Background(), func() { ran.Add(1) }); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	p.Wait()

	if got := ran.Load(); got != 100 {
		t.Errorf("ran %d tasks, want 100", got)
	}
}

func TestPool_SubmitHonorsCancellation(t *testing.T) {
	// One worker stuck on a blocking task and a full queue of one:
	// the next Submit must block, then fail once the context dies.
	p := NewPool(1, 1)

	release := make(chan struct{})
	if err := p.Submit(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := p.Submit(context.Background(), func() {}); err != nil {
		t.Fatalf("Submit() filling queue error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Submit(ctx, func() {})
	if err != context.DeadlineExceeded {
		t.Errorf("Submit() error = %v, want context.DeadlineExceeded", err)
	}

	close(release)
	p.Wait()
}

func TestPool_SubmitAfterCancelFails(t *testing.T) {
	p := NewPool(2, 2)
	defer p.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Submit(ctx, func() {}); err != context.Canceled {
		t.Errorf("Submit() error = %v, want context.Canceled", err)
	}
}

func TestPool_WaitIsIdempotent(t *testing.T) {
	p := NewPool(1, 1)
	if err := p.Submit(context.Background(), func() {}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	p.Wait()
	p.Wait() // must not panic
}

func TestPool_ClampsSizes(t *testing.T) {
	p := NewPool(0, -5)

	done := make(chan struct{})
	if err := p.Submit(context.Background(), func() { close(done) }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran on clamped pool")
	}
	p.Wait()
}
