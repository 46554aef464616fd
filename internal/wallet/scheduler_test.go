package wallet

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsAllSubmittedWork(t *testing.T) {
	s := NewScheduler(4, 16)
	defer s.Close()

	var count int64
	const n = 50
	for i := 0; i < n; i++ {
		if err := s.Submit(context.Background(), func() { atomic.AddInt64(&count, 1) }); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&count) != n {
		select {
		case <-deadline:
			t.Fatalf("expected %d completions, got %d", n, atomic.LoadInt64(&count))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerSubmitRespectsCanceledContext(t *testing.T) {
	s := NewScheduler(1, 1)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Submit(ctx, func() {}); err == nil {
		t.Fatal("expected error submitting to a canceled context")
	}
}
