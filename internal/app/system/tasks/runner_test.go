package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunner_RunOnce(t *testing.T) {
	var calls int32
	r := NewRunner(zap.NewNop(), Job{
		Name: "count",
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})

	if err := r.RunOnce(context.Background(), "count"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err := r.RunOnce(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestRunner_RunOnce_ReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRunner(zap.NewNop(), Job{Name: "fail", Run: func(context.Context) error { return boom }})

	if err := r.RunOnce(context.Background(), "fail"); !errors.Is(err, boom) {
		t.Errorf("expected job error, got %v", err)
	}
}

func TestRunner_StartStop(t *testing.T) {
	var calls int32
	ran := make(chan struct{}, 1)
	r := NewRunner(zap.NewNop(),
		Job{
			Name:     "tick",
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context) error {
				atomic.AddInt32(&calls, 1)
				select {
				case ran <- struct{}{}:
				default:
				}
				return nil
			},
		},
		Job{
			Name: "manual-only",
			Run: func(context.Context) error {
				t.Error("manual-only job must not be scheduled")
				return nil
			},
		},
	)

	r.Start()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled job never ran")
	}
	r.Stop()
	r.Stop() // second Stop is a no-op

	after := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&calls) != after {
		t.Error("job ran after Stop")
	}
}

func TestRunner_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	r := NewRunner(zap.NewNop(), Job{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
				return nil
			}
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
	})

	r.Start()
	<-started
	r.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running job was not cancelled by Stop")
	}
}
