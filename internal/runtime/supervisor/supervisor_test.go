package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCancelOnFirstError(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	boom := errors.New("boom")

	s.Go("poller", func(ctx context.Context) error { return boom })
	s.Go("worker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Wait err = %v, want boom", err)
	}
	if !strings.HasPrefix(err.Error(), "poller: ") {
		t.Fatalf("expected error to carry goroutine name, got %q", err)
	}
	if s.Context().Err() == nil {
		t.Fatal("expected supervisor context to be cancelled")
	}
}

func TestCanceledIsCleanStop(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop err = %v, want nil", err)
	}
}

func TestPanicIsRecorded(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	s.Go0("bad", func(ctx context.Context) { panic("kaboom") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("Wait err = %v, want panic error", err)
	}

	snap := s.Snapshot()
	if len(snap.Goroutines) != 1 || snap.Goroutines[0].Panics != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Counters.Active != 0 || snap.Counters.Started != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestWaitHonorsDeadline(t *testing.T) {
	s := NewSupervisor(context.Background())
	release := make(chan struct{})
	s.Go0("stuck", func(ctx context.Context) { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err = %v, want deadline exceeded", err)
	}
}
