package worker_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"plotarchiver/internal/arbiter"
	"plotarchiver/internal/testsupport"
	"plotarchiver/internal/worker"
)

func TestPoolMovesEveryPlotExactlyOnce(t *testing.T) {
	h := newHarness(t, testsupport.WithDestinations("a", "b"), testsupport.WithWorkers(3))
	const plots = 6
	for i := 0; i < plots; i++ {
		h.plot(t, fmt.Sprintf("plot-k32-%04d.plot", i))
	}

	pool := worker.NewPool(worker.PoolOptions{
		Workers: h.cfg.Transfer.Workers,
		Arbiter: h.arb,
		Executor: func(_ int, logger *slog.Logger) worker.Transferrer {
			return h.exec.WithLogger(logger)
		},
		IdleBackoff: 5 * time.Millisecond,
		Logger:      h.logger,
	})
	if pool.Size() != 3 {
		t.Fatalf("pool size = %d", pool.Size())
	}
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pool.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}

	waitFor(t, func() bool {
		return len(testsupport.ListDir(t, h.staging)) == 0
	})
	pool.Stop()
	if err := pool.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if pool.Running() {
		t.Fatal("pool still running after Stop")
	}

	seen := map[string]string{}
	for _, name := range []string{"a", "b"} {
		for _, entry := range testsupport.ListDir(t, testsupport.Destination(h.cfg, name)) {
			if prev, dup := seen[entry]; dup {
				t.Fatalf("%s landed in both %s and %s", entry, prev, name)
			}
			seen[entry] = name
		}
	}
	if len(seen) != plots {
		t.Fatalf("expected %d plots across destinations, got %d", plots, len(seen))
	}

	total := 0
	for _, status := range pool.Snapshot() {
		if status.State != worker.StateStopped {
			t.Fatalf("worker %d state = %s", status.Worker, status.State)
		}
		total += status.Transfers
	}
	if total != plots {
		t.Fatalf("transfers recorded = %d, want %d", total, plots)
	}
	if claims := h.arb.Snapshot(); len(claims) != 0 {
		t.Fatalf("claims left after shutdown: %+v", claims)
	}
}

func TestPoolFatalErrorStopsSiblings(t *testing.T) {
	arb := &conflictArbiter{conflictFor: 1}
	pool := worker.NewPool(worker.PoolOptions{
		Workers:     3,
		Arbiter:     arb,
		Executor:    func(int, *slog.Logger) worker.Transferrer { return nil },
		IdleBackoff: time.Millisecond,
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- pool.Wait() }()
	select {
	case err := <-done:
		if !errors.Is(err, arbiter.ErrClaimConflict) {
			t.Fatalf("Wait = %v, want ErrClaimConflict", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after a fatal worker error")
	}
	for _, status := range pool.Snapshot() {
		if status.State != worker.StateStopped {
			t.Fatalf("worker %d still %s", status.Worker, status.State)
		}
	}
}

func TestWakerBroadcasts(t *testing.T) {
	waker := worker.NewWaker()
	first := waker.C()
	second := waker.C()
	waker.Wake()
	for i, ch := range []<-chan struct{}{first, second} {
		select {
		case <-ch:
		default:
			t.Fatalf("waiter %d not woken", i)
		}
	}
	select {
	case <-waker.C():
		t.Fatal("fresh channel should not be closed")
	default:
	}

	var nilWaker *worker.Waker
	nilWaker.Wake()
	if nilWaker.C() != nil {
		t.Fatal("nil waker should return a nil channel")
	}
}
