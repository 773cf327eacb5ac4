package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsEachTaskExactlyOnce(t *testing.T) {
	var runs int64
	fn := func(_ context.Context, task *Task) *Result {
		atomic.AddInt64(&runs, 1)
		if task.ID == "fail" {
			return &Result{TaskID: task.ID, Success: false, Error: errors.New("publish failed")}
		}
		return &Result{TaskID: task.ID, Success: true}
	}

	p, err := New(Config{Workers: 2, QueueSize: 8}, fn, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()

	for _, id := range []string{"a", "fail", "b"} {
		if err := p.Submit(&Task{ID: id}); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	succeeded, failed := 0, 0
	for i := 0; i < 3; i++ {
		select {
		case res := <-p.Results():
			if res.Success {
				succeeded++
			} else {
				failed++
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}

	// A failed task is reported once and never re-run: retries belong to
	// the outbox table, not the pool.
	if got := atomic.LoadInt64(&runs); got != 3 {
		t.Errorf("worker invocations = %d, want 3", got)
	}
	if succeeded != 2 || failed != 1 {
		t.Errorf("succeeded=%d failed=%d, want 2/1", succeeded, failed)
	}

	p.Stop()
}

func TestPoolSubmitFailsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	fn := func(_ context.Context, task *Task) *Result {
		<-block
		return &Result{TaskID: task.ID, Success: true}
	}

	p, err := New(Config{Workers: 1, QueueSize: 1}, fn, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer func() {
		close(block)
		p.Stop()
	}()

	// First task occupies the worker, second fills the queue; by the third
	// the queue may just have been drained, so push until Submit refuses.
	saturated := false
	for i := 0; i < 4; i++ {
		if err := p.Submit(&Task{ID: "t"}); err != nil {
			saturated = true
			break
		}
	}
	if !saturated {
		t.Error("expected Submit to fail once the queue is full")
	}
}

func TestPoolRejectsSubmitAfterStop(t *testing.T) {
	fn := func(_ context.Context, task *Task) *Result {
		return &Result{TaskID: task.ID, Success: true}
	}
	p, err := New(Config{Workers: 1, QueueSize: 1}, fn, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	p.Stop()

	if err := p.Submit(&Task{ID: "late"}); err == nil {
		t.Error("submit after stop must fail")
	}
}

func TestPoolSkipsTaskWithCancelledContext(t *testing.T) {
	var runs int64
	fn := func(_ context.Context, task *Task) *Result {
		atomic.AddInt64(&runs, 1)
		return &Result{TaskID: task.ID, Success: true}
	}
	p, err := New(Config{Workers: 1, QueueSize: 2}, fn, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Submit(&Task{ID: "stale", Context: ctx}); err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-p.Results():
		if res.Success {
			t.Error("cancelled task must not report success")
		}
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", res.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	if atomic.LoadInt64(&runs) != 0 {
		t.Error("worker function must not run for a cancelled task")
	}
	p.Stop()
}
