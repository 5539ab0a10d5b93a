package executor

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestHigherPriorityStartsBeforeLower(t *testing.T) {
	e := NewPriorityExecutor(1) // one worker: forces strict ordering

	var mu sync.Mutex
	var order []string

	record := func(name string) TaskFunc {
		return func(ctx context.Context, task *Task) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	// Enqueue low priority first; high priority must still run first since
	// both are waiting before Run starts admitting.
	e.CreateTask(record("low"), Min)
	e.CreateTask(record("high"), Max)

	e.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Fatalf("expected [high low], got %v", order)
	}
}

func TestRunCollectsAllResults(t *testing.T) {
	e := NewPriorityExecutor(4)
	for i := 0; i < 5; i++ {
		e.CreateTask(func(ctx context.Context, task *Task) (any, error) {
			return "done", nil
		}, Default)
	}
	results := e.Run(context.Background())
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil || r.Value != "done" {
			t.Fatalf("unexpected result: %+v", r)
		}
	}
}

func TestTaskPauseYieldsPausedResultThenResumes(t *testing.T) {
	resumeArgs := make(chan any, 1)
	task := NewTask(func(ctx context.Context, self *Task) (any, error) {
		v, err := self.Pause(ctx)
		if err != nil {
			return nil, err
		}
		resumeArgs <- v
		return v, nil
	}, Default, nil)

	ch := task.Run(context.Background())
	first := <-ch
	if !first.Paused {
		t.Fatalf("expected first result to report Paused")
	}
	if !task.Paused() {
		t.Fatalf("expected task.Paused() true while suspended")
	}

	ch2 := task.Resume("hello")
	final := <-ch2
	if final.Paused {
		t.Fatalf("resumed result should not be Paused")
	}
	if final.Value != "hello" {
		t.Fatalf("expected resumed value to round-trip, got %v", final.Value)
	}
	select {
	case v := <-resumeArgs:
		if v != "hello" {
			t.Fatalf("expected handler to observe resume args, got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never observed resume")
	}
}

func TestTaskCancelUnblocksPause(t *testing.T) {
	errCh := make(chan error, 1)
	task := NewTask(func(ctx context.Context, self *Task) (any, error) {
		_, err := self.Pause(ctx)
		errCh <- err
		return nil, err
	}, Default, nil)

	ch := task.Run(context.Background())
	<-ch // paused

	task.Cancel()

	if !task.Cancelled() {
		t.Fatalf("expected task to report cancelled")
	}
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected Pause to return context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pause never unblocked after Cancel")
	}
}

func TestTaskRaiseDeliversErrorToPause(t *testing.T) {
	errCh := make(chan error, 1)
	task := NewTask(func(ctx context.Context, self *Task) (any, error) {
		_, err := self.Pause(ctx)
		errCh <- err
		return nil, err
	}, Default, nil)

	ch := task.Run(context.Background())
	<-ch

	boom := context.DeadlineExceeded
	final := <-task.Raise(boom)
	if final.Err != boom {
		t.Fatalf("expected raised error to surface as final result, got %v", final.Err)
	}
	if got := <-errCh; got != boom {
		t.Fatalf("expected handler's Pause to observe raised error, got %v", got)
	}
}
