package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/corvidwing/dispatch/event"
)

func TestCanceledExceptionIsDiscardedSilently(t *testing.T) {
	e := NewPriorityExecutor(2)
	e.CreateTask(func(ctx context.Context, task *Task) (any, error) {
		return nil, CanceledException
	}, Default)
	e.CreateTask(func(ctx context.Context, task *Task) (any, error) {
		return "survives", nil
	}, Default)

	results := e.Run(context.Background())
	if len(results) != 1 {
		t.Fatalf("expected the canceled task to be dropped, got %d results: %+v", len(results), results)
	}
	if results[0].Value != "survives" {
		t.Fatalf("expected the surviving task's result, got %+v", results[0])
	}
}

func TestFinishedExceptionResolvesToSuccessValue(t *testing.T) {
	e := NewPriorityExecutor(1)
	e.CreateTask(func(ctx context.Context, task *Task) (any, error) {
		return nil, &FinishedException{Success: true}
	}, Default)

	results := e.Run(context.Background())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("expected FinishedException to be absorbed, not surfaced as Err: %v", results[0].Err)
	}
	if results[0].Value != true {
		t.Fatalf("expected Value to carry Success, got %v", results[0].Value)
	}
}

func TestSwitchedAndFailedExceptionsSurfaceAsResultErrors(t *testing.T) {
	e := NewPriorityExecutor(2)
	e.CreateTask(func(ctx context.Context, task *Task) (any, error) {
		return nil, &SwitchedException{NewMessage: event.MessageChain{event.Plain{Text: "alias"}}}
	}, Default)
	e.CreateTask(func(ctx context.Context, task *Task) (any, error) {
		return nil, &FailedException{Reason: "not my event"}
	}, Default)

	results := e.Run(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	var sawSwitched, sawFailed bool
	for _, r := range results {
		var sw *SwitchedException
		var fa *FailedException
		if errors.As(r.Err, &sw) {
			sawSwitched = true
		}
		if errors.As(r.Err, &fa) {
			sawFailed = true
		}
	}
	if !sawSwitched {
		t.Fatal("expected a SwitchedException result")
	}
	if !sawFailed {
		t.Fatal("expected a FailedException result")
	}
}
