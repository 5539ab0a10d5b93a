package executor

import (
	"context"
	"errors"
	"sync"
)

// DefaultMaxWorkers bounds how many tasks the executor runs concurrently
// when no explicit limit is given (spec §4.4).
const DefaultMaxWorkers = 20

// PriorityExecutor runs a batch of tasks to completion, admitting
// higher-priority tasks strictly before lower-priority ones. A single
// PriorityExecutor corresponds to one "turn": construct it, AddTask/
// CreateTask everything known up front, then Run.
//
// Scheduling rule (spec §4.4): running_priority starts at Max. Waiting
// tasks are admitted while workers are free and their priority is >=
// running_priority. When nothing waiting qualifies and at least one task
// is still running, the executor waits for a completion and retries. When
// nothing waiting qualifies and nothing is running, running_priority drops
// to the highest waiting priority and admission is retried, unless
// nextPriority has been suppressed for this turn.
type PriorityExecutor struct {
	mu         sync.Mutex
	maxWorkers int
	waiting    *priorityHeap
	running    int
	runningPri Priority
	nextPri    bool

	completions chan taskResult
	results     []Result
}

type taskResult struct {
	task   *Task
	result Result
}

// NewPriorityExecutor builds an executor with the given worker cap. A
// maxWorkers <= 0 uses DefaultMaxWorkers.
func NewPriorityExecutor(maxWorkers int) *PriorityExecutor {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &PriorityExecutor{
		maxWorkers:  maxWorkers,
		waiting:     newPriorityHeap(),
		runningPri:  Max,
		nextPri:     true,
		completions: make(chan taskResult, maxWorkers),
	}
}

// CreateTask builds and enqueues a new Task wrapping fn.
func (e *PriorityExecutor) CreateTask(fn TaskFunc, priority Priority) *Task {
	t := NewTask(fn, priority, nil)
	e.AddTask(t)
	return t
}

// AddTask enqueues an already-built Task (used to (re-)admit a task paused
// by wait_until, at a priority possibly inherited from whatever woke it).
func (e *PriorityExecutor) AddTask(t *Task) {
	t.Executor = e
	e.mu.Lock()
	e.waiting.push(t)
	e.mu.Unlock()
}

// SuppressNextPriority prevents running_priority from dropping further once
// the currently eligible band drains, which stops lower-priority waiting
// tasks from starting this turn (used by wait's suspend_next_priority).
func (e *PriorityExecutor) SuppressNextPriority() {
	e.mu.Lock()
	e.nextPri = false
	e.mu.Unlock()
}

// Run drives every enqueued task to completion (or to a Pause), admitting
// by priority per the rule above, and returns each task's final Result in
// completion order. Paused tasks do not appear in the returned slice; they
// remain live, parked in Task.Pause, until something calls Resume or Raise
// on them (typically from the wait package's wakeup handler).
func (e *PriorityExecutor) Run(ctx context.Context) []Result {
	e.mu.Lock()
	e.runningPri = Max
	e.nextPri = true
	e.mu.Unlock()

	for {
		admitted := e.admit(ctx)
		e.mu.Lock()
		stillRunning := e.running > 0
		stillWaiting := e.waiting.Len() > 0
		e.mu.Unlock()

		if !admitted {
			if stillRunning {
				tr := <-e.completions
				e.onCompletion(tr)
				continue
			}
			if !stillWaiting {
				break
			}
			e.mu.Lock()
			if !e.nextPri {
				e.mu.Unlock()
				break
			}
			e.runningPri = e.waiting.topPriority(Never)
			e.mu.Unlock()
			if e.runningPriorityValue() == Never {
				break
			}
			continue
		}
	}

	e.mu.Lock()
	out := e.results
	e.results = nil
	e.mu.Unlock()
	return out
}

func (e *PriorityExecutor) runningPriorityValue() Priority {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runningPri
}

// admit starts every currently-eligible waiting task it has capacity for,
// returning whether it admitted at least one.
func (e *PriorityExecutor) admit(ctx context.Context) bool {
	e.mu.Lock()
	var started []*Task
	for e.running < e.maxWorkers && e.waiting.Len() > 0 && e.waiting.topPriority(Never) >= e.runningPri {
		t := e.waiting.pop()
		e.running++
		started = append(started, t)
	}
	e.mu.Unlock()

	for _, t := range started {
		e.spawn(ctx, t)
	}
	return len(started) > 0
}

func (e *PriorityExecutor) spawn(ctx context.Context, t *Task) {
	var ch <-chan Result
	if t.Paused() {
		ch = t.Resume(t.takePendingArgs())
	} else {
		ch = t.Run(ctx)
	}
	go func() {
		r := <-ch
		e.completions <- taskResult{task: t, result: r}
	}()
}

// onCompletion folds one task's final Result into e.results, translating
// the handler control-flow exceptions (spec §7) into their executor-level
// effect: Paused and CanceledException results are discarded silently;
// FinishedException is resolved into a plain successful Result carrying
// its Success flag as the value; everything else (including
// SwitchedException and FailedException) is yielded as-is, for the caller
// driving Run to interpret (engine.Forward acts on Switched).
func (e *PriorityExecutor) onCompletion(tr taskResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running--

	switch {
	case tr.result.Paused:
		return
	case errors.Is(tr.result.Err, CanceledException):
		return
	}

	if fin, ok := tr.result.Err.(*FinishedException); ok {
		tr.result = Result{Value: fin.Success}
	}
	e.results = append(e.results, tr.result)
}

// ResumeTask re-admits a task that had previously paused via wait_until,
// inheriting priority (typically the waking task's own priority, per spec
// §4.6 step 3), through the normal waiting queue rather than resuming it
// immediately — a woken task still competes for a worker slot like any
// other waiting task.
func (e *PriorityExecutor) ResumeTask(t *Task, priority Priority, args any) {
	t.mu.Lock()
	t.Priority = priority
	t.mu.Unlock()
	t.armResume(args)
	e.AddTask(t)
}
