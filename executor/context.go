package executor

import "context"

type taskContextKey struct{}

// WithTask attaches the currently-running Task to ctx, so code deep inside
// a handler can find which Task it is executing under (e.g. to call
// Pause) without a reflective "current task" lookup. The executor does not
// install this around TaskFunc invocations, since TaskFunc already receives
// *Task directly; code that needs it further down (engine.Engine does, for
// handler terminals) attaches it explicitly.
func WithTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskContextKey{}, t)
}

// TaskFromContext retrieves the Task attached by WithTask, if any.
func TaskFromContext(ctx context.Context) (*Task, bool) {
	t, ok := ctx.Value(taskContextKey{}).(*Task)
	return t, ok
}
