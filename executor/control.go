package executor

import (
	"errors"
	"fmt"

	"github.com/corvidwing/dispatch/event"
)

// CanceledException marks a handler's run as aborted by the preprocessor
// before dispatch reached it. onCompletion discards a task result carrying
// it the same way it discards a Paused one: no result is yielded, nothing
// is logged (spec §7: "aborts message handling silently").
var CanceledException = errors.New("executor: handling canceled")

// FinishedException terminates the current handler chain early with a
// boolean outcome. A handler returns it from its TaskFunc to say "this
// handler is done, and the result was Success"; other terminals matched by
// the same event still run. onCompletion resolves it into a plain,
// non-error Result carrying Success as the value, rather than yielding it as
// a task error (spec §7).
type FinishedException struct {
	Success bool
}

func (e *FinishedException) Error() string {
	return fmt.Sprintf("executor: finished(success=%v)", e.Success)
}

// SwitchedException asks the engine to replace the current event's
// message with NewMessage and restart dispatch for that event — used for
// alias / de-sugaring rewrites that must re-enter routing from the top
// (spec §7). The executor has no notion of "the engine" or "dispatch", so
// it cannot act on this itself: it yields the exception in-band as a task
// Result and the caller driving Run (engine.Forward) is responsible for
// noticing it and re-forwarding.
type SwitchedException struct {
	NewMessage event.MessageChain
}

func (e *SwitchedException) Error() string {
	return "executor: switched to a new message"
}

// FailedException signals that a processor declined to handle this event;
// dispatch continues to any other matched terminal, and the executor
// yields it as that task's Result.Err like any other error (spec §7).
type FailedException struct {
	Reason string
}

func (e *FailedException) Error() string {
	return fmt.Sprintf("executor: failed (%s)", e.Reason)
}
