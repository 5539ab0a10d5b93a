// Package executor implements the priority-ordered, cooperatively
// suspendable task runtime: a bounded worker pool that starts
// higher-priority tasks strictly before lower-priority ones, and a Task
// type a running handler can pause and later resume (spec §4.4, §4.5).
package executor

// Priority orders tasks in the executor's queue; higher runs first.
type Priority int

const (
	Max     Priority = 10000
	Wakeup  Priority = 1000
	Default Priority = 0
	Min     Priority = -10000
	// Never marks a task (or the executor's waiting-priority floor) as
	// never eligible to start ahead of anything else.
	Never Priority = -99999
)
