// Package wait implements a handler's ability to suspend and declare a
// subgraph that, when matched by a future event, resumes it (spec §4.6).
package wait

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/executor"
	"github.com/corvidwing/dispatch/graph"
	"github.com/corvidwing/dispatch/keystore"
)

// ErrTimeout is delivered to a waiting task's Pause return when its
// wait_until timeout elapses before any matching event arrives.
var ErrTimeout = errors.New("wait: timed out waiting for matching event")

// Woken carries what a resumed task receives: the event, source, and
// KeyStore belonging to the event that matched the wait subgraph.
type Woken struct {
	Args  *keystore.RouteArgs
	Store *keystore.KeyStore
}

type candidatesKey struct{}

type candidate struct {
	task                *executor.Task
	handle              *engine.Terminal
	priority            executor.Priority
	suspendOther        bool
	suspendNextPriority bool
	lastActive          time.Time

	once  sync.Once
	timer *time.Timer
}

// Until suspends the calling handler's task until an event routes through
// subgraph, or timeout elapses. It must be called from inside a running
// handler so both the Task and Engine are reachable via ctx (engine.Forward
// attaches both before invoking a terminal).
//
// Steps, per spec §4.6:
//  1. Record the suspend flags on the task's state map.
//  2. Subscribe subgraph & a marker ProcessorNode & an ephemeral Never-priority
//     terminal, so a future matching event appends this candidate to that
//     event's own `_wakeupCandidates` list.
//  3. Arm a timeout that raises ErrTimeout into the task if nothing wakes it
//     first.
//  4. Pause the task and return whatever the wakeup (or timeout) delivers.
func Until(ctx context.Context, subgraph *graph.Graph, timeout time.Duration, suspendOther, suspendNextPriority bool) (*Woken, error) {
	task, ok := executor.TaskFromContext(ctx)
	if !ok {
		return nil, errors.New("wait: no task in context")
	}
	eng, ok := engine.FromContext(ctx)
	if !ok {
		return nil, errors.New("wait: no engine in context")
	}

	task.State["suspend_other"] = suspendOther
	task.State["suspend_next_priority"] = suspendNextPriority

	c := &candidate{
		task:                task,
		priority:            task.Priority,
		suspendOther:        suspendOther,
		suspendNextPriority: suspendNextPriority,
		lastActive:          task.LastActive,
	}

	register := graph.NewProcessorNode(keystore.NewKeyFunction[any](nil, nil,
		func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
			appendCandidate(store, c)
			return nil, nil
		}))

	dummy := graph.NewHandlerNode("wait-ephemeral", func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		return nil, nil
	}).WithPriority(int(executor.Never))

	handle := eng.On(subgraph).AndNode(register).Apply(dummy)
	c.handle = handle

	if timeout > 0 {
		c.timer = time.AfterFunc(timeout, func() {
			c.once.Do(func() {
				handle.Unsubscribe()
				task.Raise(ErrTimeout)
			})
		})
	}

	args, err := task.Pause(ctx)
	if err != nil {
		return nil, err
	}
	woken, _ := args.(*Woken)
	return woken, nil
}

// Next waits for the next event in the same conversation as the triggering
// event of the current handler (same ConversationKey).
func Next(ctx context.Context, ev *event.Event, timeout time.Duration, suspendOther, suspendNextPriority bool) (*Woken, error) {
	return Until(ctx, sameConversation(ev), timeout, suspendOther, suspendNextPriority)
}

// Quote waits for a message containing a Quote element referencing
// messageID, from the same conversation as ev.
func Quote(ctx context.Context, ev *event.Event, messageID int64, timeout time.Duration, suspendOther, suspendNextPriority bool) (*Woken, error) {
	conv := sameConversation(ev)
	quoteKey := keystore.NewKeyFunction[bool](nil, nil,
		func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (bool, error) {
			other, ok := args.Event.(*event.Event)
			if !ok || !other.IsMessage() {
				return false, nil
			}
			for _, el := range other.Chain {
				if q, ok := el.(event.Quote); ok && q.MessageID == messageID {
					return true, nil
				}
			}
			return false, nil
		})
	quotePred := graph.NewPredicateNode(quoteKey)
	return Until(ctx, conv.AndNode(quotePred), timeout, suspendOther, suspendNextPriority)
}

func sameConversation(ev *event.Event) *graph.Graph {
	want := ev.ConversationKey()
	pred := keystore.NewPredicate(nil, func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (bool, error) {
		other, ok := args.Event.(*event.Event)
		return ok && other.ConversationKey() == want, nil
	})
	return graph.New().AndNode(graph.NewPredicateNode(pred))
}

func appendCandidate(store *keystore.KeyStore, c *candidate) {
	existing, _ := store.Lookup(candidatesKey{})
	list, _ := existing.([]*candidate)
	list = append(list, c)
	store.Set(candidatesKey{}, list)
}

// InstallCheckWait subscribes the global wakeup-dispatch handler on eng at
// Priority.Wakeup, so every event gives paused wait_until candidates a
// chance to resume before lower-priority fresh handlers run (spec §4.6).
func InstallCheckWait(eng *engine.Engine) *engine.Terminal {
	handler := graph.NewHandlerNode("check-wait", checkWait).WithPriority(int(executor.Wakeup))
	return eng.On(graph.New()).Apply(handler)
}

// checkWait reads this event's _wakeupCandidates, resumes matching waiters
// newest-first, and stops at the first suspend_other flag; any
// suspend_next_priority seen along the way suppresses lower-priority
// admission for the remainder of this turn.
func checkWait(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
	self, ok := executor.TaskFromContext(ctx)
	if !ok {
		return nil, nil
	}
	eng, ok := engine.FromContext(ctx)
	if !ok {
		return nil, nil
	}

	raw, _ := store.Lookup(candidatesKey{})
	list, _ := raw.([]*candidate)
	if len(list) == 0 {
		return nil, nil
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].lastActive.Before(list[j].lastActive) })

	suspendNextPriority := false
	for i := len(list) - 1; i >= 0; i-- {
		c := list[i]
		c.once.Do(func() {
			if c.timer != nil {
				c.timer.Stop()
			}
			c.handle.Unsubscribe()
			if c.task.Paused() {
				eng.Executor.ResumeTask(c.task, self.Priority, &Woken{Args: args, Store: store})
			}
		})
		if c.suspendNextPriority {
			suspendNextPriority = true
		}
		if c.suspendOther {
			break
		}
	}

	if suspendNextPriority {
		eng.Executor.SuppressNextPriority()
	}
	return nil, nil
}
