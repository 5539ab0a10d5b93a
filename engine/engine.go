// Package engine owns the live routing graph: it accepts new subscriptions,
// rebuilds an immutable snapshot on demand, and drives one Forward pass per
// incoming event through the executor (spec §4.3).
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/executor"
	"github.com/corvidwing/dispatch/graph"
	"github.com/corvidwing/dispatch/keystore"
)

// EventSource identifies where an event came from, for ConversationKey
// scoping and for handlers that need to talk back (send a reply, etc).
// Adapters such as adapter/telegram implement this.
type EventSource interface {
	Name() string
}

// Engine owns the mutable subscription graph and turns each incoming event
// into a routed batch of handler tasks. Subscribe/UnsubscribeTerminals
// mutate the live root graph; Forward always routes against a snapshot
// taken once per call, so concurrent subscription changes never invalidate
// an in-flight route (spec §5).
type Engine struct {
	mu       sync.Mutex
	root     *graph.Graph
	snapshot *graph.Graph
	dirty    bool

	Executor *executor.PriorityExecutor
	Log      *slog.Logger
}

// New creates an Engine with an empty closed root graph and a fresh priority
// executor sized maxWorkers (0 uses executor.DefaultMaxWorkers).
func New(maxWorkers int) *Engine {
	return &Engine{
		root:     graph.New().Apply(nil), // closed-empty: Forward requires a closed graph
		dirty:    true,
		Executor: executor.NewPriorityExecutor(maxWorkers),
		Log:      slog.Default(),
	}
}

// Builder composes a subgraph fluently before Apply subscribes it, mirroring
// the teacher's option-function construction style (design note §9: decorator
// pattern replaced with a builder since Go has no decorator syntax).
type Builder struct {
	e *Engine
	g *graph.Graph
}

// On begins a subscription: g describes the predicate/equality/prefix path
// a handler should sit behind. g must be open (not yet Applied).
func (e *Engine) On(g *graph.Graph) *Builder {
	return &Builder{e: e, g: g}
}

// And extends the builder's subgraph with another open graph or bare node
// in sequence.
func (b *Builder) And(other *graph.Graph) *Builder {
	return &Builder{e: b.e, g: b.g.And(other)}
}

// AndNode extends the builder's subgraph with a bare nonterminal node.
func (b *Builder) AndNode(n graph.NonterminalNode) *Builder {
	return &Builder{e: b.e, g: b.g.AndNode(n)}
}

// Terminal is the handle returned by Apply: it holds the handler node that
// Apply attached, so Unsubscribe can find and Remove that exact terminal from
// the live root graph.
type Terminal struct {
	e        *Engine
	terminal graph.TerminalNode
}

// Apply closes the builder's subgraph onto handler and merges it into the
// engine's live root graph, marking the snapshot dirty.
func (b *Builder) Apply(handler graph.TerminalNode) *Terminal {
	closed := b.g.Apply(handler)

	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	// Union in place: Graph.Or would copy root, and the copies of earlier
	// handlers would no longer be the nodes their Terminals hold.
	start := b.e.root.Start()
	for _, n := range closed.Entries() {
		start.AddSuccessor(n)
	}
	b.e.dirty = true

	return &Terminal{e: b.e, terminal: handler}
}

// Unsubscribe removes this terminal from the engine's live root graph,
// pruning any nonterminal ancestor left with no other successor (graph
// invariant 2), and marks the snapshot dirty.
func (t *Terminal) Unsubscribe() {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	t.terminal.Remove()
	t.e.dirty = true
}

// snapshotLocked returns the current immutable snapshot, rebuilding it from
// root first if dirty. Caller must hold e.mu.
func (e *Engine) snapshotLocked() *graph.Graph {
	if e.dirty || e.snapshot == nil {
		e.snapshot = e.root.Copy()
		e.dirty = false
	}
	return e.snapshot
}

// Forward drives one event through the engine's current snapshot: resolve
// the snapshot, seed a KeyStore, route to collect matched terminals and
// route exceptions, then run each matched terminal as an executor Task so
// concurrent handlers obey priority admission (spec §4.3's five steps).
// Route exceptions are logged and returned first, each as a Result whose
// Err is the exception, ahead of the handler results.
//
// A handler result carrying an *executor.SwitchedException asks dispatch
// to restart for this event with its message replaced (spec §7, used for
// alias / de-sugaring rewrites); Forward recurses once per such result
// with ev.Chain swapped in, and reports the restarted results in place of
// the Switched one rather than the exception itself.
func (e *Engine) Forward(ctx context.Context, ev *event.Event, source EventSource, extra map[string]any) []executor.Result {
	e.mu.Lock()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	store := keystore.New(map[any]any{
		"event":  ev,
		"source": source,
	})
	args := &keystore.RouteArgs{Event: ev, Source: source, Extra: extra}

	terminals, exceptions := snap.Forward(ctx, args, store)
	out := make([]executor.Result, 0, len(exceptions))
	for _, exc := range exceptions {
		e.Log.Warn("dispatch: route exception", "error", exc)
		out = append(out, executor.Result{Err: exc})
	}

	for _, term := range terminals {
		t := term
		e.Executor.CreateTask(func(ctx context.Context, task *executor.Task) (any, error) {
			ctx = executor.WithTask(ctx, task)
			ctx = WithEngine(ctx, e)
			return t.Forward(ctx, args, store)
		}, executor.Priority(t.Priority()))
	}

	results := e.Executor.Run(ctx)
	return append(out, e.resolveSwitches(ctx, ev, source, extra, results)...)
}

// resolveSwitches scans results for SwitchedException and, for each one,
// restarts dispatch against a copy of ev carrying the new message,
// splicing the restarted run's results in where the exception was.
func (e *Engine) resolveSwitches(ctx context.Context, ev *event.Event, source EventSource, extra map[string]any, results []executor.Result) []executor.Result {
	out := make([]executor.Result, 0, len(results))
	for _, r := range results {
		sw, ok := r.Err.(*executor.SwitchedException)
		if !ok {
			out = append(out, r)
			continue
		}
		switched := *ev
		switched.Chain = sw.NewMessage
		e.Log.Info("dispatch: switched message, restarting", "event", switched.Type)
		out = append(out, e.Forward(ctx, &switched, source, extra)...)
	}
	return out
}
