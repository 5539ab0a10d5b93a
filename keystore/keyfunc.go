// Package keystore implements per-event memoization of KeyFunction
// evaluations: the first predicate or processor that needs a given key's
// value computes it once, and every other reference within the same event
// shares that result.
package keystore

import "context"

// RouteArgs is the immutable per-event argument bundle threaded through
// routing. It plays the role the Python implementation gives to the
// store's seeded items (event, source, bot, ...): rather than reflectively
// binding a callable's formal parameters (design note: "Dynamic
// key-function introspection is source-language specific"), Go
// KeyFunctions and handlers receive this struct explicitly and pull out
// what they need.
type RouteArgs struct {
	Event  any
	Source any
	Extra  map[string]any
}

// KeyFunction computes a value of type T from the current route args,
// memoized per event by a KeyStore. ID distinguishes one KeyFunction from
// another; two KeyFunctions sharing an ID are treated as the same
// computation for memoization and node-merging purposes. Alias, if
// non-nil, is a plain hashable name under which the resolved value is
// additionally published so unrelated handlers can fetch it directly.
type KeyFunction[T any] interface {
	ID() any
	Alias() any
	Call(ctx context.Context, args *RouteArgs, store *KeyStore) (T, error)
}

// PredicateFunction is a boolean KeyFunction, used by PredicateNode.
type PredicateFunction = KeyFunction[bool]

// Func adapts a plain Go function into a KeyFunction[T]. The function
// identity (by pointer-to-closure-state supplied by the caller via id) is
// used for memoization; pass a stable id when the same logical predicate
// is constructed more than once so it shares a single evaluation per
// event (scenario 3 in the testable properties: shared key memoization).
type Func[T any] struct {
	IDValue    any
	AliasValue any
	Fn         func(ctx context.Context, args *RouteArgs, store *KeyStore) (T, error)
}

func (f *Func[T]) ID() any { return f.IDValue }

func (f *Func[T]) Alias() any { return f.AliasValue }

func (f *Func[T]) Call(ctx context.Context, args *RouteArgs, store *KeyStore) (T, error) {
	return f.Fn(ctx, args, store)
}

// NewPredicate builds a PredicateFunction from a plain boolean-returning
// function, allocating it a fresh identity when id is nil so two distinct
// predicates never collide even if built from the same function literal.
// Pass an explicit id to make two separately-constructed predicates share
// memoization.
func NewPredicate(id any, fn func(ctx context.Context, args *RouteArgs, store *KeyStore) (bool, error)) PredicateFunction {
	return &Func[bool]{IDValue: idOrSelf(id, fn), Fn: fn}
}

// NewKeyFunction builds a KeyFunction[T] with an optional alias.
func NewKeyFunction[T any](id, alias any, fn func(ctx context.Context, args *RouteArgs, store *KeyStore) (T, error)) KeyFunction[T] {
	return &Func[T]{IDValue: idOrSelf(id, fn), AliasValue: alias, Fn: fn}
}

func idOrSelf(id any, fn any) any {
	if id != nil {
		return id
	}
	return freshIdentity()
}
