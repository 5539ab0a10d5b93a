// Package routeerr defines the route-exception family: errors that are
// carried as in-band route results rather than raised/panicked past the
// routing pass (spec §7, "Route exceptions").
package routeerr

import "fmt"

// Exception is the base of the route-exception family. A predicate or
// key-function may return one to signal routing-level intent (as opposed
// to an ordinary failure) without aborting the whole route.
type Exception struct {
	Cause error
}

func (e *Exception) Error() string {
	if e.Cause != nil {
		return "route exception: " + e.Cause.Error()
	}
	return "route exception"
}

func (e *Exception) Unwrap() error { return e.Cause }

// Internal wraps any non-route error raised inside a key-function or
// predicate, so it can still be yielded in-band instead of crashing the
// routing pass.
type Internal struct {
	Exception
}

// NewInternal wraps cause as an Internal route exception.
func NewInternal(cause error) *Internal {
	return &Internal{Exception{Cause: cause}}
}

func (e *Internal) Error() string {
	return fmt.Sprintf("route internal exception: %v", e.Cause)
}

// Filtered post-filters the matched terminal set for an event. Filter
// receives an opaque terminal handle (graph.TerminalNode, passed as any to
// avoid an import cycle) and reports whether to keep it.
type Filtered struct {
	Exception
	Filter   func(terminal any) bool
	Priority int
}

// NewFiltered builds a Filtered route exception with the given predicate.
func NewFiltered(filter func(terminal any) bool, priority int) *Filtered {
	return &Filtered{Filter: filter, Priority: priority}
}

func (e *Filtered) Error() string { return "route filtered exception" }
