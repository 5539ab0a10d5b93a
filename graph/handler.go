package graph

import (
	"context"

	"github.com/corvidwing/dispatch/keystore"
)

// HandlerFunc is the signature every subscribed handler implements.
type HandlerFunc func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error)

// HandlerNode is the terminal wrapping a subscribed handler function,
// grounded on the original's HandlerNode/RawHandlerNode split — here
// collapsed into one type since Go has no formal-parameter introspection
// to wrap (design note: callables are explicit, not reflectively bound).
type HandlerNode struct {
	absNode
	fn       HandlerFunc
	priority int
	name     string
}

// NewHandlerNode wraps fn as a terminal. name is used only for debugging;
// priority defaults to 0 (Priority.Default) unless set via WithPriority.
func NewHandlerNode(name string, fn HandlerFunc) *HandlerNode {
	n := &HandlerNode{fn: fn, name: name}
	n.absNode = newAbsNode(n)
	return n
}

// WithPriority returns a copy of n tagged with the given scheduling priority.
func (n *HandlerNode) WithPriority(p int) *HandlerNode {
	cp := *n
	cp.priority = p
	cp.absNode = newAbsNode(&cp)
	return &cp
}

func (n *HandlerNode) MergeID() any { return n } // terminal identity is pointer identity

func (n *HandlerNode) Priority() int { return n.priority }

func (n *HandlerNode) Forward(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
	return n.fn(ctx, args, store)
}

func (n *HandlerNode) Copy() TerminalNode {
	cp := &HandlerNode{fn: n.fn, priority: n.priority, name: n.name}
	cp.absNode = newAbsNode(cp)
	return cp
}

func (n *HandlerNode) String() string { return n.name }
