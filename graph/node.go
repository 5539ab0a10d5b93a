// Package graph implements the routing DAG: typed nodes that merge, copy,
// and remove themselves predictably, composed with sequence (&) and union
// (|) algebra and closed onto terminal handlers (spec §3, §4.2).
package graph

import (
	"context"
	"reflect"

	"github.com/corvidwing/dispatch/keystore"
)

// Edge is a predecessor back-edge: the nonterminal node u and the bucket key
// under which the child was registered as u's successor.
type Edge struct {
	Node NonterminalNode
	Key  any
}

// Node is the common node abstraction: identity for merge purposes, a
// predecessor set for removal, and deep copy.
type Node interface {
	// MergeID distinguishes nodes of the same concrete type that may be
	// merged into one (e.g. two EqualNodes keyed on the same KeyFunction).
	// Terminal nodes return their own pointer identity, which never merges.
	MergeID() any

	Predecessors() []Edge
	AddPredecessor(e Edge)

	// Remove detaches this node from every predecessor, then recursively
	// removes any predecessor left with zero successors (up to, but
	// excluding, a graph's start node).
	Remove()
}

// TerminalNode is a leaf of the routing DAG: something a route can arrive
// at and invoke.
type TerminalNode interface {
	Node
	Forward(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error)
	Priority() int
	Copy() TerminalNode
}

// Sink receives the results of a Route call. Terminal receives matched
// handlers; Exception receives route exceptions (routeerr.Exception,
// routeerr.Internal, routeerr.Filtered) without aborting the route.
type Sink interface {
	Terminal(t TerminalNode)
	Exception(err error)
}

// NonterminalNode carries a keyed layer of successors and knows how to
// route an event's args/store through them.
type NonterminalNode interface {
	Node
	Route(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore, sink Sink)
	Copy(nodeMap map[Node]Node) NonterminalNode
	Empty() bool
	Clear()
	Successors() []Node
	AddSuccessor(n Node)
	RemoveSuccessor(n Node)

	// mergeFrom absorbs other's successor buckets into self. other must be
	// the same concrete type and MergeID; callers check equalNonterminal
	// before calling this.
	mergeFrom(other NonterminalNode)
}

// absNode is embedded by every concrete node type to provide predecessor
// bookkeeping and removal, mirroring the original implementation's AbsNode.
type absNode struct {
	predecessors map[Edge]struct{}
	self         Node // set by the embedding constructor for Remove's self-reference
}

func newAbsNode(self Node) absNode {
	return absNode{predecessors: make(map[Edge]struct{}), self: self}
}

func (a *absNode) Predecessors() []Edge {
	out := make([]Edge, 0, len(a.predecessors))
	for e := range a.predecessors {
		out = append(out, e)
	}
	return out
}

func (a *absNode) AddPredecessor(e Edge) {
	a.predecessors[e] = struct{}{}
}

func (a *absNode) Remove() {
	preNodes := make(map[NonterminalNode]struct{})
	for e := range a.predecessors {
		preNodes[e.Node] = struct{}{}
	}
	for pre := range preNodes {
		pre.RemoveSuccessor(a.self)
		if len(pre.Successors()) == 0 {
			pre.Remove()
		}
	}
	a.predecessors = make(map[Edge]struct{})
}

// equalNonterminal implements invariant 5: matching concrete type, MergeID,
// and predecessor set. a is an existing successor of the parent and b the
// candidate about to be attached beside it, so b matches when its
// predecessors plus the parent edge (which a already has) equal a's. Used to
// decide whether adding a successor should merge into an existing one
// instead of creating a parallel edge.
func equalNonterminal(a, b NonterminalNode) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if a.MergeID() != b.MergeID() {
		return false
	}
	return samePredecessorSet(a.Predecessors(), b.Predecessors())
}

// samePredecessorSet reports whether x is y plus exactly one more edge.
func samePredecessorSet(x, y []Edge) bool {
	if len(x) != len(y)+1 {
		return false
	}
	set := make(map[Edge]struct{}, len(x))
	for _, e := range x {
		set[e] = struct{}{}
	}
	for _, e := range y {
		if _, ok := set[e]; !ok {
			return false
		}
	}
	return true
}
