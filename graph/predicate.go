package graph

import (
	"context"

	"github.com/corvidwing/dispatch/keystore"
)

// PredicateNode buckets successors by predicate KeyFunction; every
// predicate that resolves truthy fires its bucket (spec §4.2).
type PredicateNode struct {
	keyed keyedNode
}

// NewPredicateNode builds a PredicateNode with an empty bucket pre-registered
// for each predicate.
func NewPredicateNode(predicates ...keystore.PredicateFunction) *PredicateNode {
	n := &PredicateNode{}
	n.keyed = newKeyedNode(n)
	for _, p := range predicates {
		n.keyed.addKey(p)
	}
	return n
}

func (n *PredicateNode) MergeID() any { return "PredicateNode" }

func (n *PredicateNode) Predecessors() []Edge      { return n.keyed.Predecessors() }
func (n *PredicateNode) AddPredecessor(e Edge)     { n.keyed.AddPredecessor(e) }
func (n *PredicateNode) Remove()                   { n.keyed.Remove() }
func (n *PredicateNode) Empty() bool               { return n.keyed.Empty() }
func (n *PredicateNode) Clear()                    { n.keyed.Clear() }
func (n *PredicateNode) Successors() []Node        { return n.keyed.Successors() }
func (n *PredicateNode) AddSuccessor(node Node)    { n.keyed.addSuccessorAllKeys(node) }
func (n *PredicateNode) RemoveSuccessor(node Node) { n.keyed.removeSuccessor(node) }

func (n *PredicateNode) mergeFrom(other NonterminalNode) {
	o, ok := other.(*PredicateNode)
	if !ok {
		return
	}
	n.keyed.mergeKeyed(&o.keyed)
}

func (n *PredicateNode) Copy(nodeMap map[Node]Node) NonterminalNode {
	ret := &PredicateNode{}
	ret.keyed = newKeyedNode(ret)
	for key, bucket := range n.keyed.successors {
		if len(bucket) == 0 {
			ret.keyed.addKey(key)
		}
		for s := range bucket {
			ret.keyed.addSuccessorAt(key, copyNode(s, nodeMap))
		}
	}
	return ret
}

func (n *PredicateNode) Route(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore, sink Sink) {
	for key, bucket := range n.keyed.successors {
		pred, ok := key.(keystore.PredicateFunction)
		if !ok {
			continue
		}
		matched, err := keystore.Get(ctx, store, pred, args)
		if err != nil {
			sink.Exception(classifyRouteErr(err))
			continue
		}
		if !matched {
			continue
		}
		for s := range bucket {
			routeChild(ctx, s, args, store, sink)
		}
	}
}
