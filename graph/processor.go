package graph

import (
	"context"

	"github.com/corvidwing/dispatch/keystore"
)

// ProcessorNode unconditionally fires every bucket after evaluating (and
// memoizing) each processor KeyFunction for its side effect on the store —
// used to inject a computed value for later reads (spec §4.2).
type ProcessorNode struct {
	keyed keyedNode
}

// NewProcessorNode builds a ProcessorNode with an empty bucket pre-registered
// for each processor.
func NewProcessorNode(processors ...keystore.KeyFunction[any]) *ProcessorNode {
	n := &ProcessorNode{}
	n.keyed = newKeyedNode(n)
	for _, p := range processors {
		n.keyed.addKey(p)
	}
	return n
}

func (n *ProcessorNode) MergeID() any { return "ProcessorNode" }

func (n *ProcessorNode) Predecessors() []Edge      { return n.keyed.Predecessors() }
func (n *ProcessorNode) AddPredecessor(e Edge)     { n.keyed.AddPredecessor(e) }
func (n *ProcessorNode) Remove()                   { n.keyed.Remove() }
func (n *ProcessorNode) Empty() bool               { return n.keyed.Empty() }
func (n *ProcessorNode) Clear()                    { n.keyed.Clear() }
func (n *ProcessorNode) Successors() []Node        { return n.keyed.Successors() }
func (n *ProcessorNode) AddSuccessor(node Node)    { n.keyed.addSuccessorAllKeys(node) }
func (n *ProcessorNode) RemoveSuccessor(node Node) { n.keyed.removeSuccessor(node) }

func (n *ProcessorNode) mergeFrom(other NonterminalNode) {
	o, ok := other.(*ProcessorNode)
	if !ok {
		return
	}
	n.keyed.mergeKeyed(&o.keyed)
}

func (n *ProcessorNode) Copy(nodeMap map[Node]Node) NonterminalNode {
	ret := &ProcessorNode{}
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

func (n *ProcessorNode) Route(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore, sink Sink) {
	for key, bucket := range n.keyed.successors {
		proc, ok := key.(keystore.KeyFunction[any])
		if ok {
			if _, err := keystore.Get(ctx, store, proc, args); err != nil {
				sink.Exception(classifyRouteErr(err))
			}
		}
		for s := range bucket {
			routeChild(ctx, s, args, store, sink)
		}
	}
}
