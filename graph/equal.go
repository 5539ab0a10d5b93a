package graph

import (
	"context"

	"github.com/corvidwing/dispatch/keystore"
	"github.com/corvidwing/dispatch/routeerr"
)

// EqualNode buckets successors by the hashable value of a KeyFunction,
// firing only the bucket matching the resolved key (spec §4.2).
type EqualNode struct {
	keyed keyedNode
	key   keystore.KeyFunction[any]
}

// NewEqualNode builds an EqualNode keyed on key, pre-registering buckets
// for each of values.
func NewEqualNode(key keystore.KeyFunction[any], values ...any) *EqualNode {
	n := &EqualNode{key: key}
	n.keyed = newKeyedNode(n)
	for _, v := range values {
		n.keyed.addKey(v)
	}
	return n
}

func (n *EqualNode) MergeID() any { return keyMergeID("EqualNode", n.key) }

func (n *EqualNode) Predecessors() []Edge        { return n.keyed.Predecessors() }
func (n *EqualNode) AddPredecessor(e Edge)       { n.keyed.AddPredecessor(e) }
func (n *EqualNode) Remove()                     { n.keyed.Remove() }
func (n *EqualNode) Empty() bool                 { return n.keyed.Empty() }
func (n *EqualNode) Clear()                      { n.keyed.Clear() }
func (n *EqualNode) Successors() []Node          { return n.keyed.Successors() }
func (n *EqualNode) AddSuccessor(node Node)      { n.keyed.addSuccessorAllKeys(node) }
func (n *EqualNode) RemoveSuccessor(node Node)   { n.keyed.removeSuccessor(node) }

func (n *EqualNode) mergeFrom(other NonterminalNode) {
	o, ok := other.(*EqualNode)
	if !ok {
		return
	}
	n.keyed.mergeKeyed(&o.keyed)
}

func (n *EqualNode) Copy(nodeMap map[Node]Node) NonterminalNode {
	ret := NewEqualNode(n.key)
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

func (n *EqualNode) Route(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore, sink Sink) {
	key, err := keystore.Get(ctx, store, n.key, args)
	if err != nil {
		sink.Exception(classifyRouteErr(err))
		return
	}
	bucket, ok := n.keyed.successors[key]
	if !ok {
		return
	}
	for s := range bucket {
		routeChild(ctx, s, args, store, sink)
	}
}

// classifyRouteErr passes route exceptions through unchanged and wraps
// anything else, mirroring keystore's own contract for callers that see
// raw errors outside of keystore.Get's classification.
func classifyRouteErr(err error) error {
	switch err.(type) {
	case *routeerr.Exception, *routeerr.Internal, *routeerr.Filtered:
		return err
	default:
		return routeerr.NewInternal(err)
	}
}

// keyMergeID composes a node-kind tag with a key-function's identity so two
// nodes of the same kind keyed on the same KeyFunction merge (invariant 3),
// while nodes keyed on different functions never do.
func keyMergeID(kind string, key interface{ ID() any }) any {
	return [2]any{kind, key.ID()}
}
