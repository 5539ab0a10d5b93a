package graph

import (
	"context"
	"strings"

	"github.com/corvidwing/dispatch/keystore"
)

// PrefixNode buckets successors by string key and, on route, fires every
// bucket whose string is a prefix of the resolved key — not just the
// longest match (spec §4.2).
type PrefixNode struct {
	keyed keyedNode
	key   keystore.KeyFunction[string]
}

// NewPrefixNode builds a PrefixNode keyed on key, pre-registering an empty
// bucket for each of prefixes.
func NewPrefixNode(key keystore.KeyFunction[string], prefixes ...string) *PrefixNode {
	n := &PrefixNode{key: key}
	n.keyed = newKeyedNode(n)
	for _, p := range prefixes {
		n.keyed.addKey(p)
	}
	return n
}

func (n *PrefixNode) MergeID() any { return keyMergeID("PrefixNode", n.key) }

func (n *PrefixNode) Predecessors() []Edge      { return n.keyed.Predecessors() }
func (n *PrefixNode) AddPredecessor(e Edge)     { n.keyed.AddPredecessor(e) }
func (n *PrefixNode) Remove()                   { n.keyed.Remove() }
func (n *PrefixNode) Empty() bool               { return n.keyed.Empty() }
func (n *PrefixNode) Clear()                    { n.keyed.Clear() }
func (n *PrefixNode) Successors() []Node        { return n.keyed.Successors() }
func (n *PrefixNode) AddSuccessor(node Node)    { n.keyed.addSuccessorAllKeys(node) }
func (n *PrefixNode) RemoveSuccessor(node Node) { n.keyed.removeSuccessor(node) }

func (n *PrefixNode) mergeFrom(other NonterminalNode) {
	o, ok := other.(*PrefixNode)
	if !ok {
		return
	}
	n.keyed.mergeKeyed(&o.keyed)
}

func (n *PrefixNode) Copy(nodeMap map[Node]Node) NonterminalNode {
	ret := NewPrefixNode(n.key)
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

func (n *PrefixNode) Route(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore, sink Sink) {
	key, err := keystore.Get(ctx, store, n.key, args)
	if err != nil {
		sink.Exception(classifyRouteErr(err))
		return
	}
	for bucketKey, bucket := range n.keyed.successors {
		prefix, ok := bucketKey.(string)
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		for s := range bucket {
			routeChild(ctx, s, args, store, sink)
		}
	}
}
