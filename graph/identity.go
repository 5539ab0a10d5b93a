package graph

import (
	"context"

	"github.com/corvidwing/dispatch/keystore"
)

// IdentityNode is the unconditional pass-through nonterminal: every
// successor fires on every route. It is the start node of every Graph and
// the node type the prefix/equal/predicate "true" builder attaches to.
type IdentityNode struct {
	absNode
	successors map[Node]struct{}
}

// NewIdentityNode builds an empty IdentityNode.
func NewIdentityNode() *IdentityNode {
	n := &IdentityNode{successors: make(map[Node]struct{})}
	n.absNode = newAbsNode(n)
	return n
}

func (n *IdentityNode) MergeID() any { return "IdentityNode" }

func (n *IdentityNode) Empty() bool { return len(n.successors) == 0 }

func (n *IdentityNode) Clear() { n.successors = make(map[Node]struct{}) }

func (n *IdentityNode) Successors() []Node {
	out := make([]Node, 0, len(n.successors))
	for s := range n.successors {
		out = append(out, s)
	}
	return out
}

// AddSuccessor merges into an existing equal nonterminal successor, or adds
// node as a new successor and records the back-edge.
func (n *IdentityNode) AddSuccessor(node Node) {
	if nt, ok := node.(NonterminalNode); ok {
		for u := range n.successors {
			ut, ok := u.(NonterminalNode)
			if ok && equalNonterminal(ut, nt) {
				ut.mergeFrom(nt)
				return
			}
		}
	}
	n.successors[node] = struct{}{}
	node.AddPredecessor(Edge{Node: n, Key: nil})
}

func (n *IdentityNode) RemoveSuccessor(node Node) {
	delete(n.successors, node)
}

func (n *IdentityNode) mergeFrom(other NonterminalNode) {
	o, ok := other.(*IdentityNode)
	if !ok {
		return
	}
	for s := range o.successors {
		n.AddSuccessor(s)
	}
}

func (n *IdentityNode) Copy(nodeMap map[Node]Node) NonterminalNode {
	ret := NewIdentityNode()
	for s := range n.successors {
		ret.AddSuccessor(copyNode(s, nodeMap))
	}
	return ret
}

func (n *IdentityNode) Route(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore, sink Sink) {
	for s := range n.successors {
		routeChild(ctx, s, args, store, sink)
	}
}

// copyNode memoizes a node's copy in nodeMap so shared structure stays
// shared after Graph.Copy, mirroring the original's node_map.setdefault.
func copyNode(n Node, nodeMap map[Node]Node) Node {
	if existing, ok := nodeMap[n]; ok {
		return existing
	}
	switch v := n.(type) {
	case TerminalNode:
		cp := v.Copy()
		nodeMap[n] = cp
		return cp
	case NonterminalNode:
		cp := v.Copy(nodeMap)
		nodeMap[n] = cp
		return cp
	default:
		return n
	}
}

// routeChild dispatches to a successor: terminals feed the sink directly,
// nonterminals recurse.
func routeChild(ctx context.Context, n Node, args *keystore.RouteArgs, store *keystore.KeyStore, sink Sink) {
	if t, ok := n.(TerminalNode); ok {
		sink.Terminal(t)
		return
	}
	if nt, ok := n.(NonterminalNode); ok {
		nt.Route(ctx, args, store, sink)
	}
}
