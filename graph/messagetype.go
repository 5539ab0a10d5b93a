package graph

import (
	"context"

	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/keystore"
)

// MessageTypeNode buckets successors by message-element type and, on
// route, fires every bucket matching an element present anywhere in the
// event's chain. Each successor fires at most once per event even if
// several elements share its bucket (spec §4.2).
type MessageTypeNode struct {
	keyed keyedNode
}

// NewMessageTypeNode builds a MessageTypeNode with an empty bucket
// pre-registered for each element type (e.g. "plain", "at", "image").
func NewMessageTypeNode(types ...string) *MessageTypeNode {
	n := &MessageTypeNode{}
	n.keyed = newKeyedNode(n)
	for _, t := range types {
		n.keyed.addKey(t)
	}
	return n
}

func (n *MessageTypeNode) MergeID() any { return "MessageTypeNode" }

func (n *MessageTypeNode) Predecessors() []Edge      { return n.keyed.Predecessors() }
func (n *MessageTypeNode) AddPredecessor(e Edge)     { n.keyed.AddPredecessor(e) }
func (n *MessageTypeNode) Remove()                   { n.keyed.Remove() }
func (n *MessageTypeNode) Empty() bool               { return n.keyed.Empty() }
func (n *MessageTypeNode) Clear()                    { n.keyed.Clear() }
func (n *MessageTypeNode) Successors() []Node        { return n.keyed.Successors() }
func (n *MessageTypeNode) AddSuccessor(node Node)    { n.keyed.addSuccessorAllKeys(node) }
func (n *MessageTypeNode) RemoveSuccessor(node Node) { n.keyed.removeSuccessor(node) }

func (n *MessageTypeNode) mergeFrom(other NonterminalNode) {
	o, ok := other.(*MessageTypeNode)
	if !ok {
		return
	}
	n.keyed.mergeKeyed(&o.keyed)
}

func (n *MessageTypeNode) Copy(nodeMap map[Node]Node) NonterminalNode {
	ret := &MessageTypeNode{}
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

func (n *MessageTypeNode) Route(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore, sink Sink) {
	ev, ok := args.Event.(*event.Event)
	if !ok || !ev.IsMessage() {
		return
	}
	visited := make(map[Node]struct{})
	seenTypes := make(map[string]struct{})
	for _, el := range ev.Chain {
		t := event.ElementType(el)
		if _, already := seenTypes[t]; already {
			continue
		}
		seenTypes[t] = struct{}{}
		bucket, ok := n.keyed.successors[t]
		if !ok {
			continue
		}
		for s := range bucket {
			if _, done := visited[s]; done {
				continue
			}
			visited[s] = struct{}{}
			routeChild(ctx, s, args, store, sink)
		}
	}
}
