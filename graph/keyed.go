package graph

// keyedNode implements the shared successor-bucket bookkeeping used by
// EqualNode, PredicateNode, and ProcessorNode: a map from bucket key to a
// set of successor nodes, ported from the original AbsNonterminalNode.
type keyedNode struct {
	absNode
	successors map[any]map[Node]struct{}
	empty      bool
}

func newKeyedNode(self Node) keyedNode {
	return keyedNode{
		absNode:    newAbsNode(self),
		successors: make(map[any]map[Node]struct{}),
		empty:      true,
	}
}

func (k *keyedNode) Empty() bool { return k.empty }

func (k *keyedNode) Clear() {
	k.successors = make(map[any]map[Node]struct{})
	k.empty = true
}

func (k *keyedNode) Successors() []Node {
	seen := make(map[Node]struct{})
	for _, nodes := range k.successors {
		for n := range nodes {
			seen[n] = struct{}{}
		}
	}
	out := make([]Node, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

// addKey registers an empty bucket, used when composing an open graph whose
// curve includes this node with no successor yet attached.
func (k *keyedNode) addKey(key any) {
	if _, ok := k.successors[key]; !ok {
		k.successors[key] = make(map[Node]struct{})
	}
}

// addSuccessorAllKeys attaches node under every existing bucket key. Used when the
// graph algebra attaches a plain successor (not per-bucket) to this node.
func (k *keyedNode) addSuccessorAllKeys(node Node) {
	for key := range k.successors {
		k.addSuccessorAt(key, node)
	}
}

func (k *keyedNode) addSuccessorAt(key any, node Node) {
	k.empty = false
	bucket, ok := k.successors[key]
	if !ok {
		bucket = make(map[Node]struct{})
		k.successors[key] = bucket
	}
	if nt, isNT := node.(NonterminalNode); isNT {
		for u := range bucket {
			ut, isUNT := u.(NonterminalNode)
			if isUNT && equalNonterminal(ut, nt) {
				ut.mergeFrom(nt)
				return
			}
		}
	}
	bucket[node] = struct{}{}
	node.AddPredecessor(Edge{Node: k.absNode.self.(NonterminalNode), Key: key})
}

func (k *keyedNode) removeSuccessor(node Node) {
	removedKeys := []any{}
	for key, bucket := range k.successors {
		delete(bucket, node)
		if len(bucket) == 0 {
			removedKeys = append(removedKeys, key)
		}
	}
	for _, key := range removedKeys {
		delete(k.successors, key)
	}
}

// mergeKeyed absorbs another keyedNode's buckets into this one.
func (k *keyedNode) mergeKeyed(other *keyedNode) {
	for key, bucket := range other.successors {
		if len(bucket) == 0 {
			k.addKey(key)
		}
		for n := range bucket {
			k.addSuccessorAt(key, n)
		}
	}
}
