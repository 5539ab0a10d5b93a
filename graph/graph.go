package graph

import (
	"context"

	"github.com/corvidwing/dispatch/keystore"
	"github.com/corvidwing/dispatch/routeerr"
)

// Graph is a state-transition graph rooted at a single IdentityNode start
// node, open (has a curve of frontier nonterminals) or closed (has
// terminals reachable from every former curve node). Algebra: And (&)
// sequences two graphs, Or (|) unions them, Apply closes onto a terminal
// (spec §3).
type Graph struct {
	start  *IdentityNode
	closed bool
}

// New returns an empty open graph.
func New() *Graph {
	return &Graph{start: NewIdentityNode()}
}

func newWith(start *IdentityNode, closed bool) *Graph {
	return &Graph{start: start, closed: closed}
}

// Start returns the graph's root IdentityNode.
func (g *Graph) Start() *IdentityNode { return g.start }

// Closed reports whether Apply has been called; a closed graph cannot be
// Applied again or extended with And.
func (g *Graph) Closed() bool { return g.closed }

// Entries returns the start node's immediate successors.
func (g *Graph) Entries() []Node { return g.start.Successors() }

// Traverse walks every reachable node breadth-first from start.
func (g *Graph) Traverse() []Node {
	var out []Node
	queue := []Node{g.start}
	seen := map[Node]struct{}{g.start: {}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		if nt, ok := n.(NonterminalNode); ok {
			for _, s := range nt.Successors() {
				if _, dup := seen[s]; dup {
					continue
				}
				seen[s] = struct{}{}
				queue = append(queue, s)
			}
		}
	}
	return out
}

// Curve returns the frontier nonterminals of an open graph: those with no
// successor yet attached.
func (g *Graph) Curve() []NonterminalNode {
	var out []NonterminalNode
	for _, n := range g.Traverse() {
		if nt, ok := n.(NonterminalNode); ok && nt.Empty() {
			out = append(out, nt)
		}
	}
	return out
}

// Terminals returns every TerminalNode reachable in a closed graph.
func (g *Graph) Terminals() []TerminalNode {
	var out []TerminalNode
	for _, n := range g.Traverse() {
		if t, ok := n.(TerminalNode); ok {
			out = append(out, t)
		}
	}
	return out
}

// Verify checks invariant 1: every successor's predecessor set names its
// parent. Used in tests, not on the hot path.
func (g *Graph) Verify() bool {
	for _, n := range g.Traverse() {
		nt, ok := n.(NonterminalNode)
		if !ok {
			continue
		}
		for _, s := range nt.Successors() {
			found := false
			for _, e := range s.Predecessors() {
				if e.Node == nt {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (g *Graph) addEdge(u NonterminalNode, v Node) {
	u.AddSuccessor(v)
}

// Clear reinitializes the graph to an empty start node.
func (g *Graph) Clear() { g.start.Clear() }

// Copy deep-copies the graph, preserving shared structure via a visited map.
func (g *Graph) Copy() *Graph {
	nodeMap := make(map[Node]Node)
	newStart := g.start.Copy(nodeMap).(*IdentityNode)
	return newWith(newStart, g.closed)
}

// Apply closes the graph onto terminal: every curve nonterminal gets
// terminal as an additional successor, then the copy is marked closed. g
// itself is left untouched (Apply operates on, and returns, a copy).
// terminal may be nil to close a graph without attaching a handler (used by
// Engine's root graph, which starts empty).
func (g *Graph) Apply(terminal TerminalNode) *Graph {
	if g.closed {
		panic("graph: cannot Apply a closed graph")
	}
	cp := g.Copy()
	if terminal != nil {
		for _, node := range cp.Curve() {
			node.AddSuccessor(terminal)
		}
	}
	cp.closed = true
	return cp
}

// And sequences g with other: g's curve connects to other's entries. When
// both sides have more than one curve/entry node, other's start is
// inserted between them to avoid a cross-product of edges, per spec §3.
func (g *Graph) And(other *Graph) *Graph {
	cp := g.Copy()
	cp.and(other)
	return cp
}

func (g *Graph) and(other *Graph) {
	if g.closed {
		panic("graph: cannot And a closed graph")
	}
	us := g.Curve()
	vs := other.Entries()
	if len(us) > 1 && len(vs) > 1 {
		for _, u := range us {
			g.addEdge(u, other.start)
		}
		return
	}
	for _, u := range us {
		for _, v := range vs {
			g.addEdge(u, v)
		}
	}
}

// AndNode sequences g with a bare nonterminal node, attaching it to every
// curve node directly.
func (g *Graph) AndNode(other NonterminalNode) *Graph {
	cp := g.Copy()
	for _, node := range cp.Curve() {
		cp.addEdge(node, other)
	}
	return cp
}

// Or unions g with other: other's entries become additional successors of
// g's start.
func (g *Graph) Or(other *Graph) *Graph {
	cp := g.Copy()
	cp.or(other)
	return cp
}

func (g *Graph) or(other *Graph) {
	for _, node := range other.Entries() {
		g.addEdge(g.start, node)
	}
}

// OrNode unions g with a bare nonterminal node, attaching it directly to
// g's start.
func (g *Graph) OrNode(other NonterminalNode) *Graph {
	cp := g.Copy()
	cp.addEdge(cp.start, other)
	return cp
}

// Forward routes one event through a closed graph's start node, collecting
// matched terminals (deduplicated) and route-exception results, and returns
// both. Forward itself does not invoke any terminal; callers run them, with
// bounded concurrency through an executor (spec §4.3's Engine does).
func (g *Graph) Forward(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (terminals []TerminalNode, exceptions []error) {
	if !g.closed {
		panic("graph: cannot Forward an open graph")
	}
	seen := make(map[TerminalNode]struct{})
	var filters []*routeerr.Filtered
	sink := &collectSink{
		onTerminal: func(t TerminalNode) {
			if _, ok := seen[t]; ok {
				return
			}
			seen[t] = struct{}{}
			terminals = append(terminals, t)
		},
		onException: func(err error) {
			if f, ok := err.(*routeerr.Filtered); ok {
				filters = append(filters, f)
				return
			}
			exceptions = append(exceptions, err)
		},
	}
	g.start.Route(ctx, args, store, sink)

	for _, f := range filters {
		kept := terminals[:0]
		for _, t := range terminals {
			if f.Filter(t) {
				kept = append(kept, t)
			}
		}
		terminals = kept
	}
	return terminals, exceptions
}

type collectSink struct {
	onTerminal  func(TerminalNode)
	onException func(error)
}

func (s *collectSink) Terminal(t TerminalNode) { s.onTerminal(t) }
func (s *collectSink) Exception(err error)     { s.onException(err) }
