// Package callgraph parses the textual whole-program call-graph dump
// emitted by the compiler driver (GCC's WPA symbol-table dump) and
// exposes traversal utilities over the resulting graph (SPEC_FULL.md §4.E
// / spec.md §4.E). Grounded on _examples/original_source/src/gcc_parse.cpp.
package callgraph

// NodeID identifies a graph node by the compiler's own numeric id, not by
// name: names can collide, ids cannot (spec.md §4.E).
type NodeID int

// Edge is one entry of a node's called_by or calls list: the id of the
// other end plus its parenthesized attribute tags, in source order.
type Edge struct {
	Node       NodeID
	Attributes []string
}

// Node is one entry of the call-graph dump.
type Node struct {
	ID            NodeID
	FnName        string
	DemangledName string
	Visibility    string
	Availability  string
	Flags         string
	CalledBy      []Edge
	Calls         []Edge
}

// CallGraph is the fully linked call graph: every entry's called_by/calls
// token resolved to its referent Node by id.
type CallGraph struct {
	nodes        map[NodeID]*Node
	throwCallers []NodeID
}

// Node returns the node with the given id, if any.
func (g *CallGraph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeByName performs a linear scan for a node with the given function
// name, mirroring get_node_from_name in the original. Names are not a
// primary key and may collide; when several nodes share the name, which
// one is returned is not defined (the scan ranges over a map).
func (g *CallGraph) NodeByName(name string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.FnName == name {
			return n, true
		}
	}
	return nil, false
}

// Len reports the number of nodes in the graph.
func (g *CallGraph) Len() int { return len(g.nodes) }

// ThrowCallers returns the deduplicated set of node ids whose Calls list
// contains an edge to a node named __cxa_throw, computed once at graph-
// build time (SPEC_FULL.md §4.E addition, grounded on the original's
// m_throw_callers field).
func (g *CallGraph) ThrowCallers() []NodeID {
	seen := make(map[NodeID]bool, len(g.throwCallers))
	var out []NodeID
	for _, id := range g.throwCallers {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
