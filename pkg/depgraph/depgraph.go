// Package depgraph builds a renderable graph over the packages a lockfile
// resolves for a project.
//
// [Build] runs the same resolution walk as lockfile.Set.DependenciesOf and
// keeps the edges: the manifest project becomes the root node and every
// resolved record becomes a package node identified by its name@version key.
// Unlike an install tree the result may contain cycles; npm allows circular
// dependencies and lockfiles record them as-is, so consumers should call
// [Graph.HasCycle] before running algorithms that assume a DAG.
package depgraph

import (
	"errors"
	"slices"
	"strings"

	"github.com/matzehuels/lockset/pkg/lockfile"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")
)

// Node is a vertex in the dependency graph.
type Node struct {
	ID   string              // unique identifier, name@version for package nodes
	Dep  lockfile.Dependency // the resolved record behind the node
	Root bool                // marks the manifest project itself
}

// Edge is a directed dependency between two nodes: From requires To.
type Edge struct {
	From string
	To   string
}

// Graph is a directed dependency graph.
//
// The zero value is not usable; use [New] or [Build]. Graph is not safe for
// concurrent use without external synchronization.
type Graph struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string // nodeID -> required IDs
	incoming map[string][]string // nodeID -> dependent IDs
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// Build constructs the dependency graph the lockfile resolves for the
// manifest. The options select the workspace and dependency groups exactly
// as they do for DependenciesOf. Node and edge order is deterministic, so
// rendered output is stable across runs.
func Build(set *lockfile.Set, manifest *lockfile.Manifest, opts lockfile.ResolveOptions) (*Graph, error) {
	seq, err := set.ResolveEdges(manifest, opts)
	if err != nil {
		return nil, err
	}

	rootDep := lockfile.Dependency{Name: manifest.Name, Version: manifest.Version}
	rootID := manifest.Name
	if rootID == "" {
		rootID = "."
	}
	if manifest.Version != "" {
		rootID += "@" + manifest.Version
	}

	g := New()
	g.ensure(Node{ID: rootID, Dep: rootDep, Root: true})

	for from, to := range seq {
		fromID := from.Key()
		if from == rootDep {
			fromID = rootID
		} else {
			g.ensure(Node{ID: fromID, Dep: from})
		}
		g.ensure(Node{ID: to.Key(), Dep: to})
		_ = g.AddEdge(Edge{From: fromID, To: to.Key()})
	}
	return g, nil
}

// ensure adds the node unless one with the same ID already exists.
func (g *Graph) ensure(n Node) {
	if _, ok := g.nodes[n.ID]; !ok {
		_ = g.AddNode(n)
	}
}

// AddNode adds a node to the graph.
// Returns ErrInvalidNodeID if the node ID is empty, or ErrDuplicateNodeID
// if a node with the same ID already exists.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	node := &n
	g.nodes[node.ID] = node
	return nil
}

// AddEdge adds a directed edge between two existing nodes.
// Returns ErrUnknownSourceNode or ErrUnknownTargetNode when an endpoint is
// missing. Parallel edges between the same nodes are allowed.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
	g.incoming[e.To] = append(g.incoming[e.To], e.From)
	return nil
}

// Node returns the node with the given ID and true, or nil and false.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Root returns the manifest project's node, if the graph has one.
func (g *Graph) Root() (*Node, bool) {
	for _, n := range g.Nodes() {
		if n.Root {
			return n, true
		}
	}
	return nil, false
}

// Nodes returns all nodes sorted by ID. The returned slice contains
// pointers to the actual node structs, so modifications affect the graph.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return strings.Compare(a.ID, b.ID) })
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Children returns the IDs this node depends on, in edge insertion order.
// The returned slice should not be modified.
func (g *Graph) Children(id string) []string { return g.outgoing[id] }

// Parents returns the IDs that depend on this node, in edge insertion order.
// The returned slice should not be modified.
func (g *Graph) Parents(id string) []string { return g.incoming[id] }

// Sources returns nodes with no incoming edges, sorted by ID. For a built
// graph this is normally just the root.
func (g *Graph) Sources() []*Node {
	var sources []*Node
	for _, n := range g.Nodes() {
		if len(g.incoming[n.ID]) == 0 {
			sources = append(sources, n)
		}
	}
	return sources
}

// Sinks returns nodes with no outgoing edges, sorted by ID. These are the
// leaf packages nothing else in the closure depends on.
func (g *Graph) Sinks() []*Node {
	var sinks []*Node
	for _, n := range g.Nodes() {
		if len(g.outgoing[n.ID]) == 0 {
			sinks = append(sinks, n)
		}
	}
	return sinks
}

// HasCycle reports whether the graph contains a directed cycle.
// Detection runs in O(N+E) using depth-first search with white/gray/black
// coloring.
func (g *Graph) HasCycle() bool {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	var found bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range g.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				found = true
				return
			}
		}
		color[id] = black
	}

	for id := range g.nodes {
		if color[id] == white {
			dfs(id)
			if found {
				return true
			}
		}
	}
	return false
}
