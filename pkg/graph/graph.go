// Package graph implements the in-memory labeled property multigraph: the
// single data structure every other layer of the transformation engine reads
// from and writes to. Nodes are identified by a globally-unique string id,
// carry one label and a dynamic property map; edges are directed, carry a
// label and a property map, and are distinguished from parallel edges by an
// opaque key rather than by identity of endpoints+label alone.
//
// The store is intentionally not safe for concurrent use. The engine that
// owns a Graph is single-threaded and synchronous for the run's entire
// lifetime (spec §5); adding a sync.RWMutex here, as a general-purpose graph
// database would, would tax every hot-path call with a lock acquisition to
// guard against a scenario — concurrent mutation — the core's non-goals rule
// out by design.
package graph

import (
	"github.com/google/uuid"

	"github.com/lpgraph/lpgraph/pkg/value"
)

// EdgeKey opaquely identifies one edge. Two edges with identical endpoints,
// label, and properties still get distinct keys (spec Q4): the multigraph's
// uniqueness key is the key itself, never the endpoint/label/property tuple.
type EdgeKey uuid.UUID

func (k EdgeKey) String() string { return uuid.UUID(k).String() }

// Node is one vertex of the graph.
type Node struct {
	ID    string
	Label string
	Props *PropertyMap
}

// Edge is one directed arc of the graph.
type Edge struct {
	Key   EdgeKey
	From  string
	To    string
	Label string
	Props *PropertyMap
}

// Graph is the LPG store. The zero value is not usable; use New.
type Graph struct {
	nodes map[string]*Node

	// labelIndex maps label -> node ids in insertion order (I2, I3).
	labelIndex     map[string][]string
	labelIndexSeen map[string]map[string]struct{}

	edges map[EdgeKey]*Edge

	// outAdj/inAdj record edge keys in the order the connecting edges were
	// added, so Successors/Predecessors/OutEdges/InEdges are deterministic.
	outAdj map[string][]EdgeKey
	inAdj  map[string][]EdgeKey
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:          make(map[string]*Node),
		labelIndex:     make(map[string][]string),
		labelIndexSeen: make(map[string]map[string]struct{}),
		edges:          make(map[EdgeKey]*Edge),
		outAdj:         make(map[string][]EdgeKey),
		inAdj:          make(map[string][]EdgeKey),
	}
}

// AddNode inserts a new node and appends it to its label's index. Returns
// an lpgerr.DuplicateNode error if id already exists.
func (g *Graph) AddNode(id, label string, props *PropertyMap) (*Node, error) {
	if _, exists := g.nodes[id]; exists {
		return nil, newDuplicateNode(id)
	}
	if props == nil {
		props = NewPropertyMap()
	}
	n := &Node{ID: id, Label: label, Props: props}
	g.nodes[id] = n
	g.appendToLabelIndex(label, id)
	return n, nil
}

func (g *Graph) appendToLabelIndex(label, id string) {
	seen := g.labelIndexSeen[label]
	if seen == nil {
		seen = make(map[string]struct{})
		g.labelIndexSeen[label] = seen
	}
	if _, already := seen[id]; already {
		return
	}
	seen[id] = struct{}{}
	g.labelIndex[label] = append(g.labelIndex[label], id)
}

// HasNode reports whether id is present.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// GetNode returns the node for id, or an lpgerr.MissingNode error if absent. The returned
// pointer is a borrowed view into the store, not a copy: callers must not
// retain it past the current rule application.
func (g *Graph) GetNode(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, newMissingNode(id)
	}
	return n, nil
}

// SetProperty adds or overwrites a property on an existing node. Fails with
// MissingNode if id is absent — the store never silently creates nodes on
// write, per I4's "may be overwritten... but must remain a legal Value".
func (g *Graph) SetProperty(id, name string, v value.Value) error {
	n, err := g.GetNode(id)
	if err != nil {
		return err
	}
	n.Props.Set(name, v)
	return nil
}

// AddEdge inserts a directed edge between two existing nodes and returns its
// opaque key. Fails with MissingNode if either endpoint is absent (I1).
// Multiple edges between the same endpoints with the same label are
// permitted and individually addressable by key (multigraph semantics, Q4).
func (g *Graph) AddEdge(from, to, label string, props *PropertyMap) (EdgeKey, error) {
	if !g.HasNode(from) {
		return EdgeKey{}, newMissingNode(from)
	}
	if !g.HasNode(to) {
		return EdgeKey{}, newMissingNode(to)
	}
	if props == nil {
		props = NewPropertyMap()
	}
	key := EdgeKey(uuid.New())
	e := &Edge{Key: key, From: from, To: to, Label: label, Props: props}
	g.edges[key] = e
	g.outAdj[from] = append(g.outAdj[from], key)
	g.inAdj[to] = append(g.inAdj[to], key)
	return key, nil
}

// GetEdge returns the edge for key and true, or nil and false if no edge
// has that key.
func (g *Graph) GetEdge(key EdgeKey) (*Edge, bool) {
	e, ok := g.edges[key]
	return e, ok
}

// NodesByLabel returns the ordered sequence of node ids carrying label, or
// an empty (non-nil) slice if none match.
func (g *Graph) NodesByLabel(label string) []string {
	ids := g.labelIndex[label]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Successors returns the ordered (by connecting-edge insertion) sequence of
// node ids reachable from id via one outgoing edge. Parallel edges to the
// same target yield repeated ids, matching edge-insertion order (O2).
func (g *Graph) Successors(id string) []string {
	keys := g.outAdj[id]
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = g.edges[k].To
	}
	return out
}

// Predecessors is the in-edge analogue of Successors.
func (g *Graph) Predecessors(id string) []string {
	keys := g.inAdj[id]
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = g.edges[k].From
	}
	return out
}

// OutEdges returns the node's outgoing edges in insertion order.
func (g *Graph) OutEdges(id string) []*Edge {
	keys := g.outAdj[id]
	out := make([]*Edge, len(keys))
	for i, k := range keys {
		out[i] = g.edges[k]
	}
	return out
}

// InEdges returns the node's incoming edges in insertion order.
func (g *Graph) InEdges(id string) []*Edge {
	keys := g.inAdj[id]
	out := make([]*Edge, len(keys))
	for i, k := range keys {
		out[i] = g.edges[k]
	}
	return out
}

// SuccessorsByLabel is a convenience used by the rule engine's aggregation
// rule: successors of id whose own label matches.
func (g *Graph) SuccessorsByLabel(id, label string) []*Node {
	var out []*Node
	for _, k := range g.outAdj[id] {
		e := g.edges[k]
		if n, ok := g.nodes[e.To]; ok && n.Label == label {
			out = append(out, n)
		}
	}
	return out
}

// Stats summarizes the graph's current size.
type Stats struct {
	TotalNodes int
	TotalEdges int
	NodesByLabel map[string]int
	EdgesByLabel map[string]int
}

// Stats computes counts of nodes and edges, overall and per label.
func (g *Graph) Stats() Stats {
	s := Stats{
		TotalNodes:   len(g.nodes),
		TotalEdges:   len(g.edges),
		NodesByLabel: make(map[string]int),
		EdgesByLabel: make(map[string]int),
	}
	for label, ids := range g.labelIndex {
		if len(ids) > 0 {
			s.NodesByLabel[label] = len(ids)
		}
	}
	for _, e := range g.edges {
		s.EdgesByLabel[e.Label]++
	}
	return s
}

// AllNodeIDs returns every node id, grouped by label. Within each label ids
// are in insertion order; the order of the label groups is not defined.
func (g *Graph) AllNodeIDs() []string {
	out := make([]string, 0, len(g.nodes))
	for _, ids := range g.labelIndex {
		out = append(out, ids...)
	}
	return out
}
