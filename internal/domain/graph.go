package domain

import "time"

// PathHop is one step on a node's resolved path toward the root
type PathHop struct {
	IEEE string   `json:"ieee"`
	Name string   `json:"name"`
	Role Role     `json:"role"`
	LQI  *int     `json:"lqi,omitempty"`
	Kind EdgeKind `json:"kind"`
}

// GraphNode is a node as served to the presentation layer: the collected
// facts plus attached entities, the merged position (if any) and the
// resolved path to the root.
type GraphNode struct {
	Node
	Entities   []Entity      `json:"entities,omitempty"`
	Position   *NodePosition `json:"position,omitempty"`
	PathToRoot []PathHop     `json:"path_to_root,omitempty"`
}

// Graph is one fused topology snapshot. It is recomputed wholesale on each
// refresh cycle; positions are merged in at serve time by identifier lookup.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []Edge      `json:"edges"`

	FetchedAt         time.Time `json:"fetched_at,omitzero"`
	ErrorCount        int       `json:"error_count"`
	UnmatchedEntities int       `json:"unmatched_entities,omitempty"`
	CycleDemotions    int       `json:"cycle_demotions,omitempty"`
	CollectionID      string    `json:"collection_id,omitempty"`
}

// NewGraph creates an empty but valid snapshot
func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]GraphNode, 0),
		Edges: make([]Edge, 0),
	}
}

// Root returns the anchor node, or nil for an empty snapshot
func (g *Graph) Root() *GraphNode {
	for i := range g.Nodes {
		if g.Nodes[i].IsRoot() {
			return &g.Nodes[i]
		}
	}
	return nil
}

// NodeByIEEE looks up a node by hardware identifier
func (g *Graph) NodeByIEEE(ieee string) *GraphNode {
	for i := range g.Nodes {
		if g.Nodes[i].IEEE == ieee {
			return &g.Nodes[i]
		}
	}
	return nil
}

// UpstreamEdges returns the resolved edges, excluding siblings
func (g *Graph) UpstreamEdges() []Edge {
	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if e.IsUpstream() {
			edges = append(edges, e)
		}
	}
	return edges
}

// CountKind counts edges of one kind
func (g *Graph) CountKind(kind EdgeKind) int {
	n := 0
	for _, e := range g.Edges {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// WithPositions returns a copy of the graph with stored positions attached
// to matching nodes. The receiver and the position map are not mutated, so
// the cached snapshot and the store stay untouched.
func (g *Graph) WithPositions(positions map[string]NodePosition) *Graph {
	merged := *g
	merged.Nodes = make([]GraphNode, len(g.Nodes))
	copy(merged.Nodes, g.Nodes)

	for i := range merged.Nodes {
		if pos, ok := positions[merged.Nodes[i].IEEE]; ok {
			p := pos
			merged.Nodes[i].Position = &p
		} else {
			merged.Nodes[i].Position = nil
		}
	}

	return &merged
}
