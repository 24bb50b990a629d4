// Package fusion derives a single explainable tree from noisy, partial,
// possibly-contradictory per-node mesh telemetry.
//
// The engine is a pure transformation: it runs single-threaded over one
// complete immutable set of node records and produces the same graph for the
// same input, byte for byte. Every non-root node ends up with exactly one
// upstream edge, resolved by a fixed precedence (route, then declared parent,
// then best inbound neighbor observation, then fallback to the root), and the
// resulting edge set is validated into a tree: cycles are broken by demotion
// to fallback, and a reachability walk from the root forces any stragglers to
// fallback as well.
package fusion

import (
	"errors"
	"fmt"
	"sort"

	"meshview/internal/domain"
)

// ErrNoRoot is returned when the snapshot contains no root node to anchor on
var ErrNoRoot = errors.New("fusion: snapshot contains no root node")

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	// ValidRouteStatuses lists route statuses considered fresh; entries with
	// any other status are treated as stale and disqualified.
	ValidRouteStatuses []string
	// SiblingFloor is the minimum LQI both directions of a mutual observation
	// must exceed for a sibling edge to be emitted.
	SiblingFloor int
}

// DefaultConfig matches the route freshness set used by the controller
func DefaultConfig() Config {
	return Config{
		ValidRouteStatuses: []string{"Active", "Validation_Underway"},
		SiblingFloor:       0,
	}
}

// Engine fuses collected node records into a topology snapshot
type Engine struct {
	cfg         Config
	validRoutes map[string]bool
}

// New creates an engine, filling config gaps with defaults
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.ValidRouteStatuses == nil {
		cfg.ValidRouteStatuses = def.ValidRouteStatuses
	}

	valid := make(map[string]bool, len(cfg.ValidRouteStatuses))
	for _, s := range cfg.ValidRouteStatuses {
		valid[s] = true
	}

	return &Engine{cfg: cfg, validRoutes: valid}
}

// snapshot is the per-cycle working state. It is rebuilt from scratch on
// every Fuse call; nothing survives between cycles.
type snapshot struct {
	nodes     []domain.Node
	byIEEE    map[string]*domain.Node
	nwkToIEEE map[uint16]string
	root      *domain.Node
	resolved  map[string]domain.Edge
}

// Fuse resolves one upstream edge per non-root node and emits the fused
// graph. Entities (from the registry matcher, keyed by IEEE) are attached to
// their nodes; a nil map is fine. The input slice is not modified.
func (e *Engine) Fuse(nodes []domain.Node, entities map[string][]domain.Entity) (*domain.Graph, error) {
	snap, err := newSnapshot(nodes)
	if err != nil {
		return nil, err
	}

	for i := range snap.nodes {
		node := &snap.nodes[i]
		if node.IsRoot() {
			continue
		}
		snap.resolved[node.IEEE] = e.resolveUpstream(snap, node)
	}

	demotions := e.breakCycles(snap)
	demotions += e.forceReachability(snap)

	siblings := e.siblingEdges(snap)

	return e.assemble(snap, entities, siblings, demotions), nil
}

func newSnapshot(nodes []domain.Node) (*snapshot, error) {
	snap := &snapshot{
		nodes:     make([]domain.Node, len(nodes)),
		byIEEE:    make(map[string]*domain.Node, len(nodes)),
		nwkToIEEE: make(map[uint16]string, len(nodes)),
		resolved:  make(map[string]domain.Edge, len(nodes)),
	}
	copy(snap.nodes, nodes)
	sort.Slice(snap.nodes, func(i, j int) bool {
		return snap.nodes[i].IEEE < snap.nodes[j].IEEE
	})

	for i := range snap.nodes {
		node := &snap.nodes[i]
		snap.byIEEE[node.IEEE] = node

		// Lowest IEEE wins a short-address collision, so stale duplicate
		// NWK assignments cannot make the output order-dependent.
		if prev, ok := snap.nwkToIEEE[node.NWK]; !ok || node.IEEE < prev {
			snap.nwkToIEEE[node.NWK] = node.IEEE
		}

		if node.IsRoot() && snap.root == nil {
			snap.root = node
		}
	}

	if snap.root == nil {
		return nil, ErrNoRoot
	}
	return snap, nil
}

// resolveUpstream applies the evidence precedence for one node
func (e *Engine) resolveUpstream(snap *snapshot, node *domain.Node) domain.Edge {
	if edge, ok := e.routeCandidate(snap, node); ok {
		return edge
	}
	if edge, ok := e.parentCandidate(snap, node); ok {
		return edge
	}
	if edge, ok := e.neighborCandidate(snap, node); ok {
		return edge
	}
	return domain.NewEdge(node.IEEE, snap.root.IEEE, domain.EdgeKindFallback, nil)
}

// routeCandidate picks the node's route-table entry toward the root, if it
// has a fresh one whose next hop exists in this snapshot.
func (e *Engine) routeCandidate(snap *snapshot, node *domain.Node) (domain.Edge, bool) {
	for _, route := range node.Routes {
		if !e.validRoutes[route.Status] {
			continue
		}
		if route.DestNWK != snap.root.NWK {
			continue
		}

		hopIEEE, ok := snap.nwkToIEEE[route.NextHopNWK]
		if !ok || hopIEEE == node.IEEE {
			continue
		}

		// The route table carries no link quality; borrow the node's own
		// observation of the hop when it has one rather than inventing one.
		var lqi *int
		for _, obs := range node.Neighbors {
			if obs.ObservedIEEE == hopIEEE || obs.ObservedNWK == route.NextHopNWK {
				lqi = domain.LQIOf(obs.LQI)
				break
			}
		}

		return domain.NewEdge(node.IEEE, hopIEEE, domain.EdgeKindRoute, lqi), true
	}
	return domain.Edge{}, false
}

// parentCandidate uses the node's declared parent, if it exists here
func (e *Engine) parentCandidate(snap *snapshot, node *domain.Node) (domain.Edge, bool) {
	if node.ParentIEEE == "" || node.ParentIEEE == node.IEEE {
		return domain.Edge{}, false
	}
	parent, ok := snap.byIEEE[node.ParentIEEE]
	if !ok {
		return domain.Edge{}, false
	}

	// A declared parent carries no quality either; the parent's observation
	// of the node is the closest real measurement.
	var lqi *int
	for _, obs := range parent.Neighbors {
		if obs.ObservedIEEE == node.IEEE {
			lqi = domain.LQIOf(obs.LQI)
			break
		}
	}

	return domain.NewEdge(node.IEEE, parent.IEEE, domain.EdgeKindParent, lqi), true
}

// neighborCandidate selects the best observation OF this node by others.
// Upstream-capable neighbors are the ones reporting that they see the node,
// not the ones the node claims to see. Ties go to the better role (root,
// then relay, then leaf), then to the lowest reporter IEEE; reporters are
// already walked in IEEE order, so a strict comparison settles the last tie.
func (e *Engine) neighborCandidate(snap *snapshot, node *domain.Node) (domain.Edge, bool) {
	bestLQI := -1
	bestRank := int(^uint(0) >> 1)
	bestReporter := ""

	for i := range snap.nodes {
		reporter := &snap.nodes[i]
		if reporter.IEEE == node.IEEE {
			continue
		}
		for _, obs := range reporter.Neighbors {
			if obs.ObservedIEEE != node.IEEE {
				continue
			}
			rank := roleRank(reporter.Role)
			if obs.LQI > bestLQI || (obs.LQI == bestLQI && rank < bestRank) {
				bestLQI = obs.LQI
				bestRank = rank
				bestReporter = reporter.IEEE
			}
		}
	}

	if bestReporter == "" {
		return domain.Edge{}, false
	}
	return domain.NewEdge(node.IEEE, bestReporter, domain.EdgeKindNeighbor, domain.LQIOf(bestLQI)), true
}

func roleRank(r domain.Role) int {
	switch r {
	case domain.RoleRoot:
		return 0
	case domain.RoleRelay:
		return 1
	case domain.RoleLeaf:
		return 2
	default:
		return 3
	}
}

// breakCycles detects loops in the resolved edge set and demotes the
// lowest-IEEE participant of each to fallback. A node caught in a resolution
// cycle is less trustworthy than one with no upstream evidence at all.
func (e *Engine) breakCycles(snap *snapshot) int {
	demotions := 0

	for {
		cycle := findCycle(snap)
		if cycle == nil {
			break
		}

		victim := cycle[0]
		for _, ieee := range cycle[1:] {
			if ieee < victim {
				victim = ieee
			}
		}

		snap.resolved[victim] = domain.NewEdge(victim, snap.root.IEEE, domain.EdgeKindFallback, nil)
		demotions++
	}

	return demotions
}

// findCycle walks each node's upstream chain and returns the members of the
// first cycle found, or nil. Nodes are visited in sorted order so the result
// does not depend on map iteration.
func findCycle(snap *snapshot) []string {
	const (
		inProgress = 1
		safe       = 2
	)
	state := make(map[string]int, len(snap.nodes))
	state[snap.root.IEEE] = safe

	for i := range snap.nodes {
		start := snap.nodes[i].IEEE
		if state[start] != 0 {
			continue
		}

		var path []string
		current := start
		for {
			if state[current] == safe {
				break
			}
			if state[current] == inProgress {
				// Found the loop: everything on the path from the repeated
				// node onward is a participant.
				for idx, ieee := range path {
					if ieee == current {
						return path[idx:]
					}
				}
				return path
			}

			state[current] = inProgress
			path = append(path, current)

			edge, ok := snap.resolved[current]
			if !ok {
				break
			}
			current = edge.Target
		}

		for _, ieee := range path {
			state[ieee] = safe
		}
	}

	return nil
}

// forceReachability walks the tree from the root and forces any node the
// walk never reaches onto a fallback edge. After cycle-breaking every chain
// should already terminate at the root, so this is a final guarantee, not
// the usual path.
func (e *Engine) forceReachability(snap *snapshot) int {
	children := make(map[string][]string, len(snap.resolved))
	for ieee, edge := range snap.resolved {
		children[edge.Target] = append(children[edge.Target], ieee)
	}

	reached := map[string]bool{snap.root.IEEE: true}
	queue := []string{snap.root.IEEE}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if !reached[child] {
				reached[child] = true
				queue = append(queue, child)
			}
		}
	}

	forced := 0
	for i := range snap.nodes {
		ieee := snap.nodes[i].IEEE
		if !reached[ieee] {
			snap.resolved[ieee] = domain.NewEdge(ieee, snap.root.IEEE, domain.EdgeKindFallback, nil)
			forced++
		}
	}
	return forced
}

// siblingEdges emits informational edges between pairs that observe each
// other above the floor without either being the other's resolved upstream.
func (e *Engine) siblingEdges(snap *snapshot) []domain.Edge {
	observes := func(a, b *domain.Node) (int, bool) {
		for _, obs := range a.Neighbors {
			if obs.ObservedIEEE == b.IEEE {
				return obs.LQI, true
			}
		}
		return 0, false
	}

	var edges []domain.Edge
	for i := range snap.nodes {
		for j := i + 1; j < len(snap.nodes); j++ {
			a, b := &snap.nodes[i], &snap.nodes[j]

			lqiAB, okAB := observes(a, b)
			lqiBA, okBA := observes(b, a)
			if !okAB || !okBA || lqiAB <= e.cfg.SiblingFloor || lqiBA <= e.cfg.SiblingFloor {
				continue
			}

			if ea, ok := snap.resolved[a.IEEE]; ok && ea.Target == b.IEEE {
				continue
			}
			if eb, ok := snap.resolved[b.IEEE]; ok && eb.Target == a.IEEE {
				continue
			}

			lqi := lqiAB
			if lqiBA > lqi {
				lqi = lqiBA
			}
			edges = append(edges, domain.NewSiblingEdge(a.IEEE, b.IEEE, domain.LQIOf(lqi)))
		}
	}
	return edges
}

// assemble builds the final ordered graph: nodes sorted by IEEE, resolved
// edges first (by source), then sibling edges (by endpoints).
func (e *Engine) assemble(snap *snapshot, entities map[string][]domain.Entity, siblings []domain.Edge, demotions int) *domain.Graph {
	graph := domain.NewGraph()
	graph.CycleDemotions = demotions

	for i := range snap.nodes {
		node := snap.nodes[i]
		gn := domain.GraphNode{
			Node:       node,
			Entities:   entities[node.IEEE],
			PathToRoot: e.pathToRoot(snap, node.IEEE),
		}
		graph.Nodes = append(graph.Nodes, gn)
	}

	resolved := make([]domain.Edge, 0, len(snap.resolved))
	for _, edge := range snap.resolved {
		resolved = append(resolved, edge)
	}
	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].Source < resolved[j].Source
	})

	sort.Slice(siblings, func(i, j int) bool {
		if siblings[i].Source != siblings[j].Source {
			return siblings[i].Source < siblings[j].Source
		}
		return siblings[i].Target < siblings[j].Target
	})

	graph.Edges = append(graph.Edges, resolved...)
	graph.Edges = append(graph.Edges, siblings...)
	return graph
}

// pathToRoot follows resolved edges from a node to the root. The visited
// guard only matters mid-validation; the final edge set is acyclic.
func (e *Engine) pathToRoot(snap *snapshot, ieee string) []domain.PathHop {
	if ieee == snap.root.IEEE {
		return nil
	}

	var path []domain.PathHop
	visited := map[string]bool{ieee: true}
	current := ieee

	for current != snap.root.IEEE {
		edge, ok := snap.resolved[current]
		if !ok {
			break
		}
		hopNode := snap.byIEEE[edge.Target]
		if hopNode == nil || visited[edge.Target] {
			break
		}
		visited[edge.Target] = true

		path = append(path, domain.PathHop{
			IEEE: hopNode.IEEE,
			Name: hopNode.Name,
			Role: hopNode.Role,
			LQI:  edge.LQI,
			Kind: edge.Kind,
		})
		current = edge.Target
	}

	return path
}

// Describe summarizes a fused graph for diagnostics
func Describe(g *domain.Graph) string {
	return fmt.Sprintf("%d nodes, %d edges (%d fallback, %d sibling), %d cycle demotions",
		len(g.Nodes), len(g.Edges),
		g.CountKind(domain.EdgeKindFallback), g.CountKind(domain.EdgeKindSibling),
		g.CycleDemotions)
}
