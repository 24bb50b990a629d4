package domain

import "time"

// Role classifies a node's function in the mesh
type Role string

const (
	RoleRoot    Role = "root"    // the single fixed anchor (coordinator)
	RoleRelay   Role = "relay"   // powered, forwards traffic for others
	RoleLeaf    Role = "leaf"    // does not forward, often battery-powered
	RoleUnknown Role = "unknown"
)

// Relationship values as reported in device neighbor tables
const (
	RelationshipParent  = "Parent"
	RelationshipChild   = "Child"
	RelationshipSibling = "Sibling"
)

// NeighborObservation is one directional entry from a node's neighbor table.
// The LQI recorded by A about B need not equal the LQI recorded by B about A.
type NeighborObservation struct {
	ObservedIEEE string `json:"ieee"`
	ObservedNWK  uint16 `json:"nwk"`
	LQI          int    `json:"lqi"`
	Relationship string `json:"relationship,omitempty"`
	ObservedRole Role   `json:"role,omitempty"`
}

// RouteEntry is a node's recorded next hop toward a destination.
// Status values outside the active set are treated as stale.
type RouteEntry struct {
	DestNWK    uint16 `json:"dest_nwk"`
	NextHopNWK uint16 `json:"next_hop"`
	Status     string `json:"status"`
}

// Node is one device's collected facts for a single refresh cycle:
// identity, neighbor table, route table and declared parent.
// The IEEE address is the stable hardware identifier; the NWK address
// is short-lived and may change between cycles.
type Node struct {
	IEEE         string                `json:"ieee"`
	NWK          uint16                `json:"nwk"`
	Role         Role                  `json:"role"`
	Name         string                `json:"name"`
	Manufacturer string                `json:"manufacturer,omitempty"`
	Model        string                `json:"model,omitempty"`
	LastSeen     *time.Time            `json:"last_seen,omitempty"`
	Neighbors    []NeighborObservation `json:"neighbors,omitempty"`
	Routes       []RouteEntry          `json:"routes,omitempty"`
	ParentIEEE   string                `json:"parent_ieee,omitempty"`
}

// IsRoot reports whether the node is the mesh anchor
func (n *Node) IsRoot() bool {
	return n.Role == RoleRoot
}
