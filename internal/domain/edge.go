package domain

import (
	"crypto/sha256"
	"fmt"
)

// EdgeKind identifies the evidence an upstream edge was resolved from
type EdgeKind string

const (
	EdgeKindRoute    EdgeKind = "route"    // active route-table entry toward the root
	EdgeKindParent   EdgeKind = "parent"   // declared parent relationship
	EdgeKindNeighbor EdgeKind = "neighbor" // best inbound neighbor observation
	EdgeKindFallback EdgeKind = "fallback" // no usable evidence, attached to root
	EdgeKindSibling  EdgeKind = "sibling"  // informational mutual observation
)

// Edge connects a node to its resolved upstream (Source -> Target).
// Every non-root node carries exactly one edge of kind route, parent,
// neighbor or fallback; sibling edges are non-exclusive and undirected.
// A nil LQI means no real observation backs the edge; the engine never
// fabricates a value.
type Edge struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Kind     EdgeKind `json:"kind"`
	LQI      *int     `json:"lqi,omitempty"`
	Directed bool     `json:"directed"`
}

// NewEdge creates a directed upstream edge
func NewEdge(source, target string, kind EdgeKind, lqi *int) Edge {
	e := Edge{
		Source:   source,
		Target:   target,
		Kind:     kind,
		LQI:      lqi,
		Directed: true,
	}
	e.ID = e.generateID()
	return e
}

// NewSiblingEdge creates an undirected informational edge
func NewSiblingEdge(a, b string, lqi *int) Edge {
	if a > b {
		a, b = b, a
	}
	e := Edge{
		Source:   a,
		Target:   b,
		Kind:     EdgeKindSibling,
		LQI:      lqi,
		Directed: false,
	}
	e.ID = e.generateID()
	return e
}

// generateID derives a deterministic ID from the endpoints and kind
func (e *Edge) generateID() string {
	key := fmt.Sprintf("%s-%s-%s", e.Source, e.Target, e.Kind)
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash[:8])
}

// IsUpstream reports whether the edge counts toward the one-upstream-per-node
// invariant (everything except sibling)
func (e *Edge) IsUpstream() bool {
	return e.Kind != EdgeKindSibling
}

// LQIOf is a convenience for building optional LQI values
func LQIOf(v int) *int {
	return &v
}
