package domain

// Coordinate spaces a position can be expressed in
const (
	SpaceFree  = "free"  // free-form layout coordinates
	SpaceImage = "image" // relative to a background reference image
)

// NodePosition is a user-chosen or auto-assigned 2D coordinate for a node,
// keyed by hardware identifier. Positions persist independently of snapshots:
// a position whose node disappears is orphaned, not deleted, so it can be
// reused if the node reappears.
type NodePosition struct {
	IEEE  string  `json:"ieee"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Space string  `json:"space"`
}

// NewNodePosition creates a position in the free coordinate space
func NewNodePosition(ieee string, x, y float64) NodePosition {
	return NodePosition{
		IEEE:  ieee,
		X:     x,
		Y:     y,
		Space: SpaceFree,
	}
}
