// Package repository defines the persistence boundary: node positions and
// the cached last-good snapshot, durable across process restarts.
package repository

import (
	"context"

	"meshview/internal/domain"
)

// Store persists positions and the latest fused snapshot.
// Positions outlive snapshots: a position whose node vanishes from a later
// snapshot is kept so the node can pick it up again when it reappears.
type Store interface {
	// Positions returns the full position map keyed by IEEE
	Positions(ctx context.Context) (map[string]domain.NodePosition, error)
	// SavePosition upserts one position atomically (last write wins)
	SavePosition(ctx context.Context, pos domain.NodePosition) error
	// SavePositions upserts a batch in one transaction
	SavePositions(ctx context.Context, positions []domain.NodePosition) error
	// ResetPositions removes all positions in one coordinate space
	ResetPositions(ctx context.Context, space string) error

	// SaveSnapshot persists the latest fused graph for warm starts
	SaveSnapshot(ctx context.Context, g *domain.Graph) error
	// LatestSnapshot returns the persisted graph, or nil if none exists
	LatestSnapshot(ctx context.Context) (*domain.Graph, error)

	Close() error
}
