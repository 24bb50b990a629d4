// Package service holds the snapshot cache and drives the refresh pipeline:
// collector -> registry matcher -> fusion engine, in strict sequence over
// fully materialized intermediate results.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"meshview/internal/collector"
	"meshview/internal/domain"
	"meshview/internal/fusion"
	"meshview/internal/registry"
	"meshview/internal/repository"
)

// TopologyService owns the one current snapshot and the position store
// access. These are the only pieces of mutable shared state in the system;
// everything else is recomputed per cycle.
type TopologyService struct {
	collector *collector.Collector
	engine    *fusion.Engine
	store     repository.Store
	bus       *EventBus

	mu         sync.RWMutex
	current    *domain.Graph
	lastErr    error
	refreshing bool

	flight singleflight.Group
}

// NewTopologyService creates the service with an empty but valid snapshot,
// so there is never a moment without something to serve.
func NewTopologyService(c *collector.Collector, e *fusion.Engine, store repository.Store, bus *EventBus) *TopologyService {
	return &TopologyService{
		collector: c,
		engine:    e,
		store:     store,
		bus:       bus,
		current:   domain.NewGraph(),
	}
}

// Restore loads the persisted last-good snapshot, if any, so a restarted
// process serves data before its first refresh completes.
func (s *TopologyService) Restore(ctx context.Context) {
	g, err := s.store.LatestSnapshot(ctx)
	if err != nil {
		log.Printf("Failed to restore cached snapshot: %v", err)
		return
	}
	if g == nil {
		return
	}

	s.mu.Lock()
	s.current = g
	s.mu.Unlock()
	log.Printf("Restored cached snapshot from %s (%s)",
		g.FetchedAt.Format(time.RFC3339), fusion.Describe(g))
}

// Refresh runs one full collection cycle and atomically replaces the held
// snapshot on success. Concurrent callers join the in-flight cycle instead
// of starting duplicates; on any failure the previous snapshot stays put.
func (s *TopologyService) Refresh(ctx context.Context) (*domain.Graph, error) {
	v, err, _ := s.flight.Do("refresh", func() (interface{}, error) {
		// Joined callers must not die with the caller that happened to
		// initiate the cycle; the collector applies its own time budget.
		return s.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Graph), nil
}

func (s *TopologyService) refresh(ctx context.Context) (*domain.Graph, error) {
	s.mu.Lock()
	s.refreshing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	s.bus.Publish(Event{Type: EventRefreshStarted})
	log.Printf("Starting topology refresh...")

	result, err := s.collector.Collect(ctx)
	if err != nil {
		return nil, s.fail(err)
	}

	matched := registry.Match(result.Nodes, result.Registry, result.Entities)
	if matched.Unmatched > 0 {
		log.Printf("Registry matcher dropped %d unresolvable entities", matched.Unmatched)
	}

	graph, err := s.engine.Fuse(result.Nodes, matched.Entities)
	if err != nil {
		return nil, s.fail(err)
	}

	graph.FetchedAt = time.Now()
	graph.ErrorCount = result.Errors
	graph.UnmatchedEntities = matched.Unmatched
	graph.CollectionID = result.CollectionID

	if graph.CycleDemotions > 0 {
		log.Printf("Fusion broke %d resolution cycles (suspect upstream data)", graph.CycleDemotions)
	}

	s.mu.Lock()
	s.current = graph
	s.lastErr = nil
	s.mu.Unlock()

	if err := s.store.SaveSnapshot(ctx, graph); err != nil {
		log.Printf("Failed to persist snapshot: %v", err)
	}

	log.Printf("Refresh complete in %s: %s, %d fetch errors",
		result.Duration.Round(time.Millisecond), fusion.Describe(graph), result.Errors)

	s.bus.Publish(Event{Type: EventRefreshComplete, Payload: s.Status()})
	return graph, nil
}

func (s *TopologyService) fail(err error) error {
	log.Printf("Refresh failed: %v (previous snapshot retained)", err)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.bus.Publish(Event{
		Type:    EventRefreshFailed,
		Payload: map[string]string{"error": err.Error()},
	})
	return err
}

// Graph returns the current snapshot with stored positions merged in. It
// never triggers collection work.
func (s *TopologyService) Graph(ctx context.Context) *domain.Graph {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	positions, err := s.store.Positions(ctx)
	if err != nil {
		log.Printf("Failed to load positions for merge: %v", err)
		return current.WithPositions(nil)
	}
	return current.WithPositions(positions)
}

// Status describes the last collection outcome
type Status struct {
	Refreshing        bool      `json:"refreshing"`
	LastFetch         time.Time `json:"last_fetch,omitzero"`
	AgeSeconds        float64   `json:"age_seconds,omitempty"`
	ErrorCount        int       `json:"error_count"`
	UnmatchedEntities int       `json:"unmatched_entities"`
	NodeCount         int       `json:"node_count"`
	EdgeCount         int       `json:"edge_count"`
	FallbackCount     int       `json:"fallback_count"`
	SiblingCount      int       `json:"sibling_count"`
	CycleDemotions    int       `json:"cycle_demotions"`
	CollectionID      string    `json:"collection_id,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
}

// Status returns the last collection outcome without side effects
func (s *TopologyService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Refreshing:        s.refreshing,
		LastFetch:         s.current.FetchedAt,
		ErrorCount:        s.current.ErrorCount,
		UnmatchedEntities: s.current.UnmatchedEntities,
		NodeCount:         len(s.current.Nodes),
		EdgeCount:         len(s.current.Edges),
		FallbackCount:     s.current.CountKind(domain.EdgeKindFallback),
		SiblingCount:      s.current.CountKind(domain.EdgeKindSibling),
		CycleDemotions:    s.current.CycleDemotions,
		CollectionID:      s.current.CollectionID,
	}
	if !s.current.FetchedAt.IsZero() {
		st.AgeSeconds = time.Since(s.current.FetchedAt).Seconds()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// SetPosition upserts a single node position
func (s *TopologyService) SetPosition(ctx context.Context, pos domain.NodePosition) error {
	if err := s.store.SavePosition(ctx, pos); err != nil {
		return err
	}
	s.bus.Publish(Event{
		Type:    EventPositionsUpdated,
		Payload: map[string]string{"ieee": pos.IEEE},
	})
	return nil
}

// SetPositions upserts a batch of positions
func (s *TopologyService) SetPositions(ctx context.Context, positions []domain.NodePosition) error {
	if len(positions) == 0 {
		return nil
	}
	if err := s.store.SavePositions(ctx, positions); err != nil {
		return err
	}
	s.bus.Publish(Event{
		Type:    EventPositionsUpdated,
		Payload: map[string]int{"count": len(positions)},
	})
	return nil
}

// Positions returns the full stored position map
func (s *TopologyService) Positions(ctx context.Context) (map[string]domain.NodePosition, error) {
	return s.store.Positions(ctx)
}

// ResetPositions clears all positions in one coordinate space
func (s *TopologyService) ResetPositions(ctx context.Context, space string) error {
	if err := s.store.ResetPositions(ctx, space); err != nil {
		return err
	}
	s.bus.Publish(Event{
		Type:    EventPositionsReset,
		Payload: map[string]string{"space": space},
	})
	return nil
}
