package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meshview/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPositions(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		s := newTestStore(t)

		pos := domain.NodePosition{IEEE: "aa", X: 10.5, Y: -3.25, Space: domain.SpaceFree}
		if err := s.SavePosition(ctx, pos); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := s.Positions(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 position, got %d", len(got))
		}
		if got["aa"] != pos {
			t.Errorf("expected %+v, got %+v", pos, got["aa"])
		}
	})

	t.Run("upsert replaces coordinates", func(t *testing.T) {
		s := newTestStore(t)

		first := domain.NodePosition{IEEE: "aa", X: 1, Y: 2, Space: domain.SpaceFree}
		second := domain.NodePosition{IEEE: "aa", X: 30, Y: 40, Space: domain.SpaceImage}
		if err := s.SavePosition(ctx, first); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := s.SavePosition(ctx, second); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := s.Positions(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 position after upsert, got %d", len(got))
		}
		if got["aa"] != second {
			t.Errorf("expected %+v, got %+v", second, got["aa"])
		}
	})

	t.Run("missing identifier is rejected", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.SavePosition(ctx, domain.NodePosition{X: 1, Y: 2}); err == nil {
			t.Error("expected error for empty identifier")
		}
	})

	t.Run("empty space defaults to free", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.SavePosition(ctx, domain.NodePosition{IEEE: "aa", X: 1, Y: 2}); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.Positions(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got["aa"].Space != domain.SpaceFree {
			t.Errorf("expected space %q, got %q", domain.SpaceFree, got["aa"].Space)
		}
	})

	t.Run("batch save is transactional", func(t *testing.T) {
		s := newTestStore(t)

		batch := []domain.NodePosition{
			{IEEE: "aa", X: 1, Y: 1, Space: domain.SpaceFree},
			{IEEE: "bb", X: 2, Y: 2, Space: domain.SpaceFree},
			{IEEE: "cc", X: 3, Y: 3, Space: domain.SpaceImage},
		}
		if err := s.SavePositions(ctx, batch); err != nil {
			t.Fatalf("batch save: %v", err)
		}

		got, err := s.Positions(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 positions, got %d", len(got))
		}
	})

	t.Run("reset clears only the requested space", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.SavePositions(ctx, []domain.NodePosition{
			{IEEE: "aa", X: 1, Y: 1, Space: domain.SpaceFree},
			{IEEE: "bb", X: 2, Y: 2, Space: domain.SpaceImage},
		}); err != nil {
			t.Fatalf("batch save: %v", err)
		}

		if err := s.ResetPositions(ctx, domain.SpaceFree); err != nil {
			t.Fatalf("reset: %v", err)
		}

		got, err := s.Positions(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 surviving position, got %d", len(got))
		}
		if _, ok := got["bb"]; !ok {
			t.Error("expected image-space position to survive a free-space reset")
		}
	})
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()

	t.Run("no snapshot yet returns nil without error", func(t *testing.T) {
		s := newTestStore(t)

		g, err := s.LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g != nil {
			t.Errorf("expected nil graph, got %+v", g)
		}
	})

	t.Run("round trip preserves the graph", func(t *testing.T) {
		s := newTestStore(t)

		g := domain.NewGraph()
		g.FetchedAt = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		g.CollectionID = "cycle-1"
		g.Nodes = append(g.Nodes, domain.GraphNode{
			Node: domain.Node{IEEE: "00", NWK: 0, Role: domain.RoleRoot, Name: "hub"},
		})
		g.Edges = append(g.Edges, domain.NewEdge("aa", "00", domain.EdgeKindRoute, domain.LQIOf(120)))

		if err := s.SaveSnapshot(ctx, g); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := s.LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got == nil {
			t.Fatal("expected a snapshot")
		}
		if !got.FetchedAt.Equal(g.FetchedAt) {
			t.Errorf("expected fetched at %s, got %s", g.FetchedAt, got.FetchedAt)
		}
		if got.CollectionID != "cycle-1" {
			t.Errorf("expected collection ID cycle-1, got %s", got.CollectionID)
		}
		if len(got.Nodes) != 1 || got.Nodes[0].IEEE != "00" {
			t.Errorf("expected root node, got %+v", got.Nodes)
		}
		if len(got.Edges) != 1 || got.Edges[0].LQI == nil || *got.Edges[0].LQI != 120 {
			t.Errorf("expected route edge with LQI 120, got %+v", got.Edges)
		}
	})

	t.Run("save replaces the previous snapshot", func(t *testing.T) {
		s := newTestStore(t)

		first := domain.NewGraph()
		first.CollectionID = "cycle-1"
		second := domain.NewGraph()
		second.CollectionID = "cycle-2"

		if err := s.SaveSnapshot(ctx, first); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := s.SaveSnapshot(ctx, second); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := s.LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.CollectionID != "cycle-2" {
			t.Errorf("expected latest snapshot, got %s", got.CollectionID)
		}
	})
}
