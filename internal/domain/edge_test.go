package domain

import "testing"

func TestNewEdge(t *testing.T) {
	t.Run("upstream edges are directed", func(t *testing.T) {
		e := NewEdge("aa", "bb", EdgeKindRoute, LQIOf(120))
		if !e.Directed {
			t.Error("expected a directed edge")
		}
		if e.Source != "aa" || e.Target != "bb" {
			t.Errorf("expected aa -> bb, got %s -> %s", e.Source, e.Target)
		}
		if e.ID == "" {
			t.Error("expected a generated ID")
		}
	})

	t.Run("identical inputs generate identical IDs", func(t *testing.T) {
		a := NewEdge("aa", "bb", EdgeKindRoute, nil)
		b := NewEdge("aa", "bb", EdgeKindRoute, LQIOf(50))
		if a.ID != b.ID {
			t.Error("expected the ID to depend on endpoints and kind only")
		}
	})

	t.Run("kind distinguishes IDs", func(t *testing.T) {
		a := NewEdge("aa", "bb", EdgeKindRoute, nil)
		b := NewEdge("aa", "bb", EdgeKindParent, nil)
		if a.ID == b.ID {
			t.Error("expected different IDs for different kinds")
		}
	})

	t.Run("fallback carries no LQI", func(t *testing.T) {
		e := NewEdge("aa", "00", EdgeKindFallback, nil)
		if e.LQI != nil {
			t.Errorf("expected nil LQI, got %v", e.LQI)
		}
	})
}

func TestNewSiblingEdge(t *testing.T) {
	t.Run("endpoints are normalized", func(t *testing.T) {
		a := NewSiblingEdge("cc", "bb", LQIOf(80))
		b := NewSiblingEdge("bb", "cc", LQIOf(80))
		if a.ID != b.ID {
			t.Error("expected the same edge regardless of argument order")
		}
		if a.Source != "bb" || a.Target != "cc" {
			t.Errorf("expected normalized bb/cc, got %s/%s", a.Source, a.Target)
		}
	})

	t.Run("sibling edges are undirected and not upstream", func(t *testing.T) {
		e := NewSiblingEdge("bb", "cc", nil)
		if e.Directed {
			t.Error("expected an undirected edge")
		}
		if e.IsUpstream() {
			t.Error("sibling must not count as upstream")
		}
	})
}
