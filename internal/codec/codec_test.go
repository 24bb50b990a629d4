package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"meshview/internal/domain"
)

func exportGraph() *domain.Graph {
	g := domain.NewGraph()
	g.CollectionID = "cycle-1"
	g.Nodes = append(g.Nodes,
		domain.GraphNode{
			Node:     domain.Node{IEEE: "00", Role: domain.RoleRoot, Name: "hub"},
			Position: &domain.NodePosition{IEEE: "00", X: 5, Y: 6, Space: domain.SpaceFree},
		},
		domain.GraphNode{
			Node:     domain.Node{IEEE: "aa", Role: domain.RoleRelay, Name: "plug"},
			Entities: []domain.Entity{{EntityID: "switch.plug"}},
		},
	)
	g.Edges = append(g.Edges, domain.NewEdge("aa", "00", domain.EdgeKindRoute, domain.LQIOf(120)))
	return g
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONCodec().Export(exportGraph(), &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	var decoded domain.Graph
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if len(decoded.Nodes) != 2 || len(decoded.Edges) != 1 {
		t.Errorf("expected 2 nodes and 1 edge, got %d/%d", len(decoded.Nodes), len(decoded.Edges))
	}
	if decoded.Nodes[0].Position == nil {
		t.Error("expected the merged position in the export")
	}
}

func TestYAMLExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLCodec().Export(exportGraph(), &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	var decoded struct {
		CollectionID string `yaml:"collection_id"`
		Nodes        []struct {
			IEEE     string   `yaml:"ieee"`
			Role     string   `yaml:"role"`
			Entities []string `yaml:"entities"`
		} `yaml:"nodes"`
		Edges []struct {
			Kind string `yaml:"kind"`
			LQI  *int   `yaml:"lqi"`
		} `yaml:"edges"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("exported YAML does not parse: %v", err)
	}
	if decoded.CollectionID != "cycle-1" {
		t.Errorf("expected collection ID in export, got %q", decoded.CollectionID)
	}
	if len(decoded.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(decoded.Nodes))
	}
	if decoded.Nodes[1].Entities[0] != "switch.plug" {
		t.Errorf("expected entity identifiers in export, got %v", decoded.Nodes[1].Entities)
	}
	if len(decoded.Edges) != 1 || decoded.Edges[0].LQI == nil || *decoded.Edges[0].LQI != 120 {
		t.Errorf("unexpected edges %v", decoded.Edges)
	}
	if strings.Contains(buf.String(), "fetched_at") {
		t.Error("zero fetch time must be omitted")
	}
}

func TestFormatNames(t *testing.T) {
	if NewJSONCodec().Format() != "json" || NewYAMLCodec().Format() != "yaml" {
		t.Error("unexpected format identifiers")
	}
}
