package codec

import (
	"fmt"
	"io"
	"time"

	"meshview/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlGraph represents the YAML structure for a topology snapshot
type yamlGraph struct {
	FetchedAt    string     `yaml:"fetched_at,omitempty"`
	CollectionID string     `yaml:"collection_id,omitempty"`
	Nodes        []yamlNode `yaml:"nodes"`
	Edges        []yamlEdge `yaml:"edges"`
}

type yamlNode struct {
	IEEE         string        `yaml:"ieee"`
	NWK          uint16        `yaml:"nwk"`
	Role         string        `yaml:"role"`
	Name         string        `yaml:"name,omitempty"`
	Manufacturer string        `yaml:"manufacturer,omitempty"`
	Model        string        `yaml:"model,omitempty"`
	Entities     []string      `yaml:"entities,omitempty"`
	Position     *yamlPosition `yaml:"position,omitempty"`
}

type yamlPosition struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Space string  `yaml:"space"`
}

type yamlEdge struct {
	ID       string `yaml:"id"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	Kind     string `yaml:"kind"`
	LQI      *int   `yaml:"lqi,omitempty"`
	Directed bool   `yaml:"directed"`
}

// Export writes the snapshot as YAML
func (c *YAMLCodec) Export(graph *domain.Graph, w io.Writer) error {
	yg := yamlGraph{
		CollectionID: graph.CollectionID,
		Nodes:        make([]yamlNode, 0, len(graph.Nodes)),
		Edges:        make([]yamlEdge, 0, len(graph.Edges)),
	}
	if !graph.FetchedAt.IsZero() {
		yg.FetchedAt = graph.FetchedAt.Format(time.RFC3339)
	}

	for _, node := range graph.Nodes {
		yn := yamlNode{
			IEEE:         node.IEEE,
			NWK:          node.NWK,
			Role:         string(node.Role),
			Name:         node.Name,
			Manufacturer: node.Manufacturer,
			Model:        node.Model,
		}
		for _, e := range node.Entities {
			yn.Entities = append(yn.Entities, e.EntityID)
		}
		if node.Position != nil {
			yn.Position = &yamlPosition{
				X:     node.Position.X,
				Y:     node.Position.Y,
				Space: node.Position.Space,
			}
		}
		yg.Nodes = append(yg.Nodes, yn)
	}

	for _, edge := range graph.Edges {
		yg.Edges = append(yg.Edges, yamlEdge{
			ID:       edge.ID,
			Source:   edge.Source,
			Target:   edge.Target,
			Kind:     string(edge.Kind),
			LQI:      edge.LQI,
			Directed: edge.Directed,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yg); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
