package navgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot is the serialised form of a graph.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// TakeSnapshot copies the nodes and edges of g.
func TakeSnapshot(g *Graph) Snapshot {
	snap := Snapshot{
		Nodes: g.Nodes(),
		Edges: make([]Edge, 0, g.EdgeCount()),
	}
	for id := range g.nodes {
		snap.Edges = append(snap.Edges, g.edges[id]...)
	}
	return snap
}

// Build replays a snapshot into a new graph. Node ids must be dense and in
// order; every edge is validated exactly as AddConnection would.
func (s Snapshot) Build(opts ...Option) (*Graph, error) {
	graph := New(opts...)
	for i, node := range s.Nodes {
		if int(node.ID) != i {
			return nil, fmt.Errorf("node at index %d has id %d: ids must be dense and ordered", i, node.ID)
		}
		if _, err := graph.AddNode(node.Position, node.Walkable); err != nil {
			return nil, fmt.Errorf("node %d: %w", node.ID, err)
		}
	}
	for _, edge := range s.Edges {
		if err := graph.AddConnection(edge.From, edge.To, edge.Cost); err != nil {
			return nil, err
		}
	}
	return graph, nil
}

// Save serializes and saves the graph to a JSON or YAML file, chosen by extension
func Save(g *Graph, filename string) error {
	snap := TakeSnapshot(g)

	var (
		data []byte
		err  error
	)
	switch format(filename) {
	case "json":
		data, err = json.MarshalIndent(snap, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(snap)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Load deserializes a graph from a JSON or YAML file. The graph is not frozen.
func Load(filename string, opts ...Option) (*Graph, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var snap Snapshot
	switch format(filename) {
	case "json":
		err = json.Unmarshal(data, &snap)
	case "yaml":
		err = yaml.Unmarshal(data, &snap)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}

	return snap.Build(opts...)
}

func format(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}
