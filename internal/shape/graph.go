package shape

import (
	"fmt"

	"github.com/roach88/neuraldsl/internal/ir"
)

// Node is one vertex of the layer graph.
type Node struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Params *ir.Map  `json:"params,omitempty"`
	Shape  ir.Shape `json:"shape"`
}

// Link connects two nodes by ID.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// LayerGraph is the node/link form of a model used by graph renderers.
type LayerGraph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Graph builds the layer graph of m. history must come from PropagateModel
// for the same model. The designated output layer, the last Output in
// declaration order, gets the ID "output" wherever it sits.
func Graph(m *ir.Model, history []ir.Shape) (*LayerGraph, error) {
	if len(history) != len(m.Layers) {
		return nil, fmt.Errorf("shape history has %d entries for %d layers", len(history), len(m.Layers))
	}

	g := &LayerGraph{
		Nodes: make([]Node, 0, len(m.Layers)+1),
		Links: make([]Link, 0, len(m.Layers)),
	}
	g.Nodes = append(g.Nodes, Node{ID: "input", Type: "Input", Shape: m.InputShape})

	out := -1
	for i, l := range m.Layers {
		if l.Kind == "Output" {
			out = i
		}
	}

	prev := "input"
	for i, l := range m.Layers {
		id := fmt.Sprintf("layer%d", i+1)
		if i == out {
			id = "output"
		}
		g.Nodes = append(g.Nodes, Node{ID: id, Type: l.Kind, Params: l.Params, Shape: history[i]})
		g.Links = append(g.Links, Link{Source: prev, Target: id})
		prev = id
	}
	return g, nil
}
