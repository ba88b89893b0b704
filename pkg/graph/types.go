package graph

import (
	"fmt"

	"github.com/rmax-ai/actionflow/pkg/workflow"
)

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is the renderer's view of one action.
type Node struct {
	ID       int64    `json:"id" yaml:"id"`
	Label    string   `json:"label" yaml:"label"`
	Position Position `json:"position" yaml:"position"`
	Main     bool     `json:"main" yaml:"main"`
}

// Edge is a directed relation Source -> Target, stored on Source.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source int64  `json:"source" yaml:"source"`
	Target int64  `json:"target" yaml:"target"`
}

// Graph is a projected snapshot. Nodes and Edges drive rendering; Records holds
// the full action for each node id.
type Graph struct {
	Nodes   []Node                    `json:"nodes" yaml:"nodes"`
	Edges   []Edge                    `json:"edges" yaml:"edges"`
	Records map[int64]workflow.Action `json:"records" yaml:"records"`
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:   make([]Node, 0),
		Edges:   make([]Edge, 0),
		Records: make(map[int64]workflow.Action),
	}
}

// EdgeID returns the stable identifier of the edge source -> target.
func EdgeID(source, target int64) string {
	return fmt.Sprintf("e%d-%d", source, target)
}

// ParseEdgeID is the inverse of EdgeID.
func ParseEdgeID(id string) (source, target int64, err error) {
	if _, err := fmt.Sscanf(id, "e%d-%d", &source, &target); err != nil {
		return 0, 0, fmt.Errorf("invalid edge id %q: %w", id, err)
	}
	if EdgeID(source, target) != id {
		return 0, 0, fmt.Errorf("invalid edge id %q", id)
	}
	return source, target, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id int64) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Record returns the full action behind node id.
func (g *Graph) Record(id int64) (workflow.Action, bool) {
	a, ok := g.Records[id]
	if !ok {
		return workflow.Action{}, false
	}
	return a.Clone(), true
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// HasEdge reports whether source -> target is present.
func (g *Graph) HasEdge(source, target int64) bool {
	_, ok := g.Edge(EdgeID(source, target))
	return ok
}

// WithEdge returns a copy of g with source -> target added. Adding an edge that
// already exists returns an unchanged copy.
func (g *Graph) WithEdge(source, target int64) *Graph {
	out := g.Clone()
	if out.HasEdge(source, target) {
		return out
	}
	out.Edges = append(out.Edges, Edge{ID: EdgeID(source, target), Source: source, Target: target})
	if rec, ok := out.Records[source]; ok {
		rec.RelatedIDs = append(rec.RelatedIDs, target)
		out.Records[source] = rec
	}
	return out
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes:   append(make([]Node, 0, len(g.Nodes)), g.Nodes...),
		Edges:   append(make([]Edge, 0, len(g.Edges)), g.Edges...),
		Records: make(map[int64]workflow.Action, len(g.Records)),
	}
	for id, rec := range g.Records {
		out.Records[id] = rec.Clone()
	}
	return out
}
