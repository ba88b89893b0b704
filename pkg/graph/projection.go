package graph

import "github.com/rmax-ai/actionflow/pkg/workflow"

// Grid layout of projected nodes.
const (
	originX   = 100
	originY   = 100
	columnGap = 350
	rowGap    = 200
	columns   = 3
)

// Project converts a record list into a graph. It is pure: the same input
// always yields the same nodes, positions and edges.
//
// The i-th record is placed on a three-column grid and the first record is the
// main node. Each record R emits R -> T for every T in its relation set, once.
// Targets outside the record set are not rendered.
func Project(actions []workflow.Action) *Graph {
	g := NewGraph()
	for i, a := range actions {
		g.Nodes = append(g.Nodes, Node{
			ID:    a.ID,
			Label: a.Name,
			Position: Position{
				X: float64(originX + (i%columns)*columnGap),
				Y: float64(originY + (i/columns)*rowGap),
			},
			Main: i == 0,
		})
		g.Records[a.ID] = a.Clone()
	}

	seen := make(map[string]struct{})
	for _, a := range actions {
		for _, target := range a.RelatedIDs {
			if _, ok := g.Records[target]; !ok {
				continue
			}
			id := EdgeID(a.ID, target)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			g.Edges = append(g.Edges, Edge{ID: id, Source: a.ID, Target: target})
		}
	}
	return g
}
