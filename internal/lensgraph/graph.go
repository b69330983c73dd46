// Package lensgraph implements the Lens Graph component (spec.md §4.1): a
// directed graph of schema names whose edges carry a lens and its reverse,
// supplying shortest-path lens composition and each node's derived
// JSON-Schema.
package lensgraph

import (
	"github.com/orionz/cambriamerge/internal/jsonschema"
	"github.com/orionz/cambriamerge/internal/lens"
	"github.com/orionz/cambriamerge/internal/lenserr"
)

// Mu is the special empty initial schema name, root of every lens graph.
const Mu = "mu"

type edge struct {
	to   string
	lens lens.Source
}

// Graph is a lens graph rooted at Mu. The zero value is not usable; use
// New.
type Graph struct {
	nodes map[string]bool
	edges map[string][]edge // from -> outgoing edges, in registration order
}

// New returns a graph containing only the Mu node.
func New() *Graph {
	g := &Graph{
		nodes: map[string]bool{Mu: true},
		edges: map[string][]edge{},
	}
	return g
}

// Register adds a forward edge from -> to carrying l, plus the
// structurally reversed edge to -> from carrying l.Reverse(). It fails if
// from is unknown or to already exists (spec.md §3: "Edge insertion...
// is forbidden if [to] already exists").
func (g *Graph) Register(from, to string, l lens.Source) error {
	if !g.nodes[from] {
		return &lenserr.LensRegistrationError{From: from, To: to, Reason: "unknown source schema " + from}
	}
	if g.nodes[to] {
		return &lenserr.LensRegistrationError{From: from, To: to, Reason: "target schema " + to + " already registered"}
	}
	g.nodes[to] = true
	g.edges[from] = append(g.edges[from], edge{to: to, lens: l})
	g.edges[to] = append(g.edges[to], edge{to: from, lens: l.Reverse()})
	return nil
}

// Has reports whether name is a node in the graph.
func (g *Graph) Has(name string) bool {
	return g.nodes[name]
}

// Compose returns the lens that transforms an operation/patch authored
// under from into to's shape: the concatenation of the edge lenses along
// the shortest (by hop count) path from -> to. Compose(x, x) is the
// identity lens. Ties in hop count are broken by registration order,
// since BFS visits a from-node's edges in the order Register appended
// them, making the result deterministic without an extra distance field.
func (g *Graph) Compose(from, to string) (lens.Source, error) {
	if from == to {
		return lens.Identity(), nil
	}
	if !g.nodes[from] {
		return nil, &lenserr.ConstructionError{Schema: from, Reason: "unknown schema"}
	}
	if !g.nodes[to] {
		return nil, &lenserr.ConstructionError{Schema: to, Reason: "unknown schema"}
	}

	type frame struct {
		node string
		path lens.Source
	}
	visited := map[string]bool{from: true}
	queue := []frame{{node: from, path: lens.Identity()}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.node == to {
			return cur.path, nil
		}
		for _, e := range g.edges[cur.node] {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			next := make(lens.Source, 0, len(cur.path)+len(e.lens))
			next = append(next, cur.path...)
			next = append(next, e.lens...)
			queue = append(queue, frame{node: e.to, path: next})
		}
	}
	return nil, &lenserr.ConstructionError{Schema: to, Reason: "no lens path from " + from}
}

// SchemaAt returns the JSON-Schema associated with name, derived by
// composing Mu -> name and running it against the empty root schema.
func (g *Graph) SchemaAt(name string) (*jsonschema.Schema, error) {
	l, err := g.Compose(Mu, name)
	if err != nil {
		return nil, err
	}
	return l.ApplySchema(jsonschema.NewObject()), nil
}
