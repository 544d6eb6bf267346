package topology

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ohowland/fuchur_core/internal/pkg/element"
)

// Graph is an adjacency list over bus names.
type Graph struct {
	adjacencyList map[string][]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{adjacencyList: make(map[string][]string)}
}

// AddNode adds a bus.
func (g *Graph) AddNode(n string) error {
	if _, exists := g.adjacencyList[n]; exists {
		return fmt.Errorf("node %s already exists in graph", n)
	}
	g.adjacencyList[n] = make([]string, 0)
	return nil
}

// AddDirectedEdge connects n1 to n2. Both must be nodes.
func (g *Graph) AddDirectedEdge(n1, n2 string) error {
	edges, exists := g.adjacencyList[n1]
	if !exists {
		return fmt.Errorf("start node %s does not exist in graph", n1)
	}
	if _, exists := g.adjacencyList[n2]; !exists {
		return fmt.Errorf("end node %s does not exist in graph", n2)
	}
	g.adjacencyList[n1] = append(edges, n2)
	return nil
}

// AddEdge connects n1 and n2 in both directions.
func (g *Graph) AddEdge(n1, n2 string) error {
	if err := g.AddDirectedEdge(n1, n2); err != nil {
		return err
	}
	return g.AddDirectedEdge(n2, n1)
}

// Edges returns the neighbours of n.
func (g *Graph) Edges(n string) []string {
	if edges, exists := g.adjacencyList[n]; exists {
		return edges
	}
	return make([]string, 0)
}

// Isolated lists the nodes without neighbours, sorted.
func (g *Graph) Isolated() []string {
	var out []string
	for n, edges := range g.adjacencyList {
		if len(edges) == 0 {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Network builds the graph of the electricity buses and the links between
// them. A link whose endpoint is not an electricity bus is an error.
func Network(buses []element.Bus, links []element.Link) (*Graph, error) {
	g := NewGraph()
	for _, b := range buses {
		if b.Carrier != element.Electricity {
			continue
		}
		if err := g.AddNode(b.Name); err != nil {
			return nil, err
		}
	}
	var errs []error
	for _, l := range links {
		if err := g.AddEdge(l.FromBus, l.ToBus); err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", l.Name, err))
		}
	}
	return g, errors.Join(errs...)
}
