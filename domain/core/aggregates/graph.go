package aggregates

import (
	"errors"
	"sort"

	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
)

// Graph is an in-memory working view of nodes and edges, indexed for
// traversal. The engines (traversal, pathfinding, metrics) load the
// records they need from the registries and operate on this structure;
// mutations never flow through it.
type Graph struct {
	nodes map[valueobjects.NodeID]*entities.Node
	edges map[valueobjects.EdgeID]*entities.Edge

	// adjacency holds one link per edge endpoint, so neighbor expansion
	// is O(degree) instead of a scan over every edge.
	adjacency map[valueobjects.NodeID][]neighborLink
}

// neighborLink is one traversable hop out of a node.
type neighborLink struct {
	edge     *entities.Edge
	neighbor valueobjects.NodeID
	outbound bool // the edge's source is the indexed node
}

// Neighbor pairs a reachable node with the edge that reaches it.
type Neighbor struct {
	Node *entities.Node
	Edge *entities.Edge
}

// NewGraph creates an empty graph view
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[valueobjects.NodeID]*entities.Node),
		edges:     make(map[valueobjects.EdgeID]*entities.Edge),
		adjacency: make(map[valueobjects.NodeID][]neighborLink),
	}
}

// BuildGraph indexes the given records. Inactive nodes, inactive edges
// and edges touching a node outside the set are skipped, so the view
// only ever contains traversable records.
func BuildGraph(nodes []*entities.Node, edges []*entities.Edge) *Graph {
	g := NewGraph()

	for _, node := range nodes {
		if node == nil || !node.IsActive() {
			continue
		}
		g.nodes[node.ID()] = node
	}

	for _, edge := range edges {
		if edge == nil || !edge.IsActive() {
			continue
		}
		// Orphaned edges cannot be traversed
		if _, ok := g.nodes[edge.SourceID()]; !ok {
			continue
		}
		if _, ok := g.nodes[edge.TargetID()]; !ok {
			continue
		}
		g.indexEdge(edge)
	}

	return g
}

// AddNode inserts an active node into the view
func (g *Graph) AddNode(node *entities.Node) error {
	if node == nil {
		return errors.New("node cannot be nil")
	}
	if !node.IsActive() {
		return errors.New("inactive nodes are not traversable")
	}
	g.nodes[node.ID()] = node
	return nil
}

// AddEdge inserts an active edge whose endpoints are already in the view
func (g *Graph) AddEdge(edge *entities.Edge) error {
	if edge == nil {
		return errors.New("edge cannot be nil")
	}
	if !edge.IsActive() {
		return errors.New("inactive edges are not traversable")
	}
	if _, ok := g.nodes[edge.SourceID()]; !ok {
		return errors.New("edge references a source node outside the view")
	}
	if _, ok := g.nodes[edge.TargetID()]; !ok {
		return errors.New("edge references a target node outside the view")
	}
	g.indexEdge(edge)
	return nil
}

func (g *Graph) indexEdge(edge *entities.Edge) {
	if _, exists := g.edges[edge.ID()]; exists {
		return
	}
	g.edges[edge.ID()] = edge

	source, target := edge.SourceID(), edge.TargetID()
	g.adjacency[source] = append(g.adjacency[source], neighborLink{
		edge:     edge,
		neighbor: target,
		outbound: true,
	})
	if !source.Equals(target) {
		g.adjacency[target] = append(g.adjacency[target], neighborLink{
			edge:     edge,
			neighbor: source,
			outbound: false,
		})
	}
}

// Node returns the node with the given id, if present
func (g *Graph) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// HasNode reports whether the node is in the view
func (g *Graph) HasNode(id valueobjects.NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Edge returns the edge with the given id, if present
func (g *Graph) Edge(id valueobjects.EdgeID) (*entities.Edge, bool) {
	edge, ok := g.edges[id]
	return edge, ok
}

// NodeCount returns the number of indexed nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of indexed edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Nodes returns all indexed nodes
func (g *Graph) Nodes() []*entities.Node {
	nodes := make([]*entities.Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// Edges returns all indexed edges
func (g *Graph) Edges() []*entities.Edge {
	edges := make([]*entities.Edge, 0, len(g.edges))
	for _, edge := range g.edges {
		edges = append(edges, edge)
	}
	return edges
}

// NodeIDs returns all node ids in lexicographic order. Engines that
// need deterministic iteration start from this.
func (g *Graph) NodeIDs() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// Neighbors expands one hop from the node, honoring edge direction and
// an optional edge-type filter. Bidirectional edges are traversable
// either way regardless of which endpoint is the source.
func (g *Graph) Neighbors(id valueobjects.NodeID, direction valueobjects.Direction, edgeTypes []valueobjects.EdgeType) []Neighbor {
	links := g.adjacency[id]
	if len(links) == 0 {
		return nil
	}

	neighbors := make([]Neighbor, 0, len(links))
	for _, link := range links {
		if !directionAllows(direction, link.outbound, link.edge.IsBidirectional()) {
			continue
		}
		if !matchesEdgeTypes(link.edge.Type(), edgeTypes) {
			continue
		}
		node, ok := g.nodes[link.neighbor]
		if !ok {
			continue
		}
		neighbors = append(neighbors, Neighbor{Node: node, Edge: link.edge})
	}

	return neighbors
}

// Degree returns the number of incident edges honoring direction
func (g *Graph) Degree(id valueobjects.NodeID, direction valueobjects.Direction) int {
	count := 0
	for _, link := range g.adjacency[id] {
		if directionAllows(direction, link.outbound, link.edge.IsBidirectional()) {
			count++
		}
	}
	return count
}

// WeightedDegree sums the weights of all incident edges, regardless of
// direction. Self-loops count once.
func (g *Graph) WeightedDegree(id valueobjects.NodeID) float64 {
	total := 0.0
	for _, link := range g.adjacency[id] {
		total += link.edge.Weight().Value()
	}
	return total
}

// MaxWeightedDegree returns the largest weighted degree in the view,
// used to normalize centrality scores into [0,1].
func (g *Graph) MaxWeightedDegree() float64 {
	max := 0.0
	for id := range g.nodes {
		if d := g.WeightedDegree(id); d > max {
			max = d
		}
	}
	return max
}

// ConnectedComponents partitions the view into components, treating
// every edge as undirected. Components and their members are returned
// in lexicographic node-id order, so repeated runs over the same data
// produce identical output.
func (g *Graph) ConnectedComponents() [][]valueobjects.NodeID {
	visited := make(map[valueobjects.NodeID]bool, len(g.nodes))
	var components [][]valueobjects.NodeID

	for _, start := range g.NodeIDs() {
		if visited[start] {
			continue
		}

		component := []valueobjects.NodeID{}
		queue := []valueobjects.NodeID{start}
		visited[start] = true

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			component = append(component, current)

			for _, link := range g.adjacency[current] {
				if !visited[link.neighbor] {
					visited[link.neighbor] = true
					queue = append(queue, link.neighbor)
				}
			}
		}

		sort.Slice(component, func(i, j int) bool {
			return component[i].String() < component[j].String()
		})
		components = append(components, component)
	}

	return components
}

// Validate ensures view invariants: every indexed edge must reference
// nodes that are present.
func (g *Graph) Validate() error {
	for _, edge := range g.edges {
		if _, ok := g.nodes[edge.SourceID()]; !ok {
			return errors.New("edge references non-existent source node")
		}
		if _, ok := g.nodes[edge.TargetID()]; !ok {
			return errors.New("edge references non-existent target node")
		}
	}
	return nil
}

func directionAllows(direction valueobjects.Direction, outbound, bidirectional bool) bool {
	if bidirectional {
		return true
	}
	switch direction {
	case valueobjects.DirectionOutgoing:
		return outbound
	case valueobjects.DirectionIncoming:
		return !outbound
	default:
		return true
	}
}

func matchesEdgeTypes(edgeType valueobjects.EdgeType, filter []valueobjects.EdgeType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range filter {
		if t == edgeType {
			return true
		}
	}
	return false
}
