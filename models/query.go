package models

// EdgeFilter is a function type used to filter edges in queries
type EdgeFilter func(edge *Edge) bool

// Vertex returns the vertex called name
func (g *Graph) Vertex(name string) (*Vertex, bool) {
	v, ok := g.vertices.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Vertex), true
}

// Vertices returns all vertices in creation order
func (g *Graph) Vertices() []*Vertex {
	result := make([]*Vertex, 0, g.vertices.Size())
	it := g.vertices.Iterator()
	for it.Next() {
		result = append(result, it.Value().(*Vertex))
	}
	return result
}

// Edges returns all edges in load order
func (g *Graph) Edges() []*Edge {
	return append([]*Edge(nil), g.edges...)
}

// VertexCount returns the number of vertices
func (g *Graph) VertexCount() int {
	return g.vertices.Size()
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// IncidentEdges returns the edges attached to the named vertex, in attachment order
func (g *Graph) IncidentEdges(name string) []*Edge {
	v, ok := g.Vertex(name)
	if !ok {
		return nil
	}
	return v.Edges()
}

// Neighbors returns the distinct vertices adjacent to the named vertex
func (g *Graph) Neighbors(name string) []*Vertex {
	v, ok := g.Vertex(name)
	if !ok {
		return nil
	}
	seen := make(map[*Vertex]bool)
	var result []*Vertex
	for _, e := range v.edges {
		o := e.Other(v)
		if !seen[o] {
			seen[o] = true
			result = append(result, o)
		}
	}
	return result
}

// FilterEdges returns edges that match the provided filter function
func (g *Graph) FilterEdges(filter EdgeFilter) []*Edge {
	var result []*Edge
	for _, e := range g.edges {
		if filter(e) {
			result = append(result, e)
		}
	}
	return result
}

// InvalidEdges returns the edges whose halves disagree in color
func (g *Graph) InvalidEdges() []*Edge {
	return g.FilterEdges(func(e *Edge) bool { return e.IsInvalid() })
}

// IsProperlyColored reports whether no edge is invalid
func (g *Graph) IsProperlyColored() bool {
	for _, e := range g.edges {
		if e.IsInvalid() {
			return false
		}
	}
	return true
}

// EdgesWithColor returns edges with at least one half colored c
func (g *Graph) EdgesWithColor(c int) []*Edge {
	return g.FilterEdges(func(e *Edge) bool { return e.L1.color == c || e.L2.color == c })
}

// ColorUsage counts links per color index
func (g *Graph) ColorUsage() map[int]int {
	usage := make(map[int]int)
	for _, e := range g.edges {
		usage[e.L1.color]++
		usage[e.L2.color]++
	}
	return usage
}

// Links returns the links incident to v in attachment order
func (v *Vertex) Links() []*Link {
	return append([]*Link(nil), v.links...)
}

// Edges returns the edges incident to v in attachment order
func (v *Vertex) Edges() []*Edge {
	return append([]*Edge(nil), v.edges...)
}

// Degree returns the number of incident links
func (v *Vertex) Degree() int {
	return len(v.links)
}
