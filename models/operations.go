package models

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewGraph creates an empty graph using the default palette
func NewGraph() *Graph {
	return NewGraphWithPalette(DefaultPalette())
}

// NewGraphWithPalette creates an empty graph that displays colors through palette
func NewGraphWithPalette(palette *Palette) *Graph {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Graph{
		ID:       uuid.New().String(),
		vertices: linkedhashmap.New(),
		palette:  palette,
	}
}

// Palette returns the palette owned by the graph
func (g *Graph) Palette() *Palette {
	return g.palette
}

// CreateVertex returns the vertex called name, creating it at p if it does
// not exist yet. The first position given for a name wins.
func (g *Graph) CreateVertex(p Point, name string) *Vertex {
	if v, ok := g.Vertex(name); ok {
		return v
	}
	v := &Vertex{Name: name, Position: p, graph: g}
	g.vertices.Put(name, v)
	return v
}

// CreateEdge joins v1 and v2 with a new edge whose halves are colored c1 at
// v1 and c2 at v2, and attaches the edge to both vertices
func (g *Graph) CreateEdge(v1, v2 *Vertex, c1, c2 int) *Edge {
	m := midpoint(v1.Position, v2.Position)
	e := &Edge{
		V1: v1,
		V2: v2,
		L1: newLink(Segment{Start: v1.Position, End: m}, c1),
		L2: newLink(Segment{Start: v2.Position, End: m}, c2),
	}
	g.edges = append(g.edges, e)
	v1.attach(e, e.L1)
	v2.attach(e, e.L2)
	return e
}

// Load builds vertices and edges from a payload and redraws the graph.
// Vertex records reuse existing vertices by name. If any edge names an
// unknown vertex nothing is created and the graph is left as it was.
func (g *Graph) Load(p GraphPayload) error {
	known := make(map[string]struct{}, g.vertices.Size()+len(p.Vertices))
	for _, name := range g.vertices.Keys() {
		known[name.(string)] = struct{}{}
	}
	for _, vr := range p.Vertices {
		known[vr.Name] = struct{}{}
	}
	for i, er := range p.Edges {
		if _, ok := known[er.V1]; !ok {
			return errors.Wrapf(ErrUnknownVertex, "edge %d: v1 %q", i, er.V1)
		}
		if _, ok := known[er.V2]; !ok {
			return errors.Wrapf(ErrUnknownVertex, "edge %d: v2 %q", i, er.V2)
		}
	}

	for _, vr := range p.Vertices {
		g.CreateVertex(Point{X: vr.X, Y: vr.Y}, vr.Name)
	}
	for _, er := range p.Edges {
		v1, _ := g.Vertex(er.V1)
		v2, _ := g.Vertex(er.V2)
		g.CreateEdge(v1, v2, er.C1, er.C2)
	}

	g.RedrawAll()
	return nil
}

// Serialize returns the live state of the graph in payload form
func (g *Graph) Serialize() GraphPayload {
	p := GraphPayload{
		Vertices: make([]VertexRecord, 0, g.vertices.Size()),
		Edges:    make([]EdgeRecord, 0, len(g.edges)),
	}
	for _, v := range g.Vertices() {
		p.Vertices = append(p.Vertices, VertexRecord{X: v.Position.X, Y: v.Position.Y, Name: v.Name})
	}
	for _, e := range g.edges {
		p.Edges = append(p.Edges, EdgeRecord{
			V1: e.V1.Name,
			V2: e.V2.Name,
			C1: e.L1.color,
			C2: e.L2.color,
		})
	}
	return p
}

// FilterColor mutes the palette slot index, or resets the palette when index
// is outside the filterable range, then redraws
func (g *Graph) FilterColor(index int) {
	g.palette.Filter(index)
	g.RedrawAll()
}

// SetLock sets the lock state. The lock gates dragging in the input layer.
func (g *Graph) SetLock(locked bool) {
	g.locked = locked
}

// ToggleLock flips the lock state and returns the new value
func (g *Graph) ToggleLock() bool {
	g.locked = !g.locked
	return g.locked
}

// IsLocked reports the lock state
func (g *Graph) IsLocked() bool {
	return g.locked
}

// SwapColorsAt swaps colors a and b on the links of the named vertex.
// Unknown names are ignored.
func (g *Graph) SwapColorsAt(name string, a, b int) {
	if v, ok := g.Vertex(name); ok {
		v.SwapColors(a, b)
	}
}

// MoveVertex moves the named vertex to p and reports whether it exists
func (g *Graph) MoveVertex(name string, p Point) bool {
	v, ok := g.Vertex(name)
	if !ok {
		return false
	}
	v.Move(p)
	return true
}

// Attach binds the graph to a canvas and draws everything on it
func (g *Graph) Attach(c Canvas) {
	g.canvas = c
	g.RedrawAll()
}

// Detach unbinds the graph from its canvas
func (g *Graph) Detach() {
	g.canvas = nil
	for _, e := range g.edges {
		e.L1.unbind()
		e.L2.unbind()
	}
	for _, v := range g.Vertices() {
		v.marker, v.label = 0, 0
	}
}

// Canvas returns the attached canvas, or nil
func (g *Graph) Canvas() Canvas {
	return g.canvas
}

// RedrawAll applies bold emphasis to every invalid edge and, when a canvas
// is attached, clears it and draws every link and vertex again. Emphasis is
// settled before drawing so each link is drawn once at its final width.
func (g *Graph) RedrawAll() {
	if g.canvas != nil {
		g.canvas.ClearAll()
		for _, e := range g.edges {
			e.L1.unbind()
			e.L2.unbind()
		}
	}
	for _, e := range g.edges {
		e.ApplyEmphasis(e.IsInvalid())
	}
	if g.canvas == nil {
		return
	}

	for _, e := range g.edges {
		e.L1.draw(g.canvas, g.palette)
		e.L2.draw(g.canvas, g.palette)
	}
	for _, v := range g.Vertices() {
		v.marker = g.canvas.DrawVertex(v.Position)
		v.label = g.canvas.DrawLabel(v.Position, v.Name)
	}
}

// Paint draws the current state onto c without binding to it
func (g *Graph) Paint(c Canvas) {
	for _, e := range g.edges {
		bold := e.IsInvalid()
		for _, l := range []*Link{e.L1, e.L2} {
			c.DrawSegment(l.segment, g.palette.Display(l.color), widthFor(bold))
		}
	}
	for _, v := range g.Vertices() {
		c.DrawVertex(v.Position)
		c.DrawLabel(v.Position, v.Name)
	}
}

// attach records the edge and its link at this endpoint
func (v *Vertex) attach(e *Edge, l *Link) {
	v.edges = append(v.edges, e)
	v.links = append(v.links, l)
}

// SwapColors recolors the incident links of v: a becomes b and b becomes a.
// The far halves of the edges are not touched.
func (v *Vertex) SwapColors(a, b int) {
	for _, l := range v.links {
		switch l.color {
		case a:
			l.SetColor(b)
		case b:
			l.SetColor(a)
		}
	}
}

// Move repositions v and updates the geometry of every incident edge
func (v *Vertex) Move(p Point) {
	v.Position = p
	for _, e := range v.edges {
		e.RecomputeGeometry(v)
	}
	if c := v.graph.canvas; c != nil {
		if v.marker != 0 {
			c.MoveMarker(v.marker, p)
		}
		if v.label != 0 {
			c.MoveMarker(v.label, p)
		}
	}
}

// RecomputeGeometry refreshes both link segments after moved changed
// position. It does nothing when moved is not an endpoint of e.
func (e *Edge) RecomputeGeometry(moved *Vertex) {
	if moved != e.V1 && moved != e.V2 {
		return
	}
	m := e.Midpoint()
	e.L1.setSegment(Segment{Start: e.V1.Position, End: m})
	e.L2.setSegment(Segment{Start: e.V2.Position, End: m})
}

// IsInvalid reports whether the two halves of e disagree in color
func (e *Edge) IsInvalid() bool {
	return e.L1.color != e.L2.color
}

// ApplyEmphasis sets the bold flag on both halves
func (e *Edge) ApplyEmphasis(bold bool) {
	e.L1.SetEmphasis(bold)
	e.L2.SetEmphasis(bold)
}

// Midpoint returns the point where the two halves meet
func (e *Edge) Midpoint() Point {
	return midpoint(e.V1.Position, e.V2.Position)
}

// LinkAt returns the half of e at v, or nil if v is not an endpoint
func (e *Edge) LinkAt(v *Vertex) *Link {
	switch v {
	case e.V1:
		return e.L1
	case e.V2:
		return e.L2
	}
	return nil
}

// Other returns the endpoint opposite v, or nil if v is not an endpoint
func (e *Edge) Other(v *Vertex) *Vertex {
	switch v {
	case e.V1:
		return e.V2
	case e.V2:
		return e.V1
	}
	return nil
}

func newLink(s Segment, color int) *Link {
	return &Link{segment: s, color: color}
}

// Color returns the palette index of the link
func (l *Link) Color() int {
	return l.color
}

// Bold reports whether the link is emphasized
func (l *Link) Bold() bool {
	return l.bold
}

// Width returns the stroke width implied by the emphasis flag
func (l *Link) Width() float64 {
	return widthFor(l.bold)
}

// Segment returns the link geometry
func (l *Link) Segment() Segment {
	return l.segment
}

// SetColor changes the color and restyles the drawn segment
func (l *Link) SetColor(color int) {
	if l.color == color {
		return
	}
	l.color = color
	l.restyle(nil)
}

// SetEmphasis toggles between the normal and bold stroke
func (l *Link) SetEmphasis(bold bool) {
	if l.bold == bold {
		return
	}
	l.bold = bold
	l.restyle(nil)
}

func (l *Link) setSegment(s Segment) {
	l.segment = s
	l.restyle(&s)
}

func (l *Link) draw(c Canvas, p *Palette) {
	l.canvas = c
	l.palette = p
	l.handle = c.DrawSegment(l.segment, p.Display(l.color), l.Width())
}

func (l *Link) unbind() {
	l.canvas = nil
	l.palette = nil
	l.handle = 0
}

func (l *Link) restyle(geom *Segment) {
	if l.canvas == nil || l.handle == 0 {
		return
	}
	l.canvas.RestyleSegment(l.handle, l.palette.Display(l.color), l.Width(), geom)
}

func widthFor(bold bool) float64 {
	if bold {
		return BoldWidth
	}
	return NormalWidth
}

func midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2.0, Y: (a.Y + b.Y) / 2.0}
}
