// Package models provides the graph coloring model for the echocolor application.
// A graph is made of named vertices and edges split into two independently
// colored half-edges (links) that meet at the edge midpoint.
package models

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Stroke widths used for links. Invalid edges are drawn bold.
const (
	NormalWidth = 1.2
	BoldWidth   = 2.4
)

// Point is a position on the drawing surface
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a straight line from Start to End
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Handle identifies an element previously drawn on a Canvas.
// The zero Handle means "not drawn".
type Handle int

// Canvas is the rendering collaborator the model draws into.
// The model never reads anything back from it.
type Canvas interface {
	// DrawVertex draws a vertex marker centered on p
	DrawVertex(p Point) Handle
	// DrawLabel draws text anchored below p
	DrawLabel(p Point, text string) Handle
	// DrawSegment draws a colored line segment
	DrawSegment(s Segment, color string, width float64) Handle
	// RestyleSegment updates color and width of a drawn segment, and its
	// geometry when geom is not nil
	RestyleSegment(h Handle, color string, width float64, geom *Segment)
	// MoveMarker moves a drawn vertex marker or label so it is anchored on p
	MoveMarker(h Handle, p Point)
	// ClearAll removes every element from the canvas
	ClearAll()
}

// Link is one colored half-edge: the segment from a vertex to its edge midpoint
type Link struct {
	segment Segment
	color   int
	bold    bool

	handle  Handle
	canvas  Canvas
	palette *Palette
}

// Vertex is a named point owning the links incident to it
type Vertex struct {
	Name     string
	Position Point

	links []*Link
	edges []*Edge
	graph *Graph

	marker Handle
	label  Handle
}

// Edge joins two vertices with a pair of links sharing a midpoint
type Edge struct {
	V1 *Vertex
	V2 *Vertex
	L1 *Link // the half at V1
	L2 *Link // the half at V2
}

// Graph owns every vertex and edge of a coloring session
type Graph struct {
	ID string

	vertices *linkedhashmap.Map // name -> *Vertex, in creation order
	edges    []*Edge
	locked   bool
	palette  *Palette
	canvas   Canvas
}

// VertexRecord is the payload shape of a vertex
type VertexRecord struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
}

// EdgeRecord is the payload shape of an edge. Colors are palette indices.
type EdgeRecord struct {
	V1 string `json:"v1"`
	V2 string `json:"v2"`
	C1 int    `json:"c1"`
	C2 int    `json:"c2"`
}

// GraphPayload is the exchange format consumed by Load and produced by Serialize
type GraphPayload struct {
	Vertices []VertexRecord `json:"vertices"`
	Edges    []EdgeRecord   `json:"edges"`

	// Unplaced names the vertices whose source gave no coordinates. It is
	// filled by ingest for a layout pass; Load and Serialize ignore it.
	Unplaced []string `json:"-"`
}

// Operation swaps ColorA and ColorB on every link incident to Vertex
type Operation struct {
	Vertex string
	ColorA int
	ColorB int
}
