package render

import (
	"math"
	"sync"

	"github.com/TFMV/echocolor/models"
)

// ElementKind tells what a scene element is
type ElementKind int

// Scene element kinds
const (
	KindSegment ElementKind = iota
	KindVertex
	KindLabel
)

// Element is one drawn item of a Scene
type Element struct {
	Kind    ElementKind
	Segment models.Segment // KindSegment
	At      models.Point   // KindVertex and KindLabel
	Text    string         // KindLabel
	Color   string
	Width   float64
}

// Scene is a retained drawing surface. It implements models.Canvas by
// recording elements so any of the encoders can turn them into bytes later.
type Scene struct {
	mu       sync.RWMutex
	next     models.Handle
	order    []models.Handle
	elements map[models.Handle]*Element
}

// NewScene creates an empty scene
func NewScene() *Scene {
	return &Scene{elements: make(map[models.Handle]*Element)}
}

func (s *Scene) add(el *Element) models.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.elements[s.next] = el
	s.order = append(s.order, s.next)
	return s.next
}

// DrawVertex records a vertex marker
func (s *Scene) DrawVertex(p models.Point) models.Handle {
	return s.add(&Element{Kind: KindVertex, At: p})
}

// DrawLabel records a vertex label
func (s *Scene) DrawLabel(p models.Point, text string) models.Handle {
	return s.add(&Element{Kind: KindLabel, At: p, Text: text})
}

// DrawSegment records a colored segment
func (s *Scene) DrawSegment(seg models.Segment, color string, width float64) models.Handle {
	return s.add(&Element{Kind: KindSegment, Segment: seg, Color: color, Width: width})
}

// RestyleSegment updates a recorded segment. Unknown handles are ignored.
func (s *Scene) RestyleSegment(h models.Handle, color string, width float64, geom *models.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[h]
	if !ok || el.Kind != KindSegment {
		return
	}
	el.Color = color
	el.Width = width
	if geom != nil {
		el.Segment = *geom
	}
}

// MoveMarker re-anchors a recorded vertex or label
func (s *Scene) MoveMarker(h models.Handle, p models.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[h]
	if !ok || el.Kind == KindSegment {
		return
	}
	el.At = p
}

// ClearAll drops every element. Handles are never reused.
func (s *Scene) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.elements = make(map[models.Handle]*Element)
}

// Elements returns copies of the recorded elements in drawing order
func (s *Scene) Elements() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Element, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, *s.elements[h])
	}
	return out
}

// Len returns the number of recorded elements
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Bounds returns the smallest box holding every element. ok is false for an
// empty scene.
func (s *Scene) Bounds() (lo, hi models.Point, ok bool) {
	for _, el := range s.Elements() {
		pts := []models.Point{el.At}
		if el.Kind == KindSegment {
			pts = []models.Point{el.Segment.Start, el.Segment.End}
		}
		for _, p := range pts {
			if !ok {
				lo, hi, ok = p, p, true
				continue
			}
			lo.X = math.Min(lo.X, p.X)
			lo.Y = math.Min(lo.Y, p.Y)
			hi.X = math.Max(hi.X, p.X)
			hi.Y = math.Max(hi.Y, p.Y)
		}
	}
	return lo, hi, ok
}
