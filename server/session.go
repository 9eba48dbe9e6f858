package server

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/TFMV/echocolor/models"
	"github.com/TFMV/echocolor/playback"
	"github.com/TFMV/echocolor/render"
	"github.com/TFMV/echocolor/store"
)

// Session is one loaded graph with its playback engine and live scene.
// Everything but ID and Created is only touched on the server loop.
type Session struct {
	ID      string
	Created time.Time
	Graph   *models.Graph
	Engine  *playback.Engine
	Scene   *render.Scene
}

// SessionStatus is the JSON summary of a session
type SessionStatus struct {
	ID           string         `json:"id"`
	State        playback.State `json:"state"`
	Cursor       int            `json:"cursor"`
	Total        int            `json:"total"`
	Progress     *float64       `json:"progress,omitempty"`
	Locked       bool           `json:"locked"`
	Vertices     int            `json:"vertices"`
	Edges        int            `json:"edges"`
	InvalidEdges int            `json:"invalid_edges"`
	Palette      []string       `json:"palette"`
	Filterable   int            `json:"filterable"`  // palette slots [0, n) can be muted
	ColorUsage   map[int]int    `json:"color_usage"` // links per color index
	Created      time.Time      `json:"created"`
}

// EdgeView is the JSON form of an edge with its validity
type EdgeView struct {
	V1      string `json:"v1"`
	V2      string `json:"v2"`
	C1      int    `json:"c1"`
	C2      int    `json:"c2"`
	Invalid bool   `json:"invalid"`
}

// VertexView describes one vertex and what it touches
type VertexView struct {
	Name      string     `json:"name"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Degree    int        `json:"degree"`
	Neighbors []string   `json:"neighbors"`
	Edges     []EdgeView `json:"edges"`
}

func edgeViews(edges []*models.Edge) []EdgeView {
	views := make([]EdgeView, 0, len(edges))
	for _, e := range edges {
		views = append(views, EdgeView{
			V1:      e.V1.Name,
			V2:      e.V2.Name,
			C1:      e.L1.Color(),
			C2:      e.L2.Color(),
			Invalid: e.IsInvalid(),
		})
	}
	return views
}

// newSession binds graph to a fresh scene and engine
func newSession(id string, graph *models.Graph, sched playback.Scheduler, delay time.Duration, debug bool) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	sess := &Session{
		ID:      id,
		Created: time.Now(),
		Graph:   graph,
		Scene:   render.NewScene(),
	}
	graph.Attach(sess.Scene)

	sess.Engine = playback.New(graph, sched, playback.WithDelay(delay))
	sess.Engine.AddStateListener(func(prev, next playback.State) {
		log.Printf("session %s: %s -> %s", id, prev, next)
	})
	if debug {
		sess.Engine.AddProgressListener(func(op models.Operation, cursor, total int) {
			log.Printf("session %s: step %d/%d swap %d<->%d at %q", id, cursor, total, op.ColorA, op.ColorB, op.Vertex)
		})
	}
	return sess
}

// Status summarizes the session
func (s *Session) Status() SessionStatus {
	st := SessionStatus{
		ID:           s.ID,
		State:        s.Engine.State(),
		Cursor:       s.Engine.Cursor(),
		Total:        s.Engine.Total(),
		Locked:       s.Graph.IsLocked(),
		Vertices:     s.Graph.VertexCount(),
		Edges:        s.Graph.EdgeCount(),
		InvalidEdges: len(s.Graph.InvalidEdges()),
		Palette:      s.Graph.Palette().Colors(),
		Filterable:   s.Graph.Palette().Muteable(),
		ColorUsage:   s.Graph.ColorUsage(),
		Created:      s.Created,
	}
	if p, err := s.Engine.Progress(); err == nil {
		st.Progress = &p
	}
	return st
}

// Vertex describes the named vertex with its neighbours and incident edges
func (s *Session) Vertex(name string) (VertexView, bool) {
	v, ok := s.Graph.Vertex(name)
	if !ok {
		return VertexView{}, false
	}
	view := VertexView{
		Name:      v.Name,
		X:         v.Position.X,
		Y:         v.Position.Y,
		Degree:    v.Degree(),
		Neighbors: []string{},
		Edges:     edgeViews(s.Graph.IncidentEdges(name)),
	}
	for _, n := range s.Graph.Neighbors(name) {
		view.Neighbors = append(view.Neighbors, n.Name)
	}
	return view, true
}

// Snapshot captures the graph and the operations still to play
func (s *Session) Snapshot() *store.Snapshot {
	return &store.Snapshot{
		ID:         s.ID,
		Graph:      s.Graph.Serialize(),
		Operations: store.Records(s.Engine.Remaining()),
		Locked:     s.Graph.IsLocked(),
		State:      s.Engine.State().String(),
		Cursor:     s.Engine.Cursor(),
		UpdatedAt:  time.Now().UTC(),
	}
}

// close stops playback and unbinds the scene
func (s *Session) close() {
	s.Engine.Stop()
	s.Graph.Detach()
}
