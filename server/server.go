// Package server exposes graph sessions over HTTP: upload a graph, load an
// operation queue, then drive playback, locking, filtering and dragging
// while rendering the live scene.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/TFMV/echocolor/ingest"
	"github.com/TFMV/echocolor/models"
	"github.com/TFMV/echocolor/physics"
	"github.com/TFMV/echocolor/playback"
	"github.com/TFMV/echocolor/render"
	"github.com/TFMV/echocolor/store"
)

// maxBodySize limits uploaded documents
const maxBodySize = 10 << 20

// ErrSessionNotFound is returned for ids with no live session
var ErrSessionNotFound = errors.New("session not found")

// Configuration for the server
type Config struct {
	Port        int
	Delay       time.Duration      // pause between playback ticks
	Layout      string             // default layout for unplaced vertices
	LayoutSteps int                // maximum layout iterations
	Width       float64            // layout and render width
	Height      float64            // layout and render height
	Scheduler   playback.Scheduler // nil means timers on the server loop
	DebugMode   bool
}

// DefaultConfig returns the settings used by the CLI
func DefaultConfig() *Config {
	return &Config{
		Port:        8080,
		Delay:       playback.DefaultDelay,
		Layout:      "force",
		LayoutSteps: 300,
		Width:       600,
		Height:      600,
	}
}

// Server owns the sessions and the loop that serializes every change to them
type Server struct {
	config *Config
	store  store.Store
	loop   *playback.Loop
	sched  playback.Scheduler
	mux    *http.ServeMux

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates a server whose loop runs until ctx is canceled
func New(ctx context.Context, config *Config, st store.Store) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if st == nil {
		st = store.NewMemoryStore()
	}
	s := &Server{
		config:   config,
		store:    st,
		loop:     playback.NewLoop(64),
		mux:      http.NewServeMux(),
		sessions: make(map[string]*Session),
	}
	s.sched = config.Scheduler
	if s.sched == nil {
		s.sched = playback.NewTimerScheduler(s.loop)
	}
	s.loop.Start(ctx)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /api/sessions/{id}/graph", s.handleGraph)
	s.mux.HandleFunc("GET /api/sessions/{id}/vertices/{name}", s.handleVertex)
	s.mux.HandleFunc("GET /api/sessions/{id}/edges", s.handleEdges)
	s.mux.HandleFunc("POST /api/sessions/{id}/operations", s.handleOperations)
	s.mux.HandleFunc("POST /api/sessions/{id}/play", s.handlePlay)
	s.mux.HandleFunc("POST /api/sessions/{id}/stop", s.handleStop)
	s.mux.HandleFunc("POST /api/sessions/{id}/lock", s.handleLock)
	s.mux.HandleFunc("POST /api/sessions/{id}/filter", s.handleFilter)
	s.mux.HandleFunc("POST /api/sessions/{id}/move", s.handleMove)
	s.mux.HandleFunc("GET /api/sessions/{id}/render", s.handleRender)
	s.mux.HandleFunc("POST /api/sessions/{id}/save", s.handleSave)
	s.mux.HandleFunc("GET /api/snapshots", s.handleListSnapshots)
	s.mux.HandleFunc("POST /api/snapshots/{id}/restore", s.handleRestore)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on the configured port until ctx is canceled
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %d...", s.config.Port)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Start launches a server with config and blocks until ctx is canceled
func Start(ctx context.Context, config *Config, st store.Store) error {
	return New(ctx, config, st).ListenAndServe(ctx)
}

// CreateSession loads payload into a new session, placing the vertices
// payload lists as unplaced with the named layout
func (s *Server) CreateSession(payload models.GraphPayload, layoutName string) (*Session, error) {
	graph := models.NewGraph()
	if err := graph.Load(payload); err != nil {
		return nil, err
	}
	if err := s.placeVertices(graph, payload.Unplaced, layoutName); err != nil {
		return nil, err
	}

	sess := newSession("", graph, s.sched, s.config.Delay, s.config.DebugMode)
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	log.Printf("session %s: created with %d vertices and %d edges", sess.ID, graph.VertexCount(), graph.EdgeCount())
	return sess, nil
}

// placeVertices lays out the free vertices; every other position is kept
func (s *Server) placeVertices(graph *models.Graph, free []string, layoutName string) error {
	if layoutName == "" {
		layoutName = s.config.Layout
	}
	layout, err := physics.GetLayoutAlgorithm(layoutName)
	if err != nil {
		return err
	}
	if len(free) > 0 {
		steps := physics.Run(layout, graph, free, s.config.Width, s.config.Height, s.config.LayoutSteps)
		if s.config.DebugMode {
			log.Printf("%s placed %d vertices in %d steps", layout.GetName(), len(free), steps)
		}
	}
	return nil
}

// LoadOperations installs ops on a live session and reports whether the
// session accepted them
func (s *Server) LoadOperations(ctx context.Context, id string, ops []models.Operation) (bool, error) {
	sess, ok := s.session(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	var loaded bool
	if err := s.loop.Do(ctx, func() { loaded = sess.Engine.LoadOperations(ops) }); err != nil {
		return false, err
	}
	return loaded, nil
}

// session looks up a live session
func (s *Server) session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// response is what a handler computes on the loop, written afterwards on
// the request goroutine
type response struct {
	status      int
	value       interface{}
	body        []byte
	contentType string
	errMsg      string
}

func jsonResponse(status int, v interface{}) response {
	return response{status: status, value: v}
}

func errorResponse(status int, msg string) response {
	return response{status: status, errMsg: msg}
}

func (resp response) write(w http.ResponseWriter) {
	switch {
	case resp.errMsg != "":
		http.Error(w, resp.errMsg, resp.status)
	case resp.body != nil:
		w.Header().Set("Content-Type", resp.contentType)
		w.WriteHeader(resp.status)
		w.Write(resp.body)
	default:
		writeJSON(w, resp.status, resp.value)
	}
}

// withSession runs fn on the loop for the session named in the path and
// writes its response
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(sess *Session) response) {
	s.withSessionID(w, r, r.PathValue("id"), fn)
}

func (s *Server) withSessionID(w http.ResponseWriter, r *http.Request, id string, fn func(sess *Session) response) {
	sess, ok := s.session(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	var resp response
	if err := s.loop.Do(r.Context(), func() { resp = fn(sess) }); err != nil {
		http.Error(w, "Session unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	resp.write(w)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
}

// handleIndex serves the viewer page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Created.Before(sessions[j].Created)
	})

	statuses := make([]SessionStatus, 0, len(sessions))
	err := s.loop.Do(r.Context(), func() {
		for _, sess := range sessions {
			statuses = append(statuses, sess.Status())
		}
	})
	if err != nil {
		http.Error(w, "Sessions unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleCreateSession uploads a graph document
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	processor, err := ingest.GetProcessor(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		http.Error(w, "Error reading body: "+err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := processor.ProcessData(data)
	if err != nil {
		http.Error(w, "Error processing graph: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := s.CreateSession(payload, r.URL.Query().Get("layout"))
	if err != nil {
		http.Error(w, "Error loading graph: "+err.Error(), http.StatusBadRequest)
		return
	}

	var status SessionStatus
	if err := s.loop.Do(r.Context(), func() { status = sess.Status() }); err != nil {
		http.Error(w, "Session unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *Session) response {
		return jsonResponse(http.StatusOK, sess.Status())
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err := s.loop.Do(r.Context(), sess.close); err != nil {
		http.Error(w, "Session unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	log.Printf("session %s: deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *Session) response {
		return jsonResponse(http.StatusOK, sess.Graph.Serialize())
	})
}

func (s *Server) handleVertex(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.withSession(w, r, func(sess *Session) response {
		view, ok := sess.Vertex(name)
		if !ok {
			return errorResponse(http.StatusNotFound, "Vertex not found")
		}
		return jsonResponse(http.StatusOK, view)
	})
}

// handleEdges lists edges, narrowed to one color with ?color=n or to the
// invalid ones with ?invalid=true
func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	color := -1
	if raw := query.Get("color"); raw != "" {
		c, err := strconv.Atoi(raw)
		if err != nil || c < 0 {
			http.Error(w, "Invalid color index: "+raw, http.StatusBadRequest)
			return
		}
		color = c
	}
	invalidOnly := false
	if raw := query.Get("invalid"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Invalid flag: "+raw, http.StatusBadRequest)
			return
		}
		invalidOnly = v
	}

	s.withSession(w, r, func(sess *Session) response {
		var edges []*models.Edge
		switch {
		case color >= 0 && invalidOnly:
			edges = sess.Graph.FilterEdges(func(e *models.Edge) bool {
				return e.IsInvalid() && (e.L1.Color() == color || e.L2.Color() == color)
			})
		case color >= 0:
			edges = sess.Graph.EdgesWithColor(color)
		case invalidOnly:
			edges = sess.Graph.InvalidEdges()
		default:
			edges = sess.Graph.Edges()
		}
		return jsonResponse(http.StatusOK, edgeViews(edges))
	})
}

// handleOperations installs the operation queue. A session takes one queue
// only; later uploads are reported as not loaded.
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	processor, err := ingest.GetOperationProcessor(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		http.Error(w, "Error reading body: "+err.Error(), http.StatusBadRequest)
		return
	}
	ops, err := processor.ProcessOperations(data)
	if err != nil {
		http.Error(w, "Error processing operations: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.withSession(w, r, func(sess *Session) response {
		loaded := sess.Engine.LoadOperations(ops)
		return jsonResponse(http.StatusOK, map[string]interface{}{
			"loaded": loaded,
			"status": sess.Status(),
		})
	})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *Session) response {
		changed := sess.Engine.Play()
		return jsonResponse(http.StatusOK, map[string]interface{}{
			"changed": changed,
			"status":  sess.Status(),
		})
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *Session) response {
		changed := sess.Engine.Stop()
		return jsonResponse(http.StatusOK, map[string]interface{}{
			"changed": changed,
			"status":  sess.Status(),
		})
	})
}

// handleLock sets the lock when a value is given and toggles it otherwise
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var explicit *bool
	if raw := r.URL.Query().Get("value"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Invalid lock value: "+raw, http.StatusBadRequest)
			return
		}
		explicit = &v
	}

	s.withSession(w, r, func(sess *Session) response {
		if explicit != nil {
			sess.Graph.SetLock(*explicit)
		} else {
			sess.Graph.ToggleLock()
		}
		return jsonResponse(http.StatusOK, map[string]bool{"locked": sess.Graph.IsLocked()})
	})
}

// handleFilter mutes one palette slot, or resets the palette for an index
// outside the filterable range
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "Invalid filter index", http.StatusBadRequest)
		return
	}
	s.withSession(w, r, func(sess *Session) response {
		sess.Graph.FilterColor(index)
		return jsonResponse(http.StatusOK, map[string]interface{}{
			"palette": sess.Graph.Palette().Colors(),
		})
	})
}

type moveRequest struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// handleMove drags a vertex. Dragging is refused while the graph is locked.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Invalid move request: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.withSession(w, r, func(sess *Session) response {
		if sess.Graph.IsLocked() {
			return errorResponse(http.StatusConflict, "Graph is locked")
		}
		moved := sess.Graph.MoveVertex(req.Name, models.Point{X: req.X, Y: req.Y})
		return jsonResponse(http.StatusOK, map[string]bool{"moved": moved})
	})
}

// handleRender encodes the live scene, or paints the graph for formats
// that do not draw from a scene
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "svg"
	}
	renderer, err := render.GetRenderer(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	options := render.NewDefaultOptions(format)
	options.Width = s.config.Width
	options.Height = s.config.Height
	if r.URL.Query().Get("fit") == "true" {
		options.FitToView = true
	}

	s.withSession(w, r, func(sess *Session) response {
		var output []byte
		var err error
		if enc, ok := renderer.(render.SceneEncoder); ok {
			output, err = enc.Encode(sess.Scene, options)
		} else {
			output, err = renderer.Render(sess.Graph, options)
		}
		if err != nil {
			return errorResponse(http.StatusInternalServerError, "Error generating visualization: "+err.Error())
		}
		return response{status: http.StatusOK, body: output, contentType: contentType(format)}
	})
}

func contentType(format string) string {
	switch format {
	case "svg":
		return "image/svg+xml"
	case "png":
		return "image/png"
	case "json":
		return "application/json"
	case "dot":
		return "text/vnd.graphviz"
	default:
		return "text/plain; charset=utf-8"
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var snap *store.Snapshot
	sess, ok := s.session(r.PathValue("id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err := s.loop.Do(r.Context(), func() { snap = sess.Snapshot() }); err != nil {
		http.Error(w, "Session unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := s.store.Save(snap); err != nil {
		http.Error(w, "Error saving session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("session %s: saved at step %d with %d operations pending", snap.ID, snap.Cursor, len(snap.Operations))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         snap.ID,
		"pending":    len(snap.Operations),
		"updated_at": snap.UpdatedAt,
	})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List()
	if err != nil {
		http.Error(w, "Error listing snapshots: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// RestoreSession rebuilds a session from its snapshot, replacing a live
// session with the same id
func (s *Server) RestoreSession(ctx context.Context, id string) (*Session, error) {
	snap, err := s.store.Load(id)
	if err != nil {
		return nil, err
	}
	graph := models.NewGraph()
	if err := graph.Load(snap.Graph); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	graph.SetLock(snap.Locked)

	sess := newSession(snap.ID, graph, s.sched, s.config.Delay, s.config.DebugMode)
	err = s.loop.Do(ctx, func() {
		if snap.State != playback.NotReady.String() {
			sess.Engine.LoadOperations(snap.PendingOperations())
		}
		s.mu.Lock()
		old, ok := s.sessions[sess.ID]
		s.sessions[sess.ID] = sess
		s.mu.Unlock()
		if ok {
			old.close()
		}
	})
	if err != nil {
		return nil, err
	}
	log.Printf("session %s: restored with %d operations pending", sess.ID, len(snap.Operations))
	return sess, nil
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, err := s.RestoreSession(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	case errors.Is(err, models.ErrUnknownVertex):
		http.Error(w, "Invalid snapshot: "+err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Error restoring session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.withSessionID(w, r, sess.ID, func(sess *Session) response {
		return jsonResponse(http.StatusOK, sess.Status())
	})
}
