package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/TFMV/echocolor/models"
	"github.com/TFMV/echocolor/playback"
	"github.com/TFMV/echocolor/server"
	"github.com/TFMV/echocolor/store"
)

const triangleJSON = `{
  "vertices": [
    {"x": 10, "y": 10, "name": "A"},
    {"x": 110, "y": 10, "name": "B"},
    {"x": 60, "y": 90, "name": "C"}
  ],
  "edges": [
    {"v1": "A", "v2": "B", "c1": 0, "c2": 0},
    {"v1": "B", "v2": "C", "c1": 1, "c2": 2},
    {"v1": "C", "v2": "A", "c1": 2, "c2": 1}
  ]
}`

// statusBody mirrors the session status JSON
type statusBody struct {
	ID           string   `json:"id"`
	State        string   `json:"state"`
	Cursor       int      `json:"cursor"`
	Total        int      `json:"total"`
	Progress     *float64 `json:"progress"`
	Locked       bool     `json:"locked"`
	Vertices     int      `json:"vertices"`
	Edges        int      `json:"edges"`
	InvalidEdges int      `json:"invalid_edges"`
	Palette      []string    `json:"palette"`
	Filterable   int         `json:"filterable"`
	ColorUsage   map[int]int `json:"color_usage"`
}

type edgeBody struct {
	V1      string `json:"v1"`
	V2      string `json:"v2"`
	C1      int    `json:"c1"`
	C2      int    `json:"c2"`
	Invalid bool   `json:"invalid"`
}

type ServerSuite struct {
	suite.Suite
	store  store.Store
	server *server.Server
	http   *httptest.Server
}

func (s *ServerSuite) SetupTest() {
	ctx, cancel := context.WithCancel(context.Background())
	s.T().Cleanup(cancel)

	cfg := server.DefaultConfig()
	cfg.Scheduler = playback.Immediate{}
	s.store = store.NewMemoryStore()
	s.server = server.New(ctx, cfg, s.store)
	s.http = httptest.NewServer(s.server.Handler())
	s.T().Cleanup(s.http.Close)
}

func (s *ServerSuite) do(method, path, body string) (*http.Response, []byte) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.http.URL+path, reader)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, data
}

func (s *ServerSuite) decode(data []byte, v interface{}) {
	s.Require().NoError(json.Unmarshal(data, v), string(data))
}

func (s *ServerSuite) create() statusBody {
	resp, data := s.do(http.MethodPost, "/api/sessions", triangleJSON)
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(data))
	var st statusBody
	s.decode(data, &st)
	return st
}

func (s *ServerSuite) status(id string) statusBody {
	resp, data := s.do(http.MethodGet, "/api/sessions/"+id, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(data))
	var st statusBody
	s.decode(data, &st)
	return st
}

func (s *ServerSuite) TestCreateSession() {
	st := s.create()
	s.NotEmpty(st.ID)
	s.Equal("not_ready", st.State)
	s.Nil(st.Progress)
	s.Equal(3, st.Vertices)
	s.Equal(3, st.Edges)
	s.Equal(2, st.InvalidEdges)
	s.Len(st.Palette, 5)
	s.Equal(3, st.Filterable)
	s.Equal(map[int]int{0: 2, 1: 2, 2: 2}, st.ColorUsage)

	resp, data := s.do(http.MethodGet, "/api/sessions", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	var list []statusBody
	s.decode(data, &list)
	s.Len(list, 1)
	s.Equal(st.ID, list[0].ID)
}

func (s *ServerSuite) TestCreateFromCSVPlacesVertices() {
	csvDoc := "v1,v2,c1,c2\nA,B,0,1\nB,C,1,1\n"
	resp, data := s.do(http.MethodPost, "/api/sessions?format=csv", csvDoc)
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(data))
	var st statusBody
	s.decode(data, &st)
	s.Equal(3, st.Vertices)
	s.Equal(1, st.InvalidEdges)

	resp, data = s.do(http.MethodGet, "/api/sessions/"+st.ID+"/graph", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var graph struct {
		Vertices []struct {
			X, Y float64
			Name string
		} `json:"vertices"`
	}
	s.decode(data, &graph)
	s.Require().Len(graph.Vertices, 3)
	for _, v := range graph.Vertices {
		s.False(v.X == 0 && v.Y == 0, "vertex %s left unplaced", v.Name)
	}
}

func (s *ServerSuite) TestCreateKeepsAuthoredOrigin() {
	doc := `{
  "vertices": [{"x": 0, "y": 0, "name": "A"}, {"x": 100, "y": 0, "name": "B"}],
  "edges": [{"v1": "A", "v2": "B", "c1": 0, "c2": 1}]
}`
	resp, data := s.do(http.MethodPost, "/api/sessions", doc)
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(data))
	var st statusBody
	s.decode(data, &st)

	resp, data = s.do(http.MethodGet, "/api/sessions/"+st.ID+"/graph", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(doc, string(data))
}

func (s *ServerSuite) TestCreatePlacesVerticesWithoutCoordinates() {
	doc := `{
  "vertices": [{"x": 0, "y": 0, "name": "A"}, {"name": "B"}],
  "edges": [{"v1": "A", "v2": "B", "c1": 0, "c2": 0}]
}`
	resp, data := s.do(http.MethodPost, "/api/sessions", doc)
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(data))
	var st statusBody
	s.decode(data, &st)

	resp, data = s.do(http.MethodGet, "/api/sessions/"+st.ID+"/graph", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var graph models.GraphPayload
	s.decode(data, &graph)
	s.Require().Len(graph.Vertices, 2)
	s.Equal(models.VertexRecord{Name: "A"}, graph.Vertices[0])
	s.NotEqual(models.VertexRecord{Name: "B"}, graph.Vertices[1])
}

func (s *ServerSuite) TestCreateRejectsBadInput() {
	resp, _ := s.do(http.MethodPost, "/api/sessions", `{"vertices": [], "edges": [{"v1": "A", "v2": "B"}]}`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/sessions", `not json`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/sessions?format=xml", triangleJSON)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/sessions?layout=spiral", `{"vertices": [{"x": 0, "y": 0, "name": "A"}], "edges": []}`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerSuite) TestPlayback() {
	id := s.create().ID

	resp, data := s.do(http.MethodPost, "/api/sessions/"+id+"/play", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	var played struct {
		Changed bool       `json:"changed"`
		Status  statusBody `json:"status"`
	}
	s.decode(data, &played)
	s.False(played.Changed)

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/operations", `[["B", 1, 2], ["A", 0, 1]]`)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(data))
	var loaded struct {
		Loaded bool       `json:"loaded"`
		Status statusBody `json:"status"`
	}
	s.decode(data, &loaded)
	s.True(loaded.Loaded)
	s.Equal("stopped", loaded.Status.State)
	s.Equal(2, loaded.Status.Total)

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/operations?format=script", "C 0 1\n")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(data, &loaded)
	s.False(loaded.Loaded)
	s.Equal(2, loaded.Status.Total)

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/play", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(data, &played)
	s.True(played.Changed)
	s.Equal("finished", played.Status.State)
	s.Equal(2, played.Status.Cursor)
	s.Require().NotNil(played.Status.Progress)
	s.Equal(100.0, *played.Status.Progress)
	// B repairs BC, then A breaks AB and keeps CA broken
	s.Equal(2, played.Status.InvalidEdges)

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/stop", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decode(data, &played)
	s.False(played.Changed)
}

func (s *ServerSuite) TestOperationsRejectsMalformed() {
	id := s.create().ID
	resp, _ := s.do(http.MethodPost, "/api/sessions/"+id+"/operations", `[["A", 0]]`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("not_ready", s.status(id).State)
}

func (s *ServerSuite) TestLockAndMove() {
	id := s.create().ID

	move := `{"name": "A", "x": 40, "y": 50}`
	resp, data := s.do(http.MethodPost, "/api/sessions/"+id+"/move", move)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"moved": true}`, string(data))

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/move", `{"name": "Z", "x": 1, "y": 1}`)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"moved": false}`, string(data))

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/lock", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"locked": true}`, string(data))
	s.True(s.status(id).Locked)

	resp, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/move", move)
	s.Equal(http.StatusConflict, resp.StatusCode)

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/lock?value=true", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"locked": true}`, string(data))

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/lock?value=false", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"locked": false}`, string(data))

	resp, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/lock?value=maybe", "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/move", `{"name":`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerSuite) TestFilter() {
	id := s.create().ID

	resp, data := s.do(http.MethodPost, "/api/sessions/"+id+"/filter?index=1", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		Palette []string `json:"palette"`
	}
	s.decode(data, &body)
	s.Equal([]string{"#ff0000", "#cccccc", "#0000ff", "#a52a2a", "#00ffff"}, body.Palette)

	resp, data = s.do(http.MethodGet, "/api/sessions/"+id+"/render", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.NotContains(string(data), "#008000")
	s.Contains(string(data), "#cccccc")

	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/filter?index=4", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(data, &body)
	s.Equal("#008000", body.Palette[1])

	resp, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/filter?index=red", "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerSuite) TestVertexDetail() {
	id := s.create().ID

	resp, data := s.do(http.MethodGet, "/api/sessions/"+id+"/vertices/B", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(data))
	var v struct {
		Name      string     `json:"name"`
		X         float64    `json:"x"`
		Y         float64    `json:"y"`
		Degree    int        `json:"degree"`
		Neighbors []string   `json:"neighbors"`
		Edges     []edgeBody `json:"edges"`
	}
	s.decode(data, &v)
	s.Equal("B", v.Name)
	s.Equal(110.0, v.X)
	s.Equal(10.0, v.Y)
	s.Equal(2, v.Degree)
	s.Equal([]string{"A", "C"}, v.Neighbors)
	s.Equal([]edgeBody{
		{V1: "A", V2: "B", C1: 0, C2: 0},
		{V1: "B", V2: "C", C1: 1, C2: 2, Invalid: true},
	}, v.Edges)

	resp, _ = s.do(http.MethodGet, "/api/sessions/"+id+"/vertices/Z", "")
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/api/sessions/nope/vertices/A", "")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ServerSuite) TestEdgeListing() {
	id := s.create().ID
	list := func(query string) []edgeBody {
		resp, data := s.do(http.MethodGet, "/api/sessions/"+id+"/edges"+query, "")
		s.Require().Equal(http.StatusOK, resp.StatusCode, string(data))
		var edges []edgeBody
		s.decode(data, &edges)
		return edges
	}

	s.Len(list(""), 3)

	invalid := list("?invalid=true")
	s.Require().Len(invalid, 2)
	s.Equal("B", invalid[0].V1)
	s.Equal("C", invalid[1].V1)

	s.Equal([]edgeBody{{V1: "A", V2: "B", C1: 0, C2: 0}}, list("?color=0"))
	s.Len(list("?color=1"), 2)
	s.Empty(list("?color=4"))
	s.Len(list("?color=0&invalid=true"), 0)

	resp, _ := s.do(http.MethodPost, "/api/sessions/"+id+"/operations",
		`[["A", 0, 4]]`)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/play", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	s.Equal([]edgeBody{{V1: "A", V2: "B", C1: 4, C2: 0, Invalid: true}}, list("?color=4"))
	s.Equal(map[int]int{0: 1, 1: 2, 2: 2, 4: 1}, s.status(id).ColorUsage)

	for _, query := range []string{"?color=red", "?color=-1", "?invalid=maybe"} {
		resp, _ := s.do(http.MethodGet, "/api/sessions/"+id+"/edges"+query, "")
		s.Equal(http.StatusBadRequest, resp.StatusCode, query)
	}
}

func (s *ServerSuite) TestRenderFormats() {
	id := s.create().ID

	cases := map[string]string{
		"svg":   "image/svg+xml",
		"png":   "image/png",
		"dot":   "text/vnd.graphviz",
		"json":  "application/json",
		"ascii": "text/plain; charset=utf-8",
	}
	for format, ct := range cases {
		resp, data := s.do(http.MethodGet, "/api/sessions/"+id+"/render?format="+format, "")
		s.Equal(http.StatusOK, resp.StatusCode, format)
		s.Equal(ct, resp.Header.Get("Content-Type"), format)
		s.NotEmpty(data, format)
	}

	resp, data := s.do(http.MethodGet, "/api/sessions/"+id+"/render?format=svg&fit=true", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(data), "<svg")

	resp, _ = s.do(http.MethodGet, "/api/sessions/"+id+"/render?format=webgl", "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerSuite) TestUnknownSession() {
	for _, path := range []string{"", "/graph", "/render", "/edges"} {
		resp, _ := s.do(http.MethodGet, "/api/sessions/nope"+path, "")
		s.Equal(http.StatusNotFound, resp.StatusCode, path)
	}
	for _, path := range []string{"/play", "/stop", "/lock", "/filter?index=0", "/save"} {
		resp, _ := s.do(http.MethodPost, "/api/sessions/nope"+path, "")
		s.Equal(http.StatusNotFound, resp.StatusCode, path)
	}
	resp, _ := s.do(http.MethodDelete, "/api/sessions/nope", "")
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/api/snapshots/nope/restore", "")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ServerSuite) TestSaveAndRestore() {
	id := s.create().ID
	resp, _ := s.do(http.MethodPost, "/api/sessions/"+id+"/operations", `[["B", 1, 2], ["A", 0, 1]]`)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/lock", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, data := s.do(http.MethodPost, "/api/sessions/"+id+"/save", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(data))
	var saved struct {
		ID      string `json:"id"`
		Pending int    `json:"pending"`
	}
	s.decode(data, &saved)
	s.Equal(id, saved.ID)
	s.Equal(2, saved.Pending)

	resp, data = s.do(http.MethodGet, "/api/snapshots", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var ids []string
	s.decode(data, &ids)
	s.Equal([]string{id}, ids)

	// play the live session, then roll it back
	resp, _ = s.do(http.MethodPost, "/api/sessions/"+id+"/play", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("finished", s.status(id).State)

	resp, data = s.do(http.MethodPost, "/api/snapshots/"+id+"/restore", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(data))
	var st statusBody
	s.decode(data, &st)
	s.Equal(id, st.ID)
	s.Equal("stopped", st.State)
	s.Equal(0, st.Cursor)
	s.Equal(2, st.Total)
	s.True(st.Locked)
	s.Equal(2, st.InvalidEdges)

	resp, data = s.do(http.MethodGet, "/api/sessions", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var list []statusBody
	s.decode(data, &list)
	s.Len(list, 1)
}

func (s *ServerSuite) TestRestoreUnloadedSession() {
	id := s.create().ID
	resp, _ := s.do(http.MethodPost, "/api/sessions/"+id+"/save", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, data := s.do(http.MethodPost, "/api/snapshots/"+id+"/restore", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var st statusBody
	s.decode(data, &st)
	s.Equal("not_ready", st.State)

	// the restored session still accepts a queue
	resp, data = s.do(http.MethodPost, "/api/sessions/"+id+"/operations", `[["A", 0, 1]]`)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(data), `"loaded": true`)
}

func (s *ServerSuite) TestDeleteSession() {
	id := s.create().ID
	resp, _ := s.do(http.MethodDelete, "/api/sessions/"+id, "")
	s.Equal(http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/sessions/"+id, "")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ServerSuite) TestIndex() {
	resp, data := s.do(http.MethodGet, "/", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(data), "/api/sessions")

	resp, _ = s.do(http.MethodGet, "/missing", "")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func TestCreateSessionDirect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.New(ctx, &server.Config{
		Scheduler:   playback.Immediate{},
		Layout:      "noise",
		LayoutSteps: 1,
		Width:       200,
		Height:      200,
	}, nil)

	sess, err := srv.CreateSession(models.GraphPayload{
		Vertices: []models.VertexRecord{{Name: "A"}, {X: 50, Y: 50, Name: "B"}, {Name: "C"}},
		Edges:    []models.EdgeRecord{{V1: "A", V2: "B", C1: 0, C2: 0}, {V1: "B", V2: "C"}},
		Unplaced: []string{"A"},
	}, "")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	a, ok := sess.Graph.Vertex("A")
	require.True(t, ok)
	require.NotEqual(t, models.Point{}, a.Position)
	b, _ := sess.Graph.Vertex("B")
	require.Equal(t, models.Point{X: 50, Y: 50}, b.Position)
	// C was authored at the origin
	c, _ := sess.Graph.Vertex("C")
	require.Equal(t, models.Point{}, c.Position)

	_, err = srv.CreateSession(models.GraphPayload{
		Edges: []models.EdgeRecord{{V1: "A", V2: "B"}},
	}, "")
	require.ErrorIs(t, err, models.ErrUnknownVertex)

	loaded, err := srv.LoadOperations(ctx, sess.ID, []models.Operation{{Vertex: "A", ColorA: 0, ColorB: 1}})
	require.NoError(t, err)
	require.True(t, loaded)
	loaded, err = srv.LoadOperations(ctx, sess.ID, nil)
	require.NoError(t, err)
	require.False(t, loaded)
	_, err = srv.LoadOperations(ctx, "missing", nil)
	require.ErrorIs(t, err, server.ErrSessionNotFound)

	_, err = srv.RestoreSession(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}
