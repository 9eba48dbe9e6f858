package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/echocolor/ingest"
	"github.com/TFMV/echocolor/models"
)

func TestJSONProcessor(t *testing.T) {
	doc := `{
		"vertices": [{"x": 10, "y": 20, "name": "A"}, {"x": 30, "y": 40, "name": 7}],
		"edges": [{"v1": "A", "v2": 7, "c1": 0, "c2": 2}]
	}`
	p, err := ingest.GetProcessor("json")
	require.NoError(t, err)

	payload, err := p.ProcessData([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, models.GraphPayload{
		Vertices: []models.VertexRecord{{X: 10, Y: 20, Name: "A"}, {X: 30, Y: 40, Name: "7"}},
		Edges:    []models.EdgeRecord{{V1: "A", V2: "7", C1: 0, C2: 2}},
	}, payload)
}

func TestJSONProcessorReportsMissingCoordinates(t *testing.T) {
	doc := `{
		"vertices": [{"x": 0, "y": 0, "name": "origin"}, {"name": "B"}, {"x": 4, "name": "C"}],
		"edges": []
	}`
	payload, err := ingest.NewJSONProcessor().ProcessData([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []models.VertexRecord{
		{X: 0, Y: 0, Name: "origin"},
		{X: 0, Y: 0, Name: "B"},
		{X: 0, Y: 0, Name: "C"},
	}, payload.Vertices)
	assert.Equal(t, []string{"B", "C"}, payload.Unplaced)
}

func TestJSONProcessorErrors(t *testing.T) {
	p := ingest.NewJSONProcessor()

	_, err := p.ProcessData([]byte(`{"vertices": [`))
	assert.Error(t, err)

	_, err = p.ProcessData([]byte(`{"vertices": [{"name": true}]}`))
	assert.ErrorIs(t, err, ingest.ErrBadName)
}

func TestJSONProcessorEmpty(t *testing.T) {
	payload, err := ingest.NewJSONProcessor().ProcessData([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, payload.Vertices)
	assert.Empty(t, payload.Edges)
}

func TestCSVProcessor(t *testing.T) {
	doc := "source,target,color1,color2,x1,y1,x2,y2\n" +
		"A,B,0,1,0,0,100,0\n" +
		"# a comment\n" +
		"B,C,1,1,,,50,80\n" +
		"C,D,2,0,,,,\n"

	payload, err := ingest.NewCSVProcessor().ProcessData([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []models.VertexRecord{
		{X: 0, Y: 0, Name: "A"},
		{X: 100, Y: 0, Name: "B"},
		{X: 50, Y: 80, Name: "C"},
		{X: 0, Y: 0, Name: "D"},
	}, payload.Vertices)
	assert.Equal(t, []models.EdgeRecord{
		{V1: "A", V2: "B", C1: 0, C2: 1},
		{V1: "B", V2: "C", C1: 1, C2: 1},
		{V1: "C", V2: "D", C1: 2, C2: 0},
	}, payload.Edges)
	// A was given the origin explicitly
	assert.Equal(t, []string{"D"}, payload.Unplaced)

	g := models.NewGraph()
	require.NoError(t, g.Load(payload))
	assert.Equal(t, 4, g.VertexCount())
	assert.Len(t, g.InvalidEdges(), 2)
}

func TestCSVLaterRowPlacesVertex(t *testing.T) {
	doc := "v1,v2,c1,c2,x1,y1,x2,y2\n" +
		"A,B,0,0,,,,\n" +
		"B,A,0,0,5,6,7,8\n"

	payload, err := ingest.NewCSVProcessor().ProcessData([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []models.VertexRecord{
		{X: 7, Y: 8, Name: "A"},
		{X: 5, Y: 6, Name: "B"},
	}, payload.Vertices)
	assert.Empty(t, payload.Unplaced)
}

func TestCSVProcessorErrors(t *testing.T) {
	p, err := ingest.GetProcessor("CSV")
	require.NoError(t, err)

	_, err = p.ProcessData([]byte("v1,v2,c1\nA,B,0\n"))
	assert.ErrorIs(t, err, ingest.ErrMissingColumn)

	_, err = p.ProcessData([]byte("v1,v2,c1,c2\nA,B,red,0\n"))
	assert.ErrorIs(t, err, ingest.ErrMalformedRow)

	_, err = p.ProcessData([]byte("v1,v2,c1,c2\nA,B,0\n"))
	assert.ErrorIs(t, err, ingest.ErrMalformedRow)

	_, err = p.ProcessData(nil)
	assert.Error(t, err)
}

func TestGetProcessorUnknown(t *testing.T) {
	_, err := ingest.GetProcessor("log")
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)

	_, err = ingest.GetOperationProcessor("yaml")
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "csv", ingest.FormatFromPath("edges.CSV"))
	assert.Equal(t, "script", ingest.FormatFromPath("steps.ops"))
	assert.Equal(t, "json", ingest.FormatFromPath("graph.json"))
}

func TestJSONOperations(t *testing.T) {
	p, err := ingest.GetOperationProcessor("json")
	require.NoError(t, err)

	ops, err := p.ProcessOperations([]byte(`[["A", 0, 1], [3, 1, 2]]`))
	require.NoError(t, err)
	assert.Equal(t, []models.Operation{
		{Vertex: "A", ColorA: 0, ColorB: 1},
		{Vertex: "3", ColorA: 1, ColorB: 2},
	}, ops)

	ops, err = p.ProcessOperations([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestJSONOperationsErrors(t *testing.T) {
	p := &ingest.JSONOperationProcessor{}

	_, err := p.ProcessOperations([]byte(`[["A", 0]]`))
	assert.ErrorIs(t, err, ingest.ErrMalformedOperation)

	_, err = p.ProcessOperations([]byte(`[["A", "red", 1]]`))
	assert.ErrorIs(t, err, ingest.ErrMalformedOperation)

	_, err = p.ProcessOperations([]byte(`[[null, 0, 1]]`))
	assert.ErrorIs(t, err, ingest.ErrBadName)

	_, err = p.ProcessOperations([]byte(`{"A": 1}`))
	assert.Error(t, err)
}

func TestScriptOperations(t *testing.T) {
	script := `# warm up
A 0 1
B: 1, 2
"vertex 7" 2 3; 12 0 4

`
	p, err := ingest.GetOperationProcessor("script")
	require.NoError(t, err)

	ops, err := p.ProcessOperations([]byte(script))
	require.NoError(t, err)
	assert.Equal(t, []models.Operation{
		{Vertex: "A", ColorA: 0, ColorB: 1},
		{Vertex: "B", ColorA: 1, ColorB: 2},
		{Vertex: "vertex 7", ColorA: 2, ColorB: 3},
		{Vertex: "12", ColorA: 0, ColorB: 4},
	}, ops)
}

func TestScriptOperationsErrors(t *testing.T) {
	p := &ingest.ScriptOperationProcessor{}

	_, err := p.ProcessOperations([]byte("A 0\n"))
	assert.ErrorIs(t, err, ingest.ErrMalformedOperation)

	_, err = p.ProcessOperations([]byte("A x y\n"))
	assert.ErrorIs(t, err, ingest.ErrMalformedOperation)

	ops, err := p.ProcessOperations([]byte("# nothing here\n"))
	require.NoError(t, err)
	assert.Empty(t, ops)
}
