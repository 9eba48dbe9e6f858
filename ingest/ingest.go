// Package ingest turns raw graph and operation documents into the payloads
// the models package loads.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/TFMV/echocolor/models"
)

var (
	// ErrUnsupportedFormat is returned for unknown processor names
	ErrUnsupportedFormat = errors.New("ingest: unsupported format")
	// ErrMissingColumn is returned when a CSV header lacks a required column
	ErrMissingColumn = errors.New("ingest: missing column")
	// ErrMalformedRow is returned for CSV rows that cannot be read
	ErrMalformedRow = errors.New("ingest: malformed row")
	// ErrMalformedOperation is returned for operations that are not a
	// (vertex, color, color) triple
	ErrMalformedOperation = errors.New("ingest: malformed operation")
	// ErrBadName is returned for vertex names that are neither strings nor numbers
	ErrBadName = errors.New("ingest: vertex name must be a string or a number")
)

// DataProcessor defines the interface that all graph processors must implement
type DataProcessor interface {
	// ProcessData takes raw data bytes and returns a graph payload
	ProcessData(data []byte) (models.GraphPayload, error)

	// GetName returns the name of the processor
	GetName() string
}

// vertexName accepts a JSON string or number
type vertexName string

func (n *vertexName) UnmarshalJSON(b []byte) error {
	s, err := decodeName(b)
	if err != nil {
		return err
	}
	*n = vertexName(s)
	return nil
}

// decodeName reads a vertex name given as a JSON string or number.
// Numbers keep their literal spelling.
func decodeName(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.Wrap(ErrBadName, err.Error())
		}
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", errors.Wrap(ErrBadName, err.Error())
	}
	num, ok := v.(json.Number)
	if !ok {
		return "", errors.Wrapf(ErrBadName, "got %s", raw)
	}
	return num.String(), nil
}

// JSONProcessor handles the graph payload JSON document
type JSONProcessor struct{}

// NewJSONProcessor creates a new JSON processor
func NewJSONProcessor() *JSONProcessor {
	return &JSONProcessor{}
}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

// ProcessData parses {"vertices":[{x,y,name}],"edges":[{v1,v2,c1,c2}]}.
// A vertex missing x or y is loaded at the origin and reported as unplaced.
func (p *JSONProcessor) ProcessData(data []byte) (models.GraphPayload, error) {
	var doc struct {
		Vertices []struct {
			X    *float64   `json:"x"`
			Y    *float64   `json:"y"`
			Name vertexName `json:"name"`
		} `json:"vertices"`
		Edges []struct {
			V1 vertexName `json:"v1"`
			V2 vertexName `json:"v2"`
			C1 int        `json:"c1"`
			C2 int        `json:"c2"`
		} `json:"edges"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.GraphPayload{}, errors.Wrap(err, "ingest: parsing graph JSON")
	}

	payload := models.GraphPayload{
		Vertices: make([]models.VertexRecord, 0, len(doc.Vertices)),
		Edges:    make([]models.EdgeRecord, 0, len(doc.Edges)),
	}
	for _, v := range doc.Vertices {
		rec := models.VertexRecord{Name: string(v.Name)}
		if v.X == nil || v.Y == nil {
			payload.Unplaced = append(payload.Unplaced, rec.Name)
		} else {
			rec.X, rec.Y = *v.X, *v.Y
		}
		payload.Vertices = append(payload.Vertices, rec)
	}
	for _, e := range doc.Edges {
		payload.Edges = append(payload.Edges, models.EdgeRecord{
			V1: string(e.V1),
			V2: string(e.V2),
			C1: e.C1,
			C2: e.C2,
		})
	}
	return payload, nil
}

// CSVProcessor handles edge lists, one edge per row
type CSVProcessor struct{}

// NewCSVProcessor creates a new CSV processor
func NewCSVProcessor() *CSVProcessor {
	return &CSVProcessor{}
}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// csvColumns holds header positions, -1 when absent
type csvColumns struct {
	v1, v2, c1, c2 int
	x1, y1, x2, y2 int
}

func findColumns(header []string) (csvColumns, error) {
	cols := csvColumns{-1, -1, -1, -1, -1, -1, -1, -1}
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "v1", "source", "from":
			cols.v1 = i
		case "v2", "target", "to":
			cols.v2 = i
		case "c1", "color1":
			cols.c1 = i
		case "c2", "color2":
			cols.c2 = i
		case "x1":
			cols.x1 = i
		case "y1":
			cols.y1 = i
		case "x2":
			cols.x2 = i
		case "y2":
			cols.y2 = i
		}
	}
	for name, idx := range map[string]int{"v1": cols.v1, "v2": cols.v2, "c1": cols.c1, "c2": cols.c2} {
		if idx < 0 {
			return cols, errors.Wrapf(ErrMissingColumn, "%s", name)
		}
	}
	return cols, nil
}

// ProcessData reads a header row and then one edge per row. Endpoints no
// row gives a position are left at the origin and reported as unplaced.
func (p *CSVProcessor) ProcessData(data []byte) (models.GraphPayload, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return models.GraphPayload{}, errors.Wrap(err, "ingest: reading CSV header")
	}
	cols, err := findColumns(header)
	if err != nil {
		return models.GraphPayload{}, err
	}

	payload := models.GraphPayload{}
	seen := make(map[string]int)
	placed := make(map[string]bool)
	addVertex := func(name string, p models.Point, hasPos bool) {
		i, ok := seen[name]
		if !ok {
			seen[name] = len(payload.Vertices)
			placed[name] = hasPos
			payload.Vertices = append(payload.Vertices, models.VertexRecord{X: p.X, Y: p.Y, Name: name})
			return
		}
		// the first row that gives a position wins
		if hasPos && !placed[name] {
			placed[name] = true
			payload.Vertices[i].X, payload.Vertices[i].Y = p.X, p.Y
		}
	}

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.GraphPayload{}, errors.Wrap(ErrMalformedRow, err.Error())
		}

		field := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		v1, v2 := field(cols.v1), field(cols.v2)
		c1, err := strconv.Atoi(field(cols.c1))
		if err != nil {
			return models.GraphPayload{}, errors.Wrapf(ErrMalformedRow, "line %d: c1 %q", line, field(cols.c1))
		}
		c2, err := strconv.Atoi(field(cols.c2))
		if err != nil {
			return models.GraphPayload{}, errors.Wrapf(ErrMalformedRow, "line %d: c2 %q", line, field(cols.c2))
		}

		p1, ok1 := point(field(cols.x1), field(cols.y1))
		p2, ok2 := point(field(cols.x2), field(cols.y2))
		addVertex(v1, p1, ok1)
		addVertex(v2, p2, ok2)
		payload.Edges = append(payload.Edges, models.EdgeRecord{V1: v1, V2: v2, C1: c1, C2: c2})
	}
	for _, v := range payload.Vertices {
		if !placed[v.Name] {
			payload.Unplaced = append(payload.Unplaced, v.Name)
		}
	}
	return payload, nil
}

// point parses a coordinate pair; ok is false unless both parse
func point(xs, ys string) (models.Point, bool) {
	if xs == "" || ys == "" {
		return models.Point{}, false
	}
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return models.Point{}, false
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return models.Point{}, false
	}
	return models.Point{X: x, Y: y}, true
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string) (DataProcessor, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewJSONProcessor(), nil
	case "csv":
		return NewCSVProcessor(), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "graph format %q", format)
	}
}

// FormatFromPath guesses a processor format from a file extension
func FormatFromPath(path string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".csv"):
		return "csv"
	case strings.HasSuffix(strings.ToLower(path), ".txt"),
		strings.HasSuffix(strings.ToLower(path), ".ops"):
		return "script"
	default:
		return "json"
	}
}
