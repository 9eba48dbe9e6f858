package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gogpu/gg"

	"github.com/TFMV/echocolor/models"
	"github.com/TFMV/echocolor/physics"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format     string  // Output format (svg, ascii, png, json, dot)
	Width      float64 // Width of the output
	Height     float64 // Height of the output
	Background string  // Background color
	Timestamp  bool    // Include timestamp in visualization
	NodeRadius float64 // Radius of vertex markers
	FontSize   float64 // Font size for labels
	ShowLabels bool    // Show vertex labels
	FitToView  bool    // Scale the drawing into the output bounds
	Quality    string  // Rendering quality (low, medium, high)
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render creates a visualization of the graph using the provided options
	Render(graph *models.Graph, options *OutputOptions) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// Description returns a description of the renderer
	Description() string
}

// SceneEncoder is implemented by renderers that draw from a Scene, so a
// live scene bound to a graph can be encoded without painting it again
type SceneEncoder interface {
	Encode(scene *Scene, options *OutputOptions) ([]byte, error)
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:     format,
		Width:      600,
		Height:     600,
		Background: "#ffffff",
		Timestamp:  false,
		NodeRadius: 5.0,
		FontSize:   10.0,
		ShowLabels: true,
		Quality:    "medium",
	}
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "svg":
		return &SVGRenderer{}, nil
	case "ascii":
		return NewASCIIRenderer(), nil
	case "json":
		return &JSONRenderer{}, nil
	case "dot":
		return &DOTRenderer{}, nil
	case "png":
		return &PNGRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Formats lists the names accepted by GetRenderer
func Formats() []string {
	return []string{"svg", "ascii", "png", "dot", "json"}
}

// Generate places the free vertices with layout, then renders the graph.
// A nil layout or an empty free list skips placement.
func Generate(graph *models.Graph, layout physics.LayoutAlgorithm, free []string, maxSteps int, options *OutputOptions) ([]byte, error) {
	renderer, err := GetRenderer(options.Format)
	if err != nil {
		return nil, err
	}
	if layout != nil && len(free) > 0 {
		if maxSteps <= 0 {
			maxSteps = 100
		}
		physics.Run(layout, graph, free, options.Width, options.Height, maxSteps)
	}

	output, err := renderer.Render(graph, options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", renderer.Name(), err)
	}
	return output, nil
}

// paint draws graph onto a fresh scene
func paint(graph *models.Graph) *Scene {
	scene := NewScene()
	graph.Paint(scene)
	return scene
}

// transform maps scene coordinates to output coordinates
type transform struct {
	scale, dx, dy float64
}

func (t transform) apply(p models.Point) (float64, float64) {
	return p.X*t.scale + t.dx, p.Y*t.scale + t.dy
}

// viewTransform is the identity unless options ask to fit the drawing into
// the output, keeping a margin for markers and labels
func viewTransform(scene *Scene, options *OutputOptions) transform {
	identity := transform{scale: 1}
	if !options.FitToView {
		return identity
	}
	lo, hi, ok := scene.Bounds()
	if !ok {
		return identity
	}
	margin := options.NodeRadius + options.FontSize + 4
	w := hi.X - lo.X
	h := hi.Y - lo.Y
	scale := 1.0
	if w > 0 || h > 0 {
		scale = math.Min((options.Width-2*margin)/math.Max(w, 1e-9), (options.Height-2*margin)/math.Max(h, 1e-9))
	}
	return transform{
		scale: scale,
		dx:    margin - lo.X*scale + (options.Width-2*margin-w*scale)/2,
		dy:    margin - lo.Y*scale + (options.Height-2*margin-h*scale)/2,
	}
}

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders graphs as Scalable Vector Graphics (SVG) for high-quality vector output"
}

// Render creates an SVG representation of the graph
func (r *SVGRenderer) Render(graph *models.Graph, options *OutputOptions) ([]byte, error) {
	return r.Encode(paint(graph), options)
}

// Encode writes the scene as an SVG document
func (r *SVGRenderer) Encode(scene *Scene, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer
	t := viewTransform(scene, options)

	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%g" height="%g" viewBox="0 0 %g %g" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, options.Width, options.Height, options.Width, options.Height, options.Background)

	if options.Quality == "high" {
		fmt.Fprintf(&buf, `<rect x="0" y="0" width="%g" height="%g" fill="none" stroke="#e0e0e0" stroke-width="1"/>
`, options.Width, options.Height)
	}

	for _, el := range scene.Elements() {
		switch el.Kind {
		case KindSegment:
			x1, y1 := t.apply(el.Segment.Start)
			x2, y2 := t.apply(el.Segment.End)
			fmt.Fprintf(&buf, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%g" stroke-linecap="round"/>
`, x1, y1, x2, y2, el.Color, el.Width)
		case KindVertex:
			x, y := t.apply(el.At)
			fmt.Fprintf(&buf, `<circle cx="%.2f" cy="%.2f" r="%g" fill="#ffffff" stroke="#333333" stroke-width="1"/>
`, x, y, options.NodeRadius)
		case KindLabel:
			if !options.ShowLabels {
				continue
			}
			x, y := t.apply(el.At)
			fmt.Fprintf(&buf, `<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%g" fill="#333333" text-anchor="middle">%s</text>
`, x, y+options.NodeRadius+options.FontSize+2, options.FontSize, escapeXML(el.Text))
		}
	}

	if options.Timestamp {
		fmt.Fprintf(&buf, `<text x="5" y="%g" font-family="sans-serif" font-size="8" fill="#808080">%s</text>
`, options.Height-5, time.Now().Format("2006-01-02 15:04:05"))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

// ASCIIRenderer outputs ASCII art format. Each link is drawn with the glyph
// of its color, in upper case when the edge is invalid.
type ASCIIRenderer struct {
	Glyphs map[string]rune
}

// NewASCIIRenderer creates an ASCII renderer with glyphs for the default palette
func NewASCIIRenderer() *ASCIIRenderer {
	return &ASCIIRenderer{Glyphs: map[string]rune{
		"#ff0000":           'r',
		"#008000":           'g',
		"#0000ff":           'b',
		"#a52a2a":           'n',
		"#00ffff":           'c',
		models.MutedColor:   '.',
		models.UnknownColor: '?',
	}}
}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// Description returns a description of the renderer
func (r *ASCIIRenderer) Description() string {
	return "Renders graphs as ASCII art for terminal or text-based output"
}

// Render creates an ASCII representation of the graph
func (r *ASCIIRenderer) Render(graph *models.Graph, options *OutputOptions) ([]byte, error) {
	return r.Encode(paint(graph), options)
}

// Encode draws the scene on a character grid
func (r *ASCIIRenderer) Encode(scene *Scene, options *OutputOptions) ([]byte, error) {
	// Scale down for ASCII, with an adjustment for the aspect ratio
	width := max(int(options.Width/10), 40)
	height := max(int(options.Height/20), 20)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0] = '+'
	grid[0][width-1] = '+'
	grid[height-1][0] = '+'
	grid[height-1][width-1] = '+'

	t := viewTransform(scene, options)
	cell := func(p models.Point) (int, int) {
		x, y := t.apply(p)
		col := clamp(int(x*float64(width-2)/options.Width)+1, 1, width-2)
		row := clamp(int(y*float64(height-2)/options.Height)+1, 1, height-2)
		return col, row
	}

	elements := scene.Elements()
	for _, el := range elements {
		if el.Kind != KindSegment {
			continue
		}
		x1, y1 := cell(el.Segment.Start)
		x2, y2 := cell(el.Segment.End)
		drawLine(grid, x1, y1, x2, y2, r.glyph(el))
	}

	// Vertices and labels go on top of the links
	for _, el := range elements {
		switch el.Kind {
		case KindVertex:
			x, y := cell(el.At)
			grid[y][x] = 'O'
		case KindLabel:
			if !options.ShowLabels {
				continue
			}
			x, y := cell(el.At)
			if y+1 >= height-1 {
				continue
			}
			for i, c := range []rune(el.Text) {
				if x+i >= width-1 {
					break
				}
				grid[y+1][x+i] = c
			}
		}
	}

	if options.Timestamp && height > 4 {
		timeStr := time.Now().Format("2006-01-02 15:04")
		if len(timeStr) < width-4 {
			for i, c := range timeStr {
				grid[height-2][i+2] = c
			}
		}
	}

	var result strings.Builder
	for _, row := range grid {
		result.WriteString(string(row))
		result.WriteRune('\n')
	}
	return []byte(result.String()), nil
}

func (r *ASCIIRenderer) glyph(el Element) rune {
	g, ok := r.Glyphs[strings.ToLower(el.Color)]
	if !ok {
		g = '*'
	}
	if el.Width > models.NormalWidth {
		return []rune(strings.ToUpper(string(g)))[0]
	}
	return g
}

// PNGRenderer rasterizes the scene with gg
type PNGRenderer struct{}

// Name returns the name of the renderer
func (r *PNGRenderer) Name() string {
	return "PNG Renderer"
}

// Description returns a description of the renderer
func (r *PNGRenderer) Description() string {
	return "Renders graph as a PNG image"
}

// Render creates a PNG representation of the graph
func (r *PNGRenderer) Render(graph *models.Graph, options *OutputOptions) ([]byte, error) {
	return r.Encode(paint(graph), options)
}

// Encode rasterizes the scene. Labels are left out since no font is loaded.
func (r *PNGRenderer) Encode(scene *Scene, options *OutputOptions) ([]byte, error) {
	width, height := int(options.Width), int(options.Height)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	dc := gg.NewContext(width, height)
	defer dc.Close()
	dc.ClearWithColor(gg.Hex(options.Background))

	t := viewTransform(scene, options)
	elements := scene.Elements()
	for _, el := range elements {
		if el.Kind != KindSegment {
			continue
		}
		x1, y1 := t.apply(el.Segment.Start)
		x2, y2 := t.apply(el.Segment.End)
		dc.SetHexColor(el.Color)
		dc.SetLineWidth(el.Width)
		dc.DrawLine(x1, y1, x2, y2)
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("stroke segment: %w", err)
		}
	}
	for _, el := range elements {
		if el.Kind != KindVertex {
			continue
		}
		x, y := t.apply(el.At)
		dc.SetHexColor("#ffffff")
		dc.DrawCircle(x, y, options.NodeRadius)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("fill vertex: %w", err)
		}
		dc.SetHexColor("#333333")
		dc.SetLineWidth(1)
		dc.DrawCircle(x, y, options.NodeRadius)
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("stroke vertex: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// JSONRenderer outputs the graph payload
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders the live graph state in the graph payload format"
}

// Render serializes the current vertices, edges and link colors
func (r *JSONRenderer) Render(graph *models.Graph, options *OutputOptions) ([]byte, error) {
	return json.MarshalIndent(graph.Serialize(), "", "  ")
}

// DOTRenderer outputs Graphviz DOT format
type DOTRenderer struct{}

// Name returns the name of the renderer
func (r *DOTRenderer) Name() string {
	return "DOT Renderer"
}

// Description returns a description of the renderer
func (r *DOTRenderer) Description() string {
	return "Renders graph in Graphviz DOT format for compatibility with Graphviz tools"
}

// Render creates a DOT representation of the graph. Positions are flipped
// into Graphviz's bottom-up frame and pinned; each edge is split into its
// two link colors.
func (r *DOTRenderer) Render(graph *models.Graph, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer
	palette := graph.Palette()

	buf.WriteString("graph G {\n")
	fmt.Fprintf(&buf, "  graph [bgcolor=%q];\n", options.Background)
	fmt.Fprintf(&buf, "  node [shape=circle, fontname=\"Arial\", fontsize=%g];\n", options.FontSize)

	for _, v := range graph.Vertices() {
		fmt.Fprintf(&buf, "  %q [pos=\"%g,%g!\"];\n",
			v.Name, options.Width-v.Position.X, options.Height-v.Position.Y)
	}

	for _, e := range graph.Edges() {
		width := models.NormalWidth
		if e.IsInvalid() {
			width = models.BoldWidth
		}
		fmt.Fprintf(&buf, "  %q -- %q [color=\"%s;0.5:%s\", penwidth=%g];\n",
			e.V1.Name, e.V2.Name,
			palette.Display(e.L1.Color()), palette.Display(e.L2.Color()), width)
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// escapeXML escapes text content for SVG
func escapeXML(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// Clamp a value between lo and hi
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// Draw a line on the ASCII grid using Bresenham's algorithm
func drawLine(grid [][]rune, x1, y1, x2, y2 int, glyph rune) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 >= x2 {
		sx = -1
	}
	sy := 1
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if y1 >= 0 && y1 < len(grid) && x1 >= 0 && x1 < len(grid[0]) {
			grid[y1][x1] = glyph
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
