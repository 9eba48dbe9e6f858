package models

type recordedSegment struct {
	seg   Segment
	color string
	width float64
}

// recordingCanvas keeps the latest state of every element it was asked to draw
type recordingCanvas struct {
	next     Handle
	segments map[Handle]*recordedSegment
	markers  map[Handle]Point
	labels   map[Handle]string
	restyles int
	clears   int
}

func newRecordingCanvas() *recordingCanvas {
	c := &recordingCanvas{}
	c.ClearAll()
	c.clears = 0
	return c
}

func (c *recordingCanvas) handle() Handle {
	c.next++
	return c.next
}

func (c *recordingCanvas) DrawVertex(p Point) Handle {
	h := c.handle()
	c.markers[h] = p
	return h
}

func (c *recordingCanvas) DrawLabel(p Point, text string) Handle {
	h := c.handle()
	c.markers[h] = p
	c.labels[h] = text
	return h
}

func (c *recordingCanvas) DrawSegment(s Segment, color string, width float64) Handle {
	h := c.handle()
	c.segments[h] = &recordedSegment{seg: s, color: color, width: width}
	return h
}

func (c *recordingCanvas) RestyleSegment(h Handle, color string, width float64, geom *Segment) {
	c.restyles++
	rs, ok := c.segments[h]
	if !ok {
		return
	}
	rs.color = color
	rs.width = width
	if geom != nil {
		rs.seg = *geom
	}
}

func (c *recordingCanvas) MoveMarker(h Handle, p Point) {
	if _, ok := c.markers[h]; ok {
		c.markers[h] = p
	}
}

func (c *recordingCanvas) ClearAll() {
	c.clears++
	c.segments = make(map[Handle]*recordedSegment)
	c.markers = make(map[Handle]Point)
	c.labels = make(map[Handle]string)
}
