// Package physics places vertices that arrive without coordinates.
//
// Callers name the vertices to place. Layouts move only those; every other
// vertex is pinned where the payload put it, the origin included, but still
// pushes and pulls on its neighbours.
package physics

import (
	"fmt"
	"math"
	"sync"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/TFMV/echocolor/models"
)

// LayoutAlgorithm defines an interface for layout algorithms
type LayoutAlgorithm interface {
	Initialize(graph *models.Graph, free []string, width, height float64)
	Step() bool // Returns true if stable, false if needs more steps
	Apply(graph *models.Graph)
	GetName() string
}

// Run initializes layout for the free vertices, steps it until it is stable
// or maxSteps is reached and applies the result. It returns the number of
// steps taken.
func Run(layout LayoutAlgorithm, graph *models.Graph, free []string, width, height float64, maxSteps int) int {
	layout.Initialize(graph, free, width, height)
	steps := 0
	for steps < maxSteps {
		steps++
		if layout.Step() {
			break
		}
	}
	layout.Apply(graph)
	return steps
}

// ForceDirectedLayout implements a Fruchterman-Reingold force-directed layout
type ForceDirectedLayout struct {
	width           float64
	height          float64
	names           []string
	pinned          map[string]bool
	nodePositions   map[string]position
	nodeVelocities  map[string]velocity
	forces          map[string]force
	springs         []spring
	temperature     float64
	k               float64 // optimal distance
	iterations      int
	maxIterations   int
	stable          bool
	energyThreshold float64
	mu              sync.Mutex
	gravity         float64 // Gravity factor
	repulsionForce  float64 // Repulsion strength
	dampingFactor   float64 // Damping for velocity
	springConstant  float64 // Spring stiffness
	rand            uint32
}

// Force vector components
type force struct {
	fx, fy float64
}

// Position coordinates
type position struct {
	x, y float64
}

// Velocity vector components
type velocity struct {
	vx, vy float64
}

// spring joins two vertices; parallel edges add up in count
type spring struct {
	a, b  string
	count int
}

// NewForceDirectedLayout creates a new force-directed layout
func NewForceDirectedLayout() *ForceDirectedLayout {
	return &ForceDirectedLayout{
		width:           800,
		height:          600,
		maxIterations:   1000,
		energyThreshold: 0.001,
		gravity:         0.05,
		repulsionForce:  100.0,
		dampingFactor:   0.9,
		springConstant:  0.04,
		rand:            1234567890,
	}
}

// GetName returns the name of the layout algorithm
func (fd *ForceDirectedLayout) GetName() string {
	return "Force-Directed Layout"
}

// Initialize sets up the layout algorithm. Names in free that the graph
// does not know are ignored.
func (fd *ForceDirectedLayout) Initialize(graph *models.Graph, free []string, width, height float64) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if width > 0 {
		fd.width = width
	}
	if height > 0 {
		fd.height = height
	}
	fd.names = fd.names[:0]
	fd.pinned = make(map[string]bool)
	fd.nodePositions = make(map[string]position)
	fd.nodeVelocities = make(map[string]velocity)
	fd.forces = make(map[string]force)
	fd.springs = nil
	fd.temperature = 1.0
	fd.iterations = 0
	fd.stable = false

	vertices := graph.Vertices()
	nodeCount := math.Max(1, float64(len(vertices)))
	fd.k = math.Sqrt(fd.width * fd.height / nodeCount)

	freeSet := make(map[string]bool, len(free))
	for _, name := range free {
		if _, ok := graph.Vertex(name); ok {
			freeSet[name] = true
		}
	}
	unplaced := len(freeSet)

	// Free vertices start on a ring around the center
	radius := math.Min(fd.width, fd.height) * 0.35
	slot := 0
	for _, v := range vertices {
		fd.names = append(fd.names, v.Name)
		if freeSet[v.Name] {
			angle := 2 * math.Pi * float64(slot) / float64(unplaced)
			slot++
			fd.nodePositions[v.Name] = position{
				x: fd.width/2 + radius*math.Cos(angle) + fd.jitter(),
				y: fd.height/2 + radius*math.Sin(angle) + fd.jitter(),
			}
		} else {
			fd.pinned[v.Name] = true
			fd.nodePositions[v.Name] = position{x: v.Position.X, y: v.Position.Y}
		}
		fd.nodeVelocities[v.Name] = velocity{}
		fd.forces[v.Name] = force{}
	}

	index := make(map[[2]string]int)
	for _, e := range graph.Edges() {
		if e.V1 == e.V2 {
			continue
		}
		key := [2]string{e.V1.Name, e.V2.Name}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		if i, ok := index[key]; ok {
			fd.springs[i].count++
			continue
		}
		index[key] = len(fd.springs)
		fd.springs = append(fd.springs, spring{a: key[0], b: key[1], count: 1})
	}

	// Nothing to move
	if unplaced == 0 {
		fd.stable = true
	}
}

// Step performs one iteration of the layout algorithm
func (fd *ForceDirectedLayout) Step() bool {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	// Check if we've exceeded max iterations or reached stability
	if fd.iterations >= fd.maxIterations || fd.stable {
		return true
	}

	for _, name := range fd.names {
		fd.forces[name] = force{}
	}

	centerX := fd.width / 2
	centerY := fd.height / 2
	for i, name1 := range fd.names {
		pos1 := fd.nodePositions[name1]

		// Gravity grows with the distance from the center
		dx := centerX - pos1.x
		dy := centerY - pos1.y
		distance := math.Max(0.1, math.Sqrt(dx*dx+dy*dy))
		gravityFactor := fd.gravity * (distance / math.Min(fd.width, fd.height))
		fd.addForce(name1, dx*gravityFactor, dy*gravityFactor)

		for _, name2 := range fd.names[i+1:] {
			pos2 := fd.nodePositions[name2]

			dx := pos1.x - pos2.x
			dy := pos1.y - pos2.y
			distance := math.Max(0.1, math.Sqrt(dx*dx+dy*dy))

			// F = k^2 / distance
			repulsiveForce := (fd.k * fd.k / distance) * fd.repulsionForce / 100.0
			dx /= distance
			dy /= distance
			fd.addForce(name1, dx*repulsiveForce, dy*repulsiveForce)
			fd.addForce(name2, -dx*repulsiveForce, -dy*repulsiveForce)
		}
	}

	for _, s := range fd.springs {
		pos1 := fd.nodePositions[s.a]
		pos2 := fd.nodePositions[s.b]

		dx := pos2.x - pos1.x
		dy := pos2.y - pos1.y
		distance := math.Max(0.1, math.Sqrt(dx*dx+dy*dy))

		// F = distance^2 / k, stronger for parallel edges
		attractiveForce := distance * distance / fd.k * fd.springConstant
		attractiveForce *= float64(s.count)

		dx /= distance
		dy /= distance
		fd.addForce(s.a, dx*attractiveForce, dy*attractiveForce)
		fd.addForce(s.b, -dx*attractiveForce, -dy*attractiveForce)
	}

	// Apply forces with temperature limiting (simulated annealing)
	totalEnergy := 0.0
	moving := 0
	padding := math.Min(fd.k*0.5, math.Min(fd.width, fd.height)/4)
	for _, name := range fd.names {
		if fd.pinned[name] {
			continue
		}
		moving++
		f := fd.forces[name]
		magnitude := math.Sqrt(f.fx*f.fx + f.fy*f.fy)
		if magnitude > 0 {
			scale := math.Min(magnitude, fd.temperature) / magnitude
			f.fx *= scale
			f.fy *= scale
		}

		v := fd.nodeVelocities[name]
		v.vx = (v.vx + f.fx) * fd.dampingFactor
		v.vy = (v.vy + f.fy) * fd.dampingFactor
		fd.nodeVelocities[name] = v

		pos := fd.nodePositions[name]
		pos.x = math.Max(padding, math.Min(fd.width-padding, pos.x+v.vx))
		pos.y = math.Max(padding, math.Min(fd.height-padding, pos.y+v.vy))
		fd.nodePositions[name] = pos

		totalEnergy += math.Min(magnitude, fd.temperature)
	}

	fd.temperature *= 0.95
	if moving == 0 {
		fd.stable = true
	} else {
		fd.stable = totalEnergy/float64(moving) < fd.energyThreshold
	}

	fd.iterations++
	return fd.stable
}

// Apply moves every free vertex to its computed position
func (fd *ForceDirectedLayout) Apply(graph *models.Graph) {
	fd.mu.Lock()
	positions := fd.placed()
	fd.mu.Unlock()

	for name, p := range positions {
		graph.MoveVertex(name, p)
	}
}

// Positions returns the computed positions of the free vertices
func (fd *ForceDirectedLayout) Positions() map[string]models.Point {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.placed()
}

func (fd *ForceDirectedLayout) placed() map[string]models.Point {
	out := make(map[string]models.Point, len(fd.nodePositions))
	for _, name := range fd.names {
		if fd.pinned[name] {
			continue
		}
		pos := fd.nodePositions[name]
		out[name] = models.Point{X: pos.x, Y: pos.y}
	}
	return out
}

func (fd *ForceDirectedLayout) addForce(name string, fx, fy float64) {
	f := fd.forces[name]
	f.fx += fx
	f.fy += fy
	fd.forces[name] = f
}

// jitter returns a small offset from an xorshift generator
func (fd *ForceDirectedLayout) jitter() float64 {
	fd.rand ^= fd.rand << 13
	fd.rand ^= fd.rand >> 17
	fd.rand ^= fd.rand << 5
	return (float64(fd.rand)/float64(math.MaxUint32) - 0.5) * 2
}

// NoiseLayout runs a force-directed layout and then displaces the vertices
// it placed along a simplex noise field, so regular rings look hand drawn
type NoiseLayout struct {
	base             *ForceDirectedLayout
	noiseGenerator   opensimplex.Noise
	noiseScale       float64
	distortionAmount float64
	timeStep         float64
}

// NewNoiseLayout creates a noise layout with a fixed seed
func NewNoiseLayout(seed int64) *NoiseLayout {
	return &NoiseLayout{
		base:             NewForceDirectedLayout(),
		noiseGenerator:   opensimplex.New(seed),
		noiseScale:       0.03,
		distortionAmount: 20.0,
	}
}

// GetName returns the name of the layout algorithm
func (nl *NoiseLayout) GetName() string {
	return "Noise Layout"
}

// Initialize initializes the underlying force layout
func (nl *NoiseLayout) Initialize(graph *models.Graph, free []string, width, height float64) {
	nl.base.Initialize(graph, free, width, height)
}

// Step performs one iteration of the underlying force layout
func (nl *NoiseLayout) Step() bool {
	return nl.base.Step()
}

// Apply moves the free vertices to their distorted positions
func (nl *NoiseLayout) Apply(graph *models.Graph) {
	for name, p := range nl.base.Positions() {
		n1 := nl.noiseGenerator.Eval3(p.X*nl.noiseScale, p.Y*nl.noiseScale, nl.timeStep)
		n2 := nl.noiseGenerator.Eval3(p.X*nl.noiseScale+100, p.Y*nl.noiseScale+100, nl.timeStep)
		p.X += n1 * nl.distortionAmount
		p.Y += n2 * nl.distortionAmount
		graph.MoveVertex(name, p)
	}
	nl.timeStep += 0.01
}

// GetLayoutAlgorithm returns a layout algorithm by name
func GetLayoutAlgorithm(name string) (LayoutAlgorithm, error) {
	switch name {
	case "", "force":
		return NewForceDirectedLayout(), nil
	case "noise":
		return NewNoiseLayout(1), nil
	default:
		return nil, fmt.Errorf("unknown layout algorithm: %s", name)
	}
}
