// Package playback replays a queue of color-swap operations against a graph,
// one operation per scheduled tick.
//
// An Engine is not safe for concurrent use. Every call, including the ticks
// fired by its Scheduler, must run on the same goroutine; Loop provides that
// goroutine for hosts that receive commands from several sources.
package playback

import (
	"time"

	"github.com/TFMV/echocolor/models"
	"github.com/pkg/errors"
)

// DefaultDelay is the pause between two ticks
const DefaultDelay = 200 * time.Millisecond

// ErrNotReady is returned by Progress before an operation queue is loaded
var ErrNotReady = errors.New("playback: no operations loaded")

// State is the playback state of an Engine
type State int

// Engine states. Finished is terminal.
const (
	NotReady State = iota
	Stopped
	Playing
	Finished
)

// String returns the state name
func (s State) String() string {
	switch s {
	case NotReady:
		return "not_ready"
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Target is the part of a graph the engine drives
type Target interface {
	SwapColorsAt(name string, colorA, colorB int)
	RedrawAll()
}

// StateListener is told about every state transition
type StateListener func(prev, next State)

// ProgressListener is told about every applied operation
type ProgressListener func(op models.Operation, cursor, total int)

// Option configures an Engine
type Option func(*Engine)

// WithDelay sets the pause between ticks
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.delay = d
		}
	}
}

// Engine is the playback state machine
type Engine struct {
	target Target
	sched  Scheduler
	delay  time.Duration

	state  State
	queue  []models.Operation
	cursor int

	// generation changes on every Play so ticks scheduled by an earlier
	// run can recognise themselves as stale
	generation uint64

	stateListeners    []StateListener
	progressListeners []ProgressListener
}

// New creates an engine in the NotReady state
func New(target Target, sched Scheduler, opts ...Option) *Engine {
	e := &Engine{
		target: target,
		sched:  sched,
		delay:  DefaultDelay,
		state:  NotReady,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddStateListener registers fn for state transitions
func (e *Engine) AddStateListener(fn StateListener) {
	e.stateListeners = append(e.stateListeners, fn)
}

// AddProgressListener registers fn for applied operations
func (e *Engine) AddProgressListener(fn ProgressListener) {
	e.progressListeners = append(e.progressListeners, fn)
}

// LoadOperations installs the operation queue and moves to Stopped.
// It is ignored unless the engine is NotReady.
func (e *Engine) LoadOperations(ops []models.Operation) bool {
	if e.state != NotReady {
		return false
	}
	e.queue = append([]models.Operation(nil), ops...)
	e.cursor = 0
	e.setState(Stopped)
	return true
}

// Play starts or resumes playback from Stopped and runs the first tick
// immediately. It is ignored in any other state.
func (e *Engine) Play() bool {
	if e.state != Stopped {
		return false
	}
	e.generation++
	e.setState(Playing)
	e.tick(e.generation)
	return true
}

// Stop pauses playback. The cursor is kept so Play resumes where it left off.
func (e *Engine) Stop() bool {
	if e.state != Playing {
		return false
	}
	e.setState(Stopped)
	return true
}

// State returns the current state
func (e *Engine) State() State {
	return e.state
}

// Cursor returns the number of operations applied so far
func (e *Engine) Cursor() int {
	return e.cursor
}

// Total returns the length of the operation queue
func (e *Engine) Total() int {
	return len(e.queue)
}

// Remaining returns a copy of the operations not applied yet
func (e *Engine) Remaining() []models.Operation {
	if e.cursor >= len(e.queue) {
		return []models.Operation{}
	}
	return append([]models.Operation(nil), e.queue[e.cursor:]...)
}

// Delay returns the pause between ticks
func (e *Engine) Delay() time.Duration {
	return e.delay
}

// Progress returns the percentage of applied operations. An empty queue
// counts as complete.
func (e *Engine) Progress() (float64, error) {
	if e.state == NotReady {
		return 0, ErrNotReady
	}
	if len(e.queue) == 0 {
		return 100, nil
	}
	return 100 * float64(e.cursor) / float64(len(e.queue)), nil
}

func (e *Engine) tick(gen uint64) {
	if e.state != Playing || gen != e.generation {
		return
	}
	if e.cursor >= len(e.queue) {
		e.setState(Finished)
		return
	}

	op := e.queue[e.cursor]
	e.target.SwapColorsAt(op.Vertex, op.ColorA, op.ColorB)
	e.cursor++
	for _, fn := range e.progressListeners {
		fn(op, e.cursor, len(e.queue))
	}
	e.target.RedrawAll()

	if e.cursor < len(e.queue) {
		e.sched.ScheduleAfter(e.delay, func() { e.tick(gen) })
		return
	}
	e.setState(Finished)
}

func (e *Engine) setState(next State) {
	prev := e.state
	e.state = next
	for _, fn := range e.stateListeners {
		fn(prev, next)
	}
}
