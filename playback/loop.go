package playback

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrLoopClosed is returned when work is handed to a loop that has stopped
var ErrLoopClosed = errors.New("playback: loop closed")

// ErrLoopRunning is returned by Run when the loop is already running
var ErrLoopRunning = errors.New("playback: loop already running")

// Loop runs posted functions one at a time on a single goroutine. It is the
// event dispatch that serializes graph mutations, commands and ticks.
type Loop struct {
	tasks   chan func()
	done    chan struct{}
	running atomic.Bool
}

// NewLoop creates a loop whose queue holds up to buffer pending functions
func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run processes posted functions until ctx is canceled. It returns ctx.Err().
// A loop can run only once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Start runs the loop on a new goroutine
func (l *Loop) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Done is closed once the loop has stopped
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn and reports whether it was accepted. It blocks while the
// queue is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to return. It must not be called
// from the loop goroutine itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// the loop may have run fn just before stopping
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}
