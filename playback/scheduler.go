package playback

import (
	"time"
)

// Scheduler defers a callback by a delay
type Scheduler interface {
	ScheduleAfter(d time.Duration, fn func())
}

// Immediate runs every callback synchronously, ignoring the delay
type Immediate struct{}

// ScheduleAfter calls fn right away
func (Immediate) ScheduleAfter(_ time.Duration, fn func()) {
	fn()
}

type pendingCall struct {
	delay time.Duration
	fn    func()
}

// ManualScheduler queues callbacks until the caller fires them
type ManualScheduler struct {
	pending []pendingCall
	elapsed time.Duration
}

// ScheduleAfter queues fn
func (s *ManualScheduler) ScheduleAfter(d time.Duration, fn func()) {
	s.pending = append(s.pending, pendingCall{delay: d, fn: fn})
}

// Pending returns the number of queued callbacks
func (s *ManualScheduler) Pending() int {
	return len(s.pending)
}

// Elapsed returns the sum of the delays of all fired callbacks
func (s *ManualScheduler) Elapsed() time.Duration {
	return s.elapsed
}

// RunNext fires the oldest queued callback and reports whether there was one
func (s *ManualScheduler) RunNext() bool {
	if len(s.pending) == 0 {
		return false
	}
	call := s.pending[0]
	s.pending = s.pending[1:]
	s.elapsed += call.delay
	call.fn()
	return true
}

// RunAll fires callbacks, including ones they schedule, until none are left.
// It returns how many were fired.
func (s *ManualScheduler) RunAll() int {
	n := 0
	for s.RunNext() {
		n++
	}
	return n
}

// TimerScheduler defers callbacks with time.AfterFunc and runs them on a Loop
type TimerScheduler struct {
	loop *Loop
}

// NewTimerScheduler creates a scheduler that delivers callbacks to loop
func NewTimerScheduler(loop *Loop) *TimerScheduler {
	return &TimerScheduler{loop: loop}
}

// ScheduleAfter posts fn to the loop once d has elapsed
func (s *TimerScheduler) ScheduleAfter(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		s.loop.Post(fn)
	})
}
