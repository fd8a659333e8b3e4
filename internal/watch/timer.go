package watch

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// timerSlot holds at most one armed timer. It is not safe for concurrent use;
// the owner guards it with its own mutex.
type timerSlot struct {
	clock clockwork.Clock
	timer clockwork.Timer
	gen   uint64
}

func newTimerSlot(clock clockwork.Clock) timerSlot {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return timerSlot{clock: clock}
}

// arm schedules fn after d and reports true, unless a timer is already armed,
// in which case it does nothing and reports false. fn receives the generation
// it was armed with and must hand it to fire before doing any work.
func (s *timerSlot) arm(d time.Duration, fn func(gen uint64)) bool {
	if s.timer != nil {
		return false
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { fn(gen) })
	return true
}

// fire releases the slot for the timer of generation gen. It reports false if
// that timer was cleared or replaced in the meantime.
func (s *timerSlot) fire(gen uint64) bool {
	if s.timer == nil || gen != s.gen {
		return false
	}
	s.timer = nil
	return true
}

// clear stops the armed timer, if any.
func (s *timerSlot) clear() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.gen++
}

// armed reports whether a timer is pending.
func (s *timerSlot) armed() bool {
	return s.timer != nil
}
