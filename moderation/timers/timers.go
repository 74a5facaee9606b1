// Keyed one-shot timers.
//
// At most one timer is outstanding per key. Arming a key again stops and replaces the earlier timer. Every arm bumps a generation number; a firing timer whose generation is no longer current does nothing, which covers the window where Stop loses the race against an already-triggered callback.
package timers

import (
	"time"

	"github.com/avengersguard/guard/moderation/clock"
)

// Runs a callback on the control thread. Production code passes the dispatch loop's Submit; nil runs callbacks directly on the clock's goroutine.
type Dispatcher func(fn func())

type entry struct {
	gen   uint64
	timer clock.Timer
}

// Not safe for concurrent use; Arm, Cancel and fired callbacks must all execute on the same control thread.
type Set struct {
	clock    clock.Clock
	dispatch Dispatcher
	gen      uint64
	entries  map[string]*entry
}

func NewSet(c clock.Clock, dispatch Dispatcher) *Set {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Set{
		clock:    c,
		dispatch: dispatch,
		entries:  make(map[string]*entry),
	}
}

// Schedules f to run after d under key, replacing any timer already armed for that key. Returns the generation number of the new timer.
func (s *Set) Arm(key string, d time.Duration, f func()) uint64 {
	s.Cancel(key)
	s.gen++
	gen := s.gen
	e := &entry{gen: gen}
	e.timer = s.clock.AfterFunc(d, func() {
		s.dispatch(func() {
			cur, ok := s.entries[key]
			if !ok || cur.gen != gen {
				return
			}
			delete(s.entries, key)
			f()
		})
	})
	s.entries[key] = e
	return gen
}

// Stops the timer for key, if any. Returns true if a timer was outstanding.
func (s *Set) Cancel(key string) bool {
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

func (s *Set) Armed(key string) bool {
	_, ok := s.entries[key]
	return ok
}

func (s *Set) Len() int {
	return len(s.entries)
}
