// Short-lived interactive flows (picking a sanction duration, filling in a room-control form).
//
// A flow that is not completed within its window is abandoned: the store hands it to an abandonment callback so the caller can clear any partial UI. Abandonment never reverts committed state.
package flow

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/avengersguard/guard/moderation/timers"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultWindow = 60 * time.Second

const (
	KindJail     = "jail"
	KindRegister = "register"
	KindRoom     = "room"
)

type Flow struct {
	Key     string
	Kind    string
	GuildID string
	// member who started the flow; only they may complete it
	UserID string
	// jail subject, or the room-control operation
	Target string
	// extra command arguments carried to completion
	Args []string
	// message carrying the flow's UI, cleared on abandonment (may be empty)
	ChannelID string
	MessageID string

	done atomic.Bool
}

// Pending flows, bounded in size and time. Safe for concurrent use.
type Store struct {
	Logger    *slog.Logger
	flows     *expirable.LRU[string, *Flow]
	dispatch  timers.Dispatcher
	onAbandon func(*Flow)
}

// onAbandon runs through dispatch (inline if nil) for every flow that expires or is pushed out before completion.
func NewStore(logger *slog.Logger, capacity int, window time.Duration, dispatch timers.Dispatcher, onAbandon func(*Flow)) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Store{
		Logger:    logger.With("component", "flow"),
		dispatch:  dispatch,
		onAbandon: onAbandon,
	}
	s.flows = expirable.NewLRU[string, *Flow](capacity, s.evicted, window)
	return s
}

func (s *Store) evicted(key string, f *Flow) {
	if !f.done.CompareAndSwap(false, true) {
		return
	}
	flowsTotal.WithLabelValues(f.Kind, "abandoned").Inc()
	s.Logger.Debug("flow abandoned", "key", key, "kind", f.Kind, "user", f.UserID)
	if s.onAbandon == nil {
		return
	}
	// called with the LRU lock held; never block it
	go func() {
		if s.dispatch == nil {
			s.onAbandon(f)
			return
		}
		s.dispatch(func() { s.onAbandon(f) })
	}()
}

// Starts a flow. An existing flow with the same key is abandoned.
func (s *Store) Begin(f *Flow) {
	s.flows.Remove(f.Key)
	s.flows.Add(f.Key, f)
	flowsTotal.WithLabelValues(f.Kind, "started").Inc()
}

// Looks at a pending flow without completing it.
func (s *Store) Peek(key string) (*Flow, bool) {
	f, ok := s.flows.Get(key)
	if !ok || f.done.Load() {
		return nil, false
	}
	return f, true
}

// Completes a pending flow. Returns false if the flow is unknown, expired, or already completed.
func (s *Store) Take(key string) (*Flow, bool) {
	f, ok := s.flows.Get(key)
	if !ok || !f.done.CompareAndSwap(false, true) {
		return nil, false
	}
	s.flows.Remove(key)
	flowsTotal.WithLabelValues(f.Kind, "completed").Inc()
	return f, true
}

func (s *Store) Len() int {
	return s.flows.Len()
}
