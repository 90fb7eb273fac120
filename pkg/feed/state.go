package feed

import (
	"sync"

	"github.com/solvane/phonefleet-console/pkg/models"
)

// Reduce folds one publication into the live-status snapshot without
// mutating the previous snapshot. A later event for the same phone replaces
// the held one; arrival order wins and embedded timestamps are not used to
// reorder.
func Reduce(prev map[string]models.StatusEvent, ev models.StatusEvent) map[string]models.StatusEvent {
	next := make(map[string]models.StatusEvent, len(prev)+1)
	for id, e := range prev {
		next[id] = e
	}
	next[ev.PhoneID] = ev
	return next
}

// State holds the most recent event per phone plus the link indicator, and
// notifies a listener whenever either changes. The connected flag lets the
// UI distinguish "confirmed offline" from "link is down, unknown".
type State struct {
	mu        sync.RWMutex
	events    map[string]models.StatusEvent
	connected bool
	onChange  func()
}

func NewState(onChange func()) *State {
	return &State{
		events:   make(map[string]models.StatusEvent),
		onChange: onChange,
	}
}

// Snapshot returns the current event map and the link indicator. The
// returned map is never mutated afterwards; readers may hold it.
func (s *State) Snapshot() (map[string]models.StatusEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events, s.connected
}

func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *State) apply(ev models.StatusEvent) {
	if ev.PhoneID == "" {
		return
	}
	s.mu.Lock()
	s.events = Reduce(s.events, ev)
	s.mu.Unlock()
	s.notify()
}

// setConnected flips the link indicator. Dropping the link also discards the
// held events: live status is ephemeral and is rebuilt from scratch on the
// next subscription.
func (s *State) setConnected(connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	if !connected {
		s.events = make(map[string]models.StatusEvent)
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *State) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
