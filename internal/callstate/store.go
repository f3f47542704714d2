package callstate

import (
	"sync"
	"time"
)

// Store maps call-id to CallState. It mirrors the teacher module's
// Provider.calls/Provider.connections pattern (transport/provider.go,
// callsystem/provider.go): a single mutex protects the map structure,
// while callers lock individual CallState entries for field mutation so
// readers across goroutines (the transcription webhook, the idle timer,
// the auto-press engine) never race the orchestrator.
type Store struct {
	mu    sync.RWMutex
	calls map[string]*CallState
}

// New returns an empty Store.
func New() *Store {
	return &Store{calls: make(map[string]*CallState)}
}

// Create inserts a new CallState with defaults for callID, returning the
// existing entry if one is already present (idempotent on retried
// "start" events).
func (s *Store) Create(callID string, now time.Time) *CallState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.calls[callID]; ok {
		return cs
	}
	cs := &CallState{
		CallID: callID,
		Phase:  PhaseNew,
		Meta:   Meta{StartedAt: now},
	}
	s.calls[callID] = cs
	return cs
}

// Get looks up a call by id.
func (s *Store) Get(callID string) (*CallState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.calls[callID]
	return cs, ok
}

// GetByStreamID finds a call by its telephony stream id. Linear scan is
// fine: the number of concurrently live calls on one gateway process is
// small compared to the cost of keeping a second index consistent under
// both start and cleanup.
func (s *Store) GetByStreamID(streamID string) (*CallState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cs := range s.calls {
		cs.Lock()
		match := cs.StreamID == streamID
		cs.Unlock()
		if match {
			return cs, true
		}
	}
	return nil, false
}

// Remove deletes a call's state. Called when the orchestrator reaches
// DONE; the store must survive socket teardown, so Remove is a distinct,
// later step than closing the sockets.
func (s *Store) Remove(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.calls, callID)
}

// Len reports the number of live calls, for health/metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}
