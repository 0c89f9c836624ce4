package history

import (
	"fmt"
	"sync"
	"time"
)

// Store keeps a bounded FIFO of turns per session. Sessions are fully
// independent: each holds its own lock, so operations on one session never
// block another. The registry lock is held only long enough to find or
// create the session entry.
type Store struct {
	window int

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	turns []Turn
}

func NewStore(window int) (*Store, error) {
	if window <= 0 {
		return nil, fmt.Errorf("context window must be > 0")
	}
	return &Store{window: window, sessions: map[string]*session{}}, nil
}

func (s *Store) Window() int {
	return s.window
}

// Append records a completed turn, evicting the oldest when the session
// is at capacity.
func (s *Store) Append(sessionID string, turn Turn) {
	sess := s.sessionFor(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turns = append(sess.turns, turn)
	if len(sess.turns) > s.window {
		overflow := len(sess.turns) - s.window
		sess.turns = append([]Turn(nil), sess.turns[overflow:]...)
	}
}

// Recent returns the last min(n, retained) turns in chronological order.
func (s *Store) Recent(sessionID string, n int) []Turn {
	if n <= 0 {
		return nil
	}
	sess := s.sessionFor(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := len(sess.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(sess.turns)-start)
	copy(out, sess.turns[start:])
	return out
}

func (s *Store) Clear(sessionID string) {
	sess := s.sessionFor(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = nil
}

// Export snapshots the session's retained history.
func (s *Store) Export(sessionID string) Snapshot {
	sess := s.sessionFor(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	turns := make([]Turn, len(sess.turns))
	copy(turns, sess.turns)
	return Snapshot{
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
		Turns:      turns,
	}
}

func (s *Store) Summarize(sessionID string) Summary {
	sess := s.sessionFor(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	summary := Summary{
		TotalTurns:  len(sess.turns),
		WindowSize:  s.window,
		WindowUsage: len(sess.turns),
	}
	for _, turn := range sess.turns {
		if turn.Status == TurnSucceeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	if summary.WindowUsage >= s.window {
		summary.Warning = fmt.Sprintf("context window is full (%d/%d); older turns are evicted", summary.WindowUsage, s.window)
	}
	return summary
}

func (s *Store) sessionFor(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	return sess
}
