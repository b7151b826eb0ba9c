package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

// Session pairs one scheduler with its command queue. The scheduler is
// single-writer; the session mutex is what enforces that across
// concurrent HTTP requests.
type Session struct {
	ID        uuid.UUID
	mu        sync.Mutex
	scheduler *Scheduler
	queue     *CommandQueue
	touched   time.Time
}

// With serializes access to the session's scheduler.
func (s *Session) With(fn func(*Scheduler)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	fn(s.scheduler)
}

// Drain empties the session's command queue.
func (s *Session) Drain() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	return s.queue.Drain()
}

// SessionManager owns all live feed sessions. Sessions that go quiet
// are reaped; a client that comes back simply opens a new one.
type SessionManager struct {
	log *logger.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	idleTTL time.Duration
}

func NewSessionManager(log *logger.Logger) *SessionManager {
	return &SessionManager{
		log:      log.With("component", "FeedSessionManager"),
		sessions: make(map[uuid.UUID]*Session),
		idleTTL:  30 * time.Minute,
	}
}

// Open builds a session over the given item order, classifies the
// connection, and mounts the scheduler.
func (m *SessionManager) Open(items []uuid.UUID, sig ConnectionSignals, muted bool) *Session {
	quality := ClassifyConnection(sig)
	queue := NewCommandQueue()
	sess := &Session{
		ID:        uuid.New(),
		queue:     queue,
		scheduler: NewScheduler(m.log, items, quality, queue, WithMuted(muted)),
		touched:   time.Now(),
	}
	sess.scheduler.Mount()

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.log.Debug("Feed session opened",
		"session_id", sess.ID,
		"items", len(items),
		"quality", quality,
	)
	return sess
}

func (m *SessionManager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, faults.ErrNotFound
	}
	return sess, nil
}

func (m *SessionManager) Close(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Reap drops sessions idle past the TTL. Called periodically from the
// server's housekeeping goroutine.
func (m *SessionManager) Reap() int {
	cutoff := time.Now().Add(-m.idleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, sess := range m.sessions {
		sess.mu.Lock()
		idle := sess.touched.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
