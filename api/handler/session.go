package handler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Gl0balRak/textanalyzer-gateway/pipeline"
)

// SessionHeader carries the client's workspace identifier. Missing or
// unknown IDs transparently create a fresh session; the assigned ID is
// echoed back on every response.
const SessionHeader = "X-Session-ID"

// Session is one client's analysis workspace: a pipeline coordinator
// plus the stop words uploaded for it.
type Session struct {
	ID          string
	Coordinator *pipeline.Coordinator

	mu        sync.Mutex
	stopwords []string
	lastSeen  time.Time
}

// Stopwords returns a copy of the session's uploaded stop words.
func (s *Session) Stopwords() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stopwords...)
}

// SetStopwords replaces the session's stop word list.
func (s *Session) SetStopwords(words []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopwords = words
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

// SessionStore keeps per-client sessions and evicts idle ones in the
// background.
type SessionStore struct {
	sessions sync.Map // session ID -> *Session
	factory  func() *pipeline.Coordinator
	idleTTL  time.Duration
}

// NewSessionStore creates the store and starts the idle-eviction
// goroutine.
func NewSessionStore(factory func() *pipeline.Coordinator, idleTTL time.Duration) *SessionStore {
	st := &SessionStore{
		factory: factory,
		idleTTL: idleTTL,
	}
	go st.expiryLoop()
	return st
}

// Acquire resolves the request's session, creating one when the header
// is absent or names an expired session, and sets the response header.
func (st *SessionStore) Acquire(c *gin.Context) *Session {
	id := c.GetHeader(SessionHeader)
	if id != "" {
		if v, ok := st.sessions.Load(id); ok {
			sess := v.(*Session)
			sess.touch()
			c.Header(SessionHeader, sess.ID)
			return sess
		}
	}

	sess := &Session{
		ID:          uuid.New().String(),
		Coordinator: st.factory(),
		lastSeen:    time.Now(),
	}
	st.sessions.Store(sess.ID, sess)
	c.Header(SessionHeader, sess.ID)
	slog.Info("session created", "session_id", sess.ID)
	return sess
}

// Count returns the number of live sessions.
func (st *SessionStore) Count() int {
	n := 0
	st.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (st *SessionStore) expiryLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-st.idleTTL)
		st.sessions.Range(func(key, value any) bool {
			sess := value.(*Session)
			if sess.idleSince(cutoff) {
				sess.Coordinator.ResetAll()
				st.sessions.Delete(key)
				slog.Info("session expired", "session_id", sess.ID)
			}
			return true
		})
	}
}
