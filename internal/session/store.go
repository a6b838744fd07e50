// Package session holds per-user conversation state for the lifetime of the
// process. Sessions are created lazily, replaced on /reset or idle timeout,
// and never persisted.
package session

import (
	"sync"
	"time"

	"github.com/quibblebot/quibble/llm"
)

// Session is one user's conversation state. DocumentText and ImageBase64 are
// mutually exclusive; setting one clears the other. History grows without
// bound within a session's lifetime.
type Session struct {
	History      []llm.Message
	LastActivity time.Time
	DocumentText string
	ImageBase64  string
}

// SetDocument stores extracted document text as the pending attachment.
func (s *Session) SetDocument(text string) {
	s.DocumentText = text
	s.ImageBase64 = ""
}

// SetImage stores an encoded image payload as the pending attachment.
func (s *Session) SetImage(b64 string) {
	s.ImageBase64 = b64
	s.DocumentText = ""
}

type tracked struct {
	sess    *Session
	version uint64
}

// Store maps user IDs to sessions. All session access goes through the store
// lock; long-running turns snapshot state via Mutate, run outside the lock,
// and write back with MutateIfCurrent so a /reset issued mid-turn wins.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*tracked
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*tracked)}
}

func (st *Store) getOrCreateLocked(userID int64, now time.Time) *tracked {
	tr, ok := st.sessions[userID]
	if !ok {
		tr = &tracked{sess: &Session{LastActivity: now}}
		st.sessions[userID] = tr
	}
	return tr
}

// GetOrCreate returns a copy of the user's session, creating an empty one
// first if absent.
func (st *Store) GetOrCreate(userID int64, now time.Time) Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr := st.getOrCreateLocked(userID, now)
	cp := *tr.sess
	cp.History = append([]llm.Message(nil), tr.sess.History...)
	return cp
}

// Mutate runs fn on the user's session under the store lock, creating the
// session first if absent, and returns the session version fn observed.
func (st *Store) Mutate(userID int64, now time.Time, fn func(*Session)) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr := st.getOrCreateLocked(userID, now)
	fn(tr.sess)
	return tr.version
}

// MutateIfCurrent applies fn only when the session version still matches,
// i.e. no reset happened since the version was observed. Reports whether fn
// ran.
func (st *Store) MutateIfCurrent(userID int64, version uint64, fn func(*Session)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr, ok := st.sessions[userID]
	if !ok || tr.version != version {
		return false
	}
	fn(tr.sess)
	return true
}

// Reset replaces the session with a fresh empty one and invalidates versions
// observed before the call.
func (st *Store) Reset(userID int64, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr := st.getOrCreateLocked(userID, now)
	tr.sess = &Session{LastActivity: now}
	tr.version++
}

// ResetIfIdle performs Reset when the session exists and its last activity is
// older than threshold. Reports whether a reset happened.
func (st *Store) ResetIfIdle(userID int64, threshold time.Duration, now time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr, ok := st.sessions[userID]
	if !ok || now.Sub(tr.sess.LastActivity) <= threshold {
		return false
	}
	tr.sess = &Session{LastActivity: now}
	tr.version++
	return true
}

// Touch updates the session's last-activity timestamp.
func (st *Store) Touch(userID int64, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.getOrCreateLocked(userID, now).sess.LastActivity = now
}
