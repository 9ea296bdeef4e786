package pipeline

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codewithayuu/kira-chan-sub000/internal/continuity"
)

// Session is the per-user conversational state that lives between
// turns but not between restarts. All access goes through the owning
// SessionStore, which serializes turns per user.
type Session struct {
	mu sync.Mutex

	ConversationID string
	Phrases        *continuity.PhraseBank
	Topics         *continuity.TopicStack

	// rng drives the backchannel roll. The session lock serializes
	// turns per user, so each session owning its own source keeps
	// concurrent users off a shared rand.Rand.
	rng *rand.Rand

	summary         string
	turns           int
	lastAssistant   string
	lastBackchannel time.Time
	recent          []string
}

// transcriptKeep bounds how many recent lines feed summary refreshes.
const transcriptKeep = 30

// SessionStore hands out sessions keyed by user ID.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session for a user, creating it on first sight.
func (s *SessionStore) Get(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{
			ConversationID: uuid.NewString(),
			Phrases:        continuity.NewPhraseBank(),
			Topics:         continuity.NewTopicStack(),
			rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		}
		s.sessions[userID] = sess
	}
	return sess
}

// Lock serializes turns for one user. Concurrent turns from different
// users proceed independently.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Summary returns the rolling conversation summary.
func (s *Session) Summary() string { return s.summary }

// SetSummary replaces the rolling summary.
func (s *Session) SetSummary(v string) { s.summary = v }

// Turns returns how many turns this session has completed.
func (s *Session) Turns() int { return s.turns }

// BumpTurns increments the completed-turn count and reports the new value.
func (s *Session) BumpTurns() int {
	s.turns++
	return s.turns
}

// LastAssistant returns the previous assistant message, used by the
// dialog-act classifier's answer heuristic.
func (s *Session) LastAssistant() string { return s.lastAssistant }

// SetLastAssistant records the delivered response.
func (s *Session) SetLastAssistant(v string) { s.lastAssistant = v }

// Remember appends a completed exchange to the transcript window.
func (s *Session) Remember(userMsg, assistantMsg string) {
	s.recent = append(s.recent, "User: "+userMsg, "Assistant: "+assistantMsg)
	if len(s.recent) > transcriptKeep {
		s.recent = s.recent[len(s.recent)-transcriptKeep:]
	}
}

// Transcript renders the recent exchange window for summary prompts.
func (s *Session) Transcript() string {
	return strings.Join(s.recent, "\n")
}

// BackchannelAllowed reports whether the per-user cooldown has
// elapsed; when it has, the clock restarts so at most one backchannel
// fires per window.
func (s *Session) BackchannelAllowed(now time.Time, cooldown time.Duration) bool {
	if now.Sub(s.lastBackchannel) < cooldown {
		return false
	}
	s.lastBackchannel = now
	return true
}
