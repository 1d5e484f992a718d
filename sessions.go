package rca

import (
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Session is one logical conversation: an opaque id plus an ordered,
// append-only message history. Sessions are created on first reference
// and live for the process lifetime.
//
// Two locks with distinct jobs: turnMu serializes whole chat turns
// (append user -> invoke -> append assistant) so replies on one session
// arrive in order, while histMu guards the message slice for readers
// that only want a snapshot. Different sessions never contend.
type Session struct {
	id        string
	createdAt time.Time

	turnMu sync.Mutex

	histMu   sync.Mutex
	messages []Message
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was first referenced.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// BeginTurn acquires the per-session turn lock. One message-append-and-
// invoke cycle completes before the next message on the same session
// starts.
func (s *Session) BeginTurn() { s.turnMu.Lock() }

// EndTurn releases the per-session turn lock.
func (s *Session) EndTurn() { s.turnMu.Unlock() }

// Append adds a message with the next index and returns the stored copy.
func (s *Session) Append(role Role, content string) Message {
	return s.append(Message{Role: role, Content: content})
}

// AppendToolResult records a tool round-trip output as a RoleTool message.
func (s *Session) AppendToolResult(toolName, content string) Message {
	return s.append(Message{Role: RoleTool, ToolName: toolName, Content: content})
}

func (s *Session) append(msg Message) Message {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	msg.Index = len(s.messages)
	msg.CreatedAt = time.Now()
	s.messages = append(s.messages, msg)
	return msg
}

// History returns a copy of the ordered message history.
func (s *Session) History() []Message {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the current history length.
func (s *Session) Len() int {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	return len(s.messages)
}

// sessionStore is the process-wide session registry. It exclusively
// owns Session data; entries are mutated only through the agent for
// their own session id.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

// getOrCreate returns the session for id, creating it on first
// reference. The second return reports whether a new session was made.
func (st *sessionStore) getOrCreate(id string) (*Session, bool) {
	st.mu.RLock()
	sess := st.sessions[id]
	st.mu.RUnlock()
	if sess != nil {
		return sess, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess := st.sessions[id]; sess != nil {
		return sess, false
	}
	sess = &Session{id: id, createdAt: time.Now()}
	st.sessions[id] = sess
	return sess, true
}

// get returns an existing session or a not-found error.
func (st *sessionStore) get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("session not found", nil))
	}
	return sess, nil
}

// count returns the number of live sessions.
func (st *sessionStore) count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// clear drops every session. Intended for shutdown; history is
// transient by design and lost here.
func (st *sessionStore) clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = make(map[string]*Session)
}
