package bot

import "sync"

// Conversation states
const (
	stateIdle          = ""
	stateAwaitDomain   = "await_domain"
	stateAwaitRedirect = "await_redirect"
	stateAwaitDeposit  = "await_deposit_amount"
)

// session is the ephemeral state of one in-flight conversation. Each
// session is owned exclusively by the chat that created it.
type session struct {
	State       string
	Domain      string
	RedirectURL string
}

// sessionStore keeps per-user conversation state behind a mutex instead
// of ambient package-level maps.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]*session)}
}

// get returns the user's session, creating an idle one if absent.
func (s *sessionStore) get(userID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{}
		s.sessions[userID] = sess
	}
	return sess
}

func (s *sessionStore) set(userID int64, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = sess
}

func (s *sessionStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
