package store

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"duet/internal/domain"
)

const sessionsFilename = "sessions.json"

// SessionFileStore persists established sessions to disk, one per peer.
// A newer handshake with the same peer replaces the older session.
type SessionFileStore struct {
	path string
	mu   sync.Mutex
}

// NewSessionFileStore returns a SessionFileStore rooted at dir.
func NewSessionFileStore(dir string) *SessionFileStore {
	return &SessionFileStore{path: filepath.Join(dir, sessionsFilename)}
}

// load must be called with mu held.
func (s *SessionFileStore) load() (map[domain.Username]domain.Session, error) {
	sessions := map[domain.Username]domain.Session{}
	if _, err := readJSON(s.path, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SaveSession writes a session record for peer.
func (s *SessionFileStore) SaveSession(peer domain.Username, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	sessions[peer] = session
	return writeJSON(s.path, sessions, 0o600)
}

// LoadSession retrieves a stored session for peer.
func (s *SessionFileStore) LoadSession(peer domain.Username) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return domain.Session{}, false, err
	}
	session, ok := sessions[peer]
	return session, ok, nil
}

// ListSessions returns every stored session ordered by peer.
func (s *SessionFileStore) ListSessions() ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Session, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess)
	}
	slices.SortFunc(out, func(a, b domain.Session) int {
		return strings.Compare(string(a.Peer), string(b.Peer))
	})
	return out, nil
}

// Compile-time assertion that SessionFileStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionFileStore)(nil)
