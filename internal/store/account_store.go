package store

import (
	"cmp"
	"path/filepath"
	"slices"
	"sync"

	"duet/internal/domain"
)

const accountsFile = "accounts.json"

// AccountFileStore persists per-relay account profiles to disk.
type AccountFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAccountFileStore returns an AccountFileStore rooted at dir.
func NewAccountFileStore(dir string) *AccountFileStore {
	return &AccountFileStore{dir: dir}
}

// accounts is the on-disk layout: relay URL, then username.
type accounts map[string]map[domain.Username]domain.AccountProfile

func (s *AccountFileStore) load() (accounts, error) {
	all := accounts{}
	if _, err := readJSON(filepath.Join(s.dir, accountsFile), &all); err != nil {
		return nil, err
	}
	return all, nil
}

// SaveAccountProfile stores or updates the given profile.
func (s *AccountFileStore) SaveAccountProfile(profile domain.AccountProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if all[profile.ServerURL] == nil {
		all[profile.ServerURL] = map[domain.Username]domain.AccountProfile{}
	}
	all[profile.ServerURL][profile.Username] = profile
	return writeJSON(filepath.Join(s.dir, accountsFile), all, 0o600)
}

// LoadAccountProfile retrieves a profile for (serverURL, username).
func (s *AccountFileStore) LoadAccountProfile(
	serverURL string,
	username domain.Username,
) (domain.AccountProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return domain.AccountProfile{}, false, err
	}
	profile, ok := all[serverURL][username]
	return profile, ok, nil
}

// ListAccountProfiles returns the profiles registered on serverURL, sorted
// by username.
func (s *AccountFileStore) ListAccountProfiles(serverURL string) ([]domain.AccountProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AccountProfile, 0, len(all[serverURL]))
	for _, p := range all[serverURL] {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.AccountProfile) int { return cmp.Compare(a.Username, b.Username) })
	return out, nil
}

// Compile-time assertion that AccountFileStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountFileStore)(nil)
