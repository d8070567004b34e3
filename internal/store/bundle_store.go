package store

import (
	"path/filepath"
	"sync"

	"duet/internal/domain"
)

const bundlesFile = "bundles.json"

// BundleFileStore caches the bundles registered from this home, keyed by
// username.
type BundleFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewBundleFileStore returns a BundleFileStore rooted at dir.
func NewBundleFileStore(dir string) *BundleFileStore {
	return &BundleFileStore{dir: dir}
}

// SavePreKeyBundle records b as the latest bundle for b.Username.
func (s *BundleFileStore) SavePreKeyBundle(b domain.PreKeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, bundlesFile)
	bundles := map[domain.Username]domain.PreKeyBundle{}
	if _, err := readJSON(path, &bundles); err != nil {
		return err
	}
	bundles[b.Username] = b
	return writeJSON(path, bundles, 0o600)
}

// LoadPreKeyBundle returns the cached bundle for username and whether it was present.
func (s *BundleFileStore) LoadPreKeyBundle(username domain.Username) (domain.PreKeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundles := map[domain.Username]domain.PreKeyBundle{}
	if _, err := readJSON(filepath.Join(s.dir, bundlesFile), &bundles); err != nil {
		return domain.PreKeyBundle{}, false, err
	}
	b, ok := bundles[username]
	return b, ok, nil
}

// Compile-time assertion that BundleFileStore implements domain.PreKeyBundleStore.
var _ domain.PreKeyBundleStore = (*BundleFileStore)(nil)
