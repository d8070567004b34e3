package store

import (
	"cmp"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"sync"

	"duet/internal/domain"
)

const (
	spkFile        = "signed_pre_key.json"
	opkPairsFile   = "opk_pairs.json"
	prekeyMetaFile = "prekey_meta.json"
)

// PrekeyFileStore persists Signed Pre-Key and One-Time Pre-Key state to disk.
//
// Every method holds the store lock for its whole read-modify-write, so a
// one-time pre-key can be consumed at most once per process.
type PrekeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPrekeyFileStore returns a PrekeyFileStore rooted at dir.
func NewPrekeyFileStore(dir string) *PrekeyFileStore {
	return &PrekeyFileStore{dir: dir}
}

type prekeyMeta struct {
	NextOneTimePreKeyID domain.OneTimePreKeyID `json:"next_one_time_pre_key_id"`
}

// SaveSignedPreKey replaces the current signed pre-key.
func (s *PrekeyFileStore) SaveSignedPreKey(pair domain.SignedPreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.dir, spkFile), pair, 0o600)
}

// LoadSignedPreKey returns the current signed pre-key, if one was saved.
func (s *PrekeyFileStore) LoadSignedPreKey() (domain.SignedPreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pair domain.SignedPreKeyPair
	ok, err := readJSON(filepath.Join(s.dir, spkFile), &pair)
	if err != nil || !ok {
		return domain.SignedPreKeyPair{}, false, err
	}
	return pair, true, nil
}

// ReserveOneTimePreKeyIDs hands out count fresh identifiers and returns the
// first. Identifiers are never reused, even after consumption.
func (s *PrekeyFileStore) ReserveOneTimePreKeyIDs(count int) (domain.OneTimePreKeyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeyMetaFile)
	var meta prekeyMeta
	if _, err := readJSON(path, &meta); err != nil {
		return 0, err
	}
	if count < 0 || uint64(meta.NextOneTimePreKeyID)+uint64(count) > math.MaxUint32 {
		return 0, fmt.Errorf("cannot reserve %d one-time pre-key ids", count)
	}
	first := meta.NextOneTimePreKeyID
	meta.NextOneTimePreKeyID += domain.OneTimePreKeyID(count)
	if err := writeJSON(path, meta, 0o600); err != nil {
		return 0, err
	}
	return first, nil
}

// SaveOneTimePreKeys merges the provided one-time pre-key pairs into the store.
func (s *PrekeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if _, err := readJSON(path, &m); err != nil {
		return err
	}
	for _, p := range pairs {
		m[p.ID] = p
	}
	return writeJSON(path, m, 0o600)
}

// LoadOneTimePreKey returns the pair for id without removing it.
func (s *PrekeyFileStore) LoadOneTimePreKey(
	id domain.OneTimePreKeyID,
) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if _, err := readJSON(filepath.Join(s.dir, opkPairsFile), &m); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	p, ok := m[id]
	return p, ok, nil
}

// ConsumeOneTimePreKey removes id and reports whether it was present.
func (s *PrekeyFileStore) ConsumeOneTimePreKey(id domain.OneTimePreKeyID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if _, err := readJSON(path, &m); err != nil {
		return false, err
	}
	if _, ok := m[id]; !ok {
		return false, nil
	}
	delete(m, id)
	if err := writeJSON(path, m, 0o600); err != nil {
		return false, err
	}
	return true, nil
}

// ListOneTimePreKeyPublics exposes only the public halves for bundling,
// ordered by id.
func (s *PrekeyFileStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if _, err := readJSON(filepath.Join(s.dir, opkPairsFile), &m); err != nil {
		return nil, err
	}

	out := make([]domain.OneTimePreKeyPublic, 0, len(m))
	for id, p := range m {
		out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: p.Pub})
	}
	slices.SortFunc(out, func(a, b domain.OneTimePreKeyPublic) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Compile-time assertion that PrekeyFileStore implements domain.PreKeyStore.
var _ domain.PreKeyStore = (*PrekeyFileStore)(nil)
