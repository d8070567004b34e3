package store

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"duet/internal/crypto"
	"duet/internal/domain"
)

const idFilename = "identity.json.enc"

// IdentityFileStore persists the local identity to disk, sealed under a
// passphrase-derived key.
type IdentityFileStore struct {
	dir  string
	kdf  KDF
	rand io.Reader
	mu   sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir. New
// writes use kdf; rand supplies the per-write salt.
func NewIdentityFileStore(dir string, kdf KDF, rand io.Reader) *IdentityFileStore {
	return &IdentityFileStore{dir: dir, kdf: kdf, rand: rand}
}

// SaveIdentity writes the encrypted identity to disk.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	defer crypto.Wipe(raw)

	ct, err := encrypt(s.rand, s.kdf, passphrase, raw)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, idFilename), ct, 0o600)
}

// LoadIdentity reads and decrypts the identity. A missing keystore yields
// domain.ErrNotFound.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(filepath.Join(s.dir, idFilename))
	if err != nil {
		return domain.Identity{}, err
	}
	if b == nil {
		return domain.Identity{}, fmt.Errorf("identity in %s: %w", s.dir, domain.ErrNotFound)
	}
	pt, err := decrypt(passphrase, b)
	if err != nil {
		return domain.Identity{}, err
	}
	defer crypto.Wipe(pt)

	var id domain.Identity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
