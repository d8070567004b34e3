package crypto

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"slices"

	"duet/internal/domain"
)

// Known suites. Suites are not wire-compatible with each other.
const (
	SuiteX25519       domain.SuiteID = "x25519-ed25519-chacha20poly1305-sha256"
	SuiteP256         domain.SuiteID = "p256-ecdsa-aesgcm-sha256"
	SuiteEdwards25519 domain.SuiteID = "edwards25519-schnorr-chacha20poly1305-sha256"

	DefaultSuiteID = SuiteX25519
)

// Suite fixes every primitive of one protocol version.
type Suite struct {
	ID     domain.SuiteID
	Curve  Curve
	Signer SignatureScheme
	Cipher Cipher
	Hash   func() hash.Hash
	// Label prefixes the KDF info string.
	Label string
}

var registry = map[domain.SuiteID]*Suite{
	SuiteX25519: {
		ID:     SuiteX25519,
		Curve:  X25519,
		Signer: Ed25519,
		Cipher: ChaCha20Poly1305,
		Hash:   sha256.New,
		Label:  "duet/" + string(SuiteX25519),
	},
	SuiteP256: {
		ID:     SuiteP256,
		Curve:  P256,
		Signer: ECDSAP256,
		Cipher: AES256GCM,
		Hash:   sha256.New,
		Label:  "duet/" + string(SuiteP256),
	},
	SuiteEdwards25519: {
		ID:     SuiteEdwards25519,
		Curve:  Edwards25519,
		Signer: Schnorr,
		Cipher: ChaCha20Poly1305,
		Hash:   sha256.New,
		Label:  "duet/" + string(SuiteEdwards25519),
	},
}

// LookupSuite returns the suite registered under id. An empty id selects the default.
func LookupSuite(id domain.SuiteID) (*Suite, error) {
	if id == "" {
		id = DefaultSuiteID
	}
	s, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown suite %q", id)
	}
	return s, nil
}

// DefaultSuite returns the X25519 / Ed25519 / ChaCha20-Poly1305 suite.
func DefaultSuite() *Suite { return registry[DefaultSuiteID] }

// SuiteIDs lists the registered suites in sorted order.
func SuiteIDs() []domain.SuiteID {
	ids := make([]domain.SuiteID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Check fails with domain.ErrSuiteMismatch unless id names s.
func (s *Suite) Check(id domain.SuiteID) error {
	if id != s.ID {
		return fmt.Errorf("%w: expected %s, got %q", domain.ErrSuiteMismatch, s.ID, id)
	}
	return nil
}

// DeriveKey derives the counter-th key from raw DH material.
func (s *Suite) DeriveKey(ikm []byte, counter int) ([]byte, error) {
	return DeriveKey(s.Hash, s.Label, ikm, counter)
}

// Seal encrypts with the suite cipher and a fresh random nonce.
func (s *Suite) Seal(rand io.Reader, key, plaintext, ad []byte) (nonce, ciphertext []byte, err error) {
	return Seal(s.Cipher, rand, key, plaintext, ad)
}

// Open decrypts with the suite cipher; failures are domain.ErrAuthentication.
func (s *Suite) Open(key, nonce, ciphertext, ad []byte) ([]byte, error) {
	return Open(s.Cipher, key, nonce, ciphertext, ad)
}
