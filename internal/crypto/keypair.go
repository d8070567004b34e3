package crypto

import (
	"bytes"
	"errors"
	"io"

	"duet/internal/domain"
)

var errWiped = errors.New("key handle has been wiped")

// Curve is a Diffie-Hellman group.
type Curve interface {
	Name() string
	// GenerateKey returns a fresh key pair using randomness read from rand.
	GenerateKey(rand io.Reader) (*KeyPair, error)
	// NewKeyPair rebuilds a key pair from its private encoding.
	NewKeyPair(priv []byte) (*KeyPair, error)
	exchange(priv, pub []byte) ([]byte, error)
}

// SignatureScheme signs and verifies signed pre-keys.
type SignatureScheme interface {
	Name() string
	GenerateKey(rand io.Reader) (*SigningKeyPair, error)
	NewSigningKeyPair(priv []byte) (*SigningKeyPair, error)
	Verify(pub domain.PublicKey, msg, sig []byte) bool
	sign(rand io.Reader, priv, msg []byte) ([]byte, error)
}

// KeyPair is an exchange key handle. It exclusively owns its private half;
// copies are only made through Clone and MarshalPrivate.
type KeyPair struct {
	curve Curve
	priv  []byte
	pub   []byte
}

// Curve returns the group the key belongs to.
func (k *KeyPair) Curve() Curve { return k.curve }

// Public returns a copy of the public encoding.
func (k *KeyPair) Public() domain.PublicKey { return bytes.Clone(k.pub) }

// Exchange computes the shared secret with peer.
// An invalid peer encoding fails with domain.ErrInvalidKey.
func (k *KeyPair) Exchange(peer domain.PublicKey) ([]byte, error) {
	if k == nil || k.priv == nil {
		return nil, errWiped
	}
	return k.curve.exchange(k.priv, peer)
}

// Clone returns an independent handle over the same key.
func (k *KeyPair) Clone() *KeyPair {
	return &KeyPair{curve: k.curve, priv: bytes.Clone(k.priv), pub: bytes.Clone(k.pub)}
}

// MarshalPrivate returns a copy of the private encoding for storage.
func (k *KeyPair) MarshalPrivate() []byte { return bytes.Clone(k.priv) }

// Wipe zeroes the private half. The handle cannot exchange afterwards.
func (k *KeyPair) Wipe() {
	if k == nil {
		return
	}
	Wipe(k.priv)
	k.priv = nil
}

// SigningKeyPair is a signing key handle with the same ownership rules as KeyPair.
type SigningKeyPair struct {
	scheme SignatureScheme
	priv   []byte
	pub    []byte
}

// Public returns a copy of the verification key encoding.
func (k *SigningKeyPair) Public() domain.PublicKey { return bytes.Clone(k.pub) }

// Sign signs msg. Schemes that need randomness read it from rand.
func (k *SigningKeyPair) Sign(rand io.Reader, msg []byte) ([]byte, error) {
	if k == nil || k.priv == nil {
		return nil, errWiped
	}
	return k.scheme.sign(rand, k.priv, msg)
}

// MarshalPrivate returns a copy of the private encoding for storage.
func (k *SigningKeyPair) MarshalPrivate() []byte { return bytes.Clone(k.priv) }

// Wipe zeroes the private half.
func (k *SigningKeyPair) Wipe() {
	if k == nil {
		return
	}
	Wipe(k.priv)
	k.priv = nil
}
