package crypto

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"duet/internal/domain"
)

type x25519Curve struct{}

// X25519 is Curve25519 Diffie-Hellman (RFC 7748).
var X25519 Curve = x25519Curve{}

func (x25519Curve) Name() string { return "x25519" }

// GenerateKey returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func (c x25519Curve) GenerateKey(rand io.Reader) (*KeyPair, error) {
	priv := make([]byte, curve25519.ScalarSize)
	defer Wipe(priv)
	if _, err := io.ReadFull(rand, priv); err != nil {
		return nil, err
	}
	clamp(priv)
	return c.NewKeyPair(priv)
}

func (c x25519Curve) NewKeyPair(priv []byte) (*KeyPair, error) {
	if len(priv) != curve25519.ScalarSize {
		return nil, fmt.Errorf("x25519: private key is %d bytes", len(priv))
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	return &KeyPair{curve: c, priv: bytes.Clone(priv), pub: pub}, nil
}

// exchange rejects wrong-length points and low-order points (all-zero output).
func (x25519Curve) exchange(priv, pub []byte) ([]byte, error) {
	if len(pub) != curve25519.PointSize {
		return nil, fmt.Errorf("%w: x25519 point is %d bytes", domain.ErrInvalidKey, len(pub))
	}
	secret, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	return secret, nil
}

func clamp(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
