package crypto

import (
	"crypto/ecdh"
	"errors"
	"fmt"
	"io"

	"duet/internal/domain"
)

const p256ScalarSize = 32

type p256Curve struct{}

// P256 is NIST P-256 ECDH with uncompressed point encoding.
var P256 Curve = p256Curve{}

func (p256Curve) Name() string { return "p256" }

// GenerateKey samples a scalar from rand, rejecting values outside [1, n-1].
// Reading the scalar directly keeps generation reproducible under a seeded reader.
func (c p256Curve) GenerateKey(rand io.Reader) (*KeyPair, error) {
	buf := make([]byte, p256ScalarSize)
	defer Wipe(buf)
	for i := 0; i < 64; i++ {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return nil, err
		}
		if kp, err := c.NewKeyPair(buf); err == nil {
			return kp, nil
		}
	}
	return nil, errors.New("p256: could not sample a private key")
}

func (c p256Curve) NewKeyPair(priv []byte) (*KeyPair, error) {
	k, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("p256: %w", err)
	}
	return &KeyPair{curve: c, priv: k.Bytes(), pub: k.PublicKey().Bytes()}, nil
}

func (p256Curve) exchange(priv, pub []byte) ([]byte, error) {
	k, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("p256: %w", err)
	}
	peer, err := ecdh.P256().NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	return k.ECDH(peer)
}
