package crypto

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"duet/internal/domain"
)

type ed25519Scheme struct{}

// Ed25519 is the default signing scheme.
var Ed25519 SignatureScheme = ed25519Scheme{}

func (ed25519Scheme) Name() string { return "ed25519" }

// GenerateKey returns a new Ed25519 signing key pair.
func (s ed25519Scheme) GenerateKey(rand io.Reader) (*SigningKeyPair, error) {
	pk, sk, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &SigningKeyPair{scheme: s, priv: sk, pub: pk}, nil
}

func (s ed25519Scheme) NewSigningKeyPair(priv []byte) (*SigningKeyPair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519: private key is %d bytes", len(priv))
	}
	sk := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(sk, priv)
	return &SigningKeyPair{scheme: s, priv: sk, pub: sk.Public().(ed25519.PublicKey)}, nil
}

// Verify verifies sig over msg with pub.
func (ed25519Scheme) Verify(pub domain.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

func (ed25519Scheme) sign(_ io.Reader, priv, msg []byte) ([]byte, error) {
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}
