package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"io"

	"duet/internal/domain"
)

var errNotP256 = errors.New("ecdsa: key is not a P-256 key")

type ecdsaP256Scheme struct{}

// ECDSAP256 signs SHA-256 digests with ECDSA over P-256. Keys travel as
// PKIX (public) and PKCS #8 (private); signatures are ASN.1 DER.
var ECDSAP256 SignatureScheme = ecdsaP256Scheme{}

func (ecdsaP256Scheme) Name() string { return "ecdsa-p256-sha256" }

func (s ecdsaP256Scheme) GenerateKey(rand io.Reader) (*SigningKeyPair, error) {
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand)
	if err != nil {
		return nil, err
	}
	return s.fromKey(k)
}

func (s ecdsaP256Scheme) NewSigningKeyPair(priv []byte) (*SigningKeyPair, error) {
	k, err := parseECDSAPrivate(priv)
	if err != nil {
		return nil, err
	}
	return s.fromKey(k)
}

func (s ecdsaP256Scheme) fromKey(k *ecdsa.PrivateKey) (*SigningKeyPair, error) {
	priv, err := x509.MarshalPKCS8PrivateKey(k)
	if err != nil {
		return nil, err
	}
	pub, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	if err != nil {
		return nil, err
	}
	return &SigningKeyPair{scheme: s, priv: priv, pub: pub}, nil
}

func (ecdsaP256Scheme) Verify(pub domain.PublicKey, msg, sig []byte) bool {
	parsed, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return false
	}
	k, ok := parsed.(*ecdsa.PublicKey)
	if !ok || k.Curve != elliptic.P256() {
		return false
	}
	digest := sha256.Sum256(msg)
	return ecdsa.VerifyASN1(k, digest[:], sig)
}

func (ecdsaP256Scheme) sign(rand io.Reader, priv, msg []byte) ([]byte, error) {
	k, err := parseECDSAPrivate(priv)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(msg)
	return ecdsa.SignASN1(rand, k, digest[:])
}

func parseECDSAPrivate(priv []byte) (*ecdsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	k, ok := parsed.(*ecdsa.PrivateKey)
	if !ok || k.Curve != elliptic.P256() {
		return nil, errNotP256
	}
	return k, nil
}
