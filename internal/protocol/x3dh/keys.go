package x3dh

import (
	"fmt"
	"io"
	"time"

	"duet/internal/crypto"
	"duet/internal/domain"
)

// NewIdentity generates long-term exchange and signing keys.
func NewIdentity(suite *crypto.Suite, rand io.Reader) (Identity, error) {
	ex, err := suite.Curve.GenerateKey(rand)
	if err != nil {
		return Identity{}, fmt.Errorf("generate identity key: %w", err)
	}
	sk, err := suite.Signer.GenerateKey(rand)
	if err != nil {
		ex.Wipe()
		return Identity{}, fmt.Errorf("generate signing key: %w", err)
	}
	return Identity{Exchange: ex, Signing: sk}, nil
}

// IdentityFromRecord rebuilds key handles from a stored identity.
func IdentityFromRecord(suite *crypto.Suite, rec domain.Identity) (Identity, error) {
	if err := suite.Check(rec.Suite); err != nil {
		return Identity{}, err
	}
	ex, err := suite.Curve.NewKeyPair(rec.ExchangePriv)
	if err != nil {
		return Identity{}, fmt.Errorf("identity key: %w", err)
	}
	sk, err := suite.Signer.NewSigningKeyPair(rec.SigningPriv)
	if err != nil {
		ex.Wipe()
		return Identity{}, fmt.Errorf("signing key: %w", err)
	}
	return Identity{Exchange: ex, Signing: sk}, nil
}

// Record returns the storable form of id.
func (id Identity) Record(suite *crypto.Suite) domain.Identity {
	return domain.Identity{
		Suite:        suite.ID,
		ExchangePriv: id.Exchange.MarshalPrivate(),
		ExchangePub:  id.Exchange.Public(),
		SigningPriv:  id.Signing.MarshalPrivate(),
		SigningPub:   id.Signing.Public(),
		CreatedUTC:   time.Now().UTC().Unix(),
	}
}

// NewSignedPreKey generates a signed pre-key and signs its public encoding
// with the identity's signing key.
func NewSignedPreKey(suite *crypto.Suite, rand io.Reader, id Identity) (SignedPreKey, error) {
	kp, err := suite.Curve.GenerateKey(rand)
	if err != nil {
		return SignedPreKey{}, fmt.Errorf("generate signed pre-key: %w", err)
	}
	sig, err := id.Signing.Sign(rand, kp.Public())
	if err != nil {
		kp.Wipe()
		return SignedPreKey{}, fmt.Errorf("sign pre-key: %w", err)
	}
	return SignedPreKey{Key: kp, Signature: sig}, nil
}

// SignedPreKeyFromRecord rebuilds a signed pre-key from storage.
func SignedPreKeyFromRecord(suite *crypto.Suite, rec domain.SignedPreKeyPair) (SignedPreKey, error) {
	kp, err := suite.Curve.NewKeyPair(rec.Priv)
	if err != nil {
		return SignedPreKey{}, fmt.Errorf("signed pre-key: %w", err)
	}
	return SignedPreKey{Key: kp, Signature: rec.Signature}, nil
}

// Record returns the storable form of spk.
func (spk SignedPreKey) Record() domain.SignedPreKeyPair {
	return domain.SignedPreKeyPair{
		Priv:      spk.Key.MarshalPrivate(),
		Pub:       spk.Key.Public(),
		Signature: spk.Signature,
	}
}
