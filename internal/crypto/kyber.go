package crypto

import (
	"crypto/cipher"
	"fmt"
	"io"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/suites"
	"go.dedis.ch/kyber/v4/util/random"

	"duet/internal/domain"
)

// One edwards25519 group serves both exchange and signing.
var edwards = suites.MustFind("Ed25519")

type edwards25519Curve struct{}

// Edwards25519 is Diffie-Hellman over the edwards25519 prime-order group.
var Edwards25519 Curve = edwards25519Curve{}

func (edwards25519Curve) Name() string { return "edwards25519" }

func (c edwards25519Curve) GenerateKey(rand io.Reader) (*KeyPair, error) {
	priv, pub, err := pickEdwards(rand)
	if err != nil {
		return nil, err
	}
	return &KeyPair{curve: c, priv: priv, pub: pub}, nil
}

func (c edwards25519Curve) NewKeyPair(priv []byte) (*KeyPair, error) {
	s, pub, err := edwardsPublic(priv)
	if err != nil {
		return nil, err
	}
	s.Zero()
	return &KeyPair{curve: c, priv: append([]byte(nil), priv...), pub: pub}, nil
}

// exchange rejects undecodable points and a null shared point.
func (edwards25519Curve) exchange(priv, pub []byte) ([]byte, error) {
	s, err := edwardsScalar(priv)
	if err != nil {
		return nil, err
	}
	defer s.Zero()
	p := edwards.Point()
	if err := p.UnmarshalBinary(pub); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	shared := edwards.Point().Mul(s, p)
	if shared.Equal(edwards.Point().Null()) {
		return nil, fmt.Errorf("%w: edwards25519 shared point is the identity", domain.ErrInvalidKey)
	}
	return shared.MarshalBinary()
}

// readerSuite is the edwards suite with its random stream replaced, so the
// Schnorr nonce is drawn from the caller's reader.
type readerSuite struct {
	suites.Suite
	stream cipher.Stream
}

func (r readerSuite) RandomStream() cipher.Stream { return r.stream }

type schnorrScheme struct{}

// Schnorr signs with kyber's Schnorr construction over edwards25519.
var Schnorr SignatureScheme = schnorrScheme{}

func (schnorrScheme) Name() string { return "schnorr-edwards25519" }

func (s schnorrScheme) GenerateKey(rand io.Reader) (*SigningKeyPair, error) {
	priv, pub, err := pickEdwards(rand)
	if err != nil {
		return nil, err
	}
	return &SigningKeyPair{scheme: s, priv: priv, pub: pub}, nil
}

func (s schnorrScheme) NewSigningKeyPair(priv []byte) (*SigningKeyPair, error) {
	sc, pub, err := edwardsPublic(priv)
	if err != nil {
		return nil, err
	}
	sc.Zero()
	return &SigningKeyPair{scheme: s, priv: append([]byte(nil), priv...), pub: pub}, nil
}

func (schnorrScheme) Verify(pub domain.PublicKey, msg, sig []byte) bool {
	p := edwards.Point()
	if err := p.UnmarshalBinary(pub); err != nil {
		return false
	}
	return schnorr.Verify(edwards, p, msg, sig) == nil
}

func (schnorrScheme) sign(rand io.Reader, priv, msg []byte) ([]byte, error) {
	s, err := edwardsScalar(priv)
	if err != nil {
		return nil, err
	}
	defer s.Zero()
	return schnorr.Sign(readerSuite{Suite: edwards, stream: random.New(rand)}, s, msg)
}

func pickEdwards(rand io.Reader) (priv, pub []byte, err error) {
	s := edwards.Scalar().Pick(random.New(rand))
	defer s.Zero()
	if priv, err = s.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	if pub, err = edwards.Point().Mul(s, nil).MarshalBinary(); err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func edwardsScalar(priv []byte) (kyber.Scalar, error) {
	s := edwards.Scalar()
	if err := s.UnmarshalBinary(priv); err != nil {
		return nil, fmt.Errorf("edwards25519: %w", err)
	}
	return s, nil
}

func edwardsPublic(priv []byte) (kyber.Scalar, []byte, error) {
	s, err := edwardsScalar(priv)
	if err != nil {
		return nil, nil, err
	}
	pub, err := edwards.Point().Mul(s, nil).MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return s, pub, nil
}
