package x3dh

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"duet/internal/crypto"
	"duet/internal/domain"
)

// InitialMessage is the plaintext an initiator seals into its handshake
// message to prove possession of the session key.
const InitialMessage = "Initial message"

// Identity is a party's long-term key material.
type Identity struct {
	Exchange *crypto.KeyPair
	Signing  *crypto.SigningKeyPair
}

// Wipe zeroes both private halves.
func (id Identity) Wipe() {
	id.Exchange.Wipe()
	id.Signing.Wipe()
}

// SignedPreKey is the medium-term exchange key and its signature.
type SignedPreKey struct {
	Key       *crypto.KeyPair
	Signature []byte
}

// OneTimePreKeys is a responder's pool of single-use keys.
type OneTimePreKeys interface {
	// Lookup returns a handle the caller owns and may wipe. It does not
	// consume the key. An absent or consumed id fails with domain.ErrUnknownPreKey.
	Lookup(id domain.OneTimePreKeyID) (*crypto.KeyPair, error)
	// Consume removes id as one atomic check-and-remove. Of several
	// concurrent callers for one id exactly one succeeds; the rest fail with
	// domain.ErrUnknownPreKey.
	Consume(id domain.OneTimePreKeyID) error
}

// Result is what a completed handshake leaves each side holding.
type Result struct {
	Key             []byte
	AssociatedData  []byte
	PeerIdentityKey domain.PublicKey
	OneTimePreKeyID domain.OneTimePreKeyID
}

// Wipe zeroes the session key.
func (r *Result) Wipe() { crypto.Wipe(r.Key) }

// AssociatedData binds both identities: initiator first, whichever side computes it.
func AssociatedData(initiator, responder domain.PublicKey) []byte {
	ad := make([]byte, 0, len(initiator)+len(responder))
	ad = append(ad, initiator...)
	return append(ad, responder...)
}

// VerifyBundle checks the signed pre-key signature against the advertised
// signing key.
func VerifyBundle(suite *crypto.Suite, bundle domain.FetchedBundle) error {
	if err := suite.Check(bundle.Suite); err != nil {
		return err
	}
	if !suite.Signer.Verify(bundle.SigningKey, bundle.SignedPreKey, bundle.SignedPreKeySignature) {
		return domain.ErrBundleAuthentication
	}
	return nil
}

// Initiate runs the initiator side against a fetched bundle.
//
// On any error nothing is returned besides the error; the ephemeral key and
// all intermediate secrets are wiped either way.
func Initiate(
	suite *crypto.Suite,
	rand io.Reader,
	own Identity,
	peer domain.FetchedBundle,
) (domain.HandshakeMessage, Result, error) {
	if err := VerifyBundle(suite, peer); err != nil {
		return domain.HandshakeMessage{}, Result{}, err
	}

	eph, err := suite.Curve.GenerateKey(rand)
	if err != nil {
		return domain.HandshakeMessage{}, Result{}, fmt.Errorf("generate ephemeral: %w", err)
	}
	defer eph.Wipe()

	key, err := derive(suite, [4]step{
		{own.Exchange, peer.SignedPreKey}, // DH(IKA, SPKB)
		{eph, peer.IdentityKey},           // DH(EKA, IKB)
		{eph, peer.SignedPreKey},          // DH(EKA, SPKB)
		{eph, peer.OneTimePreKey.Pub},     // DH(EKA, OPKB)
	})
	if err != nil {
		return domain.HandshakeMessage{}, Result{}, err
	}

	ownPub := own.Exchange.Public()
	ad := AssociatedData(ownPub, peer.IdentityKey)

	nonce, ct, err := suite.Seal(rand, key, []byte(InitialMessage), ad)
	if err != nil {
		crypto.Wipe(key)
		return domain.HandshakeMessage{}, Result{}, err
	}

	msg := domain.HandshakeMessage{
		Suite:                suite.ID,
		InitiatorIdentityKey: ownPub,
		EphemeralKey:         eph.Public(),
		OneTimePreKeyID:      peer.OneTimePreKey.ID,
		Nonce:                nonce,
		Ciphertext:           ct,
	}
	return msg, Result{
		Key:             key,
		AssociatedData:  ad,
		PeerIdentityKey: bytes.Clone(peer.IdentityKey),
		OneTimePreKeyID: peer.OneTimePreKey.ID,
	}, nil
}

// Respond runs the responder side and returns the decrypted initial plaintext.
//
// Order matters: the one-time pre-key is looked up without consuming it, the
// message is authenticated, and only then is the key consumed. A message that
// fails at any step leaves the pool untouched.
func Respond(
	suite *crypto.Suite,
	own Identity,
	spk SignedPreKey,
	opks OneTimePreKeys,
	msg domain.HandshakeMessage,
) ([]byte, Result, error) {
	if err := suite.Check(msg.Suite); err != nil {
		return nil, Result{}, err
	}

	opk, err := opks.Lookup(msg.OneTimePreKeyID)
	if err != nil {
		return nil, Result{}, err
	}
	defer opk.Wipe()

	key, err := derive(suite, [4]step{
		{spk.Key, msg.InitiatorIdentityKey}, // DH(SPKB, IKA)
		{own.Exchange, msg.EphemeralKey},    // DH(IKB, EKA)
		{spk.Key, msg.EphemeralKey},         // DH(SPKB, EKA)
		{opk, msg.EphemeralKey},             // DH(OPKB, EKA)
	})
	if err != nil {
		return nil, Result{}, err
	}

	ad := AssociatedData(msg.InitiatorIdentityKey, own.Exchange.Public())

	plaintext, err := suite.Open(key, msg.Nonce, msg.Ciphertext, ad)
	if err != nil {
		crypto.Wipe(key)
		return nil, Result{}, err
	}

	if err := opks.Consume(msg.OneTimePreKeyID); err != nil {
		crypto.Wipe(key)
		return nil, Result{}, err
	}

	return plaintext, Result{
		Key:             key,
		AssociatedData:  ad,
		PeerIdentityKey: bytes.Clone(msg.InitiatorIdentityKey),
		OneTimePreKeyID: msg.OneTimePreKeyID,
	}, nil
}

type step struct {
	priv *crypto.KeyPair
	pub  domain.PublicKey
}

// derive runs the four exchanges concurrently and feeds their outputs to the
// KDF in step order, regardless of which finishes first.
func derive(suite *crypto.Suite, steps [4]step) ([]byte, error) {
	var outs [4][]byte
	var g errgroup.Group
	for i, s := range steps {
		i, s := i, s
		g.Go(func() error {
			if s.priv == nil {
				return errors.New("x3dh: missing private key")
			}
			secret, err := s.priv.Exchange(s.pub)
			if err != nil {
				return fmt.Errorf("dh%d: %w", i+1, err)
			}
			outs[i] = secret
			return nil
		})
	}
	err := g.Wait()
	defer crypto.Wipe(outs[:]...)
	if err != nil {
		return nil, err
	}

	material := make([]byte, 0, 4*len(outs[0]))
	for _, o := range outs {
		material = append(material, o...)
	}
	defer crypto.Wipe(material)

	return suite.DeriveKey(material, 0)
}
