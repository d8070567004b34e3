package channel

import (
	"bytes"
	"errors"
	"io"

	"duet/internal/crypto"
	"duet/internal/domain"
)

var errClosed = errors.New("channel is closed")

// Channel encrypts application messages under one session key.
//
// There is no ratchet and no sequence number: every envelope is sealed under
// the same key with a fresh random nonce, so reordering and duplicate
// delivery go undetected.
type Channel struct {
	suite *crypto.Suite
	rand  io.Reader
	key   []byte
	ad    []byte
}

// New returns a channel over copies of key and ad.
func New(suite *crypto.Suite, rand io.Reader, key, ad []byte) (*Channel, error) {
	if len(key) != crypto.KeySize {
		return nil, errors.New("channel: session key must be 32 bytes")
	}
	return &Channel{
		suite: suite,
		rand:  rand,
		key:   bytes.Clone(key),
		ad:    bytes.Clone(ad),
	}, nil
}

// FromSession builds a channel for an established session.
func FromSession(suite *crypto.Suite, rand io.Reader, s domain.Session) (*Channel, error) {
	if err := suite.Check(s.Suite); err != nil {
		return nil, err
	}
	return New(suite, rand, s.Key, s.AssociatedData)
}

// Send seals plaintext into a new envelope.
func (c *Channel) Send(plaintext []byte) (domain.Envelope, error) {
	if c.key == nil {
		return domain.Envelope{}, errClosed
	}
	nonce, ct, err := c.suite.Seal(c.rand, c.key, plaintext, c.ad)
	if err != nil {
		return domain.Envelope{}, err
	}
	return domain.Envelope{Nonce: nonce, Ciphertext: ct}, nil
}

// Receive opens env. Any failure is domain.ErrAuthentication.
func (c *Channel) Receive(env domain.Envelope) ([]byte, error) {
	if c.key == nil {
		return nil, errClosed
	}
	return c.suite.Open(c.key, env.Nonce, env.Ciphertext, c.ad)
}

// Close wipes the session key held by the channel.
func (c *Channel) Close() {
	crypto.Wipe(c.key)
	c.key = nil
}
