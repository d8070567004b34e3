package x3dh

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/protocol/channel"
)

// State is a party's position in the handshake.
type State int

const (
	StateUninitialized State = iota
	StateKeysReady
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateKeysReady:
		return "keys-ready"
	case StateEstablished:
		return "established"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Party is one side of a handshake. It owns its keys, runs exactly one role
// function and then carries the session's symmetric channel.
//
// uninitialized -> keys-ready (GenerateKeys) -> established (ExecuteInitiator
// or ExecuteResponder). A failed role function leaves the party in keys-ready.
type Party struct {
	mu    sync.Mutex
	suite *crypto.Suite
	rand  io.Reader
	state State

	identity     Identity
	signedPreKey SignedPreKey
	pool         *Pool

	role    domain.Role
	session Result
	channel *channel.Channel
}

// NewParty returns an uninitialized party using suite and rand.
func NewParty(suite *crypto.Suite, rand io.Reader) *Party {
	return &Party{suite: suite, rand: rand, pool: NewPool()}
}

// State returns the current handshake state.
func (p *Party) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// GenerateKeys creates the identity, signing key, signed pre-key and a pool
// of oneTime one-time pre-keys with ids 0..oneTime-1.
func (p *Party) GenerateKeys(oneTime int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateUninitialized {
		return fmt.Errorf("%w: generate keys in %s", domain.ErrHandshakeState, p.state)
	}
	if oneTime < 0 {
		return fmt.Errorf("negative one-time pre-key count %d", oneTime)
	}

	id, err := NewIdentity(p.suite, p.rand)
	if err != nil {
		return err
	}
	spk, err := NewSignedPreKey(p.suite, p.rand, id)
	if err != nil {
		id.Wipe()
		return err
	}
	pool := NewPool()
	if err := pool.Generate(p.suite.Curve, p.rand, oneTime); err != nil {
		id.Wipe()
		spk.Key.Wipe()
		return err
	}

	p.identity, p.signedPreKey, p.pool = id, spk, pool
	p.state = StateKeysReady
	return nil
}

// IdentityKey returns the public identity key, or nil before GenerateKeys.
func (p *Party) IdentityKey() domain.PublicKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateUninitialized {
		return nil
	}
	return p.identity.Exchange.Public()
}

// Bundle returns the publishable bundle with every remaining one-time pre-key.
func (p *Party) Bundle(username domain.Username) (domain.PreKeyBundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateUninitialized {
		return domain.PreKeyBundle{}, fmt.Errorf("%w: bundle in %s", domain.ErrHandshakeState, p.state)
	}
	return domain.PreKeyBundle{
		Username:              username,
		Suite:                 p.suite.ID,
		IdentityKey:           p.identity.Exchange.Public(),
		SigningKey:            p.identity.Signing.Public(),
		SignedPreKey:          p.signedPreKey.Key.Public(),
		SignedPreKeySignature: bytes.Clone(p.signedPreKey.Signature),
		OneTimePreKeys:        p.pool.Publics(),
	}, nil
}

// ExecuteInitiator runs the initiator role against peer and returns the
// handshake message to deliver.
func (p *Party) ExecuteInitiator(peer domain.FetchedBundle) (domain.HandshakeMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateKeysReady {
		return domain.HandshakeMessage{}, fmt.Errorf("%w: initiate in %s", domain.ErrHandshakeState, p.state)
	}
	msg, res, err := Initiate(p.suite, p.rand, p.identity, peer)
	if err != nil {
		return domain.HandshakeMessage{}, err
	}
	if err := p.establish(domain.RoleInitiator, res); err != nil {
		return domain.HandshakeMessage{}, err
	}
	return msg, nil
}

// ExecuteResponder runs the responder role for msg and returns the
// decrypted initial plaintext.
func (p *Party) ExecuteResponder(msg domain.HandshakeMessage) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateKeysReady {
		return nil, fmt.Errorf("%w: respond in %s", domain.ErrHandshakeState, p.state)
	}
	plaintext, res, err := Respond(p.suite, p.identity, p.signedPreKey, p.pool, msg)
	if err != nil {
		return nil, err
	}
	if err := p.establish(domain.RoleResponder, res); err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (p *Party) establish(role domain.Role, res Result) error {
	ch, err := channel.New(p.suite, p.rand, res.Key, res.AssociatedData)
	if err != nil {
		res.Wipe()
		return err
	}
	p.role, p.session, p.channel = role, res, ch
	p.state = StateEstablished
	return nil
}

// SendMessage seals plaintext under the session key.
func (p *Party) SendMessage(plaintext []byte) (domain.Envelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateEstablished {
		return domain.Envelope{}, fmt.Errorf("%w: send in %s", domain.ErrHandshakeState, p.state)
	}
	return p.channel.Send(plaintext)
}

// ReceiveMessage opens an envelope sealed by the peer.
func (p *Party) ReceiveMessage(env domain.Envelope) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateEstablished {
		return nil, fmt.Errorf("%w: receive in %s", domain.ErrHandshakeState, p.state)
	}
	return p.channel.Receive(env)
}

// Session returns copies of the session key and associated data once established.
func (p *Party) Session() (key, associatedData []byte, role domain.Role, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateEstablished {
		return nil, nil, "", false
	}
	return bytes.Clone(p.session.Key), bytes.Clone(p.session.AssociatedData), p.role, true
}

// RemainingOneTimePreKeys reports the size of the local pool.
func (p *Party) RemainingOneTimePreKeys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool.Len()
}

// Close wipes every private key and the session key.
func (p *Party) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateUninitialized {
		return
	}
	p.identity.Wipe()
	p.signedPreKey.Key.Wipe()
	for _, opk := range p.pool.Publics() {
		_ = p.pool.Consume(opk.ID)
	}
	if p.channel != nil {
		p.channel.Close()
	}
	p.session.Wipe()
}
