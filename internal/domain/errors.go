package domain

import "errors"

// Handshake and channel failures. Each is terminal for the operation that
// returned it; no partial state is committed.
var (
	// ErrInvalidKey reports a peer public key that is not a valid encoding or
	// point for the configured suite.
	ErrInvalidKey = errors.New("invalid public key")
	// ErrBundleAuthentication reports a signed pre-key whose signature does not
	// verify against the advertised signing key.
	ErrBundleAuthentication = errors.New("signed pre-key signature invalid")
	// ErrUnknownPreKey reports a one-time pre-key id that is absent or already consumed.
	ErrUnknownPreKey = errors.New("unknown one-time pre-key")
	// ErrAuthentication reports any AEAD open failure. It never says why.
	ErrAuthentication = errors.New("message authentication failed")
	// ErrSuiteMismatch reports key material or messages from a different suite.
	ErrSuiteMismatch = errors.New("suite mismatch")
	// ErrHandshakeState reports an operation not valid in the party's current state.
	ErrHandshakeState = errors.New("operation not valid in handshake state")
)

// Boundary and collaborator failures.
var (
	ErrInvalidMessage   = errors.New("invalid message")
	ErrNoSession        = errors.New("no session with peer; run start-session first")
	ErrNotFound         = errors.New("not found")
	ErrPreKeysExhausted = errors.New("no one-time pre-keys left")
)
