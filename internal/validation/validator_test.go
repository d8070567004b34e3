package validation_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/validation"
)

func bundle() domain.PreKeyBundle {
	return domain.PreKeyBundle{
		Username:              "bob",
		Suite:                 crypto.DefaultSuiteID,
		IdentityKey:           bytes.Repeat([]byte{1}, 32),
		SigningKey:            bytes.Repeat([]byte{2}, 32),
		SignedPreKey:          bytes.Repeat([]byte{3}, 32),
		SignedPreKeySignature: bytes.Repeat([]byte{4}, 64),
		OneTimePreKeys:        []domain.OneTimePreKeyPublic{{ID: 1, Pub: bytes.Repeat([]byte{5}, 32)}},
	}
}

func TestStruct_Bundle(t *testing.T) {
	v := validation.New()
	require.NoError(t, v.Struct(bundle()))

	tests := []struct {
		name   string
		mutate func(*domain.PreKeyBundle)
	}{
		{"unknown suite", func(b *domain.PreKeyBundle) { b.Suite = "rot13" }},
		{"missing username", func(b *domain.PreKeyBundle) { b.Username = "" }},
		{"short identity key", func(b *domain.PreKeyBundle) { b.IdentityKey = []byte{1} }},
		{"short one-time key", func(b *domain.PreKeyBundle) { b.OneTimePreKeys[0].Pub = []byte{1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bundle()
			tt.mutate(&b)
			assert.ErrorIs(t, v.Struct(b), domain.ErrInvalidMessage)
		})
	}
}

func TestRelayMessage_ExactlyOnePayload(t *testing.T) {
	v := validation.New()
	env := &domain.Envelope{Nonce: make([]byte, domain.NonceSize), Ciphertext: []byte{1}}
	hs := &domain.HandshakeMessage{
		Suite:                crypto.DefaultSuiteID,
		InitiatorIdentityKey: bytes.Repeat([]byte{1}, 32),
		EphemeralKey:         bytes.Repeat([]byte{2}, 32),
		Nonce:                make([]byte, domain.NonceSize),
		Ciphertext:           []byte{1},
	}

	require.NoError(t, v.RelayMessage(domain.RelayMessage{From: "a", To: "b", Envelope: env}))
	require.NoError(t, v.RelayMessage(domain.RelayMessage{From: "a", To: "b", Handshake: hs}))

	assert.ErrorIs(t, v.RelayMessage(domain.RelayMessage{From: "a", To: "b"}), domain.ErrInvalidMessage)
	assert.ErrorIs(t, v.RelayMessage(domain.RelayMessage{From: "a", To: "b", Envelope: env, Handshake: hs}), domain.ErrInvalidMessage)

	bad := *env
	bad.Nonce = []byte{1, 2, 3}
	assert.ErrorIs(t, v.RelayMessage(domain.RelayMessage{From: "a", To: "b", Envelope: &bad}), domain.ErrInvalidMessage)
}
