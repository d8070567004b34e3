package message_test

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/logging"
	"duet/internal/protocol/x3dh"
	"duet/internal/relay"
	"duet/internal/services/identity"
	"duet/internal/services/message"
	"duet/internal/services/prekey"
	"duet/internal/services/session"
	"duet/internal/store"
)

const pass = "Correct-Horse-9!"

type user struct {
	name     domain.Username
	prekeys  *prekey.Service
	sessions *session.Service
	messages *message.Service
	ps       *store.PrekeyFileStore
}

// newUser wires a full client stack in a temp home against rc.
func newUser(t *testing.T, name domain.Username, rc domain.RelayClient, oneTime int) *user {
	t.Helper()
	home := t.TempDir()
	suite := crypto.DefaultSuite()
	log := logging.Discard()

	ids := store.NewIdentityFileStore(home, store.KDFScrypt, rand.Reader)
	ps := store.NewPrekeyFileStore(home)
	if _, _, err := identity.New(ids, suite, rand.Reader).GenerateIdentity(pass); err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	u := &user{name: name, ps: ps}
	u.prekeys = prekey.New(ids, ps, store.NewBundleFileStore(home), suite, rand.Reader)
	u.sessions = session.New(ids, ps, store.NewSessionFileStore(home), rc, suite, rand.Reader, log)
	u.messages = message.New(u.sessions, rc, rand.Reader, log)

	if _, _, err := u.prekeys.GenerateAndStorePreKeys(pass, oneTime); err != nil {
		t.Fatalf("generate prekeys: %v", err)
	}
	b, err := u.prekeys.LoadPreKeyBundle(pass, name)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	if err := rc.Upload(context.Background(), b); err != nil {
		t.Fatalf("upload bundle: %v", err)
	}
	return u
}

func TestConversation_EndToEnd(t *testing.T) {
	ctx := context.Background()
	rc := relay.NewMemoryBackend()
	alice := newUser(t, "alice", rc, 1)
	bob := newUser(t, "bob", rc, 2)

	aliceSess, err := alice.sessions.InitiateSession(ctx, pass, alice.name, bob.name)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleInitiator, aliceSess.Role)

	require.NoError(t, alice.messages.SendMessage(ctx, alice.name, bob.name, []byte("hello bob")))

	got, err := bob.messages.ReceiveMessage(ctx, pass, bob.name, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Handshake)
	assert.Equal(t, x3dh.InitialMessage, string(got[0].Plaintext))
	assert.Equal(t, "hello bob", string(got[1].Plaintext))

	bobSess, ok, err := bob.sessions.GetSession(alice.name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, aliceSess.Key, bobSess.Key)
	assert.Equal(t, aliceSess.AssociatedData, bobSess.AssociatedData)

	// The one-time pre-key is gone from bob's store.
	_, ok, err = bob.ps.LoadOneTimePreKey(aliceSess.OneTimePreKeyID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, bob.messages.SendMessage(ctx, bob.name, alice.name, []byte("hi alice")))
	got, err = alice.messages.ReceiveMessage(ctx, pass, alice.name, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hi alice", string(got[0].Plaintext))

	left, err := rc.Fetch(ctx, bob.name, 0)
	require.NoError(t, err)
	assert.Empty(t, left, "processed messages are acked")
}

func TestReceive_DropsTamperedAndReplayed(t *testing.T) {
	ctx := context.Background()
	rc := relay.NewMemoryBackend()
	alice := newUser(t, "alice", rc, 1)
	bob := newUser(t, "bob", rc, 1)

	_, err := alice.sessions.InitiateSession(ctx, pass, alice.name, bob.name)
	require.NoError(t, err)

	queued, err := rc.Fetch(ctx, bob.name, 0)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	handshake := queued[0]

	// Replay the handshake and append a forged envelope.
	require.NoError(t, rc.Post(ctx, handshake))
	require.NoError(t, alice.messages.SendMessage(ctx, alice.name, bob.name, []byte("real")))
	forged := domain.RelayMessage{
		From:     alice.name,
		To:       bob.name,
		Envelope: &domain.Envelope{Nonce: make([]byte, domain.NonceSize), Ciphertext: make([]byte, 32)},
	}
	require.NoError(t, rc.Post(ctx, forged))

	got, err := bob.messages.ReceiveMessage(ctx, pass, bob.name, 0)
	require.NoError(t, err)
	require.Len(t, got, 2, "replayed handshake and forged envelope are dropped")
	assert.True(t, got[0].Handshake)
	assert.Equal(t, "real", string(got[1].Plaintext))

	left, err := rc.Fetch(ctx, bob.name, 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSend_NoSession(t *testing.T) {
	rc := relay.NewMemoryBackend()
	alice := newUser(t, "alice", rc, 1)

	err := alice.messages.SendMessage(context.Background(), alice.name, "carol", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestInitiate_ExhaustedDirectory(t *testing.T) {
	ctx := context.Background()
	rc := relay.NewMemoryBackend()
	alice := newUser(t, "alice", rc, 1)
	bob := newUser(t, "bob", rc, 1)
	carol := newUser(t, "carol", rc, 1)

	_, err := alice.sessions.InitiateSession(ctx, pass, alice.name, bob.name)
	require.NoError(t, err)
	_, err = carol.sessions.InitiateSession(ctx, pass, carol.name, bob.name)
	assert.ErrorIs(t, err, domain.ErrPreKeysExhausted)

	_, err = alice.sessions.InitiateSession(ctx, pass, alice.name, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
