package x3dh_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/protocol/x3dh"
)

// makeParty creates a keys-ready party with n one-time pre-keys.
func makeParty(t *testing.T, suite *crypto.Suite, n int) *x3dh.Party {
	t.Helper()
	p := x3dh.NewParty(suite, rand.Reader)
	if err := p.GenerateKeys(n); err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	return p
}

// fetch selects the lowest one-time pre-key the way a directory would.
func fetch(t *testing.T, p *x3dh.Party, name domain.Username) domain.FetchedBundle {
	t.Helper()
	b, err := p.Bundle(name)
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if len(b.OneTimePreKeys) == 0 {
		t.Fatal("bundle has no one-time pre-keys")
	}
	return b.Select(b.OneTimePreKeys[0])
}

func TestHandshake_SymmetricAcrossSuites(t *testing.T) {
	for _, id := range crypto.SuiteIDs() {
		t.Run(string(id), func(t *testing.T) {
			suite, err := crypto.LookupSuite(id)
			require.NoError(t, err)

			alice := makeParty(t, suite, 0)
			bob := makeParty(t, suite, 1)

			msg, err := alice.ExecuteInitiator(fetch(t, bob, "bob"))
			require.NoError(t, err)

			pt, err := bob.ExecuteResponder(msg)
			require.NoError(t, err)
			assert.Equal(t, x3dh.InitialMessage, string(pt))

			aKey, aAD, aRole, ok := alice.Session()
			require.True(t, ok)
			bKey, bAD, bRole, ok := bob.Session()
			require.True(t, ok)

			assert.Equal(t, aKey, bKey)
			assert.Len(t, aKey, crypto.KeySize)
			assert.Equal(t, aAD, bAD)
			assert.Equal(t, x3dh.AssociatedData(alice.IdentityKey(), bob.IdentityKey()), aAD)
			assert.Equal(t, domain.RoleInitiator, aRole)
			assert.Equal(t, domain.RoleResponder, bRole)
			assert.Equal(t, x3dh.StateEstablished, alice.State())
			assert.Equal(t, x3dh.StateEstablished, bob.State())
		})
	}
}

func TestHandshake_ScenarioRoundTrips(t *testing.T) {
	alice := makeParty(t, crypto.DefaultSuite(), 0)
	bob := makeParty(t, crypto.DefaultSuite(), 1)

	msg, err := alice.ExecuteInitiator(fetch(t, bob, "bob"))
	require.NoError(t, err)
	pt, err := bob.ExecuteResponder(msg)
	require.NoError(t, err)
	require.Equal(t, "Initial message", string(pt))

	exchange := func(from, to *x3dh.Party, text string) {
		t.Helper()
		env, err := from.SendMessage([]byte(text))
		require.NoError(t, err)
		got, err := to.ReceiveMessage(env)
		require.NoError(t, err)
		assert.Equal(t, text, string(got))
	}
	exchange(alice, bob, "a1")
	exchange(bob, alice, "b1")
	exchange(alice, bob, "a2")
	exchange(bob, alice, "b2")
}

func TestInitiate_SignatureGate(t *testing.T) {
	alice := makeParty(t, crypto.DefaultSuite(), 0)
	bob := makeParty(t, crypto.DefaultSuite(), 1)
	mallory := makeParty(t, crypto.DefaultSuite(), 0)

	good := fetch(t, bob, "bob")

	badSig := good
	badSig.SignedPreKeySignature = bytes.Clone(good.SignedPreKeySignature)
	badSig.SignedPreKeySignature[0] ^= 0x01

	wrongSigner := good
	wrongSigner.SigningKey = fetch(t, makeParty(t, crypto.DefaultSuite(), 1), "eve").SigningKey

	swappedSPK := good
	swappedSPK.SignedPreKey = mallory.IdentityKey()

	for name, b := range map[string]domain.FetchedBundle{
		"bad signature": badSig,
		"wrong signer":  wrongSigner,
		"swapped spk":   swappedSPK,
	} {
		msg, err := alice.ExecuteInitiator(b)
		assert.ErrorIs(t, err, domain.ErrBundleAuthentication, name)
		assert.Empty(t, msg.Ciphertext, name)
		_, _, _, ok := alice.Session()
		assert.False(t, ok, name)
		assert.Equal(t, x3dh.StateKeysReady, alice.State(), name)
	}

	// The party is unchanged and can still complete a valid handshake.
	_, err := alice.ExecuteInitiator(good)
	assert.NoError(t, err)
}

func TestRespond_TamperSensitivityKeepsPreKey(t *testing.T) {
	alice := makeParty(t, crypto.DefaultSuite(), 0)
	bob := makeParty(t, crypto.DefaultSuite(), 1)

	msg, err := alice.ExecuteInitiator(fetch(t, bob, "bob"))
	require.NoError(t, err)

	flip := func(b []byte, i int) []byte {
		c := bytes.Clone(b)
		c[i] ^= 0x04
		return c
	}
	cases := map[string]func(m *domain.HandshakeMessage){
		"ciphertext first": func(m *domain.HandshakeMessage) { m.Ciphertext = flip(m.Ciphertext, 0) },
		"ciphertext tag":   func(m *domain.HandshakeMessage) { m.Ciphertext = flip(m.Ciphertext, len(m.Ciphertext)-1) },
		"nonce":            func(m *domain.HandshakeMessage) { m.Nonce = flip(m.Nonce, 5) },
		"initiator ik":     func(m *domain.HandshakeMessage) { m.InitiatorIdentityKey = flip(m.InitiatorIdentityKey, 7) },
	}
	for name, mutate := range cases {
		bad := msg
		mutate(&bad)
		_, err := bob.ExecuteResponder(bad)
		assert.ErrorIs(t, err, domain.ErrAuthentication, name)
		assert.Equal(t, x3dh.StateKeysReady, bob.State(), name)
		assert.Equal(t, 1, bob.RemainingOneTimePreKeys(), name)
	}

	pt, err := bob.ExecuteResponder(msg)
	require.NoError(t, err)
	assert.Equal(t, x3dh.InitialMessage, string(pt))
	assert.Equal(t, 0, bob.RemainingOneTimePreKeys())
}

func TestRespond_SingleUsePreKey(t *testing.T) {
	suite := crypto.DefaultSuite()
	bobID, err := x3dh.NewIdentity(suite, rand.Reader)
	require.NoError(t, err)
	spk, err := x3dh.NewSignedPreKey(suite, rand.Reader, bobID)
	require.NoError(t, err)
	pool := x3dh.NewPool()
	require.NoError(t, pool.Generate(suite.Curve, rand.Reader, 2))

	bundle := domain.PreKeyBundle{
		Username:              "bob",
		Suite:                 suite.ID,
		IdentityKey:           bobID.Exchange.Public(),
		SigningKey:            bobID.Signing.Public(),
		SignedPreKey:          spk.Key.Public(),
		SignedPreKeySignature: spk.Signature,
		OneTimePreKeys:        pool.Publics(),
	}
	fetched := bundle.Select(bundle.OneTimePreKeys[0])

	initiate := func() domain.HandshakeMessage {
		alice, err := x3dh.NewIdentity(suite, rand.Reader)
		require.NoError(t, err)
		msg, _, err := x3dh.Initiate(suite, rand.Reader, alice, fetched)
		require.NoError(t, err)
		return msg
	}

	first := initiate()
	_, _, err = x3dh.Respond(suite, bobID, spk, pool, first)
	require.NoError(t, err)

	second := initiate()
	_, _, err = x3dh.Respond(suite, bobID, spk, pool, second)
	assert.ErrorIs(t, err, domain.ErrUnknownPreKey)

	// Replaying the first message fails the same way.
	_, _, err = x3dh.Respond(suite, bobID, spk, pool, first)
	assert.ErrorIs(t, err, domain.ErrUnknownPreKey)

	assert.Equal(t, 1, pool.Len())
}

func TestRespond_ConcurrentConsumeSucceedsOnce(t *testing.T) {
	suite := crypto.DefaultSuite()
	bobID, err := x3dh.NewIdentity(suite, rand.Reader)
	require.NoError(t, err)
	spk, err := x3dh.NewSignedPreKey(suite, rand.Reader, bobID)
	require.NoError(t, err)
	pool := x3dh.NewPool()
	require.NoError(t, pool.Generate(suite.Curve, rand.Reader, 1))

	opk := pool.Publics()[0]
	alice, err := x3dh.NewIdentity(suite, rand.Reader)
	require.NoError(t, err)
	msg, _, err := x3dh.Initiate(suite, rand.Reader, alice, domain.FetchedBundle{
		Username:              "bob",
		Suite:                 suite.ID,
		IdentityKey:           bobID.Exchange.Public(),
		SigningKey:            bobID.Signing.Public(),
		SignedPreKey:          spk.Key.Public(),
		SignedPreKeySignature: spk.Signature,
		OneTimePreKey:         opk,
	})
	require.NoError(t, err)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		unknown int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := x3dh.Respond(suite, bobID, spk, pool, msg)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrUnknownPreKey):
				unknown++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, unknown)
}

func TestInitiate_KeyMatchesSequentialDerivation(t *testing.T) {
	suite := crypto.DefaultSuite()
	alice := makeIdentity(t, suite)
	bob := makeIdentity(t, suite)
	spk, err := x3dh.NewSignedPreKey(suite, rand.Reader, bob)
	require.NoError(t, err)
	opk, err := suite.Curve.GenerateKey(rand.Reader)
	require.NoError(t, err)

	peer := domain.FetchedBundle{
		Username:              "bob",
		Suite:                 suite.ID,
		IdentityKey:           bob.Exchange.Public(),
		SigningKey:            bob.Signing.Public(),
		SignedPreKey:          spk.Key.Public(),
		SignedPreKeySignature: spk.Signature,
		OneTimePreKey:         domain.OneTimePreKeyPublic{ID: 7, Pub: opk.Public()},
	}

	seed := []byte("ephemeral")
	msg, res, err := x3dh.Initiate(suite, crypto.NewSeededReader(seed), alice, peer)
	require.NoError(t, err)
	assert.Equal(t, domain.OneTimePreKeyID(7), msg.OneTimePreKeyID)

	// The same seed reproduces the ephemeral key Initiate drew first.
	eph, err := suite.Curve.GenerateKey(crypto.NewSeededReader(seed))
	require.NoError(t, err)
	require.Equal(t, eph.Public(), msg.EphemeralKey)

	dh := func(k *crypto.KeyPair, pub domain.PublicKey) []byte {
		out, err := k.Exchange(pub)
		require.NoError(t, err)
		return out
	}
	var material []byte
	material = append(material, dh(alice.Exchange, peer.SignedPreKey)...)
	material = append(material, dh(eph, peer.IdentityKey)...)
	material = append(material, dh(eph, peer.SignedPreKey)...)
	material = append(material, dh(eph, peer.OneTimePreKey.Pub)...)

	want, err := suite.DeriveKey(material, 0)
	require.NoError(t, err)
	assert.Equal(t, want, res.Key)
}

func TestHandshake_SuiteMismatch(t *testing.T) {
	p256, err := crypto.LookupSuite(crypto.SuiteP256)
	require.NoError(t, err)

	alice := makeParty(t, crypto.DefaultSuite(), 0)
	bob := makeParty(t, p256, 1)

	_, err = alice.ExecuteInitiator(fetch(t, bob, "bob"))
	assert.ErrorIs(t, err, domain.ErrSuiteMismatch)

	carol := makeParty(t, p256, 0)
	msg, err := carol.ExecuteInitiator(fetch(t, bob, "bob"))
	require.NoError(t, err)
	msg.Suite = crypto.SuiteX25519
	_, err = bob.ExecuteResponder(msg)
	assert.ErrorIs(t, err, domain.ErrSuiteMismatch)
	assert.Equal(t, 1, bob.RemainingOneTimePreKeys())
}

func TestRespond_InvalidEphemeralKey(t *testing.T) {
	alice := makeParty(t, crypto.DefaultSuite(), 0)
	bob := makeParty(t, crypto.DefaultSuite(), 1)
	msg, err := alice.ExecuteInitiator(fetch(t, bob, "bob"))
	require.NoError(t, err)

	msg.EphemeralKey = make([]byte, 32) // low-order point
	_, err = bob.ExecuteResponder(msg)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
	assert.Equal(t, 1, bob.RemainingOneTimePreKeys())
}

func TestParty_StateTransitions(t *testing.T) {
	p := x3dh.NewParty(crypto.DefaultSuite(), rand.Reader)
	assert.Equal(t, x3dh.StateUninitialized, p.State())

	_, err := p.Bundle("p")
	assert.ErrorIs(t, err, domain.ErrHandshakeState)
	_, err = p.ExecuteInitiator(domain.FetchedBundle{})
	assert.ErrorIs(t, err, domain.ErrHandshakeState)
	_, err = p.SendMessage([]byte("x"))
	assert.ErrorIs(t, err, domain.ErrHandshakeState)

	require.NoError(t, p.GenerateKeys(3))
	assert.Equal(t, x3dh.StateKeysReady, p.State())
	assert.ErrorIs(t, p.GenerateKeys(1), domain.ErrHandshakeState)

	b, err := p.Bundle("p")
	require.NoError(t, err)
	require.Len(t, b.OneTimePreKeys, 3)
	for i, opk := range b.OneTimePreKeys {
		assert.Equal(t, domain.OneTimePreKeyID(i), opk.ID)
	}

	bob := makeParty(t, crypto.DefaultSuite(), 1)
	msg, err := p.ExecuteInitiator(fetch(t, bob, "bob"))
	require.NoError(t, err)

	_, err = p.ExecuteInitiator(fetch(t, bob, "bob"))
	assert.ErrorIs(t, err, domain.ErrHandshakeState)

	_, err = bob.ExecuteResponder(msg)
	require.NoError(t, err)
	_, err = bob.ExecuteResponder(msg)
	assert.ErrorIs(t, err, domain.ErrHandshakeState)

	p.Close()
	bob.Close()
}

// makeIdentity returns fresh long-term keys for suite.
func makeIdentity(t *testing.T, suite *crypto.Suite) x3dh.Identity {
	t.Helper()
	id, err := x3dh.NewIdentity(suite, rand.Reader)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	return id
}
