package store_test

import (
	"crypto/rand"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duet/internal/domain"
	"duet/internal/store"
)

func TestIdentity_SaveLoad_OK(t *testing.T) {
	for _, kdf := range []store.KDF{store.KDFScrypt, store.KDFArgon2id} {
		t.Run(string(kdf), func(t *testing.T) {
			home := t.TempDir()
			var ids domain.IdentityStore = store.NewIdentityFileStore(home, kdf, rand.Reader)

			id := domain.Identity{
				Suite:        "x25519-ed25519-chacha20poly1305-sha256",
				ExchangePriv: []byte{2, 2, 2},
				ExchangePub:  domain.PublicKey{1, 1, 1},
				SigningPriv:  []byte{4, 4},
				SigningPub:   domain.PublicKey{3, 3},
				CreatedUTC:   1700000000,
			}
			if err := ids.SaveIdentity("pass", id); err != nil {
				t.Fatalf("save identity: %v", err)
			}

			got, err := ids.LoadIdentity("pass")
			if err != nil {
				t.Fatalf("load identity: %v", err)
			}
			assert.Equal(t, id, got)
		})
	}
}

func TestIdentity_WrongPassphrase_Fails(t *testing.T) {
	home := t.TempDir()
	var ids domain.IdentityStore = store.NewIdentityFileStore(home, store.KDFScrypt, rand.Reader)

	id := domain.Identity{ExchangePub: domain.PublicKey{1}, ExchangePriv: []byte{2}}
	if err := ids.SaveIdentity("correct", id); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	_, err := ids.LoadIdentity("wrong")
	if !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("expected wrong passphrase error, got %v", err)
	}
}

func TestIdentity_Missing_NotFound(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir(), store.KDFScrypt, rand.Reader)
	_, err := ids.LoadIdentity("pass")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParseKDF(t *testing.T) {
	k, err := store.ParseKDF("")
	require.NoError(t, err)
	assert.Equal(t, store.KDFScrypt, k)

	k, err = store.ParseKDF("argon2id")
	require.NoError(t, err)
	assert.Equal(t, store.KDFArgon2id, k)

	_, err = store.ParseKDF("pbkdf2")
	assert.Error(t, err)
}

func TestPrekeys_SignedPreKey_RoundTrip(t *testing.T) {
	ps := store.NewPrekeyFileStore(t.TempDir())

	_, ok, err := ps.LoadSignedPreKey()
	require.NoError(t, err)
	require.False(t, ok)

	pair := domain.SignedPreKeyPair{Priv: []byte{1}, Pub: domain.PublicKey{2}, Signature: []byte{3}}
	require.NoError(t, ps.SaveSignedPreKey(pair))

	got, ok, err := ps.LoadSignedPreKey()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pair, got)
}

func TestPrekeys_ReserveIDs_Monotonic(t *testing.T) {
	ps := store.NewPrekeyFileStore(t.TempDir())

	first, err := ps.ReserveOneTimePreKeyIDs(5)
	require.NoError(t, err)
	second, err := ps.ReserveOneTimePreKeyIDs(3)
	require.NoError(t, err)

	assert.Equal(t, domain.OneTimePreKeyID(0), first)
	assert.Equal(t, domain.OneTimePreKeyID(5), second)
}

func TestPrekeys_OneTime_ListLoadConsume(t *testing.T) {
	ps := store.NewPrekeyFileStore(t.TempDir())

	pairs := []domain.OneTimePreKeyPair{
		{ID: 7, Priv: []byte{7}, Pub: domain.PublicKey{70}},
		{ID: 2, Priv: []byte{2}, Pub: domain.PublicKey{20}},
		{ID: 4, Priv: []byte{4}, Pub: domain.PublicKey{40}},
	}
	require.NoError(t, ps.SaveOneTimePreKeys(pairs))

	pubs, err := ps.ListOneTimePreKeyPublics()
	require.NoError(t, err)
	require.Len(t, pubs, 3)
	assert.Equal(t, []domain.OneTimePreKeyID{2, 4, 7}, []domain.OneTimePreKeyID{pubs[0].ID, pubs[1].ID, pubs[2].ID})

	got, ok, err := ps.LoadOneTimePreKey(4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pairs[2], got)

	consumed, err := ps.ConsumeOneTimePreKey(4)
	require.NoError(t, err)
	assert.True(t, consumed)

	consumed, err = ps.ConsumeOneTimePreKey(4)
	require.NoError(t, err)
	assert.False(t, consumed, "second consume of the same id must fail")

	_, ok, err = ps.LoadOneTimePreKey(4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrekeys_ConcurrentConsume_ExactlyOnce(t *testing.T) {
	ps := store.NewPrekeyFileStore(t.TempDir())
	require.NoError(t, ps.SaveOneTimePreKeys([]domain.OneTimePreKeyPair{{ID: 1, Priv: []byte{1}, Pub: domain.PublicKey{1}}}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ps.ConsumeOneTimePreKey(1)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestSessions_SaveLoad_Replace(t *testing.T) {
	ss := store.NewSessionFileStore(t.TempDir())

	_, ok, err := ss.LoadSession("bob")
	require.NoError(t, err)
	require.False(t, ok)

	first := domain.Session{ID: "1", Peer: "bob", Role: domain.RoleInitiator, Key: []byte{1}}
	second := domain.Session{ID: "2", Peer: "bob", Role: domain.RoleResponder, Key: []byte{2}}
	require.NoError(t, ss.SaveSession("bob", first))
	require.NoError(t, ss.SaveSession("bob", second))

	got, ok, err := ss.LoadSession("bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestSessions_List_SortedByPeer(t *testing.T) {
	ss := store.NewSessionFileStore(t.TempDir())

	all, err := ss.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, ss.SaveSession("carol", domain.Session{ID: "c", Peer: "carol"}))
	require.NoError(t, ss.SaveSession("alice", domain.Session{ID: "a", Peer: "alice"}))

	all, err = ss.ListSessions()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.Username("alice"), all[0].Peer)
	assert.Equal(t, domain.Username("carol"), all[1].Peer)
}

func TestBundles_KeyedByUsername(t *testing.T) {
	bs := store.NewBundleFileStore(t.TempDir())

	alice := domain.PreKeyBundle{Username: "alice", IdentityKey: domain.PublicKey{1}}
	bob := domain.PreKeyBundle{Username: "bob", IdentityKey: domain.PublicKey{2}}
	require.NoError(t, bs.SavePreKeyBundle(alice))
	require.NoError(t, bs.SavePreKeyBundle(bob))

	got, ok, err := bs.LoadPreKeyBundle("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice.IdentityKey, got.IdentityKey)

	_, ok, err = bs.LoadPreKeyBundle("carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccounts_ListPerServer(t *testing.T) {
	as := store.NewAccountFileStore(t.TempDir())

	require.NoError(t, as.SaveAccountProfile(domain.AccountProfile{ServerURL: "http://a", Username: "zed"}))
	require.NoError(t, as.SaveAccountProfile(domain.AccountProfile{ServerURL: "http://a", Username: "amy"}))
	require.NoError(t, as.SaveAccountProfile(domain.AccountProfile{ServerURL: "http://b", Username: "bob"}))

	list, err := as.ListAccountProfiles("http://a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.Username("amy"), list[0].Username)

	p, ok, err := as.LoadAccountProfile("http://b", "bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://b", p.ServerURL)
}
