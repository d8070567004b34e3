package identity_test

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duet/internal/crypto"
	"duet/internal/services/identity"
	"duet/internal/store"
)

const pass = "Correct-Horse-9!"

func newService(t *testing.T) *identity.Service {
	t.Helper()
	st := store.NewIdentityFileStore(t.TempDir(), store.KDFScrypt, rand.Reader)
	return identity.New(st, crypto.DefaultSuite(), rand.Reader)
}

func TestGenerateIdentity_WeakPassphrase(t *testing.T) {
	svc := newService(t)
	for _, p := range []string{"short1!A", "alllowercase-123", "NoDigitsHere!!", "NoSymbols12345"} {
		if _, _, err := svc.GenerateIdentity(p); !errors.Is(err, identity.ErrWeakPassphrase) {
			t.Fatalf("passphrase %q: expected ErrWeakPassphrase, got %v", p, err)
		}
	}
}

func TestGenerateIdentity_LoadAndFingerprint(t *testing.T) {
	svc := newService(t)

	id, fp, err := svc.GenerateIdentity(pass)
	require.NoError(t, err)
	assert.Equal(t, crypto.DefaultSuiteID, id.Suite)
	assert.Len(t, id.ExchangePub, 32)
	assert.Equal(t, crypto.Fingerprint(id.ExchangePub), fp)

	loaded, err := svc.LoadIdentity(pass)
	require.NoError(t, err)
	assert.Equal(t, id.ExchangePub, loaded.ExchangePub)

	again, err := svc.FingerprintIdentity(pass)
	require.NoError(t, err)
	assert.Equal(t, fp, again)

	_, err = svc.FingerprintIdentity("Wrong-Horse-9!!")
	assert.ErrorIs(t, err, store.ErrWrongPassphrase)
}
