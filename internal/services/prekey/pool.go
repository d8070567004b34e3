package prekey

import (
	"fmt"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/protocol/x3dh"
)

// StorePool serves one-time pre-keys to the handshake straight from the
// on-disk store.
type StorePool struct {
	suite *crypto.Suite
	ps    domain.PreKeyStore
}

// NewStorePool returns a pool reading from ps.
func NewStorePool(suite *crypto.Suite, ps domain.PreKeyStore) *StorePool {
	return &StorePool{suite: suite, ps: ps}
}

// Lookup loads id without consuming it.
func (p *StorePool) Lookup(id domain.OneTimePreKeyID) (*crypto.KeyPair, error) {
	pair, ok, err := p.ps.LoadOneTimePreKey(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPreKey, id)
	}
	defer crypto.Wipe(pair.Priv)
	return p.suite.Curve.NewKeyPair(pair.Priv)
}

// Consume deletes id from the store.
func (p *StorePool) Consume(id domain.OneTimePreKeyID) error {
	ok, err := p.ps.ConsumeOneTimePreKey(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPreKey, id)
	}
	return nil
}

var _ x3dh.OneTimePreKeys = (*StorePool)(nil)
