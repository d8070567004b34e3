package prekey

import (
	"errors"
	"fmt"
	"io"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/protocol/x3dh"
)

var errNoSignedPreKey = errors.New("no signed pre-key available; run register first")

// Service manages pre-key pairs and builds the public bundle.
type Service struct {
	ids   domain.IdentityStore
	ps    domain.PreKeyStore
	bs    domain.PreKeyBundleStore
	suite *crypto.Suite
	rand  io.Reader
}

// New returns a pre-key service.
func New(
	ids domain.IdentityStore,
	ps domain.PreKeyStore,
	bs domain.PreKeyBundleStore,
	suite *crypto.Suite,
	rand io.Reader,
) *Service {
	return &Service{ids: ids, ps: ps, bs: bs, suite: suite, rand: rand}
}

// GenerateAndStorePreKeys makes sure a signed pre-key exists and appends
// count fresh one-time pre-keys under newly reserved ids. It returns the
// signed pre-key's public half and the new one-time publics.
func (s *Service) GenerateAndStorePreKeys(
	passphrase string,
	count int,
) (domain.PublicKey, []domain.OneTimePreKeyPublic, error) {
	if count < 0 {
		return nil, nil, fmt.Errorf("negative one-time pre-key count %d", count)
	}
	rec, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Wipe(rec.ExchangePriv, rec.SigningPriv)
	id, err := x3dh.IdentityFromRecord(s.suite, rec)
	if err != nil {
		return nil, nil, err
	}
	defer id.Wipe()

	spk, ok, err := s.ps.LoadSignedPreKey()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		fresh, err := x3dh.NewSignedPreKey(s.suite, s.rand, id)
		if err != nil {
			return nil, nil, err
		}
		spk = fresh.Record()
		fresh.Key.Wipe()
		if err := s.ps.SaveSignedPreKey(spk); err != nil {
			return nil, nil, err
		}
	}

	first, err := s.ps.ReserveOneTimePreKeyIDs(count)
	if err != nil {
		return nil, nil, err
	}
	pairs := make([]domain.OneTimePreKeyPair, 0, count)
	publics := make([]domain.OneTimePreKeyPublic, 0, count)
	for i := 0; i < count; i++ {
		kp, err := s.suite.Curve.GenerateKey(s.rand)
		if err != nil {
			return nil, nil, err
		}
		pair := domain.OneTimePreKeyPair{
			ID:   first + domain.OneTimePreKeyID(i),
			Priv: kp.MarshalPrivate(),
			Pub:  kp.Public(),
		}
		kp.Wipe()
		pairs = append(pairs, pair)
		publics = append(publics, domain.OneTimePreKeyPublic{ID: pair.ID, Pub: pair.Pub})
	}
	if err := s.ps.SaveOneTimePreKeys(pairs); err != nil {
		return nil, nil, err
	}
	return spk.Pub, publics, nil
}

// LoadPreKeyBundle builds the public bundle from the current signed pre-key
// and the unconsumed one-time pre-keys, caches it, and returns it.
func (s *Service) LoadPreKeyBundle(
	passphrase string,
	username domain.Username,
) (domain.PreKeyBundle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	defer crypto.Wipe(id.ExchangePriv, id.SigningPriv)
	if err := s.suite.Check(id.Suite); err != nil {
		return domain.PreKeyBundle{}, err
	}

	spk, ok, err := s.ps.LoadSignedPreKey()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, errNoSignedPreKey
	}
	oneTime, err := s.ps.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	b := domain.PreKeyBundle{
		Username:              username,
		Suite:                 s.suite.ID,
		IdentityKey:           id.ExchangePub,
		SigningKey:            id.SigningPub,
		SignedPreKey:          spk.Pub,
		SignedPreKeySignature: spk.Signature,
		OneTimePreKeys:        oneTime,
	}
	if err := s.bs.SavePreKeyBundle(b); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return b, nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)
