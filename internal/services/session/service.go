package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/metrics"
	"duet/internal/protocol/x3dh"
	"duet/internal/services/prekey"
	"duet/internal/validation"
)

// Service runs both sides of the handshake and persists the resulting sessions.
//
// This service handles:
//   - Fetching the peer's pre-key bundle from the relay.
//   - Running the handshake as initiator and posting the handshake message.
//   - Answering a received handshake message as responder.
//   - Persisting the session for the message service.
type Service struct {
	idStore      domain.IdentityStore
	prekeyStore  domain.PreKeyStore
	sessionStore domain.SessionStore
	relayClient  domain.RelayClient
	suite        *crypto.Suite
	rand         io.Reader
	validate     *validation.Validator
	log          *logrus.Logger
	now          func() time.Time
}

// New constructs a Session Service with the given stores and relay client.
func New(
	idStore domain.IdentityStore,
	prekeyStore domain.PreKeyStore,
	sessionStore domain.SessionStore,
	relayClient domain.RelayClient,
	suite *crypto.Suite,
	rand io.Reader,
	log *logrus.Logger,
) *Service {
	return &Service{
		idStore:      idStore,
		prekeyStore:  prekeyStore,
		sessionStore: sessionStore,
		relayClient:  relayClient,
		suite:        suite,
		rand:         rand,
		validate:     validation.New(),
		log:          log,
		now:          time.Now,
	}
}

// InitiateSession runs the handshake against the peer's bundle, stores the
// session and posts the handshake message to the peer's mailbox.
//
// Steps:
//  1. Load our identity from the identity store.
//  2. Download the peer's bundle; the relay hands out one one-time pre-key.
//  3. Verify the signed pre-key and derive the session key.
//  4. Persist the session, then post the handshake message.
func (s *Service) InitiateSession(
	ctx context.Context,
	passphrase string,
	me domain.Username,
	peer domain.Username,
) (sess domain.Session, err error) {
	defer func() {
		metrics.Handshakes.WithLabelValues(string(domain.RoleInitiator), metrics.Result(err)).Inc()
	}()

	id, err := s.loadIdentity(passphrase)
	if err != nil {
		return domain.Session{}, err
	}
	defer id.Wipe()

	bundle, err := s.relayClient.Download(ctx, peer)
	if err != nil {
		return domain.Session{}, fmt.Errorf("download bundle for %s: %w", peer, err)
	}
	if err := s.validate.Struct(bundle); err != nil {
		return domain.Session{}, err
	}
	if bundle.Username != peer {
		return domain.Session{}, fmt.Errorf("%w: relay returned bundle for %s", domain.ErrInvalidMessage, bundle.Username)
	}

	msg, res, err := x3dh.Initiate(s.suite, s.rand, id, bundle)
	if err != nil {
		return domain.Session{}, err
	}

	sess = s.newSession(peer, domain.RoleInitiator, res)
	if err := s.sessionStore.SaveSession(peer, sess); err != nil {
		return domain.Session{}, err
	}

	err = s.relayClient.Post(ctx, domain.RelayMessage{
		From:      me,
		To:        peer,
		Handshake: &msg,
		Timestamp: s.now().Unix(),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("post handshake: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"peer":       peer,
		"session_id": sess.ID,
		"opk_id":     res.OneTimePreKeyID,
	}).Info("session initiated")
	return sess, nil
}

// RespondSession answers a handshake message from peer. It returns the new
// session and the decrypted initial plaintext. The one-time pre-key named by
// msg is consumed only if the message authenticates and the session is saved.
func (s *Service) RespondSession(
	passphrase string,
	peer domain.Username,
	msg domain.HandshakeMessage,
) (sess domain.Session, plaintext []byte, err error) {
	defer func() {
		metrics.Handshakes.WithLabelValues(string(domain.RoleResponder), metrics.Result(err)).Inc()
	}()

	id, err := s.loadIdentity(passphrase)
	if err != nil {
		return domain.Session{}, nil, err
	}
	defer id.Wipe()

	rec, ok, err := s.prekeyStore.LoadSignedPreKey()
	if err != nil {
		return domain.Session{}, nil, err
	}
	if !ok {
		return domain.Session{}, nil, fmt.Errorf("%w: no signed pre-key", domain.ErrUnknownPreKey)
	}
	spk, err := x3dh.SignedPreKeyFromRecord(s.suite, rec)
	if err != nil {
		return domain.Session{}, nil, err
	}
	defer spk.Key.Wipe()

	// Respond consumes the one-time pre-key. Keep a copy so it can be put
	// back when the session cannot be saved, leaving the handshake retryable.
	opk, _, err := s.prekeyStore.LoadOneTimePreKey(msg.OneTimePreKeyID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	defer crypto.Wipe(opk.Priv)

	plaintext, res, err := x3dh.Respond(s.suite, id, spk, prekey.NewStorePool(s.suite, s.prekeyStore), msg)
	if err != nil {
		return domain.Session{}, nil, err
	}

	sess = s.newSession(peer, domain.RoleResponder, res)
	if err := s.sessionStore.SaveSession(peer, sess); err != nil {
		crypto.Wipe(sess.Key)
		if rerr := s.prekeyStore.SaveOneTimePreKeys([]domain.OneTimePreKeyPair{opk}); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore one-time pre-key %s: %w", opk.ID, rerr))
		}
		return domain.Session{}, nil, err
	}
	metrics.OneTimePreKeysConsumed.Inc()

	s.log.WithFields(logrus.Fields{
		"peer":       peer,
		"session_id": sess.ID,
		"opk_id":     res.OneTimePreKeyID,
	}).Info("session accepted")
	return sess, plaintext, nil
}

// GetSession retrieves a stored session for the given peer from the session store.
func (s *Service) GetSession(peer domain.Username) (domain.Session, bool, error) {
	return s.sessionStore.LoadSession(peer)
}

// ListSessions returns every stored session ordered by peer.
func (s *Service) ListSessions() ([]domain.Session, error) {
	return s.sessionStore.ListSessions()
}

func (s *Service) loadIdentity(passphrase string) (x3dh.Identity, error) {
	rec, err := s.idStore.LoadIdentity(passphrase)
	if err != nil {
		return x3dh.Identity{}, err
	}
	defer crypto.Wipe(rec.ExchangePriv, rec.SigningPriv)
	return x3dh.IdentityFromRecord(s.suite, rec)
}

// newSession takes ownership of res.Key.
func (s *Service) newSession(peer domain.Username, role domain.Role, res x3dh.Result) domain.Session {
	return domain.Session{
		ID:              uuid.NewString(),
		Peer:            peer,
		Role:            role,
		Suite:           s.suite.ID,
		Key:             res.Key,
		AssociatedData:  res.AssociatedData,
		PeerIdentityKey: res.PeerIdentityKey,
		OneTimePreKeyID: res.OneTimePreKeyID,
		CreatedUTC:      s.now().UTC().Unix(),
	}
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
