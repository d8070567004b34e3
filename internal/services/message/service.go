package message

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/metrics"
	"duet/internal/protocol/channel"
	"duet/internal/validation"
)

// Service sends and receives messages over the relay under established
// session keys.
//
// High-level flow:
//   - Send: load the session with the peer, seal under its key and post.
//   - Receive: fetch queued messages, answer handshake messages to create
//     sessions, open envelopes under the stored session, then ack what was
//     handled.
type Service struct {
	sessionService domain.SessionService
	relayClient    domain.RelayClient
	rand           io.Reader
	validate       *validation.Validator
	log            *logrus.Logger
	now            func() time.Time
}

// New constructs a Message Service.
func New(
	sessionService domain.SessionService,
	relayClient domain.RelayClient,
	rand io.Reader,
	log *logrus.Logger,
) *Service {
	return &Service{
		sessionService: sessionService,
		relayClient:    relayClient,
		rand:           rand,
		validate:       validation.New(),
		log:            log,
		now:            time.Now,
	}
}

// SendMessage seals plaintext under the session with to and posts it.
func (s *Service) SendMessage(
	ctx context.Context,
	from domain.Username,
	to domain.Username,
	plaintext []byte,
) (err error) {
	defer func() { metrics.Messages.WithLabelValues("sent", metrics.Result(err)).Inc() }()

	ch, err := s.channel(to)
	if err != nil {
		return err
	}
	defer ch.Close()

	env, err := ch.Send(plaintext)
	if err != nil {
		return err
	}
	return s.relayClient.Post(ctx, domain.RelayMessage{
		From:      from,
		To:        to,
		Envelope:  &env,
		Timestamp: s.now().Unix(),
	})
}

// ReceiveMessage fetches pending messages and decrypts them in order.
//
// A message that can never be processed (bad encoding, failed
// authentication, unknown pre-key, no session) is logged and dropped so it
// cannot block the mailbox. Any other error stops processing; messages
// handled before it are still acked and the rest stay queued.
func (s *Service) ReceiveMessage(
	ctx context.Context,
	passphrase string,
	me domain.Username,
	limit int,
) ([]domain.DecryptedMessage, error) {
	msgs, err := s.relayClient.Fetch(ctx, me, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DecryptedMessage, 0, len(msgs))
	processed := 0
	var stopErr error
	for _, msg := range msgs {
		dm, err := s.open(passphrase, me, msg)
		switch {
		case err == nil:
			out = append(out, dm)
		case isPoison(err):
			s.log.WithError(err).WithField("from", msg.From).Warn("dropping undecryptable message")
		default:
			stopErr = err
		}
		if stopErr != nil {
			break
		}
		processed++
	}

	// Ack only what we handled. If zero, do nothing.
	if processed > 0 {
		if err := s.relayClient.Ack(ctx, me, processed); err != nil {
			return out, fmt.Errorf("ack %d messages: %w", processed, err)
		}
	}
	return out, stopErr
}

func (s *Service) open(passphrase string, me domain.Username, msg domain.RelayMessage) (dm domain.DecryptedMessage, err error) {
	if err := s.validate.RelayMessage(msg); err != nil {
		return domain.DecryptedMessage{}, err
	}
	if msg.To != me {
		return domain.DecryptedMessage{}, fmt.Errorf("%w: addressed to %s", domain.ErrInvalidMessage, msg.To)
	}

	dm = domain.DecryptedMessage{From: msg.From, To: msg.To, Timestamp: msg.Timestamp}
	if msg.Handshake != nil {
		_, pt, err := s.sessionService.RespondSession(passphrase, msg.From, *msg.Handshake)
		if err != nil {
			return domain.DecryptedMessage{}, fmt.Errorf("handshake from %s: %w", msg.From, err)
		}
		dm.Plaintext, dm.Handshake = pt, true
		return dm, nil
	}

	defer func() { metrics.Messages.WithLabelValues("received", metrics.Result(err)).Inc() }()
	ch, err := s.channel(msg.From)
	if err != nil {
		return domain.DecryptedMessage{}, err
	}
	defer ch.Close()

	pt, err := ch.Receive(*msg.Envelope)
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("decrypt from %s: %w", msg.From, err)
	}
	dm.Plaintext = pt
	return dm, nil
}

func (s *Service) channel(peer domain.Username) (*channel.Channel, error) {
	sess, ok, err := s.sessionService.GetSession(peer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", peer, domain.ErrNoSession)
	}
	suite, err := crypto.LookupSuite(sess.Suite)
	if err != nil {
		return nil, err
	}
	return channel.FromSession(suite, s.rand, sess)
}

// isPoison reports errors that retrying the same message cannot fix.
func isPoison(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidMessage,
		domain.ErrInvalidKey,
		domain.ErrAuthentication,
		domain.ErrUnknownPreKey,
		domain.ErrSuiteMismatch,
		domain.ErrNoSession,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
