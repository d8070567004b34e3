package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/protocol/x3dh"
	"duet/internal/relay"
	"duet/internal/validation"
)

// Exchange is one delivered message in a simulation run.
type Exchange struct {
	From      domain.Username
	To        domain.Username
	Plaintext string
}

// simulation rounds after the handshake, alternating initiator and responder.
var simulationRounds = []string{"a1", "b1", "a2", "b2"}

// Simulate runs a two-party conversation in process: the responder publishes
// a bundle to an in-memory relay, the initiator downloads it and sends the
// handshake message through the mailbox, and both sides then exchange
// messages under the resulting session key. Every decrypted message is logged
// and returned in delivery order.
func Simulate(ctx context.Context, suite *crypto.Suite, rand io.Reader, log *logrus.Logger) ([]Exchange, error) {
	const alice, bob domain.Username = "alice", "bob"

	rc := relay.NewMemoryBackend()
	validate := validation.New()
	parties := map[domain.Username]*x3dh.Party{
		alice: x3dh.NewParty(suite, rand),
		bob:   x3dh.NewParty(suite, rand),
	}
	defer func() {
		for _, p := range parties {
			p.Close()
		}
	}()

	if err := parties[alice].GenerateKeys(0); err != nil {
		return nil, fmt.Errorf("alice keys: %w", err)
	}
	if err := parties[bob].GenerateKeys(1); err != nil {
		return nil, fmt.Errorf("bob keys: %w", err)
	}
	bundle, err := parties[bob].Bundle(bob)
	if err != nil {
		return nil, err
	}
	if err := rc.Upload(ctx, bundle); err != nil {
		return nil, err
	}

	fetched, err := rc.Download(ctx, bob)
	if err != nil {
		return nil, err
	}
	hs, err := parties[alice].ExecuteInitiator(fetched)
	if err != nil {
		return nil, fmt.Errorf("initiator: %w", err)
	}
	if err := rc.Post(ctx, domain.RelayMessage{From: alice, To: bob, Handshake: &hs, Timestamp: time.Now().Unix()}); err != nil {
		return nil, err
	}

	// next pops the recipient's oldest message.
	next := func(to domain.Username) (domain.RelayMessage, error) {
		msgs, err := rc.Fetch(ctx, to, 1)
		if err != nil {
			return domain.RelayMessage{}, err
		}
		if len(msgs) == 0 {
			return domain.RelayMessage{}, fmt.Errorf("%w: mailbox for %s is empty", domain.ErrNotFound, to)
		}
		if err := validate.RelayMessage(msgs[0]); err != nil {
			return domain.RelayMessage{}, err
		}
		return msgs[0], rc.Ack(ctx, to, 1)
	}

	in, err := next(bob)
	if err != nil {
		return nil, err
	}
	pt, err := parties[bob].ExecuteResponder(*in.Handshake)
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}
	if string(pt) != x3dh.InitialMessage {
		return nil, fmt.Errorf("responder recovered %q", pt)
	}
	out := []Exchange{{From: alice, To: bob, Plaintext: string(pt)}}
	log.WithFields(logrus.Fields{
		"suite":  suite.ID,
		"opk_id": hs.OneTimePreKeyID,
	}).Infof("%s -> %s: %q", alice, bob, pt)

	for i, text := range simulationRounds {
		from, to := alice, bob
		if i%2 == 1 {
			from, to = bob, alice
		}
		env, err := parties[from].SendMessage([]byte(text))
		if err != nil {
			return out, err
		}
		if err := rc.Post(ctx, domain.RelayMessage{From: from, To: to, Envelope: &env, Timestamp: time.Now().Unix()}); err != nil {
			return out, err
		}
		in, err := next(to)
		if err != nil {
			return out, err
		}
		got, err := parties[to].ReceiveMessage(*in.Envelope)
		if err != nil {
			return out, fmt.Errorf("%s receiving %q: %w", to, text, err)
		}
		if string(got) != text {
			return out, fmt.Errorf("%s received %q, want %q", to, got, text)
		}
		out = append(out, Exchange{From: from, To: to, Plaintext: string(got)})
		log.WithField("suite", suite.ID).Infof("%s -> %s: %q", from, to, got)
	}
	return out, nil
}
