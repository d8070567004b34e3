package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"duet/internal/codec"
	"duet/internal/domain"
)

// RedisBackend keeps the directory and mailboxes in Redis so several relay
// processes can share state.
//
// Keys per user:
//
//	bundle:{user}   encoded PreKeyBundle without one-time pre-keys
//	opks:{user}     sorted set of encoded OneTimePreKeyPublic, scored by id
//	issued:{user}   set of one-time pre-key ids already handed out
//	mailbox:{user}  list of encoded RelayMessage, oldest first
type RedisBackend struct {
	rdb   *redis.Client
	codec codec.Codec
}

// NewRedisBackend wraps rdb. Values are stored with c.
func NewRedisBackend(rdb *redis.Client, c codec.Codec) *RedisBackend {
	return &RedisBackend{rdb: rdb, codec: c}
}

func bundleKey(u domain.Username) string  { return "bundle:" + u.String() }
func opksKey(u domain.Username) string    { return "opks:" + u.String() }
func issuedKey(u domain.Username) string  { return "issued:" + u.String() }
func mailboxKey(u domain.Username) string { return "mailbox:" + u.String() }

// uploadAttempts bounds how often Upload retries after a concurrent download
// changed the watched keys.
const uploadAttempts = 8

// downloadScript returns {bundle, member} and marks the popped id as issued in
// one step. An exhausted directory returns {bundle}; an unknown user, nil.
var downloadScript = redis.NewScript(`
local bundle = redis.call('GET', KEYS[1])
if not bundle then
	return false
end
local popped = redis.call('ZPOPMIN', KEYS[2])
if #popped == 0 then
	return {bundle}
end
redis.call('SADD', KEYS[3], popped[2])
return {bundle, popped[1]}
`)

// Upload replaces the owner's bundle. One-time pre-keys already issued under
// the same identity key are not republished. The read of the issued set and
// the write run under WATCH, so a download racing the upload forces a retry.
func (r *RedisBackend) Upload(ctx context.Context, bundle domain.PreKeyBundle) error {
	u := bundle.Username
	opks := bundle.OneTimePreKeys
	bundle.OneTimePreKeys = nil
	encoded, err := r.codec.Marshal(bundle)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		sameIdentity := false
		raw, err := tx.Get(ctx, bundleKey(u)).Bytes()
		switch {
		case err == nil:
			var prev domain.PreKeyBundle
			if err := r.codec.Unmarshal(raw, &prev); err != nil {
				return fmt.Errorf("decode stored bundle: %w", err)
			}
			sameIdentity = bytes.Equal(prev.IdentityKey, bundle.IdentityKey)
		case !errors.Is(err, redis.Nil):
			return err
		}

		issued := map[string]struct{}{}
		if sameIdentity {
			ids, err := tx.SMembers(ctx, issuedKey(u)).Result()
			if err != nil {
				return err
			}
			for _, id := range ids {
				issued[id] = struct{}{}
			}
		}

		members := make([]redis.Z, 0, len(opks))
		for _, opk := range opks {
			if _, used := issued[opk.ID.String()]; used {
				continue
			}
			member, err := r.codec.Marshal(opk)
			if err != nil {
				return err
			}
			members = append(members, redis.Z{Score: float64(opk.ID), Member: member})
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, bundleKey(u), encoded, 0)
			pipe.Del(ctx, opksKey(u))
			if !sameIdentity {
				pipe.Del(ctx, issuedKey(u))
			}
			if len(members) > 0 {
				pipe.ZAdd(ctx, opksKey(u), members...)
			}
			return nil
		})
		return err
	}

	for i := 0; i < uploadAttempts; i++ {
		err := r.rdb.Watch(ctx, txf, bundleKey(u), opksKey(u), issuedKey(u))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("upload bundle for %s: too many concurrent downloads", u)
}

// Download pops the lowest-id one-time pre-key and records it as issued. Both
// happen inside one script, so two downloads never receive the same key and a
// popped key is always remembered.
func (r *RedisBackend) Download(ctx context.Context, username domain.Username) (domain.FetchedBundle, error) {
	keys := []string{bundleKey(username), opksKey(username), issuedKey(username)}
	res, err := downloadScript.Run(ctx, r.rdb, keys).StringSlice()
	if errors.Is(err, redis.Nil) {
		return domain.FetchedBundle{}, fmt.Errorf("bundle for %s: %w", username, domain.ErrNotFound)
	}
	if err != nil {
		return domain.FetchedBundle{}, err
	}

	var bundle domain.PreKeyBundle
	if err := r.codec.Unmarshal([]byte(res[0]), &bundle); err != nil {
		return domain.FetchedBundle{}, fmt.Errorf("decode stored bundle: %w", err)
	}
	if len(res) < 2 {
		return domain.FetchedBundle{}, fmt.Errorf("bundle for %s: %w", username, domain.ErrPreKeysExhausted)
	}
	var opk domain.OneTimePreKeyPublic
	if err := r.codec.Unmarshal([]byte(res[1]), &opk); err != nil {
		return domain.FetchedBundle{}, fmt.Errorf("decode one-time pre-key: %w", err)
	}
	return bundle.Select(opk), nil
}

// Post appends msg to the recipient's mailbox.
func (r *RedisBackend) Post(ctx context.Context, msg domain.RelayMessage) error {
	b, err := r.codec.Marshal(msg)
	if err != nil {
		return err
	}
	return r.rdb.RPush(ctx, mailboxKey(msg.To), b).Err()
}

// Fetch returns up to limit queued messages without removing them.
func (r *RedisBackend) Fetch(ctx context.Context, username domain.Username, limit int) ([]domain.RelayMessage, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raws, err := r.rdb.LRange(ctx, mailboxKey(username), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.RelayMessage, 0, len(raws))
	for i, raw := range raws {
		var msg domain.RelayMessage
		if err := r.codec.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode message %d: %w", i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Ack drops the first count queued messages.
func (r *RedisBackend) Ack(ctx context.Context, username domain.Username, count int) error {
	if count <= 0 {
		return nil
	}
	return r.rdb.LTrim(ctx, mailboxKey(username), int64(count), -1).Err()
}

var _ domain.RelayClient = (*RedisBackend)(nil)
