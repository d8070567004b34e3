package relay_test

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duet/internal/codec"
	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/relay"
)

func newRedisBackend(t *testing.T, c codec.Codec) domain.RelayClient {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return relay.NewRedisBackend(rdb, c)
}

func backends() map[string]func(t *testing.T) domain.RelayClient {
	return map[string]func(t *testing.T) domain.RelayClient{
		"memory":     func(*testing.T) domain.RelayClient { return relay.NewMemoryBackend() },
		"redis-json": func(t *testing.T) domain.RelayClient { return newRedisBackend(t, codec.JSON) },
		"redis-cbor": func(t *testing.T) domain.RelayClient { return newRedisBackend(t, codec.CBOR) },
	}
}

func testBundle(user domain.Username, identity byte, ids ...domain.OneTimePreKeyID) domain.PreKeyBundle {
	b := domain.PreKeyBundle{
		Username:              user,
		Suite:                 crypto.DefaultSuiteID,
		IdentityKey:           bytes.Repeat([]byte{identity}, 32),
		SigningKey:            bytes.Repeat([]byte{2}, 32),
		SignedPreKey:          bytes.Repeat([]byte{3}, 32),
		SignedPreKeySignature: bytes.Repeat([]byte{4}, 64),
	}
	for _, id := range ids {
		b.OneTimePreKeys = append(b.OneTimePreKeys, domain.OneTimePreKeyPublic{
			ID:  id,
			Pub: bytes.Repeat([]byte{byte(id)}, 32),
		})
	}
	return b
}

func TestBackend_Directory(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			be := newBackend(t)

			_, err := be.Download(ctx, "bob")
			require.ErrorIs(t, err, domain.ErrNotFound)

			require.NoError(t, be.Upload(ctx, testBundle("bob", 1, 5, 2, 9)))

			var got []domain.OneTimePreKeyID
			for i := 0; i < 3; i++ {
				fb, err := be.Download(ctx, "bob")
				require.NoError(t, err)
				assert.Equal(t, domain.Username("bob"), fb.Username)
				assert.Equal(t, bytes.Repeat([]byte{byte(fb.OneTimePreKey.ID)}, 32), []byte(fb.OneTimePreKey.Pub))
				got = append(got, fb.OneTimePreKey.ID)
			}
			assert.Equal(t, []domain.OneTimePreKeyID{2, 5, 9}, got, "lowest id first")

			_, err = be.Download(ctx, "bob")
			require.ErrorIs(t, err, domain.ErrPreKeysExhausted)
		})
	}
}

func TestBackend_ReuploadSkipsIssued(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			be := newBackend(t)

			require.NoError(t, be.Upload(ctx, testBundle("bob", 1, 0, 1)))
			fb, err := be.Download(ctx, "bob")
			require.NoError(t, err)
			require.Equal(t, domain.OneTimePreKeyID(0), fb.OneTimePreKey.ID)

			// The owner still holds key 0 locally and republishes it.
			require.NoError(t, be.Upload(ctx, testBundle("bob", 1, 0, 1, 2)))
			fb, err = be.Download(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, domain.OneTimePreKeyID(1), fb.OneTimePreKey.ID)

			// A new identity starts over.
			require.NoError(t, be.Upload(ctx, testBundle("bob", 7, 0)))
			fb, err = be.Download(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, domain.OneTimePreKeyID(0), fb.OneTimePreKey.ID)
		})
	}
}

// afterCommand runs fn once, right after the first command called name.
type afterCommand struct {
	name string
	fn   func()
	once sync.Once
}

func (h *afterCommand) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *afterCommand) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if cmd.Name() == h.name {
			h.once.Do(h.fn)
		}
		return err
	}
}

func (h *afterCommand) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisBackend_DownloadDuringReupload_NoDuplicates(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	uploaderRDB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fetcherRDB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = uploaderRDB.Close()
		_ = fetcherRDB.Close()
	})
	uploader := relay.NewRedisBackend(uploaderRDB, codec.JSON)
	fetcher := relay.NewRedisBackend(fetcherRDB, codec.JSON)

	require.NoError(t, uploader.Upload(ctx, testBundle("bob", 1, 0, 1)))

	var raced domain.FetchedBundle
	var racedErr error
	uploaderRDB.AddHook(&afterCommand{name: "smembers", fn: func() {
		raced, racedErr = fetcher.Download(ctx, "bob")
	}})

	require.NoError(t, uploader.Upload(ctx, testBundle("bob", 1, 0, 1)))
	require.NoError(t, racedErr)
	require.Equal(t, domain.Username("bob"), raced.Username, "download did not run during the upload")
	require.Equal(t, domain.OneTimePreKeyID(0), raced.OneTimePreKey.ID)

	fb, err := fetcher.Download(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.OneTimePreKeyID(1), fb.OneTimePreKey.ID)

	_, err = fetcher.Download(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrPreKeysExhausted)

	issued, err := fetcherRDB.SMembers(ctx, "issued:bob").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0", "1"}, issued)
}

func TestBackend_ConcurrentDownload_NoDuplicates(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			be := newBackend(t)
			require.NoError(t, be.Upload(ctx, testBundle("bob", 1, 1, 2, 3, 4)))

			var (
				mu   sync.Mutex
				seen = map[domain.OneTimePreKeyID]int{}
				wg   sync.WaitGroup
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					fb, err := be.Download(ctx, "bob")
					if err != nil {
						return
					}
					mu.Lock()
					seen[fb.OneTimePreKey.ID]++
					mu.Unlock()
				}()
			}
			wg.Wait()

			assert.Len(t, seen, 4)
			for id, n := range seen {
				assert.Equal(t, 1, n, "key %d issued more than once", id)
			}
		})
	}
}

func TestBackend_Mailbox(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			be := newBackend(t)

			msgs, err := be.Fetch(ctx, "bob", 0)
			require.NoError(t, err)
			assert.Empty(t, msgs)

			for i := 0; i < 3; i++ {
				require.NoError(t, be.Post(ctx, domain.RelayMessage{
					From: "alice",
					To:   "bob",
					Envelope: &domain.Envelope{
						Nonce:      make([]byte, domain.NonceSize),
						Ciphertext: []byte{byte(i)},
					},
					Timestamp: int64(i + 1),
				}))
			}

			msgs, err = be.Fetch(ctx, "bob", 2)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, []byte{0}, msgs[0].Envelope.Ciphertext)

			require.NoError(t, be.Ack(ctx, "bob", 2))
			msgs, err = be.Fetch(ctx, "bob", 0)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, int64(3), msgs[0].Timestamp)

			require.NoError(t, be.Ack(ctx, "bob", 10))
			msgs, err = be.Fetch(ctx, "bob", 0)
			require.NoError(t, err)
			assert.Empty(t, msgs)
		})
	}
}
