package relay

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"duet/internal/domain"
)

// MemoryBackend keeps bundles and mailboxes in process memory. State is lost
// on exit.
type MemoryBackend struct {
	mu        sync.Mutex
	bundles   map[domain.Username]*published
	mailboxes map[domain.Username][]domain.RelayMessage
}

// published is one owner's directory entry. OneTimePreKeys is kept sorted
// by id; issued remembers every id ever handed out so a re-upload cannot
// publish it again.
type published struct {
	bundle domain.PreKeyBundle
	issued map[domain.OneTimePreKeyID]struct{}
}

// NewMemoryBackend returns an empty in-memory relay backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		bundles:   make(map[domain.Username]*published),
		mailboxes: make(map[domain.Username][]domain.RelayMessage),
	}
}

// Upload stores bundle, replacing the owner's previous entry. One-time
// pre-keys already issued under the same identity key are dropped.
func (m *MemoryBackend) Upload(_ context.Context, bundle domain.PreKeyBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.bundles[bundle.Username]
	issued := map[domain.OneTimePreKeyID]struct{}{}
	if prev != nil && bytes.Equal(prev.bundle.IdentityKey, bundle.IdentityKey) {
		issued = prev.issued
	}

	fresh := make([]domain.OneTimePreKeyPublic, 0, len(bundle.OneTimePreKeys))
	for _, opk := range bundle.OneTimePreKeys {
		if _, used := issued[opk.ID]; !used {
			fresh = append(fresh, opk)
		}
	}
	slices.SortFunc(fresh, func(a, b domain.OneTimePreKeyPublic) int { return cmp.Compare(a.ID, b.ID) })
	fresh = slices.CompactFunc(fresh, func(a, b domain.OneTimePreKeyPublic) bool { return a.ID == b.ID })

	bundle.OneTimePreKeys = fresh
	m.bundles[bundle.Username] = &published{bundle: bundle, issued: issued}
	return nil
}

// Download hands out the owner's bundle with the lowest-id one-time pre-key
// and removes that key from the directory.
func (m *MemoryBackend) Download(_ context.Context, username domain.Username) (domain.FetchedBundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.bundles[username]
	if !ok {
		return domain.FetchedBundle{}, fmt.Errorf("bundle for %s: %w", username, domain.ErrNotFound)
	}
	if len(p.bundle.OneTimePreKeys) == 0 {
		return domain.FetchedBundle{}, fmt.Errorf("bundle for %s: %w", username, domain.ErrPreKeysExhausted)
	}
	opk := p.bundle.OneTimePreKeys[0]
	p.bundle.OneTimePreKeys = p.bundle.OneTimePreKeys[1:]
	p.issued[opk.ID] = struct{}{}
	return p.bundle.Select(opk), nil
}

// Post appends msg to the recipient's mailbox.
func (m *MemoryBackend) Post(_ context.Context, msg domain.RelayMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mailboxes[msg.To] = append(m.mailboxes[msg.To], msg)
	return nil
}

// Fetch returns up to limit queued messages without removing them. A
// non-positive limit returns everything.
func (m *MemoryBackend) Fetch(_ context.Context, username domain.Username, limit int) ([]domain.RelayMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.mailboxes[username]
	if limit <= 0 || limit > len(q) {
		limit = len(q)
	}
	return slices.Clone(q[:limit]), nil
}

// Ack drops the first count queued messages. Acking more than are queued
// clears the mailbox.
func (m *MemoryBackend) Ack(_ context.Context, username domain.Username, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.mailboxes[username]
	if count >= len(q) {
		delete(m.mailboxes, username)
		return nil
	}
	if count > 0 {
		m.mailboxes[username] = slices.Clone(q[count:])
	}
	return nil
}

var _ domain.RelayClient = (*MemoryBackend)(nil)
