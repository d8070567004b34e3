package x3dh

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"sync"

	"duet/internal/crypto"
	"duet/internal/domain"
)

// Pool is an in-memory OneTimePreKeys guarded by a mutex.
type Pool struct {
	mu   sync.Mutex
	keys map[domain.OneTimePreKeyID]*crypto.KeyPair
	next domain.OneTimePreKeyID
}

// NewPool returns an empty pool whose first generated id is 0.
func NewPool() *Pool {
	return &Pool{keys: make(map[domain.OneTimePreKeyID]*crypto.KeyPair)}
}

// Generate adds n fresh keys, numbering them after the last id handed out.
func (p *Pool) Generate(curve crypto.Curve, rand io.Reader, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		kp, err := curve.GenerateKey(rand)
		if err != nil {
			return fmt.Errorf("generate one-time pre-key: %w", err)
		}
		p.keys[p.next] = kp
		p.next++
	}
	return nil
}

// Lookup returns a clone of key id; wiping the clone leaves the pool intact.
func (p *Pool) Lookup(id domain.OneTimePreKeyID) (*crypto.KeyPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kp, ok := p.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPreKey, id)
	}
	return kp.Clone(), nil
}

// Consume removes and wipes key id.
func (p *Pool) Consume(id domain.OneTimePreKeyID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	kp, ok := p.keys[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPreKey, id)
	}
	delete(p.keys, id)
	kp.Wipe()
	return nil
}

// Publics lists the remaining public halves in ascending id order.
func (p *Pool) Publics() []domain.OneTimePreKeyPublic {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.OneTimePreKeyPublic, 0, len(p.keys))
	for id, kp := range p.keys {
		out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: kp.Public()})
	}
	slices.SortFunc(out, func(a, b domain.OneTimePreKeyPublic) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len reports how many unconsumed keys remain.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Compile-time assertion that Pool implements OneTimePreKeys.
var _ OneTimePreKeys = (*Pool)(nil)
