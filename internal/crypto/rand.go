package crypto

import (
	"crypto/sha256"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20"
)

type seededReader struct {
	mu sync.Mutex
	c  *chacha20.Cipher
}

// NewSeededReader returns a deterministic stream keyed by SHA-256(seed).
// It exists for reproducible tests and simulations; never use it for real keys.
func NewSeededReader(seed []byte) io.Reader {
	key := sha256.Sum256(seed)
	c, err := chacha20.NewUnauthenticatedCipher(key[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		panic(err)
	}
	return &seededReader{c: c}
}

func (r *seededReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(p)
	r.c.XORKeyStream(p, p)
	return len(p), nil
}
