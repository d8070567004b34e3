package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"duet/internal/domain"
)

// Cipher constructs an AEAD from a KeySize key.
type Cipher interface {
	Name() string
	New(key []byte) (cipher.AEAD, error)
}

type chachaCipher struct{}

// ChaCha20Poly1305 is the IETF ChaCha20-Poly1305 AEAD.
var ChaCha20Poly1305 Cipher = chachaCipher{}

func (chachaCipher) Name() string                        { return "chacha20poly1305" }
func (chachaCipher) New(key []byte) (cipher.AEAD, error) { return chacha20poly1305.New(key) }

type aesGCMCipher struct{}

// AES256GCM is AES-256 in GCM mode with a 96-bit nonce.
var AES256GCM Cipher = aesGCMCipher{}

func (aesGCMCipher) Name() string { return "aes256gcm" }

func (aesGCMCipher) New(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aes256gcm: key is %d bytes", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key, binding ad, with a fresh nonce read from rand.
func Seal(c Cipher, rand io.Reader, key, plaintext, ad []byte) (nonce, ciphertext []byte, err error) {
	aead, err := c.New(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open reverses Seal. Every failure, including a malformed nonce or key,
// is reported as domain.ErrAuthentication and nothing is returned.
func Open(c Cipher, key, nonce, ciphertext, ad []byte) ([]byte, error) {
	aead, err := c.New(key)
	if err != nil {
		return nil, domain.ErrAuthentication
	}
	if len(nonce) != aead.NonceSize() {
		return nil, domain.ErrAuthentication
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, domain.ErrAuthentication
	}
	return pt, nil
}
