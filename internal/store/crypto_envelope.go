package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"duet/internal/crypto"
)

// KDF selects how the keystore stretches a passphrase into a key.
type KDF string

const (
	KDFScrypt   KDF = "scrypt"
	KDFArgon2id KDF = "argon2id"
)

const (
	// The current supported version of the encrypted blob format stored on disk.
	// Version 1 blobs carry no kdf field and are always scrypt.
	keystoreFormatVersion = 2

	saltSize = 16
)

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// ciphertext has been modified / corrupted.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted identity")

// ParseKDF maps a config value onto a KDF. Empty selects scrypt.
func ParseKDF(s string) (KDF, error) {
	switch KDF(s) {
	case "", KDFScrypt:
		return KDFScrypt, nil
	case KDFArgon2id:
		return KDFArgon2id, nil
	default:
		return "", fmt.Errorf("unknown keystore kdf %q", s)
	}
}

// blob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V       int    `json:"v"`
	KDF     KDF    `json:"kdf,omitempty"`
	Salt    []byte `json:"salt"`
	N       int    `json:"scrypt_N,omitempty"`
	R       int    `json:"scrypt_r,omitempty"`
	P       int    `json:"scrypt_p,omitempty"`
	Time    uint32 `json:"argon2_t,omitempty"`
	Memory  uint32 `json:"argon2_m,omitempty"`
	Threads uint8  `json:"argon2_p,omitempty"`
	Cipher  []byte `json:"cipher"`
}

// encrypt derives a key from passphrase and seals raw into a JSON blob.
func encrypt(rand io.Reader, kdf KDF, passphrase string, raw []byte) ([]byte, error) {
	bl := blob{V: keystoreFormatVersion, KDF: kdf, Salt: make([]byte, saltSize)}
	if _, err := io.ReadFull(rand, bl.Salt); err != nil {
		return nil, err
	}
	switch kdf {
	case KDFScrypt:
		bl.N, bl.R, bl.P = scryptParamsDefault()
	case KDFArgon2id:
		bl.Time, bl.Memory, bl.Threads = argon2ParamsDefault()
	default:
		return nil, fmt.Errorf("unknown keystore kdf %q", kdf)
	}

	key, err := bl.key(passphrase)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; salt-bound key is fresh per write
	bl.Cipher = aead.Seal(nil, nonce[:], raw, bl.Salt)
	return json.Marshal(bl)
}

// decrypt opens the JSON blob using a key derived from passphrase.
func decrypt(passphrase string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", bl.V)
	}
	if bl.KDF == "" {
		bl.KDF = KDFScrypt
	}

	key, err := bl.key(passphrase)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func (bl *blob) key(passphrase string) ([]byte, error) {
	switch bl.KDF {
	case KDFScrypt:
		return scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	case KDFArgon2id:
		if bl.Time == 0 || bl.Memory == 0 || bl.Threads == 0 {
			return nil, errors.New("argon2id parameters missing")
		}
		return argon2.IDKey([]byte(passphrase), bl.Salt, bl.Time, bl.Memory, bl.Threads, chacha20poly1305.KeySize), nil
	default:
		return nil, fmt.Errorf("unknown keystore kdf %q", bl.KDF)
	}
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

// Tunables for argon2id (RFC 9106 second recommendation, 64 MiB).
func argon2ParamsDefault() (time, memoryKiB uint32, threads uint8) { return 3, 64 * 1024, 4 }
