package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"duet/internal/domain"
)

const fingerprintBytes = 10

// Fingerprint returns a short hex fingerprint of a public key, grouped in
// blocks of four for reading aloud.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub domain.PublicKey) domain.Fingerprint {
	sum := sha256.Sum256(pub)
	h := hex.EncodeToString(sum[:fingerprintBytes])
	groups := make([]string, 0, len(h)/4)
	for i := 0; i < len(h); i += 4 {
		groups = append(groups, h[i:i+4])
	}
	return domain.Fingerprint(strings.Join(groups, " "))
}

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
