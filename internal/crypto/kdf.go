package crypto

import (
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of every derived key.
	KeySize = 32

	kdfPrefixSize = 32
)

// DeriveKey derives the counter-th KeySize key from raw DH material.
//
// HKDF extract runs with an all-zero salt of the hash size over 32 zero bytes
// followed by ikm. Expand uses the info string "<label> key<counter+1>".
func DeriveKey(h func() hash.Hash, label string, ikm []byte, counter int) ([]byte, error) {
	if counter < 0 {
		return nil, fmt.Errorf("kdf: negative counter %d", counter)
	}
	material := make([]byte, kdfPrefixSize, kdfPrefixSize+len(ikm))
	material = append(material, ikm...)
	defer Wipe(material)

	salt := make([]byte, h().Size())
	info := fmt.Sprintf("%s key%d", label, counter+1)

	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(h, material, salt, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}
