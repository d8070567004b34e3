package types

import "bytes"

// PublicKey is a public key in the raw encoding of its suite.
type PublicKey []byte

// Slice returns the key as a []byte.
func (p PublicKey) Slice() []byte { return p }

// Equal reports whether p and q hold the same bytes.
func (p PublicKey) Equal(q PublicKey) bool { return bytes.Equal(p, q) }
