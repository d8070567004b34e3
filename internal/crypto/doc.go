// Package crypto exposes the primitive suites used by duet.
//
// Contents
//
//   - Exchange curves behind the Curve interface: X25519, P256 (crypto/ecdh)
//     and Edwards25519 (kyber)
//   - Signature schemes behind SignatureScheme: Ed25519, ECDSAP256 and Schnorr
//   - AEAD ciphers (ChaCha20Poly1305, AES256GCM) with Seal/Open, which draw a
//     fresh 96-bit nonce per call and collapse every open failure into
//     domain.ErrAuthentication
//   - HKDF-based key derivation (DeriveKey)
//   - Suite, which fixes one choice of each of the above per protocol version
//   - KeyPair and SigningKeyPair handles that own their private bytes and can
//     be wiped (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//   - NewSeededReader, a deterministic randomness source for tests
//
// # Notes
//
// Every generation and encryption call takes its randomness as an io.Reader.
// Production callers pass crypto/rand.Reader.
package crypto
