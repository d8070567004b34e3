// Package channel is the post-handshake symmetric channel.
//
// Both parties hold the same session key and associated data after a
// handshake. Send seals a plaintext into a domain.Envelope with a fresh
// 96-bit nonce; Receive opens one. Tampering with the nonce, ciphertext or
// associated data, or using the wrong key, fails with domain.ErrAuthentication.
//
// # Limitations
//
// Forward secrecy via ratcheting, message ordering and deduplication are not
// provided. Random nonces bound the number of messages one key may safely
// carry by the 96-bit birthday limit.
package channel
