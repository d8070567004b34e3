// Package prekey manages signed pre-keys and one-time pre-keys.
//
// It creates the signed pre-key on first use, appends one-time pre-keys
// under fresh ids, and assembles the bundle uploaded to the relay. StorePool
// adapts the pre-key store to the handshake's single-use key interface.
package prekey
