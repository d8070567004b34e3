// Package identity manages creation, encryption and loading of the local identity.
//
// It enforces passphrase policy, generates the suite's exchange and signing
// key pairs, and persists them via the domain.IdentityStore.
package identity
