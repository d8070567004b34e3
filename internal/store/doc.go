// Package store provides file-based persistence for a duet home directory.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk with atomic temp-file renames. All methods
// are concurrency-safe via internal locking.
//
// The package includes stores for:
//   - Identity keys, sealed under a passphrase (IdentityFileStore)
//   - Signed and one-time pre-keys (PrekeyFileStore)
//   - Registered pre-key bundles (BundleFileStore)
//   - Established sessions (SessionFileStore)
//   - Relay account profiles (AccountFileStore)
package store
