package interfaces

import domaintypes "duet/internal/domain/types"

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// PreKeyStore manages signed and one-time pre-keys on disk.
type PreKeyStore interface {
	// Signed pre-key
	SaveSignedPreKey(pair domaintypes.SignedPreKeyPair) error
	LoadSignedPreKey() (domaintypes.SignedPreKeyPair, bool, error)

	// One-time pre-keys
	ReserveOneTimePreKeyIDs(count int) (domaintypes.OneTimePreKeyID, error)
	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	LoadOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	// ConsumeOneTimePreKey removes id if present and reports whether it did.
	// Check and removal happen as one step.
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (bool, error)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)
}

// PreKeyBundleStore caches the last bundle you registered.
type PreKeyBundleStore interface {
	SavePreKeyBundle(bundle domaintypes.PreKeyBundle) error
	LoadPreKeyBundle(username domaintypes.Username) (domaintypes.PreKeyBundle, bool, error)
}

// SessionStore persists established sessions.
type SessionStore interface {
	SaveSession(peer domaintypes.Username, session domaintypes.Session) error
	LoadSession(peer domaintypes.Username) (domaintypes.Session, bool, error)
	ListSessions() ([]domaintypes.Session, error)
}
