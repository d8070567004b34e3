package interfaces

import (
	"context"

	domaintypes "duet/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// PreKeyService generates and assembles your pre-key bundles.
type PreKeyService interface {
	GenerateAndStorePreKeys(passphrase string, count int) (
		domaintypes.PublicKey,
		[]domaintypes.OneTimePreKeyPublic,
		error,
	)
	LoadPreKeyBundle(
		passphrase string,
		username domaintypes.Username,
	) (domaintypes.PreKeyBundle, error)
}

// SessionService establishes or retrieves a session.
type SessionService interface {
	InitiateSession(
		ctx context.Context,
		passphrase string,
		me domaintypes.Username,
		peer domaintypes.Username,
	) (domaintypes.Session, error)
	RespondSession(
		passphrase string,
		peer domaintypes.Username,
		msg domaintypes.HandshakeMessage,
	) (domaintypes.Session, []byte, error)
	GetSession(peer domaintypes.Username) (domaintypes.Session, bool, error)
	ListSessions() ([]domaintypes.Session, error)
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	SendMessage(
		ctx context.Context,
		from domaintypes.Username,
		to domaintypes.Username,
		plaintext []byte,
	) error
	ReceiveMessage(
		ctx context.Context,
		passphrase string,
		me domaintypes.Username,
		limit int,
	) ([]domaintypes.DecryptedMessage, error)
}
