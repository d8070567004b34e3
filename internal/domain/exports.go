package domain

import (
	interfaces "duet/internal/domain/interfaces"
	types "duet/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username            = types.Username
	Fingerprint         = types.Fingerprint
	OneTimePreKeyID     = types.OneTimePreKeyID
	SuiteID             = types.SuiteID
	PublicKey           = types.PublicKey
	Identity            = types.Identity
	SignedPreKeyPair    = types.SignedPreKeyPair
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PreKeyBundle        = types.PreKeyBundle
	FetchedBundle       = types.FetchedBundle
	HandshakeMessage    = types.HandshakeMessage
	Envelope            = types.Envelope
	RelayMessage        = types.RelayMessage
	DecryptedMessage    = types.DecryptedMessage
	Role                = types.Role
	Session             = types.Session
	AccountProfile      = types.AccountProfile
)

const (
	NonceSize     = types.NonceSize
	RoleInitiator = types.RoleInitiator
	RoleResponder = types.RoleResponder
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService   = interfaces.IdentityService
	PreKeyService     = interfaces.PreKeyService
	SessionService    = interfaces.SessionService
	MessageService    = interfaces.MessageService
	Directory         = interfaces.Directory
	Mailbox           = interfaces.Mailbox
	RelayClient       = interfaces.RelayClient
	IdentityStore     = interfaces.IdentityStore
	PreKeyStore       = interfaces.PreKeyStore
	PreKeyBundleStore = interfaces.PreKeyBundleStore
	SessionStore      = interfaces.SessionStore
	AccountStore      = interfaces.AccountStore
)
