package types

import "strconv"

// Username represents a directory-registered party.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// OneTimePreKeyID identifies a one-time pre-key within its owner's pool.
type OneTimePreKeyID uint32

// String returns the decimal form of the identifier.
func (id OneTimePreKeyID) String() string { return strconv.FormatUint(uint64(id), 10) }

// SuiteID names a primitive suite. Each suite is its own protocol version.
type SuiteID string

// String returns the string form of the suite identifier.
func (s SuiteID) String() string { return string(s) }
