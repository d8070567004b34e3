// Package session establishes and tracks handshake sessions.
//
// It performs the initiator and responder sides, persists session material,
// and exposes lookups for the message service.
package session
