// Package message sends and receives encrypted messages.
//
// It seals application data under the session key established by the
// session service, bootstraps sessions from handshake messages found in the
// mailbox, and exchanges ciphertexts via the RelayClient.
package message
