// Package x3dh implements the X3DH key agreement that gives two parties who
// are never online together a shared session key.
//
// # Overview
//
// A responder publishes a pre-key bundle:
//   - Identity key and signing (verify) key
//   - Signed pre-key and its signature under the signing key
//   - A pool of one-time pre-keys, each with an integer id
//
// The directory hands an initiator that bundle with one one-time pre-key
// selected (domain.FetchedBundle).
//
// # Flows
//
// Initiator (Initiate, Party.ExecuteInitiator):
//  1. Verify the signed pre-key signature.
//  2. Generate an ephemeral key pair.
//  3. Compute DH1 = IKa·SPKb, DH2 = EKa·IKb, DH3 = EKa·SPKb, DH4 = EKa·OPKb.
//  4. Derive the session key from DH1‖DH2‖DH3‖DH4 (counter 0).
//  5. AD = IKa‖IKb. Seal InitialMessage under (key, AD).
//  6. Wipe the ephemeral private key and return the handshake message.
//
// Responder (Respond, Party.ExecuteResponder):
//  1. Look up the referenced one-time pre-key without consuming it.
//  2. Compute the mirrored DH set (SPKb·IKa, IKb·EKa, SPKb·EKa, OPKb·EKa).
//  3. Derive the same key and rebuild AD = IKa‖IKb.
//  4. Open the initial ciphertext.
//  5. Consume the one-time pre-key and return the plaintext.
//
// The four exchanges run concurrently; their outputs are always
// concatenated in the order above.
//
// # Errors
//
//   - domain.ErrBundleAuthentication: the signed pre-key signature is bad.
//   - domain.ErrInvalidKey: a peer public key is malformed for the suite.
//   - domain.ErrUnknownPreKey: the one-time pre-key is absent or consumed.
//   - domain.ErrAuthentication: the initial ciphertext did not open.
//   - domain.ErrSuiteMismatch: bundle or message is from another suite.
//
// None of them commit state. A failed responder keeps its one-time pre-key,
// so malformed messages cannot burn keys.
//
// # Security notes
//
// Only public material is sent over the wire. Ephemeral keys, looked-up
// one-time pre-keys and intermediate DH outputs are wiped after use.
package x3dh
