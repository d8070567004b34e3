// Package commands defines the duet CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create the local identity
//   - fingerprint    Print the identity fingerprint
//   - register       Publish your prekey bundle to a relay
//   - start-session  Run the handshake with a peer and send the handshake message
//   - send           Encrypt and send a message
//   - recv           Fetch and decrypt queued messages
//   - sessions       List established sessions
//   - simulate       Run a two-party conversation in process
//   - suites         List primitive suites
//
// # Implementation
//
// The root command builds the dependency graph (stores, services, relay
// client) before any subcommand runs. Every flag falls back to a DUET_*
// environment variable. simulate and suites need no state and skip that step.
package commands
