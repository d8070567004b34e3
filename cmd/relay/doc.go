// Command relay runs the duet prekey directory and mailbox.
//
// State lives in process memory by default or in Redis with --backend=redis,
// so several relay processes can share one directory. The HTTP API is
// documented in package internal/relay; Prometheus metrics are served on
// /metrics.
//
// The relay is an untrusted middleman: it never sees plaintext or private
// keys, only public bundles and ciphertext.
package main
