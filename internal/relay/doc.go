// Package relay implements the untrusted store-and-forward service that sits
// between duet peers, and the client used to reach it.
//
// The relay holds two kinds of state per user: the published pre-key bundle
// (the directory) and a queue of RelayMessages (the mailbox). It never sees
// plaintext or private keys.
//
// HTTP API
//
//	POST /register
//	    Store a user's PreKeyBundle, replacing the previous one.
//
//	GET /prekey/{username}
//	    Return the bundle with the lowest-id one-time pre-key, removing that
//	    key. 404 if no bundle, 409 if no one-time pre-keys remain.
//
//	POST /msg/{user}
//	    Enqueue a RelayMessage destined to {user}. If Timestamp is zero, the
//	    server fills it with the current Unix time.
//
//	GET /msg/{user}?limit=N
//	    Return up to N queued messages for {user} without removing them.
//
//	POST /msg/{user}/ack { "count": N }
//	    Drop the first N queued messages for {user}.
//
//	GET /healthz, GET /metrics
//
// Bodies are JSON unless the request names application/cbor in Content-Type
// or Accept. Non-2xx replies carry {"error": "..."}.
//
// Backends: MemoryBackend (process memory) and RedisBackend. HTTP is the
// client; all three satisfy domain.RelayClient.
package relay
