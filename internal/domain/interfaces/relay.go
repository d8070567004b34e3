package interfaces

import (
	"context"

	domaintypes "duet/internal/domain/types"
)

// Directory stores and serves published pre-key bundles.
type Directory interface {
	// Upload stores the latest bundle for its owner, replacing any previous one.
	Upload(ctx context.Context, bundle domaintypes.PreKeyBundle) error
	// Download returns the owner's bundle with one one-time pre-key selected.
	// The selected key is removed from the published set.
	Download(
		ctx context.Context,
		username domaintypes.Username,
	) (domaintypes.FetchedBundle, error)
}

// Mailbox queues relay messages for offline recipients.
type Mailbox interface {
	Post(ctx context.Context, msg domaintypes.RelayMessage) error
	Fetch(
		ctx context.Context,
		username domaintypes.Username,
		limit int,
	) ([]domaintypes.RelayMessage, error)
	// Ack drops the first count queued messages.
	Ack(ctx context.Context, username domaintypes.Username, count int) error
}

// RelayClient is how we talk to the relay server, all with context.
type RelayClient interface {
	Directory
	Mailbox
}
