package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"duet/internal/crypto"
	"duet/internal/domain"
)

// startSessionCmd runs the handshake against a peer's bundle, persists the
// session and posts the handshake message to the peer.
func startSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish a secure session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if _, err := appCtx.RequireRelay(); err != nil {
				return err
			}
			me, err := resolveUsername()
			if err != nil {
				return err
			}
			peer := domain.Username(args[0])

			ctx, cancel := commandContext(cmd)
			defer cancel()
			sess, err := appCtx.Sessions.InitiateSession(ctx, passphrase, me, peer)
			if err != nil {
				return fmt.Errorf("starting session with %q: %w", peer, err)
			}

			// Print the peer fingerprint so users can compare it out of band.
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s created with %s. Peer fingerprint: %s\n",
				sess.ID, peer, crypto.Fingerprint(sess.PeerIdentityKey))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "your username (same as you registered with)")
	return cmd
}
