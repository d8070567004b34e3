package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// recv: fetch and decrypt queued messages for --username.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
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

			ctx, cancel := commandContext(cmd)
			defer cancel()
			msgs, err := appCtx.Messages.ReceiveMessage(ctx, passphrase, me, limit)
			for _, m := range msgs {
				ts := time.Unix(m.Timestamp, 0).Format(time.DateTime)
				if m.Handshake {
					fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] session established: %s\n", ts, m.From, m.Plaintext)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", ts, m.From, m.Plaintext)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "your username (same as you registered with)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages to fetch (0 = all)")
	return cmd
}
