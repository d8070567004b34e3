package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"duet/internal/crypto"
)

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List established sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := appCtx.Sessions.ListSessions()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PEER\tROLE\tFINGERPRINT\tSUITE\tCREATED")
			for _, s := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					s.Peer,
					s.Role,
					crypto.Fingerprint(s.PeerIdentityKey),
					s.Suite,
					time.Unix(s.CreatedUTC, 0).UTC().Format(time.RFC3339),
				)
			}
			return tw.Flush()
		},
	}
}
