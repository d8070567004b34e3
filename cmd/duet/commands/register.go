package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"duet/internal/domain"
)

func registerCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Publish your prekey bundle to the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			rc, err := appCtx.RequireRelay()
			if err != nil {
				return err
			}
			me := domain.Username(args[0])

			// Make sure a signed pre-key exists and add a batch of one-time pre-keys.
			if _, _, err := appCtx.Prekey.GenerateAndStorePreKeys(passphrase, count); err != nil {
				return err
			}

			// Assemble the public bundle and cache it.
			bundle, err := appCtx.Prekey.LoadPreKeyBundle(passphrase, me)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := rc.Upload(ctx, bundle); err != nil {
				return err
			}

			err = appCtx.Accounts.SaveAccountProfile(domain.AccountProfile{
				ServerURL: appCtx.Config.RelayURL,
				Username:  me,
				Suite:     bundle.Suite,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s with %d one-time pre-keys\n", me, len(bundle.OneTimePreKeys))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "one-time pre-keys to add")
	return cmd
}
