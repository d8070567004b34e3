package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"duet/internal/crypto"
)

func suitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suites",
		Short: "List supported primitive suites",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range crypto.SuiteIDs() {
				mark := " "
				if id == crypto.DefaultSuiteID {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, id)
			}
			return nil
		},
	}
}
