package commands

import (
	"crypto/rand"
	"io"
	"os"

	"github.com/spf13/cobra"

	"duet/internal/app"
	"duet/internal/crypto"
	"duet/internal/logging"
)

// simulate runs the two-party conversation in process. It needs no home
// directory or relay, so it skips the root wiring.
func simulateCmd() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an in-process handshake and message exchange between two parties",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg.WithEnv(os.Getenv)
			suite, err := crypto.LookupSuite(c.Suite)
			if err != nil {
				return err
			}
			log, err := logging.New(c.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var r io.Reader = rand.Reader
			if seed != "" {
				r = crypto.NewSeededReader([]byte(seed))
			}
			_, err = app.Simulate(cmd.Context(), suite, r, log)
			return err
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "deterministic randomness seed (testing only)")
	return cmd
}
