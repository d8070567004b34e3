package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"duet/internal/app"
	"duet/internal/domain"
)

var (
	cfg        app.Config
	passphrase string
	username   string
	timeout    time.Duration
	appCtx     *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:          "duet",
		Short:        "Two-party X3DH handshake and encrypted messaging CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c := cfg.WithEnv(os.Getenv)
			c.HTTP = &http.Client{Timeout: timeout}
			w, err := app.NewWire(c)
			if err != nil {
				return err
			}
			appCtx = w
			passphrase = app.FirstNonEmpty(passphrase, os.Getenv(app.EnvPassphrase))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.Home, "home", "", "state dir (default ~/.duet, env "+app.EnvHome+")")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys (env "+app.EnvPassphrase+")")
	pf.StringVar(&cfg.RelayURL, "relay", "", "relay base URL, e.g. http://127.0.0.1:8080 (env "+app.EnvRelay+")")
	pf.StringVar((*string)(&cfg.Suite), "suite", "", "primitive suite (env "+app.EnvSuite+")")
	pf.StringVar(&cfg.Codec, "codec", "", "relay wire codec: json or cbor (env "+app.EnvCodec+")")
	pf.StringVar(&cfg.KDF, "kdf", "", "keystore KDF for new identities: scrypt or argon2id (env "+app.EnvKDF+")")
	pf.StringVar(&cfg.LogLevel, "log-level", "", "log level (env "+app.EnvLogLevel+")")
	pf.StringVar(&cfg.MetricsFile, "metrics-file", "", "write Prometheus counters here after each command (env "+app.EnvMetrics+")")
	pf.DurationVar(&timeout, "timeout", 15*time.Second, "relay request timeout")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		startSessionCmd(),
		sendCmd(),
		recvCmd(),
		sessionsCmd(),
		simulateCmd(),
		suitesCmd(),
	)
	err := root.Execute()
	if appCtx != nil {
		err = errors.Join(err, appCtx.FlushMetrics())
	}
	return err
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p or $%s)", app.EnvPassphrase)
	}
	return nil
}

// resolveUsername returns --username, or the only account registered on the
// configured relay.
func resolveUsername() (domain.Username, error) {
	if username != "" {
		return domain.Username(username), nil
	}
	profiles, err := appCtx.Accounts.ListAccountProfiles(appCtx.Config.RelayURL)
	if err != nil {
		return "", err
	}
	switch len(profiles) {
	case 1:
		return profiles[0].Username, nil
	case 0:
		return "", fmt.Errorf("--username required; no account registered on %q", appCtx.Config.RelayURL)
	default:
		return "", fmt.Errorf("--username required; %d accounts registered on %q", len(profiles), appCtx.Config.RelayURL)
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
