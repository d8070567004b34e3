package app

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"duet/internal/codec"
	"duet/internal/crypto"
	"duet/internal/domain"
	"duet/internal/logging"
	"duet/internal/metrics"
	"duet/internal/relay"
	identitysvc "duet/internal/services/identity"
	messagesvc "duet/internal/services/message"
	prekeysvc "duet/internal/services/prekey"
	sessionsvc "duet/internal/services/session"
	"duet/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config   Config
	Suite    *crypto.Suite
	Log      *logrus.Logger
	Identity domain.IdentityService
	Prekey   domain.PreKeyService
	Sessions domain.SessionService
	Messages domain.MessageService
	Accounts domain.AccountStore
	Relay    domain.RelayClient // nil when no relay is configured
	HTTP     *http.Client
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	if cfg.Home == "" {
		home, err := DefaultHome()
		if err != nil {
			return nil, err
		}
		cfg.Home = home
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	if cfg.Log == nil {
		log, err := logging.New(cfg.LogLevel, os.Stderr)
		if err != nil {
			return nil, err
		}
		cfg.Log = log
	}

	suite, err := crypto.LookupSuite(cfg.Suite)
	if err != nil {
		return nil, err
	}
	kdf, err := store.ParseKDF(cfg.KDF)
	if err != nil {
		return nil, err
	}
	wireCodec, err := codec.Lookup(cfg.Codec)
	if err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	// File-based stores
	identityStore := store.NewIdentityFileStore(cfg.Home, kdf, cfg.Rand)
	prekeyStore := store.NewPrekeyFileStore(cfg.Home)
	bundleStore := store.NewBundleFileStore(cfg.Home)
	sessionStore := store.NewSessionFileStore(cfg.Home)
	accountStore := store.NewAccountFileStore(cfg.Home)

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	rc := cfg.Relay
	if rc == nil && cfg.RelayURL != "" {
		rc = relay.NewHTTP(cfg.RelayURL, httpClient, wireCodec)
	}

	// High-level services
	identitySvc := identitysvc.New(identityStore, suite, cfg.Rand)
	prekeySvc := prekeysvc.New(identityStore, prekeyStore, bundleStore, suite, cfg.Rand)
	sessionSvc := sessionsvc.New(identityStore, prekeyStore, sessionStore, rc, suite, cfg.Rand, cfg.Log)
	messageSvc := messagesvc.New(sessionSvc, rc, cfg.Rand, cfg.Log)

	return &Wire{
		Config:   cfg,
		Suite:    suite,
		Log:      cfg.Log,
		Identity: identitySvc,
		Prekey:   prekeySvc,
		Sessions: sessionSvc,
		Messages: messageSvc,
		Accounts: accountStore,
		Relay:    rc,
		HTTP:     httpClient,
	}, nil
}

// RequireRelay returns the relay client or an error naming the missing flag.
func (w *Wire) RequireRelay() (domain.RelayClient, error) {
	if w.Relay == nil {
		return nil, fmt.Errorf("no relay configured; use --relay or $%s", EnvRelay)
	}
	return w.Relay, nil
}

// FlushMetrics writes the client counters to Config.MetricsFile, if set.
func (w *Wire) FlushMetrics() error {
	if w.Config.MetricsFile == "" {
		return nil
	}
	return metrics.WriteTextfile(w.Config.MetricsFile)
}
