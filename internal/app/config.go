package app

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"duet/internal/domain"
)

// Environment fallbacks for Config.
const (
	EnvHome       = "DUET_HOME"
	EnvRelay      = "DUET_RELAY"
	EnvSuite      = "DUET_SUITE"
	EnvCodec      = "DUET_CODEC"
	EnvKDF        = "DUET_KDF"
	EnvLogLevel   = "DUET_LOG_LEVEL"
	EnvPassphrase = "DUET_PASSPHRASE"
	EnvMetrics    = "DUET_METRICS_FILE"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string         // state directory, e.g. $HOME/.duet
	RelayURL string         // relay base URL, e.g. http://127.0.0.1:8080
	Suite    domain.SuiteID // empty selects the default suite
	Codec    string         // relay wire codec: json or cbor
	KDF      string         // keystore passphrase KDF: scrypt or argon2id
	LogLevel string
	// MetricsFile, when set, receives the client counters after each command.
	MetricsFile string

	HTTP  *http.Client       // optional; defaults to http.DefaultClient
	Rand  io.Reader          // optional; defaults to crypto/rand.Reader
	Log   *logrus.Logger     // optional; built from LogLevel when nil
	Relay domain.RelayClient // optional; overrides RelayURL
}

// WithEnv fills empty fields from the environment via getenv.
func (c Config) WithEnv(getenv func(string) string) Config {
	c.Home = FirstNonEmpty(c.Home, getenv(EnvHome))
	c.RelayURL = FirstNonEmpty(c.RelayURL, getenv(EnvRelay))
	c.Suite = domain.SuiteID(FirstNonEmpty(string(c.Suite), getenv(EnvSuite)))
	c.Codec = FirstNonEmpty(c.Codec, getenv(EnvCodec))
	c.KDF = FirstNonEmpty(c.KDF, getenv(EnvKDF))
	c.LogLevel = FirstNonEmpty(c.LogLevel, getenv(EnvLogLevel))
	c.MetricsFile = FirstNonEmpty(c.MetricsFile, getenv(EnvMetrics))
	return c
}

// DefaultHome returns ~/.duet.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".duet"), nil
}

// FirstNonEmpty returns the first non-empty value.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Relay server environment fallbacks.
const (
	EnvRelayAddr     = "RELAY_ADDR"
	EnvRelayBackend  = "RELAY_BACKEND"
	EnvRelayCodec    = "RELAY_CODEC"
	EnvRelayLogLevel = "RELAY_LOG_LEVEL"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"
)

// Relay backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RelayConfig configures cmd/relay.
type RelayConfig struct {
	Addr          string
	Backend       string
	Codec         string // storage codec for the redis backend
	LogLevel      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// WithEnv fills empty fields from the environment and applies defaults.
func (c RelayConfig) WithEnv(getenv func(string) string) (RelayConfig, error) {
	c.Addr = FirstNonEmpty(c.Addr, getenv(EnvRelayAddr), ":8080")
	c.Backend = FirstNonEmpty(c.Backend, getenv(EnvRelayBackend), BackendMemory)
	c.Codec = FirstNonEmpty(c.Codec, getenv(EnvRelayCodec))
	c.LogLevel = FirstNonEmpty(c.LogLevel, getenv(EnvRelayLogLevel))
	c.RedisAddr = FirstNonEmpty(c.RedisAddr, getenv(EnvRedisAddr), "localhost:6379")
	c.RedisPassword = FirstNonEmpty(c.RedisPassword, getenv(EnvRedisPassword))
	if c.RedisDB == 0 {
		if v := getenv(EnvRedisDB); v != "" {
			db, err := strconv.Atoi(v)
			if err != nil {
				return RelayConfig{}, err
			}
			c.RedisDB = db
		}
	}
	return c, nil
}
