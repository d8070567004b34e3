package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"duet/internal/app"
	"duet/internal/codec"
	"duet/internal/domain"
	"duet/internal/logging"
	"duet/internal/metrics"
	"duet/internal/relay"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfg app.RelayConfig
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Prekey directory and mailbox relay for duet",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfg.WithEnv(os.Getenv)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), c)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", "", "listen address (default :8080, env "+app.EnvRelayAddr+")")
	f.StringVar(&cfg.Backend, "backend", "", "state backend: memory or redis (env "+app.EnvRelayBackend+")")
	f.StringVar(&cfg.Codec, "codec", "", "redis value codec: json or cbor (env "+app.EnvRelayCodec+")")
	f.StringVar(&cfg.LogLevel, "log-level", "", "log level (env "+app.EnvRelayLogLevel+")")
	f.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address (default localhost:6379, env "+app.EnvRedisAddr+")")
	f.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password (env "+app.EnvRedisPassword+")")
	f.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database (env "+app.EnvRedisDB+")")
	return cmd
}

func serve(ctx context.Context, cfg app.RelayConfig) error {
	log, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	metrics.InitMetrics()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           relay.NewServer(backend, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.Addr, "backend": cfg.Backend}).Info("relay listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBackend(ctx context.Context, cfg app.RelayConfig) (domain.RelayClient, func(), error) {
	switch cfg.Backend {
	case app.BackendMemory:
		return relay.NewMemoryBackend(), func() {}, nil
	case app.BackendRedis:
		c, err := codec.Lookup(cfg.Codec)
		if err != nil {
			return nil, nil, err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return relay.NewRedisBackend(rdb, c), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
