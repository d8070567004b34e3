// Package metrics holds the Prometheus collectors shared by the client
// services and the relay.
package metrics

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"duet/internal/domain"
)

var (
	// to prevent metrics from being registered multiple times
	isMetricsInitVar uint32

	// Handshakes completed or rejected, by role and outcome.
	Handshakes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_handshakes_total",
		Help: "The total number of X3DH handshakes attempted",
	}, []string{"role", "result"})

	// One-time pre-keys consumed by successful responder handshakes.
	OneTimePreKeysConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duet_one_time_prekeys_consumed_total",
		Help: "The total number of one-time pre-keys consumed",
	})

	// Channel messages sealed or opened.
	Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_messages_total",
		Help: "The total number of channel messages processed",
	}, []string{"direction", "result"})

	// Relay HTTP requests by route template and status code.
	RelayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_relay_requests_total",
		Help: "The total number of relay requests processed",
	}, []string{"route", "code"})

	// Bundle downloads served by the relay directory, by outcome. Every "ok"
	// download hands out exactly one one-time pre-key.
	PreKeyDownloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_relay_prekey_downloads_total",
		Help: "The total number of pre-key bundle downloads served",
	}, []string{"result"})

	// Messages accepted into relay mailboxes, by kind (handshake or envelope).
	RelayMessagesPosted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_relay_messages_posted_total",
		Help: "The total number of messages queued in relay mailboxes",
	}, []string{"kind"})
)

// InitMetrics registers every collector with the default registry. Safe to
// call more than once.
func InitMetrics() {
	if atomic.CompareAndSwapUint32(&isMetricsInitVar, 0, 1) {
		prometheus.MustRegister(Handshakes)
		prometheus.MustRegister(OneTimePreKeysConsumed)
		prometheus.MustRegister(Messages)
		prometheus.MustRegister(RelayRequests)
		prometheus.MustRegister(PreKeyDownloads)
		prometheus.MustRegister(RelayMessagesPosted)
	}
}

// WriteTextfile registers the collectors and writes the default registry to
// path in the text exposition format, for a node exporter textfile collector.
func WriteTextfile(path string) error {
	InitMetrics()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// Result maps an operation error onto a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPreKeysExhausted):
		return "exhausted"
	case errors.Is(err, domain.ErrBundleAuthentication):
		return "bad_bundle"
	case errors.Is(err, domain.ErrUnknownPreKey):
		return "unknown_prekey"
	case errors.Is(err, domain.ErrAuthentication):
		return "auth_failed"
	case errors.Is(err, domain.ErrSuiteMismatch):
		return "suite_mismatch"
	case errors.Is(err, domain.ErrInvalidKey), errors.Is(err, domain.ErrInvalidMessage):
		return "invalid"
	default:
		return "error"
	}
}
