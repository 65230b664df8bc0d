// Package telemetry wires up the structured logger and prometheus
// metrics shared by the tracker client, peer sessions and the download
// orchestrator.
package telemetry

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Metrics holds the download-lifecycle counters and gauges exported to
// prometheus. Registration is left to the caller (NewMetrics does not
// register with the default registry) so tests can construct throwaway
// instances freely.
type Metrics struct {
	PiecesVerified   prometheus.Counter
	PiecesFailed     prometheus.Counter
	BlocksReceived   prometheus.Counter
	InFlightRequests prometheus.Gauge
}

// NewMetrics builds a fresh Metrics instance and registers it with reg.
// Pass prometheus.NewRegistry() in tests, or prometheus.DefaultRegisterer
// in cmd/gotorrent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PiecesVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gotorrent",
			Name:      "pieces_verified_total",
			Help:      "Pieces that passed SHA-1 verification.",
		}),
		PiecesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gotorrent",
			Name:      "pieces_failed_total",
			Help:      "Pieces that failed SHA-1 verification and were discarded.",
		}),
		BlocksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gotorrent",
			Name:      "blocks_received_total",
			Help:      "Individual 16 KiB blocks received from peers.",
		}),
		InFlightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gotorrent",
			Name:      "in_flight_requests",
			Help:      "Block requests currently pipelined to peers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PiecesVerified, m.PiecesFailed, m.BlocksReceived, m.InFlightRequests)
	}
	return m
}

// NewLogger builds the process-wide zerolog logger. verbose lowers the
// level to debug; otherwise info and above are emitted.
func NewLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
