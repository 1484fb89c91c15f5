// Package metrics exposes Prometheus counters/gauges for the server,
// adapted from kstaniek-go-ampio-server/internal/metrics/metrics.go's
// promauto + local-atomic-mirror + StartHTTP pattern to this domain's
// observability surface (SPEC_FULL.md §3's DOMAIN STACK).
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fedepagnotta/tp0-distribuidos/internal/logging"
)

var log = logging.MustGetLogger("metrics")

var (
	betsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_bets_stored_total",
		Help: "Total bets durably appended to the store.",
	})
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lottery_sessions_active",
		Help: "Current number of connected client sessions.",
	})
	barrierFinished = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lottery_barrier_finished_agencies",
		Help: "Number of agencies that have declared FINISHED_SENDING so far.",
	})
	protocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lottery_protocol_errors_total",
		Help: "Protocol-layer errors by kind (spec.md §7).",
	}, []string{"kind"})
	oversizeFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lottery_frames_rejected_oversize_total",
		Help: "Frames rejected for exceeding the 8KiB body ceiling.",
	})

	localSessionsActive int64
)

// Recorder adapts the package-level counters to the session.Recorder
// interface without session importing net/http or prometheus directly.
type Recorder struct{}

func (Recorder) IncProtocolError(kind string) { protocolErrors.WithLabelValues(kind).Inc() }
func (Recorder) IncBetsStored(n int)          { betsStored.Add(float64(n)) }
func (Recorder) IncOversizeFrame()            { oversizeFrames.Inc() }

// SessionStarted and SessionEnded track the live session gauge; the
// acceptor calls these around each session goroutine's lifetime.
func SessionStarted() {
	n := atomic.AddInt64(&localSessionsActive, 1)
	sessionsActive.Set(float64(n))
}

func SessionEnded() {
	n := atomic.AddInt64(&localSessionsActive, -1)
	sessionsActive.Set(float64(n))
}

// SetBarrierFinished records the current barrier size for observability.
func SetBarrierFinished(n int) {
	barrierFinished.Set(float64(n))
}

// StartHTTP serves the Prometheus /metrics endpoint at addr. Returns nil if
// addr is empty (the endpoint is opt-in, per SPEC_FULL.md §2.2).
func StartHTTP(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Infof("action: metrics_listen | result: success | addr: %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("action: metrics_listen | result: fail | error: %v", err)
		}
	}()
	return srv
}
