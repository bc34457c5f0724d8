// Package metrics exposes scan and ledger counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "benefits"

// Metrics satisfies the recorder interfaces of the scan and ledger use cases.
type Metrics struct {
	registry *prometheus.Registry

	scans           *prometheus.CounterVec
	externalLookups *prometheus.CounterVec
	purchases       *prometheus.CounterVec
	ledgerConflicts prometheus.Counter
	rpcDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scan",
				Name:      "results_total",
				Help:      "Scans by outcome (approved, rejected, not_found, error).",
			},
			[]string{"outcome"},
		),
		externalLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nutrition",
				Name:      "lookups_total",
				Help:      "External product lookups by result (hit, not_found, unavailable).",
			},
			[]string{"result"},
		),
		purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "purchases_total",
				Help:      "Purchases by status (applied, declined, invalid).",
			},
			[]string{"status"},
		),
		ledgerConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "conflict_retries_total",
				Help:      "Purchase attempts retried after a write conflict.",
			},
		),
		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "grpc",
				Name:      "request_duration_seconds",
				Help:      "Duration of unary gRPC calls.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "code"},
		),
	}

	m.registry.MustRegister(
		m.scans,
		m.externalLookups,
		m.purchases,
		m.ledgerConflicts,
		m.rpcDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ScanCompleted(outcome string)  { m.scans.WithLabelValues(outcome).Inc() }
func (m *Metrics) ExternalLookup(result string)  { m.externalLookups.WithLabelValues(result).Inc() }
func (m *Metrics) PurchaseApplied(status string) { m.purchases.WithLabelValues(status).Inc() }
func (m *Metrics) LedgerConflictRetry()          { m.ledgerConflicts.Inc() }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UnaryServerInterceptor times every unary call by method and status code.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.rpcDuration.WithLabelValues(info.FullMethod, status.Code(err).String()).Observe(time.Since(start).Seconds())
		return resp, err
	}
}
