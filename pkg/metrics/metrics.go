// Package metrics exposes run counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// Namespace prefixes every metric name
const Namespace = "reconciler"

// Metrics holds the reconciler collectors. A nil *Metrics is valid and records nothing
type Metrics struct {
	registry *prometheus.Registry

	PairsTotal      *prometheus.CounterVec
	PairDuration    *prometheus.HistogramVec
	AutomationTasks *prometheus.CounterVec
	RemoteFlush     *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	LastRunUnixTime prometheus.Gauge
}

// New registers the collectors on a fresh registry, together with the Go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PairsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pairs_total",
			Help:      "Terminal (product, competitor) results by outcome",
		}, []string{"domain", "outcome"}),
		PairDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "pair_duration_seconds",
			Help:      "Time spent resolving and extracting one pair",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"domain"}),
		AutomationTasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "automation_tasks_total",
			Help:      "Tasks forwarded to the automation worker by collection result",
		}, []string{"result"}),
		RemoteFlush: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "remote_flush_total",
			Help:      "Remote store overwrites per collection",
		}, []string{"collection", "result"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Errors by category",
		}, []string{"category"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Reconciliation runs by result",
		}, []string{"result"}),
		LastRunUnixTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePair records one terminal pair
func (m *Metrics) ObservePair(domain, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PairsTotal.WithLabelValues(domain, outcome).Inc()
	if d > 0 {
		m.PairDuration.WithLabelValues(domain).Observe(d.Seconds())
	}
}

// AutomationTask records how a forwarded task ended: result, timeout, exited or unmatched
func (m *Metrics) AutomationTask(result string) {
	if m == nil {
		return
	}
	m.AutomationTasks.WithLabelValues(result).Inc()
}

// Flush records a remote overwrite attempt
func (m *Metrics) Flush(collection string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		m.Error(err)
	}
	m.RemoteFlush.WithLabelValues(collection, result).Inc()
}

// Error counts err under its category
func (m *Metrics) Error(err error) {
	if m == nil || err == nil {
		return
	}
	m.Errors.WithLabelValues(utils.CategorizeError(err)).Inc()
}

// Run records a finished run
func (m *Metrics) Run(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.LastRunUnixTime.SetToCurrentTime()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx ends
func (m *Metrics) Serve(ctx context.Context, addr string, log *logrus.Entry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Serving metrics on http://%s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Metrics server shutdown: %v", err)
		}
		return nil
	}
}
