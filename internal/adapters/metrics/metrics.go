// Package metrics exports per-iteration run metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bnema/mcrt/internal/application"
	"github.com/bnema/mcrt/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "mcrt"

// Recorder owns a private registry so several runs in one process never
// collide.
type Recorder struct {
	registry *prometheus.Registry

	iterations     *prometheus.CounterVec
	metric         prometheus.Gauge
	tInner         prometheus.Gauge
	energyFraction *prometheus.GaugeVec
	packets        *prometheus.CounterVec
	interactions   *prometheus.CounterVec
	stepLimitHits  prometheus.Counter
	passDuration   *prometheus.HistogramVec
}

func NewRecorder(run string) *Recorder {
	labels := prometheus.Labels{"run": run}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "iterations_total",
			Help:        "Completed iterations by convergence state.",
			ConstLabels: labels,
		}, []string{"state"}),
		metric: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "convergence",
			Name:        "metric",
			Help:        "Convergence metric of the last iteration.",
			ConstLabels: labels,
		}),
		tInner: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "plasma",
			Name:        "inner_temperature_kelvin",
			Help:        "Photosphere temperature used by the last pass.",
			ConstLabels: labels,
		}),
		energyFraction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "transport",
			Name:        "energy_fraction",
			Help:        "Fraction of emitted energy per packet fate in the last pass.",
			ConstLabels: labels,
		}, []string{"fate"}),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "transport",
			Name:        "packets_total",
			Help:        "Packets propagated, split by pass kind.",
			ConstLabels: labels,
		}, []string{"pass"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "transport",
			Name:        "interactions_total",
			Help:        "Interaction events by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		stepLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "transport",
			Name:        "step_limit_hits_total",
			Help:        "Packets terminated by the step limit.",
			ConstLabels: labels,
		}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "transport",
			Name:        "pass_duration_seconds",
			Help:        "Wall time of a transport pass.",
			Buckets:     prometheus.ExponentialBuckets(0.01, 2, 14),
			ConstLabels: labels,
		}, []string{"pass"}),
	}

	r.registry.MustRegister(
		r.iterations, r.metric, r.tInner, r.energyFraction, r.packets,
		r.interactions, r.stepLimitHits, r.passDuration,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Register attaches the recorder to the iteration and final triggers.
func (r *Recorder) Register(sim *application.Simulation) error {
	if err := sim.AddCallback(application.TriggerIteration, r.Observe); err != nil {
		return err
	}
	return sim.AddCallback(application.TriggerFinal, r.Observe)
}

// Observe is an application.Callback.
func (r *Recorder) Observe(_ context.Context, ev application.CallbackEvent) error {
	record := ev.Record
	kind := "iteration"
	if record.Final {
		kind = "final"
	} else {
		r.iterations.WithLabelValues(record.State.String()).Inc()
		r.metric.Set(record.Metric)
	}
	r.tInner.Set(record.TInner)

	r.packets.WithLabelValues(kind).Add(float64(record.PacketCount))
	r.stepLimitHits.Add(float64(record.StepLimitHits))
	for _, t := range domain.InteractionTypes() {
		if n := record.Interactions[t]; n > 0 {
			r.interactions.WithLabelValues(t.String()).Add(float64(n))
		}
	}

	if e := record.Energy; e.Emitted > 0 {
		r.energyFraction.WithLabelValues("escaped").Set(e.Escaped / e.Emitted)
		r.energyFraction.WithLabelValues("absorbed").Set(e.Absorbed / e.Emitted)
		r.energyFraction.WithLabelValues("reabsorbed").Set(e.Reabsorbed / e.Emitted)
	}

	duration := record.Duration
	if ev.Pass != nil {
		duration = ev.Pass.Duration
	}
	r.passDuration.WithLabelValues(kind).Observe(duration.Seconds())
	return nil
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger zerolog.Logger) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("component", "metrics").Msg("metrics server stopped")
		}
	}()

	logger.Info().Str("component", "metrics").Str("addr", listener.Addr().String()).Msg("serving metrics")
	return listener.Addr(), nil
}
