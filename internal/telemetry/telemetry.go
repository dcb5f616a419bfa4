// Package telemetry provides Prometheus metrics and OpenTelemetry spans for
// publish cycles, draft generation and email ingest.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "content-studio"
	namespace   = "content_studio"
)

// Metrics holds all content-studio Prometheus metrics
type Metrics struct {
	// Publish cycle metrics
	PublishCycles   *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec
	QueueDepth      *prometheus.GaugeVec

	// Generator metrics
	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	PiecesDrafted      *prometheus.CounterVec

	// Ingest metrics
	IdeasIngested prometheus.Counter
	IngestErrors  prometheus.Counter
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider registers the metrics on reg.
func NewProvider(reg prometheus.Registerer) *Provider {
	factory := promauto.With(reg)
	m := &Metrics{}
	initPublishMetrics(factory, m)
	initGeneratorMetrics(factory, m)
	initIngestMetrics(factory, m)

	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: m,
	}
}

func initPublishMetrics(f promauto.Factory, m *Metrics) {
	m.PublishCycles = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_cycles_total",
		Help:      "Publish cycles by content type and outcome",
	}, []string{"type", "outcome"})

	m.PublishDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "publish_cycle_duration_seconds",
		Help:      "Wall time of one publish cycle",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"type"})

	m.QueueDepth = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Queued pieces per content type after the last cycle",
	}, []string{"type"})
}

func initGeneratorMetrics(f promauto.Factory, m *Metrics) {
	m.Generations = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Draft generator calls by operation and result",
	}, []string{"operation", "result"})

	m.GenerationDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Latency of draft generator calls",
		Buckets:   []float64{1, 5, 10, 20, 30, 60, 90, 120},
	})

	m.PiecesDrafted = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pieces_drafted_total",
		Help:      "Draft pieces stored by content type",
	}, []string{"type"})
}

func initIngestMetrics(f promauto.Factory, m *Metrics) {
	m.IdeasIngested = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ideas_ingested_total",
		Help:      "Ideas created from email",
	})

	m.IngestErrors = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_errors_total",
		Help:      "Messages that could not be turned into ideas",
	})
}

// RecordCycle records one publish cycle outcome.
func (p *Provider) RecordCycle(_ context.Context, contentType, outcome string, duration time.Duration) {
	p.Metrics.PublishCycles.WithLabelValues(contentType, outcome).Inc()
	p.Metrics.PublishDuration.WithLabelValues(contentType).Observe(duration.Seconds())
}

// SetQueueDepth sets the current queue depth of a type.
func (p *Provider) SetQueueDepth(contentType string, depth int) {
	p.Metrics.QueueDepth.WithLabelValues(contentType).Set(float64(depth))
}

// RecordGeneration records a generator call.
func (p *Provider) RecordGeneration(_ context.Context, operation string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	p.Metrics.Generations.WithLabelValues(operation, result).Inc()
	p.Metrics.GenerationDuration.Observe(duration.Seconds())
}

// RecordDrafted counts stored drafts.
func (p *Provider) RecordDrafted(contentType string, n int) {
	p.Metrics.PiecesDrafted.WithLabelValues(contentType).Add(float64(n))
}

// RecordIngest counts ingested ideas and skipped messages.
func (p *Provider) RecordIngest(created, failed int) {
	p.Metrics.IdeasIngested.Add(float64(created))
	p.Metrics.IngestErrors.Add(float64(failed))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan marks the span failed when err is set and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
