package api

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/defect-armada/internal/api/mid"
	"github.com/ahrav/defect-armada/internal/infra/eventbus/kafka"
)

const namespace = "defect_api"

// APIMetrics defines metrics operations needed by the defect API.
type APIMetrics interface {
	// EventBus metrics
	kafka.EventBusMetrics

	// HTTP metrics
	mid.HTTPMetrics
	mid.PanicCounter

	// Batch endpoint metrics
	IncBatchRequestsTotal(ctx context.Context, operation string)
	IncBatchRequestErrors(ctx context.Context, operation, reason string)
}

var _ APIMetrics = (*apiMetrics)(nil)

type apiMetrics struct {
	// Kafka metrics
	messagesPublished metric.Int64Counter
	messagesConsumed  metric.Int64Counter
	publishErrors     metric.Int64Counter
	consumeErrors     metric.Int64Counter

	// HTTP metrics
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	panicsTotal     metric.Int64Counter

	// Batch endpoint metrics
	batchRequestsTotal metric.Int64Counter
	batchRequestErrors metric.Int64Counter
}

// NewAPIMetrics registers the API instruments on mp.
func NewAPIMetrics(mp metric.MeterProvider) (*apiMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(apiMetrics)
	var err error

	// Kafka metrics
	if m.messagesPublished, err = meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("Total number of messages published"),
	); err != nil {
		return nil, err
	}

	if m.messagesConsumed, err = meter.Int64Counter(
		"messages_consumed_total",
		metric.WithDescription("Total number of messages consumed"),
	); err != nil {
		return nil, err
	}

	if m.publishErrors, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of publish errors"),
	); err != nil {
		return nil, err
	}

	if m.consumeErrors, err = meter.Int64Counter(
		"consume_errors_total",
		metric.WithDescription("Total number of consume errors"),
	); err != nil {
		return nil, err
	}

	// HTTP metrics
	if m.requestsTotal, err = meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.requestDuration, err = meter.Float64Histogram(
		"request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.panicsTotal, err = meter.Int64Counter(
		"panics_total",
		metric.WithDescription("Total number of recovered handler panics"),
	); err != nil {
		return nil, err
	}

	// Batch endpoint metrics
	if m.batchRequestsTotal, err = meter.Int64Counter(
		"batch_requests_total",
		metric.WithDescription("Total number of batch defect requests"),
	); err != nil {
		return nil, err
	}

	if m.batchRequestErrors, err = meter.Int64Counter(
		"batch_request_errors_total",
		metric.WithDescription("Total number of rejected or failed batch defect requests"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// EventBusMetrics implementation
func (m *apiMetrics) IncMessagePublished(ctx context.Context, topic string) {
	m.messagesPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *apiMetrics) IncMessageConsumed(ctx context.Context, topic string) {
	m.messagesConsumed.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *apiMetrics) IncPublishError(ctx context.Context, topic string) {
	m.publishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *apiMetrics) IncConsumeError(ctx context.Context, topic string) {
	m.consumeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

// HTTP metrics implementation
func (m *apiMetrics) IncRequestsTotal(ctx context.Context, method, path string, status int) {
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	))
}

func (m *apiMetrics) ObserveRequestDuration(ctx context.Context, method, path string, duration time.Duration) {
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	))
}

func (m *apiMetrics) IncPanics(ctx context.Context) {
	m.panicsTotal.Add(ctx, 1)
}

// Batch endpoint metrics implementation
func (m *apiMetrics) IncBatchRequestsTotal(ctx context.Context, operation string) {
	m.batchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (m *apiMetrics) IncBatchRequestErrors(ctx context.Context, operation, reason string) {
	m.batchRequestErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("reason", reason),
	))
}
