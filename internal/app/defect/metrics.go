package defect

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/defect-armada/internal/domain/defect"
)

const namespace = "defect_batch"

// Batch outcomes recorded with every processed batch.
const (
	outcomeSuccess         = "success"
	outcomeNoop            = "noop"
	outcomeInvalidArgument = "invalid_argument"
	outcomeUpstreamFailure = "upstream_failure"
)

// BatchMetrics records what batch processing did.
type BatchMetrics interface {
	IncBatchesProcessed(ctx context.Context, op defect.OperationKind, outcome string)
	ObserveDefectsResolved(ctx context.Context, op defect.OperationKind, n int)
	AddDefectsMutated(ctx context.Context, op defect.OperationKind, n int)
	AddDefectsSkipped(ctx context.Context, op defect.OperationKind, n int)
}

type batchMetrics struct {
	batchesProcessed metric.Int64Counter
	defectsResolved  metric.Int64Histogram
	defectsMutated   metric.Int64Counter
	defectsSkipped   metric.Int64Counter
}

// NewBatchMetrics creates the otel instruments for batch processing.
func NewBatchMetrics(mp metric.MeterProvider) (*batchMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(batchMetrics)
	var err error

	if m.batchesProcessed, err = meter.Int64Counter(
		"batches_processed_total",
		metric.WithDescription("Total number of batch requests processed, by operation and outcome"),
	); err != nil {
		return nil, err
	}

	if m.defectsResolved, err = meter.Int64Histogram(
		"defects_resolved",
		metric.WithDescription("Number of defects resolved per batch"),
		metric.WithExplicitBucketBoundaries(0, 1, 10, 50, 100, 500, 1000, 5000, 10000),
	); err != nil {
		return nil, err
	}

	if m.defectsMutated, err = meter.Int64Counter(
		"defects_mutated_total",
		metric.WithDescription("Total number of defects changed by batch operations"),
	); err != nil {
		return nil, err
	}

	if m.defectsSkipped, err = meter.Int64Counter(
		"defects_skipped_total",
		metric.WithDescription("Total number of resolved defects skipped because their status did not allow the operation"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func opAttr(op defect.OperationKind) attribute.KeyValue {
	return attribute.String("operation", op.String())
}

func (m *batchMetrics) IncBatchesProcessed(ctx context.Context, op defect.OperationKind, outcome string) {
	m.batchesProcessed.Add(ctx, 1, metric.WithAttributes(opAttr(op), attribute.String("outcome", outcome)))
}

func (m *batchMetrics) ObserveDefectsResolved(ctx context.Context, op defect.OperationKind, n int) {
	m.defectsResolved.Record(ctx, int64(n), metric.WithAttributes(opAttr(op)))
}

func (m *batchMetrics) AddDefectsMutated(ctx context.Context, op defect.OperationKind, n int) {
	m.defectsMutated.Add(ctx, int64(n), metric.WithAttributes(opAttr(op)))
}

func (m *batchMetrics) AddDefectsSkipped(ctx context.Context, op defect.OperationKind, n int) {
	m.defectsSkipped.Add(ctx, int64(n), metric.WithAttributes(opAttr(op)))
}
