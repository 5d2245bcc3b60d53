package defect

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/internal/domain/events"
	"github.com/ahrav/defect-armada/pkg/common/logger"
	"github.com/ahrav/defect-armada/pkg/common/otel"
)

// Subscriber delivers events of the given types to handler until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error
}

// BatchAuditor writes an audit record for every processed batch announced on
// the event bus.
type BatchAuditor struct {
	logger *logger.Logger
	tracer trace.Tracer
}

// NewBatchAuditor creates a BatchAuditor.
func NewBatchAuditor(logger *logger.Logger, tracer trace.Tracer) *BatchAuditor {
	return &BatchAuditor{
		logger: logger.With("component", "batch_auditor"),
		tracer: tracer,
	}
}

// Subscribe registers the auditor for DefectsBatchProcessed events.
func (a *BatchAuditor) Subscribe(ctx context.Context, sub Subscriber) error {
	types := []events.EventType{defect.EventTypeDefectsBatchProcessed}
	if err := sub.Subscribe(ctx, types, a.Handle); err != nil {
		return fmt.Errorf("subscribing batch auditor: %w", err)
	}
	return nil
}

// Handle records one batch event. Payloads of any other shape are rejected
// so the transport can report them.
func (a *BatchAuditor) Handle(ctx context.Context, evt events.EventEnvelope) error {
	ctx, span := otel.AddSpan(ctx, a.tracer, "batch_auditor.handle",
		attribute.String("event_type", string(evt.Type)),
		attribute.String("key", evt.Key),
	)
	defer span.End()

	var batch defect.DefectsBatchProcessedEvent
	switch p := evt.Payload.(type) {
	case defect.DefectsBatchProcessedEvent:
		batch = p
	case *defect.DefectsBatchProcessedEvent:
		if p == nil {
			err := fmt.Errorf("nil %s payload", evt.Type)
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid payload")
			return err
		}
		batch = *p
	default:
		err := fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		return err
	}

	span.SetAttributes(
		attribute.Int64("task_id", batch.TaskID),
		attribute.String("operation", batch.Operation.String()),
		attribute.Int("changed", len(batch.DefectKeys)),
	)

	a.logger.Info(ctx, "defect batch audited",
		"event_id", batch.ID.String(),
		"task_id", batch.TaskID,
		"operation", batch.Operation.String(),
		"changed", len(batch.DefectKeys),
		"skipped", batch.Skipped,
		"requested_by", batch.RequestedBy,
		"occurred_at", batch.At,
	)

	return nil
}
