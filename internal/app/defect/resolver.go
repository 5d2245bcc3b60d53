// Package defect provides the application services that resolve and apply
// batch operations to defects.
package defect

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/pkg/common/logger"
)

// BatchResolver turns a batch request into the authoritative list of defects
// to change and hands that list to the requested operation.
//
// The resolver holds no per-request state and is safe for concurrent use.
// It never writes to the store itself, does not retry, and does not coordinate
// concurrent batches touching the same defects.
type BatchResolver struct {
	logger  *logger.Logger
	tracer  trace.Tracer
	metrics BatchMetrics
}

// NewBatchResolver creates a resolver.
func NewBatchResolver(logger *logger.Logger, tracer trace.Tracer, metrics BatchMetrics) *BatchResolver {
	return &BatchResolver{
		logger:  logger.With("component", "batch_resolver"),
		tracer:  tracer,
		metrics: metrics,
	}
}

// Process resolves the target defects of req and applies op to them.
//
// In select-all mode the request's filter is decoded and its status predicate
// is replaced with op's status condition before the store is queried; a
// missing or malformed filter fails with an InvalidArgument BatchError before
// any store call. In explicit mode the requested keys are looked up and keys
// whose defect no longer exists are dropped.
//
// An empty candidate set is a successful no-op and op.Apply is not called.
// Errors from the store or from op.Apply are returned unchanged.
func (r *BatchResolver) Process(ctx context.Context, op defect.BatchOperation, req *defect.BatchRequest) (defect.Result, error) {
	if req == nil {
		return defect.Result{}, defect.NewInvalidArgument(errors.New("batch request is required"))
	}

	kind := op.Kind()
	ctx, span := r.tracer.Start(ctx, "batch_resolver.process",
		trace.WithAttributes(
			attribute.Int64("task_id", req.TaskID),
			attribute.String("operation", kind.String()),
			attribute.Bool("select_all", req.SelectAll),
			attribute.Int("requested_keys", len(req.DefectKeys)),
		))
	defer span.End()

	logger := r.logger.With("task_id", req.TaskID, "operation", kind.String())
	logger.Info(ctx, "begin to batch process",
		"select_all", req.SelectAll,
		"requested_keys", len(req.DefectKeys),
		"requested_by", req.RequestedBy,
	)

	candidates, err := r.resolve(ctx, op, req)
	if err != nil {
		outcome := outcomeUpstreamFailure
		if defect.IsInvalidArgument(err) {
			outcome = outcomeInvalidArgument
		}
		r.metrics.IncBatchesProcessed(ctx, kind, outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve batch candidates")
		logger.Error(ctx, "failed to resolve batch candidates", "error", err)
		return defect.Result{}, err
	}

	r.metrics.ObserveDefectsResolved(ctx, kind, len(candidates))
	span.SetAttributes(attribute.Int("resolved_defects", len(candidates)))

	if len(candidates) == 0 {
		r.metrics.IncBatchesProcessed(ctx, kind, outcomeNoop)
		span.AddEvent("no_candidates")
		logger.Info(ctx, "batch process successful", "resolved", 0)
		return defect.Result{Message: defect.BatchSuccessMessage}, nil
	}

	if err := op.Apply(ctx, candidates, req); err != nil {
		outcome := outcomeUpstreamFailure
		if defect.IsInvalidArgument(err) {
			outcome = outcomeInvalidArgument
		}
		r.metrics.IncBatchesProcessed(ctx, kind, outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch operation failed")
		logger.Error(ctx, "batch operation failed", "resolved", len(candidates), "error", err)
		return defect.Result{}, err
	}

	r.metrics.IncBatchesProcessed(ctx, kind, outcomeSuccess)
	span.SetStatus(codes.Ok, "batch processed")
	logger.Info(ctx, "batch process successful", "resolved", len(candidates))

	return defect.Result{Message: defect.BatchSuccessMessage, Resolved: len(candidates)}, nil
}

func (r *BatchResolver) resolve(ctx context.Context, op defect.BatchOperation, req *defect.BatchRequest) ([]*defect.Defect, error) {
	if !req.SelectAll {
		return op.ResolveByKeys(ctx, req.TaskID, req.DefectKeys)
	}

	filter, err := defect.ParseQueryFilter(req.QueryFilterJSON)
	if err != nil {
		return nil, defect.NewInvalidArgument(err)
	}
	filter.ReplaceStatus(op.StatusCondition())

	return op.ResolveByFilter(ctx, req.TaskID, filter)
}
