package defect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/internal/domain/events"
	"github.com/ahrav/defect-armada/pkg/common/logger"
)

var (
	_ defect.BatchOperation = (*IgnoreOperation)(nil)
	_ defect.BatchOperation = (*AssignOperation)(nil)
	_ defect.BatchOperation = (*FlagOperation)(nil)
	_ defect.BatchOperation = (*RestoreOperation)(nil)
)

// OperationDeps are the collaborators every batch operation needs.
type OperationDeps struct {
	Repo      defect.DefectRepository
	Publisher events.DomainEventPublisher
	Clock     defect.Clock
	Metrics   BatchMetrics
	Logger    *logger.Logger
	Tracer    trace.Tracer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// resolution implements candidate retrieval against the defect store. It is
// shared by every operation; the default status condition is StatusNew.
type resolution struct {
	repo defect.DefectQueryRepository
}

// StatusCondition returns the default precondition for batch operations.
func (resolution) StatusCondition() defect.Status { return defect.StatusNew }

// ResolveByFilter returns every defect in the task matching filter, in the
// store's order.
func (r resolution) ResolveByFilter(ctx context.Context, taskID int64, filter *defect.QueryFilter) ([]*defect.Defect, error) {
	return r.repo.QueryDefects(ctx, taskID, filter)
}

// ResolveByKeys looks up the requested keys and keeps only those that still
// exist.
func (r resolution) ResolveByKeys(ctx context.Context, taskID int64, keys []string) ([]*defect.Defect, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	found, err := r.repo.LookupDefectsByKeys(ctx, taskID, keys)
	if err != nil {
		return nil, err
	}

	return ReconcileKeys(keys, found), nil
}

// mutation applies a per-defect change, stores the changed defects in one
// write, and announces the result.
type mutation struct {
	kind      defect.OperationKind
	repo      defect.DefectRepository
	publisher events.DomainEventPublisher
	clock     defect.Clock
	metrics   BatchMetrics
	logger    *logger.Logger
	tracer    trace.Tracer
}

func newMutation(kind defect.OperationKind, deps OperationDeps) mutation {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}

	return mutation{
		kind:      kind,
		repo:      deps.Repo,
		publisher: deps.Publisher,
		clock:     clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("component", "batch_operation", "operation", kind.String()),
		tracer:    deps.Tracer,
	}
}

// Kind returns the operation kind.
func (m mutation) Kind() defect.OperationKind { return m.kind }

// run calls change on every defect. Defects whose current status does not
// allow the change are skipped; any other error aborts the batch before
// anything is written.
func (m mutation) run(
	ctx context.Context,
	defects []*defect.Defect,
	req *defect.BatchRequest,
	change func(d *defect.Defect, at time.Time) error,
) error {
	ctx, span := m.tracer.Start(ctx, "batch_operation.apply",
		trace.WithAttributes(
			attribute.String("operation", m.kind.String()),
			attribute.Int64("task_id", req.TaskID),
			attribute.Int("candidates", len(defects)),
		))
	defer span.End()

	at := m.clock.Now()
	changed := make([]*defect.Defect, 0, len(defects))
	skipped := 0

	for _, d := range defects {
		if err := change(d, at); err != nil {
			if errors.Is(err, defect.ErrInvalidStatusTransition) {
				skipped++
				m.logger.Debug(ctx, "skipping defect", "defect_key", d.Key(), "status", d.Status().String())
				continue
			}
			span.RecordError(err)
			return err
		}
		changed = append(changed, d)
	}

	m.metrics.AddDefectsSkipped(ctx, m.kind, skipped)
	span.SetAttributes(attribute.Int("changed", len(changed)), attribute.Int("skipped", skipped))

	if len(changed) == 0 {
		m.logger.Info(ctx, "no defect eligible for operation", "task_id", req.TaskID, "skipped", skipped)
		return nil
	}

	if err := m.repo.UpdateDefects(ctx, changed); err != nil {
		span.RecordError(err)
		return err
	}
	m.metrics.AddDefectsMutated(ctx, m.kind, len(changed))

	keys := make([]string, len(changed))
	for i, d := range changed {
		keys[i] = d.Key()
	}

	evt := defect.NewDefectsBatchProcessedEvent(req.TaskID, m.kind, keys, skipped, req.RequestedBy, at)
	if err := m.publisher.PublishDomainEvent(ctx, evt, events.WithKey(strconv.FormatInt(req.TaskID, 10))); err != nil {
		// The defects are already stored; a lost notification does not undo them.
		span.RecordError(err)
		m.logger.Warn(ctx, "failed to publish batch processed event",
			"task_id", req.TaskID,
			"changed", len(changed),
			"error", err,
		)
	}

	return nil
}

// IgnoreOperation moves new defects to the ignored state.
type IgnoreOperation struct {
	resolution
	mutation
}

// NewIgnoreOperation creates the ignore batch operation.
func NewIgnoreOperation(deps OperationDeps) *IgnoreOperation {
	return &IgnoreOperation{
		resolution: resolution{repo: deps.Repo},
		mutation:   newMutation(defect.OperationIgnore, deps),
	}
}

// Apply ignores every resolved defect with the request's reason.
func (o *IgnoreOperation) Apply(ctx context.Context, defects []*defect.Defect, req *defect.BatchRequest) error {
	p := req.Params
	if !p.IgnoreReasonType.IsValid() {
		return defect.NewInvalidArgument(fmt.Errorf("unknown ignore reason type %d", p.IgnoreReasonType))
	}
	if p.IgnoreReasonType == defect.IgnoreReasonOther && p.IgnoreReason == "" {
		return defect.NewInvalidArgument(errors.New("ignore reason is required for reason type other"))
	}

	return o.run(ctx, defects, req, func(d *defect.Defect, at time.Time) error {
		return d.Ignore(p.IgnoreReasonType, p.IgnoreReason, req.RequestedBy, at)
	})
}

// AssignOperation replaces the handlers of new defects.
type AssignOperation struct {
	resolution
	mutation
}

// NewAssignOperation creates the assign-handler batch operation.
func NewAssignOperation(deps OperationDeps) *AssignOperation {
	return &AssignOperation{
		resolution: resolution{repo: deps.Repo},
		mutation:   newMutation(defect.OperationAssign, deps),
	}
}

// Apply assigns every resolved defect to the request's authors.
func (o *AssignOperation) Apply(ctx context.Context, defects []*defect.Defect, req *defect.BatchRequest) error {
	authors := req.Params.Authors
	hasAuthor := false
	for _, a := range authors {
		if strings.TrimSpace(a) != "" {
			hasAuthor = true
			break
		}
	}
	if !hasAuthor {
		return defect.NewInvalidArgument(defect.ErrNoAuthors)
	}

	return o.run(ctx, defects, req, func(d *defect.Defect, at time.Time) error {
		return d.AssignTo(authors, at)
	})
}

// FlagOperation sets or clears the mark on new defects.
type FlagOperation struct {
	resolution
	mutation
}

// NewFlagOperation creates the flag batch operation.
func NewFlagOperation(deps OperationDeps) *FlagOperation {
	return &FlagOperation{
		resolution: resolution{repo: deps.Repo},
		mutation:   newMutation(defect.OperationFlag, deps),
	}
}

// Apply sets the request's mark on every resolved defect.
func (o *FlagOperation) Apply(ctx context.Context, defects []*defect.Defect, req *defect.BatchRequest) error {
	mark := req.Params.Mark
	if !mark.IsValid() {
		return defect.NewInvalidArgument(defect.ErrInvalidMark)
	}

	return o.run(ctx, defects, req, func(d *defect.Defect, at time.Time) error {
		return d.SetMark(mark, at)
	})
}

// RestoreOperation returns ignored defects to the new state.
type RestoreOperation struct {
	resolution
	mutation
}

// NewRestoreOperation creates the restore-from-ignored batch operation.
func NewRestoreOperation(deps OperationDeps) *RestoreOperation {
	return &RestoreOperation{
		resolution: resolution{repo: deps.Repo},
		mutation:   newMutation(defect.OperationRestore, deps),
	}
}

// StatusCondition restricts restore to ignored defects.
func (*RestoreOperation) StatusCondition() defect.Status { return defect.StatusIgnored }

// Apply restores every resolved defect.
func (o *RestoreOperation) Apply(ctx context.Context, defects []*defect.Defect, req *defect.BatchRequest) error {
	return o.run(ctx, defects, req, func(d *defect.Defect, at time.Time) error {
		return d.Restore(at)
	})
}
