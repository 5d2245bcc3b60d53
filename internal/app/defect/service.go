package defect

import (
	"context"
	"fmt"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/pkg/common/logger"
)

// BatchService is the entry point for batch requests. It maps an operation
// kind to its registered implementation and runs the resolver.
type BatchService struct {
	resolver   *BatchResolver
	operations map[defect.OperationKind]defect.BatchOperation
	logger     *logger.Logger
}

// NewBatchService creates a service that serves the given operations. A later
// operation with the same kind replaces an earlier one.
func NewBatchService(resolver *BatchResolver, logger *logger.Logger, ops ...defect.BatchOperation) *BatchService {
	registry := make(map[defect.OperationKind]defect.BatchOperation, len(ops))
	for _, op := range ops {
		registry[op.Kind()] = op
	}

	return &BatchService{
		resolver:   resolver,
		operations: registry,
		logger:     logger.With("component", "batch_service"),
	}
}

// NewDefaultBatchService wires the ignore, assign, flag and restore operations
// against deps.
func NewDefaultBatchService(deps OperationDeps) *BatchService {
	resolver := NewBatchResolver(deps.Logger, deps.Tracer, deps.Metrics)
	return NewBatchService(resolver, deps.Logger,
		NewIgnoreOperation(deps),
		NewAssignOperation(deps),
		NewFlagOperation(deps),
		NewRestoreOperation(deps),
	)
}

// ProcessBatch runs the operation of the given kind against req.
func (s *BatchService) ProcessBatch(ctx context.Context, kind defect.OperationKind, req *defect.BatchRequest) (defect.Result, error) {
	op, ok := s.operations[kind]
	if !ok {
		s.logger.Warn(ctx, "batch requested for unregistered operation", "operation", kind.String())
		return defect.Result{}, fmt.Errorf("%w: %s", defect.ErrUnknownOperation, kind)
	}

	return s.resolver.Process(ctx, op, req)
}

// Operations returns the registered operation kinds.
func (s *BatchService) Operations() []defect.OperationKind {
	kinds := make([]defect.OperationKind, 0, len(s.operations))
	for k := range s.operations {
		kinds = append(kinds, k)
	}
	return kinds
}
