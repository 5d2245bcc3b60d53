package defect

import (
	"context"
	"time"
)

// DefectQueryRepository provides the read side of defect storage used to
// resolve batch targets.
type DefectQueryRepository interface {
	// QueryDefects returns the defects of a task that satisfy filter.
	QueryDefects(ctx context.Context, taskID int64, filter *QueryFilter) ([]*Defect, error)

	// LookupDefectsByKeys returns the defects of a task for the given keys,
	// indexed by key. Keys that do not resolve to an existing defect have no
	// entry in the result.
	LookupDefectsByKeys(ctx context.Context, taskID int64, keys []string) (map[string]*Defect, error)
}

// DefectRepository adds the write side used by batch operations.
type DefectRepository interface {
	DefectQueryRepository

	// CreateDefect persists a new defect.
	CreateDefect(ctx context.Context, d *Defect) error

	// UpdateDefects persists the state of every given defect atomically: either
	// all updates are stored or none are.
	UpdateDefects(ctx context.Context, defects []*Defect) error
}

// BatchOperation is the capability each batch operation kind provides to the
// generic batch resolver.
type BatchOperation interface {
	// Kind identifies the operation.
	Kind() OperationKind

	// StatusCondition is the status a defect must currently have for this
	// operation to apply. It must be pure.
	StatusCondition() Status

	// ResolveByFilter returns the candidates matching filter. The filter's
	// status has already been replaced with StatusCondition.
	ResolveByFilter(ctx context.Context, taskID int64, filter *QueryFilter) ([]*Defect, error)

	// ResolveByKeys returns the candidates for an explicit key set, dropping
	// keys that no longer resolve to a defect.
	ResolveByKeys(ctx context.Context, taskID int64, keys []string) ([]*Defect, error)

	// Apply performs the operation's state change on the resolved defects.
	Apply(ctx context.Context, defects []*Defect, req *BatchRequest) error
}

// Clock abstracts time for deterministic mutation timestamps.
type Clock interface {
	Now() time.Time
}
