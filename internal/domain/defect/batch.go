package defect

import (
	"fmt"
	"strings"
)

// OperationKind names a batch operation.
type OperationKind string

const (
	OperationIgnore  OperationKind = "ignore"
	OperationAssign  OperationKind = "assign"
	OperationFlag    OperationKind = "flag"
	OperationRestore OperationKind = "restore"
)

func (k OperationKind) String() string { return string(k) }

// ParseOperationKind converts a case-insensitive name into an OperationKind.
func ParseOperationKind(s string) (OperationKind, error) {
	switch k := OperationKind(strings.ToLower(strings.TrimSpace(s))); k {
	case OperationIgnore, OperationAssign, OperationFlag, OperationRestore:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}
}

// BatchParams carries the operation-specific fields of a batch request. Only
// the operation that owns a field reads it.
type BatchParams struct {
	// IgnoreReasonType and IgnoreReason are used by the ignore operation.
	IgnoreReasonType IgnoreReasonType
	IgnoreReason     string

	// Authors is the new handler list for the assign operation.
	Authors []string

	// Mark is the flag value for the flag operation.
	Mark Mark
}

// BatchRequest asks for an operation to be applied to a set of defects in a
// task. When SelectAll is set the targets come from QueryFilterJSON; otherwise
// they are DefectKeys.
type BatchRequest struct {
	TaskID          int64
	SelectAll       bool
	QueryFilterJSON string
	DefectKeys      []string
	Params          BatchParams
	RequestedBy     string
}

// BatchSuccessMessage is returned with every successful batch, including ones
// that matched nothing.
const BatchSuccessMessage = "batch process successful"

// Result is the outcome of a successful batch.
type Result struct {
	Message string
	// Resolved is the number of defects handed to the operation.
	Resolved int
}
