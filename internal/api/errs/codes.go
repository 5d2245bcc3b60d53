package errs

import "net/http"

var (
	// OK indicates the operation was successful.
	OK = ErrCode{value: 0}

	// InvalidArgument indicates client specified an invalid argument.
	InvalidArgument = ErrCode{value: 3}

	// NotFound means some requested entity (e.g., file or directory) was
	// not found.
	NotFound = ErrCode{value: 5}

	// FailedPrecondition indicates operation was rejected because the
	// system is not in a state required for the operation's execution.
	FailedPrecondition = ErrCode{value: 9}

	// ResourceExhausted indicates the caller exceeded a rate or quota.
	ResourceExhausted = ErrCode{value: 8}

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal = ErrCode{value: 13}

	// Unavailable indicates the service is currently unavailable.
	Unavailable = ErrCode{value: 14}
)

var codeNames = map[ErrCode]string{
	OK:                 "ok",
	InvalidArgument:    "invalid_argument",
	NotFound:           "not_found",
	FailedPrecondition: "failed_precondition",
	ResourceExhausted:  "resource_exhausted",
	Internal:           "internal",
	Unavailable:        "unavailable",
}

var codeNumbers = map[string]ErrCode{
	"ok":                  OK,
	"invalid_argument":    InvalidArgument,
	"not_found":           NotFound,
	"failed_precondition": FailedPrecondition,
	"resource_exhausted":  ResourceExhausted,
	"internal":            Internal,
	"unavailable":         Unavailable,
}

var httpStatus = map[ErrCode]int{
	OK:                 http.StatusOK,
	InvalidArgument:    http.StatusBadRequest,
	NotFound:           http.StatusNotFound,
	FailedPrecondition: http.StatusBadRequest,
	ResourceExhausted:  http.StatusTooManyRequests,
	Internal:           http.StatusInternalServerError,
	Unavailable:        http.StatusServiceUnavailable,
}
