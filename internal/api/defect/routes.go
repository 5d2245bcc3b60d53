// Package defect exposes the batch defect operations over HTTP.
package defect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ahrav/defect-armada/internal/api/errs"
	"github.com/ahrav/defect-armada/internal/api/mid"
	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/pkg/common"
	"github.com/ahrav/defect-armada/pkg/common/logger"
	"github.com/ahrav/defect-armada/pkg/web"
)

// BatchProcessor runs a batch operation.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, kind defect.OperationKind, req *defect.BatchRequest) (defect.Result, error)
}

// Metrics records batch endpoint activity.
type Metrics interface {
	IncBatchRequestsTotal(ctx context.Context, operation string)
	IncBatchRequestErrors(ctx context.Context, operation, reason string)
}

// Config contains the dependencies needed by the defect handlers.
type Config struct {
	Log     *logger.Logger
	Service BatchProcessor
	Metrics Metrics
	// Limiter throttles the batch endpoint. Nil disables throttling.
	Limiter *common.RateLimiter
	// MaxKeys caps the number of explicit defect keys per request.
	MaxKeys int
}

// Routes binds the defect endpoints.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	var mw []web.MidFunc
	if cfg.Limiter != nil {
		mw = append(mw, mid.RateLimit(cfg.Limiter))
	}

	app.HandlerFunc(http.MethodPost, version, "/tasks/{task_id}/defects/batch/{operation}", batch(cfg), mw...)
}

func batch(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		opName := web.Param(r, "operation")
		cfg.Metrics.IncBatchRequestsTotal(ctx, opName)

		reject := func(reason string, err error) web.Encoder {
			cfg.Metrics.IncBatchRequestErrors(ctx, opName, reason)
			return errs.New(errs.InvalidArgument, err)
		}

		taskID, err := strconv.ParseInt(web.Param(r, "task_id"), 10, 64)
		if err != nil || taskID <= 0 {
			return reject("invalid_task_id", fmt.Errorf("task_id must be a positive integer"))
		}

		kind, err := defect.ParseOperationKind(opName)
		if err != nil {
			return reject("unknown_operation", err)
		}

		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return reject("malformed_body", err)
		}

		if err := errs.Check(req); err != nil {
			return reject("validation", err)
		}

		// An empty explicit key list is passed through; the batch is a no-op.
		if !req.IsSelectAll && cfg.MaxKeys > 0 && len(req.DefectKeys) > cfg.MaxKeys {
			return reject("validation", fmt.Errorf("defect_keys exceeds the limit of %d keys", cfg.MaxKeys))
		}

		res, err := cfg.Service.ProcessBatch(ctx, kind, req.toDomain(taskID))
		if err != nil {
			switch {
			case defect.IsInvalidArgument(err), errors.Is(err, defect.ErrUnknownOperation):
				return reject("invalid_argument", err)
			default:
				cfg.Metrics.IncBatchRequestErrors(ctx, opName, "internal")
				return errs.New(errs.Internal, err)
			}
		}

		cfg.Log.Info(ctx, "batch request handled",
			"task_id", taskID,
			"operation", kind.String(),
			"resolved", res.Resolved,
		)

		return batchResponse{Message: res.Message}
	}
}
