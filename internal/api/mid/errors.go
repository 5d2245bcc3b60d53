package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/ahrav/defect-armada/internal/api/errs"
	"github.com/ahrav/defect-armada/pkg/common/logger"
	"github.com/ahrav/defect-armada/pkg/web"
)

// Errors handles errors coming out of the call chain. Errors that are not
// already an *errs.Error are logged and replaced by an opaque internal error.
func Errors(log *logger.Logger) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			resp := next(ctx, r)
			err, isError := resp.(error)
			if !isError {
				return resp
			}

			var appErr *errs.Error
			if !errors.As(err, &appErr) {
				appErr = errs.Newf(errs.Internal, "internal server error")
				log.Error(ctx, "handling error during request",
					"err", err,
					"source_err_file", "unknown",
					"source_err_func", "unknown")
				return appErr
			}

			log.Error(ctx, "handling error during request",
				"err", appErr.Message,
				"code", appErr.Code.String(),
				"source_err_file", appErr.FileName,
				"source_err_func", appErr.FuncName)

			// Internal details are never sent to the client.
			if appErr.Code.Equal(errs.Internal) {
				return errs.Newf(errs.Internal, "internal server error")
			}

			return appErr
		}

		return h
	}

	return m
}
