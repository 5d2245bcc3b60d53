package mid

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/ahrav/defect-armada/internal/api/errs"
	"github.com/ahrav/defect-armada/pkg/web"
)

// Panics recovers from panics and converts the panic to an internal error
// so it is reported in the Errors middleware.
func Panics(metrics PanicCounter) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) (resp web.Encoder) {
			defer func() {
				if rec := recover(); rec != nil {
					trace := debug.Stack()
					resp = errs.Newf(errs.Internal, "PANIC [%v] TRACE[%s]", rec, string(trace))
					if metrics != nil {
						metrics.IncPanics(ctx)
					}
				}
			}()

			return next(ctx, r)
		}

		return h
	}

	return m
}

// PanicCounter counts recovered panics.
type PanicCounter interface {
	IncPanics(ctx context.Context)
}
