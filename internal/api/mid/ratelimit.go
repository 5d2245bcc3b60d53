package mid

import (
	"context"
	"net/http"

	"github.com/ahrav/defect-armada/internal/api/errs"
	"github.com/ahrav/defect-armada/pkg/common"
	"github.com/ahrav/defect-armada/pkg/web"
)

// RateLimit rejects requests with ResourceExhausted once limiter has no
// tokens left.
func RateLimit(limiter *common.RateLimiter) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			if !limiter.Allow() {
				web.GetWriter(ctx).Header().Set("Retry-After", "1")
				return errs.Newf(errs.ResourceExhausted, "rate limit exceeded, retry later")
			}

			return next(ctx, r)
		}

		return h
	}

	return m
}
