package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/defect-armada/pkg/common/logger"
	"github.com/ahrav/defect-armada/pkg/web"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, cfg Config, path string) *httptest.ResponseRecorder {
	t.Helper()
	cfg.Log = logger.Noop()
	app := web.NewApp(cfg.Log.Info, noop.NewTracerProvider().Tracer("test"))
	Routes(app, cfg)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLiveness(t *testing.T) {
	rec := serve(t, Config{Build: "1.2.3"}, "/v1/liveness")

	require.Equal(t, http.StatusOK, rec.Code)
	var got liveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "up", got.Status)
	assert.Equal(t, "1.2.3", got.Build)
	assert.Equal(t, runtime.GOMAXPROCS(0), got.GOMAXPROCS)
	assert.NotEmpty(t, got.Host)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		want int
	}{
		{name: "no database configured", db: nil, want: http.StatusOK},
		{name: "database reachable", db: pingFunc(func(context.Context) error { return nil }), want: http.StatusOK},
		{
			name: "database down",
			db:   pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
			want: http.StatusServiceUnavailable,
		},
		{
			name: "ping deadline applied",
			db: pingFunc(func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					return errors.New("missing deadline")
				}
				return nil
			}),
			want: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, Config{DB: tt.db}, "/v1/readiness")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
