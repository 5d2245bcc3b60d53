// Package health provides the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/ahrav/defect-armada/internal/api/errs"
	"github.com/ahrav/defect-armada/pkg/common/logger"
	"github.com/ahrav/defect-armada/pkg/web"
)

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build string
	Log   *logger.Logger
	// DB is checked by the readiness probe. Nil skips the check.
	DB Pinger
}

// Routes binds all the health check endpoints.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	app.HandlerFuncNoMid(http.MethodGet, version, "/liveness", liveness(cfg))
	app.HandlerFuncNoMid(http.MethodGet, version, "/readiness", readiness(cfg))
}

// liveResponse represents the response for the liveness check.
type liveResponse struct {
	Status     string `json:"status"`
	Build      string `json:"build"`
	Host       string `json:"host"`
	GOMAXPROCS int    `json:"GOMAXPROCS"`
}

// Encode implements the web.Encoder interface.
func (lr liveResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(lr)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

func liveness(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		host, err := os.Hostname()
		if err != nil {
			host = "unavailable"
		}

		return liveResponse{
			Status:     "up",
			Build:      cfg.Build,
			Host:       host,
			GOMAXPROCS: runtime.GOMAXPROCS(0),
		}
	}
}

// readyResponse represents the response for readiness check.
type readyResponse struct {
	Status string `json:"status"`
}

// Encode implements the web.Encoder interface.
func (rr readyResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(rr)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

func readiness(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		if cfg.DB == nil {
			return readyResponse{Status: "ready"}
		}

		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		if err := cfg.DB.Ping(ctx); err != nil {
			cfg.Log.Warn(ctx, "readiness failure", "err", err)
			return errs.New(errs.Unavailable, err)
		}

		return readyResponse{Status: "ready"}
	}
}
