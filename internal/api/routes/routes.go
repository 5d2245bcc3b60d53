// Package routes binds every API route group for the defect service.
package routes

import (
	"github.com/ahrav/defect-armada/internal/api/defect"
	"github.com/ahrav/defect-armada/internal/api/health"
	"github.com/ahrav/defect-armada/internal/api/mux"
	"github.com/ahrav/defect-armada/pkg/web"
)

// Routes constructs an add value which provides the implementation of
// RouteAdder for specifying what routes to bind to this instance.
func Routes() add {
	return add{}
}

type add struct{}

// Add implements the RouteAdder interface.
func (add) Add(app *web.App, cfg mux.Config) {
	health.Routes(app, health.Config{
		Build: cfg.Build,
		Log:   cfg.Log,
		DB:    cfg.DB,
	})

	defect.Routes(app, defect.Config{
		Log:     cfg.Log,
		Service: cfg.BatchService,
		Metrics: cfg.Metrics,
		Limiter: cfg.Limiter,
		MaxKeys: cfg.MaxKeys,
	})
}
