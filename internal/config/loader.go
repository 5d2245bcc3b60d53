package config

import (
	"context"
)

// Loader provides configuration loading capabilities. It abstracts the source
// of configuration so files, environment variables, or remote configuration
// services can back it.
type Loader interface {
	// Load retrieves, parses and validates the configuration.
	Load(ctx context.Context) (*Config, error)
}
