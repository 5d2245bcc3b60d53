// Package fileloader loads service configuration from an optional YAML file
// overlaid with environment variables.
package fileloader

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ahrav/defect-armada/internal/config"
)

// EnvPrefix prefixes every environment override, e.g. DEFECT_DB_DSN.
const EnvPrefix = "DEFECT"

var _ config.Loader = (*FileLoader)(nil)

// FileLoader loads configuration through viper. Precedence, highest first:
// environment, file, defaults.
type FileLoader struct {
	// path is the config file. Empty means environment and defaults only.
	path string
}

// NewFileLoader creates a FileLoader reading path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load reads the configuration and validates it.
func (l *FileLoader) Load(ctx context.Context) (*config.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, val := range config.Defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.path != "" {
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
