package commands

import (
	"context"
	"fmt"

	"github.com/votechain/votechain-client/client"
	"github.com/votechain/votechain-client/config"
)

// ConfigLoaderFunc loads and validates the client configuration at path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// ClientFactoryFunc builds the client for a configuration.
type ClientFactoryFunc func(ctx context.Context, cfg *config.Config, opts ...client.Option) (*client.Client, error)

// defaultConfigLoader reads the file, applies env overrides and validates the result.
func defaultConfigLoader(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the client configuration.
	// Default: config.Load followed by Validate
	ConfigLoader ConfigLoaderFunc

	// ClientFactory builds the client.
	// Default: client.New
	ClientFactory ClientFactoryFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = defaultConfigLoader
	}
	if d.ClientFactory == nil {
		d.ClientFactory = client.New
	}
}
