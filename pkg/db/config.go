package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoActiveProfile = errors.New("no active profile found")

// Config is the runtime configuration of the active profile.
type Config struct {
	Profile   *Profile
	APIServer *APIServer
	Network   *Network
}

// APIAddress returns the admin API listen address.
func (c *Config) APIAddress() string {
	if c.APIServer == nil {
		return "127.0.0.1:8080"
	}
	return c.APIServer.Address()
}

// NetworkOrDefault returns the profile's network settings, falling back to
// the first-run defaults when the profile has none.
func (c *Config) NetworkOrDefault() Network {
	if c.Network == nil {
		return DefaultNetwork()
	}
	return *c.Network
}

// ActiveConfig loads the complete configuration for the active profile.
func (db *DB) ActiveConfig(ctx context.Context) (*Config, error) {
	profile, err := db.Profiles().GetActive(ctx)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrNoActiveProfile
		}
		return nil, fmt.Errorf("failed to get active profile: %w", err)
	}

	config := &Config{Profile: profile}

	apiServer, err := db.APIServers().Get(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrAPIServerNotFound) {
		return nil, fmt.Errorf("failed to get API server config: %w", err)
	}
	config.APIServer = apiServer

	network, err := db.Networks().Get(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrNetworkNotFound) {
		return nil, fmt.Errorf("failed to get network config: %w", err)
	}
	config.Network = network

	return config, nil
}
