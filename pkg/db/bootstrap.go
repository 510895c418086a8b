package db

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
)

// Version is the product token used in the default SERVER banner.
const Version = "1.0"

// DefaultServerBanner builds an "OS/version UPnP/1.0 product/version" token.
func DefaultServerBanner() string {
	return fmt.Sprintf("%s/%s UPnP/1.0 upnpd/%s", runtime.GOOS, runtime.GOARCH, Version)
}

// DefaultNetwork returns the network settings seeded on first run.
func DefaultNetwork() Network {
	return Network{
		MaxAge:              1800,
		ServerBanner:        DefaultServerBanner(),
		GENABasePort:        49152,
		IOTimeoutMillis:     5000,
		SubscriptionSeconds: 1800,
	}
}

// Bootstrap seeds a "default" active profile with its admin API and network
// rows when the database has no profiles yet.
func (db *DB) Bootstrap(ctx context.Context) error {
	needed, err := db.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check profiles: %w", err)
	}
	if !needed {
		return nil
	}

	defaults := DefaultNetwork()
	return db.Tx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (name, is_active) VALUES (?, 1)
		`, "default")
		if err != nil {
			return fmt.Errorf("failed to create default profile: %w", err)
		}
		profileID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get profile ID: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO api_servers (profile_id, host, port) VALUES (?, '127.0.0.1', 8080)
		`, profileID); err != nil {
			return fmt.Errorf("failed to create default API server: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO network (profile_id, max_age, server_banner, gena_base_port,
			                     io_timeout_ms, subscription_timeout)
			VALUES (?, ?, ?, ?, ?, ?)
		`, profileID, defaults.MaxAge, defaults.ServerBanner, defaults.GENABasePort,
			defaults.IOTimeoutMillis, defaults.SubscriptionSeconds); err != nil {
			return fmt.Errorf("failed to create default network config: %w", err)
		}
		return nil
	})
}

// NeedsBootstrap returns true if the database needs initial setup.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
