package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNetworkNotFound = errors.New("network config not found")

// Network holds the SSDP and GENA tuning of a profile.
type Network struct {
	ID                  int64     `json:"id"`
	ProfileID           int64     `json:"profile_id"`
	Interface           string    `json:"interface"`
	MaxAge              int       `json:"max_age"`
	ServerBanner        string    `json:"server_banner"`
	GENABasePort        int       `json:"gena_base_port"`
	IOTimeoutMillis     int       `json:"io_timeout_ms"`
	SubscriptionSeconds int       `json:"subscription_timeout"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IOTimeout returns the GENA per-operation I/O bound.
func (n *Network) IOTimeout() time.Duration {
	return time.Duration(n.IOTimeoutMillis) * time.Millisecond
}

// SubscriptionTimeout returns how long a GENA subscription lives without renewal.
func (n *Network) SubscriptionTimeout() time.Duration {
	return time.Duration(n.SubscriptionSeconds) * time.Second
}

// Validate rejects values the engine and server cannot run with.
func (n *Network) Validate() error {
	switch {
	case n.MaxAge <= 0:
		return fmt.Errorf("max_age must be positive, got %d", n.MaxAge)
	case n.GENABasePort < 0 || n.GENABasePort > 65535:
		return fmt.Errorf("gena_base_port out of range: %d", n.GENABasePort)
	case n.IOTimeoutMillis <= 0:
		return fmt.Errorf("io_timeout_ms must be positive, got %d", n.IOTimeoutMillis)
	case n.SubscriptionSeconds <= 0:
		return fmt.Errorf("subscription_timeout must be positive, got %d", n.SubscriptionSeconds)
	}
	return nil
}

// NetworkStore provides network config CRUD operations.
type NetworkStore interface {
	Get(ctx context.Context, profileID int64) (*Network, error)
	Create(ctx context.Context, n *Network) error
	Update(ctx context.Context, n *Network) error
}

// Networks returns a NetworkStore for this database.
func (db *DB) Networks() NetworkStore {
	return &networkStore{db: db}
}

type networkStore struct {
	db *DB
}

func (s *networkStore) Get(ctx context.Context, profileID int64) (*Network, error) {
	n := &Network{}
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, interface, max_age, server_banner, gena_base_port,
		       io_timeout_ms, subscription_timeout, updated_at
		FROM network WHERE profile_id = ?
	`, profileID).Scan(&n.ID, &n.ProfileID, &n.Interface, &n.MaxAge, &n.ServerBanner,
		&n.GENABasePort, &n.IOTimeoutMillis, &n.SubscriptionSeconds, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNetworkNotFound
	}
	if err != nil {
		return nil, err
	}
	n.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return n, nil
}

func (s *networkStore) Create(ctx context.Context, n *Network) error {
	if err := n.Validate(); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO network (profile_id, interface, max_age, server_banner, gena_base_port,
		                     io_timeout_ms, subscription_timeout)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ProfileID, n.Interface, n.MaxAge, n.ServerBanner, n.GENABasePort,
		n.IOTimeoutMillis, n.SubscriptionSeconds)
	if err != nil {
		return fmt.Errorf("failed to create network config: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

func (s *networkStore) Update(ctx context.Context, n *Network) error {
	if err := n.Validate(); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE network
		SET interface = ?, max_age = ?, server_banner = ?, gena_base_port = ?,
		    io_timeout_ms = ?, subscription_timeout = ?, updated_at = datetime('now')
		WHERE profile_id = ?
	`, n.Interface, n.MaxAge, n.ServerBanner, n.GENABasePort,
		n.IOTimeoutMillis, n.SubscriptionSeconds, n.ProfileID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrNetworkNotFound)
}
