// Package registry persists the MIDI input ports the service has observed,
// so operators can tell which devices have ever been plugged in and when
// they were last seen.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrPortNotFound is returned when a port has never been recorded.
var ErrPortNotFound = errors.New("port not found")

// Port is one MIDI input port and the span over which it was observed.
type Port struct {
	Name        string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// Registry provides data access for observed ports.
type Registry struct {
	db *sql.DB
}

// New creates a Registry backed by db.
func New(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// RecordSighting records that a port was present at seenAt. The first
// sighting inserts the row; later sightings only advance last_seen_at.
func (r *Registry) RecordSighting(ctx context.Context, name string, seenAt time.Time) error {
	query := `
		INSERT INTO ports (name, first_seen_at, last_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET last_seen_at = excluded.last_seen_at
	`

	if _, err := r.db.ExecContext(ctx, query, name, seenAt, seenAt); err != nil {
		return fmt.Errorf("failed to record port sighting: %w", err)
	}

	return nil
}

// Get retrieves one port by name.
func (r *Registry) Get(ctx context.Context, name string) (*Port, error) {
	query := `
		SELECT name, first_seen_at, last_seen_at
		FROM ports
		WHERE name = ?
	`

	port := &Port{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&port.Name,
		&port.FirstSeenAt,
		&port.LastSeenAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPortNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get port: %w", err)
	}

	return port, nil
}

// List retrieves every recorded port, most recently seen first.
func (r *Registry) List(ctx context.Context) ([]*Port, error) {
	query := `
		SELECT name, first_seen_at, last_seen_at
		FROM ports
		ORDER BY last_seen_at DESC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	defer rows.Close()

	var ports []*Port
	for rows.Next() {
		port := &Port{}
		if err := rows.Scan(&port.Name, &port.FirstSeenAt, &port.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan port: %w", err)
		}
		ports = append(ports, port)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ports: %w", err)
	}

	return ports, nil
}
