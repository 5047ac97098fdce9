package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSink appends events to an append-only table. The gateway never
// updates or deletes rows; retention is an operational concern.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink wraps an open database handle.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS portal_audit_log (
			id         UUID PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			tag        TEXT NOT NULL,
			username   TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresSink) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portal_audit_log (id, ts, tag, username, department, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Timestamp, string(event.Tag), event.Username,
		event.Department, event.Detail)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListRecent returns up to n events, newest first.
func (s *PostgresSink) ListRecent(ctx context.Context, n int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, tag, username, department, detail
		FROM portal_audit_log ORDER BY ts DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var tag string
		if err := rows.Scan(&event.ID, &event.Timestamp, &tag,
			&event.Username, &event.Department, &event.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Tag = Tag(tag)
		events = append(events, event)
	}
	return events, rows.Err()
}
