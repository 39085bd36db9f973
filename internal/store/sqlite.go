package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"jobtalk/pkg/interfaces"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS selected_rooms (
	session_key TEXT NOT NULL,
	role        TEXT NOT NULL,
	room_id     TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (session_key, role)
);
`

// SQLiteStore persists room selection in a local SQLite file. The table is
// bootstrapped on open.
type SQLiteStore struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (and if needed creates) the selection database.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap sqlite schema: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "store").Str("driver", DriverSQLite).Logger(),
	}, nil
}

// SaveSelection upserts the selected room for a (session, role) pair.
func (s *SQLiteStore) SaveSelection(ctx context.Context, sessionKey, role, roomID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selected_rooms (session_key, role, room_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_key, role) DO UPDATE SET
			room_id = excluded.room_id,
			updated_at = excluded.updated_at`,
		sessionKey, role, roomID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// LoadSelection returns interfaces.ErrNoSelection when nothing is persisted.
func (s *SQLiteStore) LoadSelection(ctx context.Context, sessionKey, role string) (string, error) {
	var roomID string
	err := s.db.GetContext(ctx, &roomID,
		`SELECT room_id FROM selected_rooms WHERE session_key = ? AND role = ?`,
		sessionKey, role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", interfaces.ErrNoSelection
	}
	if err != nil {
		return "", fmt.Errorf("load selection: %w", err)
	}
	return roomID, nil
}

// ClearSelection removes any persisted selection. Idempotent.
func (s *SQLiteStore) ClearSelection(ctx context.Context, sessionKey, role string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM selected_rooms WHERE session_key = ? AND role = ?`,
		sessionKey, role)
	if err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
