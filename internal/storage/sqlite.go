package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garrettladley/slackerp/internal/migrations"
	_ "github.com/mattn/go-sqlite3"
)

var _ Backend = (*SQLiteBackend)(nil)

type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens dsn and applies the embedded migrations.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps :memory: databases coherent and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Upsert(ctx context.Context, id LinkedIdentity) error {
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO linked_identities (email, chat_user_id, chat_username, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			chat_user_id = excluded.chat_user_id,
			chat_username = excluded.chat_username,
			updated_at = excluded.updated_at
	`, id.Email, id.ChatUserID, id.ChatUsername, id.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert linked identity: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) GetByEmail(ctx context.Context, email string) (LinkedIdentity, error) {
	return s.getIdentity(ctx, "email", email)
}

func (s *SQLiteBackend) GetByChatUserID(ctx context.Context, chatUserID string) (LinkedIdentity, error) {
	return s.getIdentity(ctx, "chat_user_id", chatUserID)
}

func (s *SQLiteBackend) getIdentity(ctx context.Context, column, value string) (LinkedIdentity, error) {
	var id LinkedIdentity
	err := s.db.QueryRowContext(ctx,
		`SELECT email, chat_user_id, chat_username, updated_at FROM linked_identities WHERE `+column+` = ? LIMIT 1`,
		value,
	).Scan(&id.Email, &id.ChatUserID, &id.ChatUsername, &id.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return LinkedIdentity{}, ErrNotFound
	}
	if err != nil {
		return LinkedIdentity{}, fmt.Errorf("get linked identity: %w", err)
	}
	return id, nil
}

func (s *SQLiteBackend) GetAttendance(ctx context.Context) (AttendanceState, error) {
	var st AttendanceState
	err := s.db.QueryRowContext(ctx,
		`SELECT last_date, last_message_ts FROM attendance_state WHERE id = 1`,
	).Scan(&st.LastDate, &st.LastMessageTS)
	if errors.Is(err, sql.ErrNoRows) {
		return AttendanceState{}, nil
	}
	if err != nil {
		return AttendanceState{}, fmt.Errorf("get attendance state: %w", err)
	}
	return st, nil
}

func (s *SQLiteBackend) SaveAttendance(ctx context.Context, st AttendanceState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_state (id, last_date, last_message_ts, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			last_date = excluded.last_date,
			last_message_ts = excluded.last_message_ts,
			updated_at = excluded.updated_at
	`, st.LastDate, st.LastMessageTS)
	if err != nil {
		return fmt.Errorf("save attendance state: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO run_locks (name, expires_at) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET expires_at = excluded.expires_at
		WHERE run_locks.expires_at <= ?
	`, key, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
