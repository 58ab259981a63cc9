package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Backend = (*PostgresBackend)(nil)

type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend expects the schema from migrations/postgres to be applied.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (p *PostgresBackend) Upsert(ctx context.Context, id LinkedIdentity) error {
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO linked_identities (email, chat_user_id, chat_username, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			chat_user_id = EXCLUDED.chat_user_id,
			chat_username = EXCLUDED.chat_username,
			updated_at = EXCLUDED.updated_at
	`, id.Email, id.ChatUserID, id.ChatUsername, id.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert linked identity: %w", err)
	}
	return nil
}

func (p *PostgresBackend) GetByEmail(ctx context.Context, email string) (LinkedIdentity, error) {
	return p.getIdentity(ctx, "email", email)
}

func (p *PostgresBackend) GetByChatUserID(ctx context.Context, chatUserID string) (LinkedIdentity, error) {
	return p.getIdentity(ctx, "chat_user_id", chatUserID)
}

func (p *PostgresBackend) getIdentity(ctx context.Context, column, value string) (LinkedIdentity, error) {
	var id LinkedIdentity
	err := p.pool.QueryRow(ctx,
		`SELECT email, chat_user_id, chat_username, updated_at FROM linked_identities WHERE `+column+` = $1 LIMIT 1`,
		value,
	).Scan(&id.Email, &id.ChatUserID, &id.ChatUsername, &id.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LinkedIdentity{}, ErrNotFound
	}
	if err != nil {
		return LinkedIdentity{}, fmt.Errorf("get linked identity: %w", err)
	}
	return id, nil
}

func (p *PostgresBackend) GetAttendance(ctx context.Context) (AttendanceState, error) {
	var s AttendanceState
	err := p.pool.QueryRow(ctx,
		`SELECT last_date, last_message_ts FROM attendance_state WHERE id = 1`,
	).Scan(&s.LastDate, &s.LastMessageTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return AttendanceState{}, nil
	}
	if err != nil {
		return AttendanceState{}, fmt.Errorf("get attendance state: %w", err)
	}
	return s, nil
}

func (p *PostgresBackend) SaveAttendance(ctx context.Context, s AttendanceState) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO attendance_state (id, last_date, last_message_ts, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			last_date = EXCLUDED.last_date,
			last_message_ts = EXCLUDED.last_message_ts,
			updated_at = EXCLUDED.updated_at
	`, s.LastDate, s.LastMessageTS)
	if err != nil {
		return fmt.Errorf("save attendance state: %w", err)
	}
	return nil
}

func (p *PostgresBackend) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO run_locks (name, expires_at) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE run_locks.expires_at <= $3
	`, key, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
