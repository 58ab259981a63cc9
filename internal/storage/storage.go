package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// LinkedIdentity ties an ERP user (keyed by email) to a chat account.
type LinkedIdentity struct {
	Email        string    `json:"email"`
	ChatUserID   string    `json:"chat_user_id"`
	ChatUsername string    `json:"chat_username"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type IdentityStore interface {
	// Upsert inserts or replaces the identity for id.Email.
	Upsert(ctx context.Context, id LinkedIdentity) error
	// GetByEmail returns ErrNotFound when no identity is linked.
	GetByEmail(ctx context.Context, email string) (LinkedIdentity, error)
	GetByChatUserID(ctx context.Context, chatUserID string) (LinkedIdentity, error)
}

// AttendanceState records the last posted attendance summary so leave
// requests for today can be threaded under it.
type AttendanceState struct {
	LastDate      string `json:"last_date"`
	LastMessageTS string `json:"last_message_ts"`
}

type StateStore interface {
	// GetAttendance returns the zero value when nothing has been saved.
	GetAttendance(ctx context.Context) (AttendanceState, error)
	SaveAttendance(ctx context.Context, s AttendanceState) error
}

type Locker interface {
	// AcquireOnce reports whether the caller won key for ttl. Expired keys
	// may be won again.
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

type Backend interface {
	IdentityStore
	StateStore
	Locker

	Close() error

	Ping(ctx context.Context) error
}
