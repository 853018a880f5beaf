package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get-style methods when no row matches.
var ErrNotFound = errors.New("storage: not found")

// UserStore manages the pseudonymous users table.
type UserStore interface {
	// Touch creates the user row if absent, or updates logged_in if present.
	Touch(ctx context.Context, userID []byte, loggedIn bool) error

	// Get retrieves a user by ID.
	Get(ctx context.Context, userID []byte) (*User, error)
}

// UserKeyStore manages the append-mostly Ed25519/X25519 public key
// histories (Sistema B).
type UserKeyStore interface {
	AddEd25519Key(ctx context.Context, userID []byte, pubKey string) error
	AddX25519Key(ctx context.Context, userID []byte, pubKey string) error

	// LatestEd25519Keys returns up to limit keys, newest first.
	LatestEd25519Keys(ctx context.Context, userID []byte, limit int) ([]*UserEd25519Key, error)
	// LatestX25519Keys returns up to limit keys, newest first.
	LatestX25519Keys(ctx context.Context, userID []byte, limit int) ([]*UserX25519Key, error)
}

// UserPrivkeyStore manages the per-user encrypted private-key context.
type UserPrivkeyStore interface {
	// GetOrCreate returns the existing context for dbIndex, creating one
	// with newEncryptedPrivkey if no row exists yet.
	GetOrCreate(ctx context.Context, dbIndex []byte, newEncryptedPrivkey []byte) (*UserPrivkeyContext, error)
}

// MagicLinkStore manages single-use magic-link capabilities.
type MagicLinkStore interface {
	// Create inserts a new magic link row.
	Create(ctx context.Context, link *MagicLink) error

	// Consume atomically retrieves and deletes a magic link by token hash,
	// enforcing single use. Returns ErrNotFound if absent (already
	// consumed, never existed, or previously swept as expired).
	Consume(ctx context.Context, tokenHash []byte) (*MagicLink, error)

	// DeleteExpired removes all rows whose expires_at has passed and
	// returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SharedSecretStore manages the two-layer shared-secret schema.
type SharedSecretStore interface {
	// CreateShard inserts a Layer-1 shard row.
	CreateShard(ctx context.Context, shard *SharedSecretShard) error
	// GetShard retrieves a Layer-1 shard by its db_index.
	GetShard(ctx context.Context, id []byte) (*SharedSecretShard, error)
	// DeleteShard removes a Layer-1 shard.
	DeleteShard(ctx context.Context, id []byte) error

	// CreateTracking inserts the Layer-2 tracking row.
	CreateTracking(ctx context.Context, tracking *SharedSecretTracking) error
	// GetTracking retrieves the Layer-2 tracking row.
	GetTracking(ctx context.Context, referenceHash []byte) (*SharedSecretTracking, error)
	// DecrementPendingReads atomically decrements pending_reads and
	// returns the row's state after the decrement, using the database's
	// own RETURNING clause so concurrent readers cannot both observe and
	// act on the same pre-decrement count.
	DecrementPendingReads(ctx context.Context, referenceHash []byte) (*SharedSecretTracking, error)
	// MarkRead idempotently sets read_at if unset; a second call is a
	// no-op and returns no error.
	MarkRead(ctx context.Context, referenceHash []byte, at time.Time) error
	// DeleteTracking removes the Layer-2 row.
	DeleteTracking(ctx context.Context, referenceHash []byte) error

	// DeleteExpired removes expired shards and tracking rows, in that
	// order (shards first, since tracking is the ownership source of
	// truth consulted by the three-layer read check).
	DeleteExpired(ctx context.Context, now time.Time) (shardsRemoved, trackingRemoved int64, err error)
}

// Store aggregates every persistence contract the service needs. Both the
// postgres and memory packages implement it in full.
type Store interface {
	Users() UserStore
	UserKeys() UserKeyStore
	UserPrivkeys() UserPrivkeyStore
	MagicLinks() MagicLinkStore
	SharedSecrets() SharedSecretStore

	Close() error
	Ping(ctx context.Context) error
}
