package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLocker implements Locker on a shared PostgreSQL database.
//
// Storage model: a single sync_locks table keyed by lock name. Acquire
// is one upsert that only succeeds when the row is absent or expired, so
// acquisition is atomic across all processes sharing the database.
type PostgresLocker struct {
	pool *pgxpool.Pool
}

const createLocksTable = `
	CREATE TABLE IF NOT EXISTS sync_locks (
		name       TEXT PRIMARY KEY,
		holder     TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)
`

// NewPostgresLocker creates a locker on the given connection pool,
// creating the sync_locks table if it does not exist.
func NewPostgresLocker(ctx context.Context, pool *pgxpool.Pool) (*PostgresLocker, error) {
	if _, err := pool.Exec(ctx, createLocksTable); err != nil {
		return nil, fmt.Errorf("create sync_locks table: %w", err)
	}
	return &PostgresLocker{pool: pool}, nil
}

// Acquire implements Locker.
func (l *PostgresLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	holder := uuid.New().String()

	query := `
		INSERT INTO sync_locks (name, holder, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (name) DO UPDATE SET
			holder = EXCLUDED.holder,
			expires_at = EXCLUDED.expires_at
		WHERE sync_locks.expires_at < now()
	`

	tag, err := l.pool.Exec(ctx, query, name, holder, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotAcquired
	}

	return &postgresLease{locker: l, name: name, holder: holder}, nil
}

type postgresLease struct {
	locker *PostgresLocker
	name   string
	holder string
}

func (l *postgresLease) Name() string {
	return l.name
}

// Release deletes the row only if this lease still holds it; a lease
// that expired and was re-acquired elsewhere leaves the new row intact.
func (l *postgresLease) Release(ctx context.Context) error {
	_, err := l.locker.pool.Exec(ctx,
		`DELETE FROM sync_locks WHERE name = $1 AND holder = $2`,
		l.name, l.holder,
	)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.name, err)
	}
	return nil
}
