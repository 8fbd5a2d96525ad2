package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// expectedNamespaces sizes the existence prefilter; at 1% false positives
// the filter costs ~1.2 MB and stays useful far beyond the rate limits'
// practical namespace count.
const expectedNamespaces = 1_000_000

// Postgres implements Store on a pgx connection pool.
//
// It keeps a bloom filter of every read token as a negative cache for
// NamespaceExists: the public read surface sees a lot of junk tokens, and a
// definite "absent" answers without a round trip. False positives fall
// through to the real query; there are no false negatives because this
// process is the only writer and the filter is seeded from the table at
// startup.
type Postgres struct {
	db *pgxpool.Pool

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewPostgres creates a Postgres catalog and seeds the existence prefilter
// from the namespaces table.
func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*Postgres, error) {
	c := &Postgres{
		db:     db,
		filter: bloom.NewWithEstimates(expectedNamespaces, 0.01),
	}

	rows, err := db.Query(ctx, "SELECT read_token FROM namespaces")
	if err != nil {
		return nil, fmt.Errorf("seed namespace filter: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var readToken string
		if err := rows.Scan(&readToken); err != nil {
			return nil, fmt.Errorf("seed namespace filter: %w", err)
		}
		c.filter.AddString(readToken)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed namespace filter: %w", err)
	}
	return c, nil
}

func (c *Postgres) Ping(ctx context.Context) error {
	return c.db.Ping(ctx)
}

func (c *Postgres) InsertNamespace(ctx context.Context, ns Namespace) (bool, error) {
	tag, err := c.db.Exec(ctx,
		"INSERT INTO namespaces (read_token, write_token, origin, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (read_token) DO NOTHING",
		ns.ReadToken, ns.WriteToken, ns.Origin, ns.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert namespace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	c.mu.Lock()
	c.filter.AddString(ns.ReadToken)
	c.mu.Unlock()
	return true, nil
}

func (c *Postgres) LookupWriteToken(ctx context.Context, readToken string) (string, bool, error) {
	var secret string
	err := c.db.QueryRow(ctx,
		"SELECT write_token FROM namespaces WHERE read_token = $1",
		readToken,
	).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup write token: %w", err)
	}
	return secret, true, nil
}

func (c *Postgres) NamespaceExists(ctx context.Context, readToken string) (bool, error) {
	c.mu.RLock()
	maybe := c.filter.TestString(readToken)
	c.mu.RUnlock()
	if !maybe {
		return false, nil
	}

	var exists bool
	err := c.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM namespaces WHERE read_token = $1)",
		readToken,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("namespace exists: %w", err)
	}
	return exists, nil
}

func (c *Postgres) LiveSize(ctx context.Context, readToken, excludingKey string, now time.Time) (int64, error) {
	var total int64
	err := c.db.QueryRow(ctx,
		"SELECT COALESCE(SUM(size), 0) FROM key_entries WHERE namespace_ref = $1 AND expiration > $2 AND key <> $3",
		readToken, now, excludingKey,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("live size: %w", err)
	}
	return total, nil
}

func (c *Postgres) CreationCounts(ctx context.Context, origin string, since time.Time) (int, int, error) {
	var global, byOrigin int
	err := c.db.QueryRow(ctx,
		"SELECT COUNT(*), COUNT(*) FILTER (WHERE origin = $2) FROM namespaces WHERE created_at > $1",
		since, origin,
	).Scan(&global, &byOrigin)
	if err != nil {
		return 0, 0, fmt.Errorf("creation counts: %w", err)
	}
	return global, byOrigin, nil
}

func (c *Postgres) UpsertKey(ctx context.Context, e KeyEntry) error {
	_, err := c.db.Exec(ctx,
		`INSERT INTO key_entries (namespace_ref, key, content_type, size, created_at, expiration)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (namespace_ref, key) DO UPDATE
		 SET content_type = EXCLUDED.content_type, size = EXCLUDED.size,
		     created_at = EXCLUDED.created_at, expiration = EXCLUDED.expiration`,
		e.NamespaceRef, e.Key, e.ContentType, e.Size, e.CreatedAt, e.Expiration,
	)
	if err != nil {
		return fmt.Errorf("upsert key: %w", err)
	}
	return nil
}

func (c *Postgres) DeleteKey(ctx context.Context, readToken, key string) (bool, error) {
	var deleted string
	err := c.db.QueryRow(ctx,
		"DELETE FROM key_entries WHERE namespace_ref = $1 AND key = $2 RETURNING key",
		readToken, key,
	).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete key: %w", err)
	}
	return true, nil
}

func (c *Postgres) ListKeys(ctx context.Context, readToken, like string, offset, limit int, now time.Time) ([]KeyEntry, error) {
	rows, err := c.db.Query(ctx,
		`SELECT key, content_type, size, created_at, expiration
		 FROM key_entries
		 WHERE namespace_ref = $1 AND expiration > $2 AND ($3 = '' OR key LIKE $3)
		 ORDER BY created_at ASC
		 LIMIT $4 OFFSET $5`,
		readToken, now, like, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var entries []KeyEntry
	for rows.Next() {
		e := KeyEntry{NamespaceRef: readToken}
		if err := rows.Scan(&e.Key, &e.ContentType, &e.Size, &e.CreatedAt, &e.Expiration); err != nil {
			return nil, fmt.Errorf("scan key entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return entries, nil
}

func (c *Postgres) PurgeExpired(ctx context.Context, readToken string, now time.Time) (int64, error) {
	tag, err := c.db.Exec(ctx,
		"DELETE FROM key_entries WHERE namespace_ref = $1 AND expiration <= $2",
		readToken, now,
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
