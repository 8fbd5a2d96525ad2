// Package catalog is the relational metadata store of namespaces and key
// entries: the source of truth for existence, quota and listing.
package catalog

import (
	"context"
	"time"
)

// Namespace is a tenant's credential row. WriteToken is stored verbatim:
// verification must be constant-time over the raw secret, so hashing it at
// rest would break the lookup contract.
type Namespace struct {
	ReadToken  string    `json:"read_key"`
	WriteToken string    `json:"write_key"`
	Origin     string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// KeyEntry is the metadata row for one stored value. The content itself
// lives in the blob store under NamespaceRef + ":" + Key.
type KeyEntry struct {
	NamespaceRef string
	Key          string
	ContentType  string
	Size         int64
	CreatedAt    time.Time
	Expiration   time.Time
}

// Store is the catalog port consumed by the service layer.
type Store interface {
	// Ping verifies the catalog is reachable. Health checks only.
	Ping(ctx context.Context) error

	// InsertNamespace atomically inserts the namespace if its read token is
	// absent and reports whether a row actually landed. Callers retry with
	// fresh tokens on false.
	InsertNamespace(ctx context.Context, ns Namespace) (bool, error)

	// LookupWriteToken returns the stored write token for a read token, or
	// ok=false when the namespace does not exist.
	LookupWriteToken(ctx context.Context, readToken string) (secret string, ok bool, err error)

	// NamespaceExists reports whether a namespace with this read token exists.
	NamespaceExists(ctx context.Context, readToken string) (bool, error)

	// LiveSize sums the sizes of non-expired entries in the namespace,
	// excluding excludingKey so overwriting a key does not count its old
	// size against quota.
	LiveSize(ctx context.Context, readToken, excludingKey string, now time.Time) (int64, error)

	// CreationCounts returns how many namespaces were created since the
	// given instant, globally and for the given origin, in one aggregate
	// query.
	CreationCounts(ctx context.Context, origin string, since time.Time) (global, byOrigin int, err error)

	// UpsertKey inserts the entry or, on conflict, replaces its
	// content type, size, creation time and expiration.
	UpsertKey(ctx context.Context, e KeyEntry) error

	// DeleteKey removes the entry and reports whether a row was removed.
	DeleteKey(ctx context.Context, readToken, key string) (bool, error)

	// ListKeys returns non-expired entries ordered by creation time
	// ascending. like uses SQL LIKE semantics (% and _ wildcards, backslash
	// escapes); an empty pattern matches everything.
	ListKeys(ctx context.Context, readToken, like string, offset, limit int, now time.Time) ([]KeyEntry, error)

	// PurgeExpired deletes expired entries in the namespace and returns the
	// number of rows removed.
	PurgeExpired(ctx context.Context, readToken string, now time.Time) (int64, error)
}
