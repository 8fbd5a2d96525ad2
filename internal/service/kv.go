// Package service sequences catalog and blob operations so the two stores
// degrade gracefully when one write succeeds and the other fails. No
// cross-store transaction exists; writes follow a fixed order and reads
// reconcile the tolerated inconsistency window.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"cloudkv/internal/blobstore"
	"cloudkv/internal/catalog"
	"cloudkv/internal/kverr"
	"cloudkv/internal/logger"
	"cloudkv/internal/token"
)

// cleanupTimeout bounds the deferred expired-row purge that runs after a
// successful set.
const cleanupTimeout = 10 * time.Second

// KV coordinates the namespace catalog and the blob store.
type KV struct {
	catalog catalog.Store
	blobs   blobstore.Store
	limits  Limits
	baseURL string
	log     *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
	// afterCleanup, when set, observes deferred purge completions (tests).
	afterCleanup func(namespace string, removed int64)
}

// New creates the coordinator. baseURL is the public base used to build
// canonical key URLs in responses.
func New(cat catalog.Store, blobs blobstore.Store, limits Limits, baseURL string) *KV {
	return &KV{
		catalog: cat,
		blobs:   blobs,
		limits:  limits,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.Get(),
		now:     time.Now,
	}
}

// KeyInfo is the response shape for a stored key, both from set and from
// listing. URL is constructed from the base path, never stored.
type KeyInfo struct {
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Expiration  time.Time `json:"expiration"`
}

// ListResult is the response shape for key enumeration.
type ListResult struct {
	Keys []KeyInfo `json:"keys"`
}

// Ping reports whether the catalog is reachable, for health checks.
func (s *KV) Ping(ctx context.Context) error {
	return s.catalog.Ping(ctx)
}

// CreateNamespace checks the derived creation rate limits and then inserts
// a namespace with freshly generated credentials, retrying on the
// (negligible) token collision case until an insert lands.
func (s *KV) CreateNamespace(ctx context.Context, origin string) (*catalog.Namespace, error) {
	since := s.now().Add(-s.limits.CreateWindow)
	global, byOrigin, err := s.catalog.CreationCounts(ctx, origin, since)
	if err != nil {
		return nil, fmt.Errorf("creation counts: %w", err)
	}
	// Counts are snapshot reads; concurrent creations racing between this
	// read and the insert can transiently overshoot. Accepted soft limit.
	if global >= s.limits.GlobalCreateLimit {
		return nil, kverr.RateLimited("global namespace creation limit reached, try again later")
	}
	if byOrigin >= s.limits.OriginCreateLimit {
		return nil, kverr.RateLimited("namespace creation limit reached for this origin, try again later")
	}

	for {
		readToken, err := token.Generate(token.ReadTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("generate read token: %w", err)
		}
		writeToken, err := token.Generate(token.WriteTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("generate write token: %w", err)
		}
		ns := catalog.Namespace{
			ReadToken:  readToken,
			WriteToken: writeToken,
			Origin:     origin,
			CreatedAt:  s.now(),
		}
		inserted, err := s.catalog.InsertNamespace(ctx, ns)
		if err != nil {
			return nil, fmt.Errorf("insert namespace: %w", err)
		}
		if inserted {
			return &ns, nil
		}
	}
}

// Set validates and admits a write, then drives the two stores in a fixed
// order: catalog upsert first (it is authoritative for listing and quota),
// blob write second. A blob failure leaves a catalog row whose payload is
// missing; the read path treats that identically to "key not found" and the
// row ages out, so no rollback is attempted.
func (s *KV) Set(ctx context.Context, readToken, key, authHeader string, body []byte, contentType string, ttlSeconds *int64) (*KeyInfo, error) {
	if err := s.authorize(ctx, readToken, authHeader); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(key) > s.limits.MaxKeyLength {
		return nil, kverr.Validation(fmt.Sprintf("key length exceeds %d characters", s.limits.MaxKeyLength))
	}
	if len(body) == 0 {
		return nil, kverr.Validation("request body is empty")
	}
	size := int64(len(body))
	if size > s.limits.MaxValueSize {
		return nil, kverr.Validation(fmt.Sprintf("value exceeds maximum size of %d bytes", s.limits.MaxValueSize))
	}

	now := s.now()
	ttl := s.limits.clampTTL(ttlSeconds)
	expiration := now.Add(ttl)

	live, err := s.catalog.LiveSize(ctx, readToken, key, now)
	if err != nil {
		return nil, fmt.Errorf("live size: %w", err)
	}
	if live+size > s.limits.NamespaceQuota {
		return nil, kverr.QuotaExceeded(fmt.Sprintf("namespace quota of %d bytes exceeded", s.limits.NamespaceQuota))
	}

	entry := catalog.KeyEntry{
		NamespaceRef: readToken,
		Key:          key,
		ContentType:  contentType,
		Size:         size,
		CreatedAt:    now,
		Expiration:   expiration,
	}
	if err := s.catalog.UpsertKey(ctx, entry); err != nil {
		return nil, fmt.Errorf("upsert key: %w", err)
	}
	err = s.blobs.Put(ctx, blobID(readToken, key), body, blobstore.PutOptions{
		ContentType: contentType,
		TTL:         ttl,
	})
	if err != nil {
		// The catalog row now references missing content. Tolerated: reads
		// report the key as absent and the row ages out with its expiration.
		s.log.Error("blob write failed after catalog upsert", "namespace", readToken, "key", key, "error", err)
		return nil, fmt.Errorf("blob put: %w", err)
	}

	s.purgeExpiredAsync(readToken)

	return &KeyInfo{
		URL:         s.keyURL(readToken, key),
		Key:         key,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   now,
		Expiration:  expiration,
	}, nil
}

// Get reads the blob store directly by composite key. Only on a miss does
// it pay an extra catalog round trip to tell "namespace absent" from "key
// absent".
func (s *KV) Get(ctx context.Context, readToken, key string) (*blobstore.Object, error) {
	obj, err := s.blobs.Get(ctx, blobID(readToken, key))
	if err != nil {
		return nil, s.missError(ctx, readToken, err)
	}
	return obj, nil
}

// Stat returns the metadata a HEAD request serves: identical headers to
// Get with no body.
func (s *KV) Stat(ctx context.Context, readToken, key string) (*blobstore.Object, error) {
	obj, err := s.blobs.Stat(ctx, blobID(readToken, key))
	if err != nil {
		return nil, s.missError(ctx, readToken, err)
	}
	return obj, nil
}

// Delete removes the blob first, then the catalog row, and distinguishes
// namespace-absent from key-absent so callers can tell "wrong handle" from
// "already deleted". The namespace existence check runs before auth.
func (s *KV) Delete(ctx context.Context, readToken, key, authHeader string) error {
	exists, err := s.catalog.NamespaceExists(ctx, readToken)
	if err != nil {
		return fmt.Errorf("namespace exists: %w", err)
	}
	if !exists {
		return kverr.NamespaceNotFound()
	}
	if err := s.authorize(ctx, readToken, authHeader); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, blobID(readToken, key)); err != nil {
		return fmt.Errorf("blob delete: %w", err)
	}
	removed, err := s.catalog.DeleteKey(ctx, readToken, key)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	if !removed {
		return kverr.KeyNotFound()
	}
	return nil
}

// List enumerates the namespace's live keys with optional two-wildcard
// pattern filtering (% = any run, _ = one character) and a numeric offset.
// Page size is always capped; rows are ordered by creation time ascending.
func (s *KV) List(ctx context.Context, readToken, like string, offset int) (*ListResult, error) {
	if offset < 0 {
		return nil, kverr.Validation("offset must be a non-negative integer")
	}
	exists, err := s.catalog.NamespaceExists(ctx, readToken)
	if err != nil {
		return nil, fmt.Errorf("namespace exists: %w", err)
	}
	if !exists {
		return nil, kverr.NamespaceNotFound()
	}
	entries, err := s.catalog.ListKeys(ctx, readToken, like, offset, s.limits.PageSize, s.now())
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	result := &ListResult{Keys: make([]KeyInfo, 0, len(entries))}
	for _, e := range entries {
		result.Keys = append(result.Keys, KeyInfo{
			URL:         s.keyURL(readToken, e.Key),
			Key:         e.Key,
			ContentType: e.ContentType,
			Size:        e.Size,
			CreatedAt:   e.CreatedAt,
			Expiration:  e.Expiration,
		})
	}
	return result, nil
}

// authorize validates the write token for a namespace. Missing credentials
// fail before any store access; an unknown namespace wins over a bad token.
func (s *KV) authorize(ctx context.Context, readToken, authHeader string) error {
	if strings.TrimSpace(authHeader) == "" {
		return kverr.AuthMissing()
	}
	secret, ok, err := s.catalog.LookupWriteToken(ctx, readToken)
	if err != nil {
		return fmt.Errorf("lookup write token: %w", err)
	}
	if !ok {
		return kverr.NamespaceNotFound()
	}
	if !token.Verify(token.FromAuthorization(authHeader), secret) {
		return kverr.AuthMismatch()
	}
	return nil
}

// missError disambiguates a blob miss: namespace absent beats key absent.
func (s *KV) missError(ctx context.Context, readToken string, err error) error {
	if !errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("blob get: %w", err)
	}
	exists, cerr := s.catalog.NamespaceExists(ctx, readToken)
	if cerr != nil {
		return fmt.Errorf("namespace exists: %w", cerr)
	}
	if !exists {
		return kverr.NamespaceNotFound()
	}
	return kverr.KeyNotFound()
}

// purgeExpiredAsync sweeps expired catalog rows in the namespace after a
// response is otherwise ready. Fire-and-forget: failures are logged, never
// retried, never surfaced to the caller.
func (s *KV) purgeExpiredAsync(readToken string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		removed, err := s.catalog.PurgeExpired(ctx, readToken, s.now())
		if err != nil {
			s.log.Warn("expired entry cleanup failed", "namespace", readToken, "error", err)
		} else if removed > 0 {
			s.log.Debug("purged expired entries", "namespace", readToken, "removed", removed)
		}
		if s.afterCleanup != nil {
			s.afterCleanup(readToken, removed)
		}
	}()
}

func (s *KV) keyURL(readToken, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, readToken, key)
}

func blobID(readToken, key string) string {
	return readToken + ":" + key
}
