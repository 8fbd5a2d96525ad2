package catalog

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Store for tests and local development. It mirrors
// the Postgres implementation's semantics, including LIKE pattern matching.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]Namespace
	entries    map[string]map[string]KeyEntry // read token -> key -> entry
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		namespaces: make(map[string]Namespace),
		entries:    make(map[string]map[string]KeyEntry),
	}
}

func (c *Memory) Ping(_ context.Context) error {
	return nil
}

func (c *Memory) InsertNamespace(_ context.Context, ns Namespace) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.namespaces[ns.ReadToken]; exists {
		return false, nil
	}
	c.namespaces[ns.ReadToken] = ns
	return true, nil
}

func (c *Memory) LookupWriteToken(_ context.Context, readToken string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ns, ok := c.namespaces[readToken]
	if !ok {
		return "", false, nil
	}
	return ns.WriteToken, true, nil
}

func (c *Memory) NamespaceExists(_ context.Context, readToken string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.namespaces[readToken]
	return ok, nil
}

func (c *Memory) LiveSize(_ context.Context, readToken, excludingKey string, now time.Time) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for key, e := range c.entries[readToken] {
		if key == excludingKey || !e.Expiration.After(now) {
			continue
		}
		total += e.Size
	}
	return total, nil
}

func (c *Memory) CreationCounts(_ context.Context, origin string, since time.Time) (int, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var global, byOrigin int
	for _, ns := range c.namespaces {
		if !ns.CreatedAt.After(since) {
			continue
		}
		global++
		if ns.Origin == origin {
			byOrigin++
		}
	}
	return global, byOrigin, nil
}

func (c *Memory) UpsertKey(_ context.Context, e KeyEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[e.NamespaceRef]
	if !ok {
		m = make(map[string]KeyEntry)
		c.entries[e.NamespaceRef] = m
	}
	m[e.Key] = e
	return nil
}

func (c *Memory) DeleteKey(_ context.Context, readToken, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.entries[readToken]
	if _, ok := m[key]; !ok {
		return false, nil
	}
	delete(m, key)
	return true, nil
}

func (c *Memory) ListKeys(_ context.Context, readToken, like string, offset, limit int, now time.Time) ([]KeyEntry, error) {
	match, err := likeMatcher(like)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	var entries []KeyEntry
	for _, e := range c.entries[readToken] {
		if !e.Expiration.After(now) || !match(e.Key) {
			continue
		}
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *Memory) PurgeExpired(_ context.Context, readToken string, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int64
	for key, e := range c.entries[readToken] {
		if !e.Expiration.After(now) {
			delete(c.entries[readToken], key)
			removed++
		}
	}
	return removed, nil
}

// likeMatcher compiles a SQL LIKE pattern (% = any run, _ = one character,
// backslash escapes) into a match function. An empty pattern matches all.
func likeMatcher(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}
	var b strings.Builder
	b.WriteString("(?s)^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return re.MatchString, nil
}
