package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedNamespace(t *testing.T, c *Memory, readToken string) {
	t.Helper()
	inserted, err := c.InsertNamespace(context.Background(), Namespace{
		ReadToken:  readToken,
		WriteToken: "secret-" + readToken,
		Origin:     "192.0.2.1",
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("InsertNamespace %+v", err)
	}
	if !inserted {
		t.Fatalf("namespace %q already present", readToken)
	}
}

func TestInsertNamespaceConflict(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	seedNamespace(t, c, "ns1")

	inserted, err := c.InsertNamespace(ctx, Namespace{ReadToken: "ns1", WriteToken: "other"})
	if err != nil {
		t.Fatalf("InsertNamespace %+v", err)
	}
	if inserted {
		t.Error("conflicting insert should not land a row")
	}

	// The original write token survives.
	secret, ok, err := c.LookupWriteToken(ctx, "ns1")
	if err != nil || !ok {
		t.Fatalf("LookupWriteToken ok=%v err=%v", ok, err)
	}
	if secret != "secret-ns1" {
		t.Errorf("write token overwritten: %q", secret)
	}
}

func TestLookupAbsent(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	if _, ok, err := c.LookupWriteToken(ctx, "missing"); err != nil || ok {
		t.Errorf("lookup of missing namespace: ok=%v err=%v", ok, err)
	}
	exists, err := c.NamespaceExists(ctx, "missing")
	if err != nil || exists {
		t.Errorf("missing namespace should not exist: %v %v", exists, err)
	}
}

func TestLiveSizeExcludesExpiredAndOverwritten(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	seedNamespace(t, c, "ns1")
	now := time.Now()

	entries := []KeyEntry{
		{NamespaceRef: "ns1", Key: "a", Size: 100, CreatedAt: now, Expiration: now.Add(time.Hour)},
		{NamespaceRef: "ns1", Key: "b", Size: 30, CreatedAt: now, Expiration: now.Add(time.Hour)},
		{NamespaceRef: "ns1", Key: "expired", Size: 1000, CreatedAt: now.Add(-2 * time.Hour), Expiration: now.Add(-time.Hour)},
	}
	for _, e := range entries {
		if err := c.UpsertKey(ctx, e); err != nil {
			t.Fatalf("UpsertKey %+v", err)
		}
	}

	size, err := c.LiveSize(ctx, "ns1", "", now)
	if err != nil {
		t.Fatalf("LiveSize %+v", err)
	}
	if size != 130 {
		t.Errorf("live size should exclude expired rows: got %d, want 130", size)
	}

	size, err = c.LiveSize(ctx, "ns1", "a", now)
	if err != nil {
		t.Fatalf("LiveSize %+v", err)
	}
	if size != 30 {
		t.Errorf("live size should exclude the overwritten key: got %d, want 30", size)
	}
}

func TestCreationCounts(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Now()

	for i := 0; i < 5; i++ {
		origin := "10.0.0.1"
		if i >= 3 {
			origin = "10.0.0.2"
		}
		createdAt := now
		if i == 4 {
			createdAt = now.Add(-48 * time.Hour) // outside the window
		}
		_, err := c.InsertNamespace(ctx, Namespace{
			ReadToken: fmt.Sprintf("ns%d", i),
			Origin:    origin,
			CreatedAt: createdAt,
		})
		if err != nil {
			t.Fatalf("InsertNamespace %+v", err)
		}
	}

	global, byOrigin, err := c.CreationCounts(ctx, "10.0.0.1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CreationCounts %+v", err)
	}
	if global != 4 {
		t.Errorf("global count should exclude old rows: got %d, want 4", global)
	}
	if byOrigin != 3 {
		t.Errorf("origin count wrong: got %d, want 3", byOrigin)
	}
}

func TestListKeysLikeAndOffset(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	seedNamespace(t, c, "ns1")
	now := time.Now()

	keys := []string{"alpha.json", "beta.json", "alpha.txt", "gamma"}
	for i, key := range keys {
		err := c.UpsertKey(ctx, KeyEntry{
			NamespaceRef: "ns1",
			Key:          key,
			Size:         1,
			CreatedAt:    now.Add(time.Duration(i) * time.Second),
			Expiration:   now.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("UpsertKey %+v", err)
		}
	}
	// Expired entries never appear.
	err := c.UpsertKey(ctx, KeyEntry{
		NamespaceRef: "ns1", Key: "alpha.old", Size: 1,
		CreatedAt: now.Add(-2 * time.Hour), Expiration: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("UpsertKey %+v", err)
	}

	cases := []struct {
		like string
		want []string
	}{
		{"", []string{"alpha.json", "beta.json", "alpha.txt", "gamma"}},
		{"%alpha%", []string{"alpha.json", "alpha.txt"}},
		{"alpha%", []string{"alpha.json", "alpha.txt"}},
		{"%.json", []string{"alpha.json", "beta.json"}},
		{"gamm_", []string{"gamma"}},
		{"%nomatch%", nil},
		{`%\.json`, []string{"alpha.json", "beta.json"}},
	}
	for _, tc := range cases {
		entries, err := c.ListKeys(ctx, "ns1", tc.like, 0, 1000, now)
		if err != nil {
			t.Fatalf("ListKeys(%q) %+v", tc.like, err)
		}
		var got []string
		for _, e := range entries {
			got = append(got, e.Key)
		}
		if fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Errorf("ListKeys(%q) = %v, want %v", tc.like, got, tc.want)
		}
	}

	// Offset skips rows in created_at order.
	entries, err := c.ListKeys(ctx, "ns1", "", 2, 1000, now)
	if err != nil {
		t.Fatalf("ListKeys offset %+v", err)
	}
	if len(entries) != 2 || entries[0].Key != "alpha.txt" {
		t.Errorf("offset listing wrong: %+v", entries)
	}

	// Page size is capped.
	entries, err = c.ListKeys(ctx, "ns1", "", 0, 2, now)
	if err != nil {
		t.Fatalf("ListKeys limit %+v", err)
	}
	if len(entries) != 2 {
		t.Errorf("limit not applied: got %d entries", len(entries))
	}
}

func TestUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	seedNamespace(t, c, "ns1")
	now := time.Now()

	for i := 0; i < 3; i++ {
		err := c.UpsertKey(ctx, KeyEntry{
			NamespaceRef: "ns1", Key: "k", ContentType: "text/plain",
			Size: int64(10 * (i + 1)), CreatedAt: now, Expiration: now.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("UpsertKey %+v", err)
		}
	}
	entries, err := c.ListKeys(ctx, "ns1", "", 0, 1000, now)
	if err != nil {
		t.Fatalf("ListKeys %+v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("repeated upserts should keep one row, got %d", len(entries))
	}
	if entries[0].Size != 30 {
		t.Errorf("upsert should replace size: got %d", entries[0].Size)
	}
}

func TestDeleteKeyAndPurge(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	seedNamespace(t, c, "ns1")
	now := time.Now()

	err := c.UpsertKey(ctx, KeyEntry{
		NamespaceRef: "ns1", Key: "k", Size: 1, CreatedAt: now, Expiration: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("UpsertKey %+v", err)
	}

	removed, err := c.DeleteKey(ctx, "ns1", "k")
	if err != nil || !removed {
		t.Fatalf("DeleteKey removed=%v err=%v", removed, err)
	}
	removed, err = c.DeleteKey(ctx, "ns1", "k")
	if err != nil {
		t.Fatalf("DeleteKey %+v", err)
	}
	if removed {
		t.Error("second delete should affect zero rows")
	}

	for i := 0; i < 3; i++ {
		err := c.UpsertKey(ctx, KeyEntry{
			NamespaceRef: "ns1", Key: fmt.Sprintf("old%d", i), Size: 1,
			CreatedAt: now.Add(-2 * time.Hour), Expiration: now.Add(-time.Hour),
		})
		if err != nil {
			t.Fatalf("UpsertKey %+v", err)
		}
	}
	purged, err := c.PurgeExpired(ctx, "ns1", now)
	if err != nil {
		t.Fatalf("PurgeExpired %+v", err)
	}
	if purged != 3 {
		t.Errorf("purge should remove 3 rows, got %d", purged)
	}
}
