package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"kestrel/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.CacheEntry{},
		&domain.ScanRecord{},
		&domain.ScanReasonRecord{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	DB = db

	t.Cleanup(func() {
		DB = nil
	})

	return db
}

func TestCacheStoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewCacheStore(db)
	ctx := context.Background()

	entry := domain.CacheEntry{
		Key:          "whois:example.com",
		Kind:         "whois",
		TargetValue:  "example.com",
		Payload:      []byte(`{"age_days":3650}`),
		Confidence:   1,
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
		LastAccessed: time.Now().UTC(),
	}

	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	// Second upsert on the same key must update, not duplicate.
	entry.HitCount = 3
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("second Upsert returned error: %v", err)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("LoadAll returned %d entries, want 1", len(loaded))
	}
	if loaded[0].HitCount != 3 {
		t.Fatalf("HitCount = %d, want 3", loaded[0].HitCount)
	}
	if string(loaded[0].Payload) != `{"age_days":3650}` {
		t.Fatalf("payload = %s", loaded[0].Payload)
	}
}

func TestCacheStoreDeleteAndClear(t *testing.T) {
	db := setupTestDB(t)
	store := NewCacheStore(db)
	ctx := context.Background()

	for _, key := range []string{"dns:a.com", "dns:b.com", "dns:c.com"} {
		if err := store.Upsert(ctx, domain.CacheEntry{Key: key, Kind: "dns"}); err != nil {
			t.Fatalf("Upsert(%s) returned error: %v", key, err)
		}
	}

	if err := store.Delete(ctx, []string{"dns:a.com", "dns:b.com"}); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Key != "dns:c.com" {
		t.Fatalf("unexpected entries after delete: %+v", loaded)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	loaded, err = store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty table after clear, got %d entries", len(loaded))
	}
}
