package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kestrel/internal/domain"
)

// CacheStore implements the result cache's persistence interface on the
// shared cache_entries table.
type CacheStore struct {
	db *gorm.DB
}

// NewCacheStore binds a store to a connection. A nil db falls back to the
// package-level connection configured by SetupDB.
func NewCacheStore(db *gorm.DB) *CacheStore {
	if db == nil {
		db = DB
	}
	return &CacheStore{db: db}
}

func (s *CacheStore) LoadAll(ctx context.Context) ([]domain.CacheEntry, error) {
	var entries []domain.CacheEntry
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	return entries, nil
}

func (s *CacheStore) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kind", "target_value", "payload", "confidence",
				"expires_at", "hit_count", "last_accessed",
			}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upsert cache entry %q: %w", entry.Key, err)
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&domain.CacheEntry{}).Error; err != nil {
		return fmt.Errorf("delete cache entries: %w", err)
	}
	return nil
}

func (s *CacheStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&domain.CacheEntry{}).Error; err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	return nil
}
