package domain

import "time"

// CacheEntry is one cached lookup result. The key is namespaced by lookup
// kind ("dns:", "whois:", "reputation:", "vt:") so TTL defaults can differ
// per kind while all entries share one table.
type CacheEntry struct {
	Key          string    `gorm:"primaryKey;size:512"`
	Kind         string    `gorm:"size:32;index"`
	TargetValue  string    `gorm:"size:512"`
	Payload      []byte    `gorm:"type:bytes"`
	Confidence   float64   `gorm:"not null;default:1"`
	ExpiresAt    time.Time `gorm:"index"`
	HitCount     uint64    `gorm:"not null;default:0"`
	LastAccessed time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// Expired reports whether the entry is past its expiry at the given instant.
// Expiry is fixed at write time and never renewed on read.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
