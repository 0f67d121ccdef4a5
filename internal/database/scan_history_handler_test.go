package database

import (
	"context"
	"testing"
	"time"

	"kestrel/internal/domain"
)

func TestSaveAndQueryScanHistory(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	result := domain.ScanResult{
		Target: domain.URLTarget("https://example.com"),
		Score:  88,
		Status: domain.StatusSafe,
		Reasons: []domain.Reason{
			{Code: "TLS_VALID", Message: "Valid TLS certificate", Delta: 25},
			{Code: "HTTPS_USED", Message: "Served over HTTPS", Delta: 15},
		},
		Metadata:  map[string]string{"domain": "example.com"},
		ScannedAt: time.Now().UTC(),
	}

	if err := SaveScanResult(ctx, result); err != nil {
		t.Fatalf("SaveScanResult returned error: %v", err)
	}

	records, err := RecentScans(ctx, 10)
	if err != nil {
		t.Fatalf("RecentScans returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("RecentScans returned %d records, want 1", len(records))
	}

	record := records[0]
	if record.Target != "https://example.com" || record.Score != 88 || record.Status != "SAFE" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if len(record.Reasons) != 2 {
		t.Fatalf("record has %d reasons, want 2", len(record.Reasons))
	}
	if record.Metadata["domain"] != "example.com" {
		t.Fatalf("metadata = %+v", record.Metadata)
	}

	byTarget, err := ScansForTarget(ctx, "https://example.com", 5)
	if err != nil {
		t.Fatalf("ScansForTarget returned error: %v", err)
	}
	if len(byTarget) != 1 {
		t.Fatalf("ScansForTarget returned %d records, want 1", len(byTarget))
	}
}

func TestPruneScanHistory(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	old := domain.ScanResult{
		Target:    domain.EmailTarget("user@example.com"),
		Score:     70,
		Status:    domain.StatusCaution,
		Reasons:   []domain.Reason{{Code: "MX_PRESENT", Delta: 15}},
		ScannedAt: time.Now().Add(-48 * time.Hour).UTC(),
	}
	fresh := old
	fresh.ScannedAt = time.Now().UTC()

	if err := SaveScanResult(ctx, old); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := SaveScanResult(ctx, fresh); err != nil {
		t.Fatalf("save fresh: %v", err)
	}

	removed, err := PruneScanHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneScanHistory returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d records, want 1", removed)
	}

	records, err := RecentScans(ctx, 10)
	if err != nil {
		t.Fatalf("RecentScans returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("%d records remain, want 1", len(records))
	}
}
