package database

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/domain"
)

const (
	historyRetryAttempts = 3
	historyRetryBackoff  = 200 * time.Millisecond
)

// SaveScanResult persists a finished scan with bounded retries. This runs
// outside the scan hot path; a final failure is logged and returned, never
// propagated into the scan itself.
func SaveScanResult(ctx context.Context, result domain.ScanResult) error {
	record := domain.NewScanRecord(result)

	var lastErr error
	for attempt := 1; attempt <= historyRetryAttempts; attempt++ {
		lastErr = DB.WithContext(ctx).Create(&record).Error
		if lastErr == nil {
			return nil
		}

		log.Warn("Scan history write failed",
			"attempt", attempt,
			"target", result.Target.Value,
			"error", lastErr,
		)

		if attempt < historyRetryAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * historyRetryBackoff):
			}
		}
	}

	return fmt.Errorf("save scan result after %d attempts: %w", historyRetryAttempts, lastErr)
}

// RecentScans returns the newest persisted scans, reasons included.
func RecentScans(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []domain.ScanRecord
	err := DB.WithContext(ctx).
		Preload("Reasons").
		Order("scanned_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list recent scans: %w", err)
	}
	return records, nil
}

// ScansForTarget returns the scan history of one target value, newest first.
func ScansForTarget(ctx context.Context, target string, limit int) ([]domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []domain.ScanRecord
	err := DB.WithContext(ctx).
		Preload("Reasons").
		Where("target = ?", target).
		Order("scanned_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list scans for target: %w", err)
	}
	return records, nil
}

// PruneScanHistory deletes records older than the retention window and
// reports how many were removed.
func PruneScanHistory(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	result := DB.WithContext(ctx).
		Where("scanned_at < ?", cutoff).
		Delete(&domain.ScanRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune scan history: %w", result.Error)
	}
	return result.RowsAffected, nil
}
