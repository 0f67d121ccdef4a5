package domain

import "time"

// ScanRecord is the persisted form of a ScanResult. Persistence happens
// outside the scan hot path; the engine itself never writes these.
type ScanRecord struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Kind     string `gorm:"size:16;not null;index"`
	Target   string `gorm:"size:2048;not null"`
	Score    int    `gorm:"not null"`
	Status   string `gorm:"size:16;not null;index"`
	Metadata StringMap `gorm:"type:json"`

	Reasons []ScanReasonRecord `gorm:"foreignKey:ScanRecordID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	ScannedAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// ScanReasonRecord is one persisted scoring reason of a ScanRecord.
type ScanReasonRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ScanRecordID uint64 `gorm:"not null;index"`
	Code         string `gorm:"size:64;not null"`
	Message      string `gorm:"size:512"`
	Delta        int    `gorm:"not null"`
}

// NewScanRecord flattens a ScanResult into its persisted form.
func NewScanRecord(result ScanResult) ScanRecord {
	record := ScanRecord{
		Kind:      string(result.Target.Kind),
		Target:    result.Target.Value,
		Score:     result.Score,
		Status:    string(result.Status),
		Metadata:  StringMap(result.Metadata),
		ScannedAt: result.ScannedAt,
	}

	for _, reason := range result.Reasons {
		record.Reasons = append(record.Reasons, ScanReasonRecord{
			Code:    reason.Code,
			Message: reason.Message,
			Delta:   reason.Delta,
		})
	}

	return record
}
