package domain

import (
	"sort"
	"time"
)

// Status classifies a score into the three user-facing buckets.
type Status string

const (
	StatusSafe    Status = "SAFE"
	StatusCaution Status = "CAUTION"
	StatusRisk    Status = "RISK"
)

const (
	SafeThreshold    = 85
	CautionThreshold = 60
)

// ClassifyScore derives the status from a score. Status is never stored
// independently of the score it was derived from.
func ClassifyScore(score int) Status {
	switch {
	case score >= SafeThreshold:
		return StatusSafe
	case score >= CautionThreshold:
		return StatusCaution
	default:
		return StatusRisk
	}
}

// Reason is one named, signed scoring contribution. Code is a stable machine
// identifier; Delta is the raw contribution before the final clamp.
type Reason struct {
	Code    string
	Message string
	Delta   int
}

// ScanResult is the single output of a scan, created once and immutable
// thereafter. Reasons are ordered by absolute delta descending.
type ScanResult struct {
	Target    CheckTarget
	Score     int
	Status    Status
	Reasons   []Reason
	Metadata  map[string]string
	ScannedAt time.Time
}

// ClampScore bounds a summed score to the valid [0,100] range. Deltas are
// summed before clamping so a catastrophic penalty cannot be absorbed by
// unrelated positive contributions.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SortReasons orders reasons by |delta| descending so the most decisive
// factors surface first. Ties keep a stable code ordering.
func SortReasons(reasons []Reason) {
	sort.SliceStable(reasons, func(i, j int) bool {
		a, b := abs(reasons[i].Delta), abs(reasons[j].Delta)
		if a == b {
			return reasons[i].Code < reasons[j].Code
		}
		return a > b
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
