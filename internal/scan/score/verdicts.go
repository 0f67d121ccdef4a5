package score

import (
	"math"

	"kestrel/internal/domain"
)

// Signed contribution of each verdict before reliability weighting.
var verdictValues = map[domain.Verdict]float64{
	domain.VerdictMalicious:  -50,
	domain.VerdictSuspicious: -25,
	domain.VerdictClean:      5,
}

// weightedVerdictAverage folds per-source verdicts into one signed delta as a
// reliability-weighted running average, accumulated source by source. Unknown
// verdicts carry no information and drop out; counted reports how many
// sources contributed.
func weightedVerdictAverage(verdicts []domain.SourceVerdict) (delta int, counted int) {
	var average, totalWeight float64

	for _, verdict := range verdicts {
		value, scored := verdictValues[verdict.Verdict]
		if !scored {
			continue
		}

		confidence := verdict.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 1
		}
		weight := verdict.Reliability
		if weight <= 0 || weight > 1 {
			weight = 0.5
		}

		average = (average*totalWeight + value*confidence*weight) / (totalWeight + weight)
		totalWeight += weight
		counted++
	}

	return int(math.Round(average)), counted
}
