package score

import (
	"fmt"

	"kestrel/internal/domain"
)

// FileHash scores a file-hash analysis bundle.
func FileHash(bundle domain.FileHashAnalysisBundle) (int, []domain.Reason) {
	t := newTally()

	local := bundle.LocalMatch
	switch {
	case local.KnownMalicious:
		message := "Hash matches a known malware sample"
		if local.MalwareFamily != "" {
			message = fmt.Sprintf("Hash matches known malware (%s)", local.MalwareFamily)
		}
		// Large enough that no combination of positive deltas survives the
		// clamp.
		t.add("KNOWN_MALICIOUS_HASH", message, -100)
	case local.KnownGood:
		t.add("KNOWN_GOOD_HASH", "Hash matches a known-good software release", 15)
	}

	scoreThreatIntel(t, bundle.Reputation)

	return t.finalize()
}

// scoreThreatIntel folds the per-source verdicts into one aggregate reason.
func scoreThreatIntel(t *tally, reputation domain.FileReputationAnalysis) {
	delta, counted := weightedVerdictAverage(reputation.Verdicts)
	if counted == 0 {
		if reputation.SourcesQueried > 0 {
			t.add("THREAT_INTEL_UNAVAILABLE", "No threat intelligence source answered", 0)
		}
		return
	}

	message := fmt.Sprintf("Aggregated verdict from %d threat intelligence source(s)", counted)
	switch {
	case delta <= -40:
		t.add("THREAT_INTEL_MALICIOUS", message, delta)
	case delta < 0:
		t.add("THREAT_INTEL_SUSPICIOUS", message, delta)
	default:
		t.add("THREAT_INTEL_CLEAN", message, delta)
	}
}
