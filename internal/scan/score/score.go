// Package score turns analysis bundles into trust scores. Calculators are
// pure: base 100, independent signed deltas per dimension, clamp after
// summation.
package score

import "kestrel/internal/domain"

// Fallback reason emitted when no dimension produced a signal; a result must
// always carry at least one reason.
const (
	CodeNoRiskFactors    = "NO_RISK_FACTORS"
	messageNoRiskFactors = "No risk factors identified"
)

// tally accumulates reasons, keeping one reason per code. The first writer
// of a code wins; dimensions are built to emit each code at most once.
type tally struct {
	reasons []domain.Reason
	seen    map[string]struct{}
}

func newTally() *tally {
	return &tally{seen: make(map[string]struct{})}
}

func (t *tally) add(code, message string, delta int) {
	if _, dup := t.seen[code]; dup {
		return
	}
	t.seen[code] = struct{}{}
	t.reasons = append(t.reasons, domain.Reason{Code: code, Message: message, Delta: delta})
}

// finalize sums the deltas, clamps into [0,100] and sorts the reasons by
// decisiveness.
func (t *tally) finalize() (int, []domain.Reason) {
	if len(t.reasons) == 0 {
		t.add(CodeNoRiskFactors, messageNoRiskFactors, 0)
	}

	total := 100
	for _, reason := range t.reasons {
		total += reason.Delta
	}

	domain.SortReasons(t.reasons)
	return domain.ClampScore(total), t.reasons
}
