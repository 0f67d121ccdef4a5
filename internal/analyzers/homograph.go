package analyzers

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/net/idna"

	"kestrel/internal/domain"
	"kestrel/internal/intel"
)

// Typosquat matches within this edit distance of a high-value domain, with
// the domain itself excluded.
const maxTyposquatDistance = 2

// HomographAnalyzer detects look-alike domains: internationalized names,
// mixed-script labels, confusable characters and near-miss spellings of
// high-value domains. Entirely offline.
type HomographAnalyzer struct {
	Tables *intel.Tables
}

func (a *HomographAnalyzer) Analyze(host string) domain.HomographAnalysis {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")

	result := domain.HomographAnalysis{}
	if host == "" {
		return result
	}

	unicodeForm := host
	if strings.Contains(host, "xn--") {
		result.IsIDN = true
		result.Punycode = host
		if decoded, err := idna.Lookup.ToUnicode(host); err == nil {
			unicodeForm = decoded
		}
	} else if !isASCII(host) {
		result.IsIDN = true
		if ascii, err := idna.Lookup.ToASCII(host); err == nil {
			result.Punycode = ascii
		}
	}

	result.MixedScript = hasMixedScript(unicodeForm)

	skeleton, folded := a.fold(unicodeForm)
	result.HasConfusables = folded

	// Compare the folded skeleton against the typosquat target list. An
	// exact skeleton match of a different host is the strongest signal.
	for _, target := range a.Tables.HighValueDomains() {
		if skeleton == target && unicodeForm != target {
			result.TyposquatOf = target
			result.EditDistance = 0
			return result
		}
	}

	best := maxTyposquatDistance + 1
	for _, target := range a.Tables.HighValueDomains() {
		if skeleton == target {
			continue
		}
		distance := levenshtein.ComputeDistance(skeleton, target)
		if distance > 0 && distance < best {
			best = distance
			result.TyposquatOf = target
			result.EditDistance = distance
		}
	}
	if best > maxTyposquatDistance {
		result.TyposquatOf = ""
		result.EditDistance = 0
	}

	return result
}

// fold maps every confusable rune to its ASCII look-alike and reports whether
// any rune was folded.
func (a *HomographAnalyzer) fold(host string) (string, bool) {
	var builder strings.Builder
	builder.Grow(len(host))

	folded := false
	for _, r := range host {
		if replacement, found := a.Tables.FoldConfusable(r); found {
			builder.WriteRune(replacement)
			folded = true
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String(), folded
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// hasMixedScript reports whether any single label mixes letters from more
// than one writing system, the classic homograph construction.
func hasMixedScript(host string) bool {
	for _, label := range strings.Split(host, ".") {
		var seen *unicode.RangeTable
		for _, r := range label {
			if !unicode.IsLetter(r) {
				continue
			}
			script := scriptOf(r)
			if script == nil {
				continue
			}
			if seen == nil {
				seen = script
				continue
			}
			if seen != script {
				return true
			}
		}
	}
	return false
}

func scriptOf(r rune) *unicode.RangeTable {
	for _, script := range []*unicode.RangeTable{
		unicode.Latin,
		unicode.Cyrillic,
		unicode.Greek,
		unicode.Armenian,
		unicode.Hebrew,
		unicode.Arabic,
		unicode.Han,
		unicode.Hangul,
		unicode.Hiragana,
		unicode.Katakana,
	} {
		if unicode.Is(script, r) {
			return script
		}
	}
	return nil
}
