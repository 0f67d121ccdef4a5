package score

import (
	"testing"
	"time"

	"kestrel/internal/domain"
)

func findReason(reasons []domain.Reason, code string) (domain.Reason, bool) {
	for _, reason := range reasons {
		if reason.Code == code {
			return reason, true
		}
	}
	return domain.Reason{}, false
}

func assertUniqueCodes(t *testing.T, reasons []domain.Reason) {
	t.Helper()
	seen := make(map[string]struct{}, len(reasons))
	for _, reason := range reasons {
		if _, dup := seen[reason.Code]; dup {
			t.Fatalf("duplicate reason code %q", reason.Code)
		}
		seen[reason.Code] = struct{}{}
	}
}

func assertSortedByMagnitude(t *testing.T, reasons []domain.Reason) {
	t.Helper()
	for i := 1; i < len(reasons); i++ {
		prev, curr := reasons[i-1].Delta, reasons[i].Delta
		if abs(prev) < abs(curr) {
			t.Fatalf("reasons not sorted by |delta|: %d before %d", prev, curr)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func healthyURLBundle() domain.URLAnalysisBundle {
	registered := time.Now().AddDate(-10, 0, 0)
	return domain.URLAnalysisBundle{
		Domain: "google.com",
		DNS: domain.DNSRecordAnalysis{
			Available: true,
			ARecords:  []string{"142.250.185.78"},
		},
		Whois: domain.WhoisDomainAnalysis{
			Available:    true,
			RegisteredAt: &registered,
			AgeDays:      3650,
		},
		TLS: domain.TLSCertificateAnalysis{
			Available:           true,
			HTTPSAvailable:      true,
			HasValidCertificate: true,
			Issuer:              "GTS CA 1C3",
		},
		Heuristics: domain.URLHeuristicsAnalysis{UsesHTTPS: true, SubdomainDepth: 1},
		Reputation: domain.DomainReputationAnalysis{Available: true, Verdict: domain.VerdictClean},
	}
}

func TestURLHealthyBundleScoresSafe(t *testing.T) {
	scoreValue, reasons := URL(healthyURLBundle())

	if scoreValue < domain.SafeThreshold {
		t.Fatalf("healthy bundle should be SAFE, got %d", scoreValue)
	}
	if _, found := findReason(reasons, "HTTPS_USED"); !found {
		t.Fatal("HTTPS reason missing")
	}
	if _, found := findReason(reasons, "VALID_TLS_CERTIFICATE"); !found {
		t.Fatal("TLS reason missing")
	}
	assertUniqueCodes(t, reasons)
	assertSortedByMagnitude(t, reasons)
}

func TestURLShortenerWithoutHTTPSScoresLower(t *testing.T) {
	shortener := domain.URLAnalysisBundle{
		Domain:     "bit.ly",
		DNS:        domain.DNSRecordAnalysis{Available: true, ARecords: []string{"67.199.248.11"}},
		Heuristics: domain.URLHeuristicsAnalysis{IsShortener: true},
	}

	shortScore, shortReasons := URL(shortener)
	healthyScore, _ := URL(healthyURLBundle())

	if shortScore >= healthyScore {
		t.Fatalf("shortener (%d) should score below a healthy domain (%d)", shortScore, healthyScore)
	}
	if _, found := findReason(shortReasons, "URL_SHORTENER"); !found {
		t.Fatal("shortener penalty missing")
	}
	if reason, found := findReason(shortReasons, "NO_HTTPS"); !found || reason.Delta != -15 {
		t.Fatalf("missing-HTTPS penalty wrong: %+v", shortReasons)
	}
}

func TestURLMaliciousReputationDominates(t *testing.T) {
	bundle := healthyURLBundle()
	bundle.Reputation = domain.DomainReputationAnalysis{
		Available: true,
		Verdict:   domain.VerdictMalicious,
		Category:  "phishing",
	}

	scoreValue, reasons := URL(bundle)

	reason, found := findReason(reasons, "MALICIOUS_DOMAIN")
	if !found || reason.Delta != -50 {
		t.Fatalf("malicious reputation penalty missing: %+v", reasons)
	}
	if reasons[0].Code != "MALICIOUS_DOMAIN" {
		t.Fatalf("most decisive factor should sort first, got %q", reasons[0].Code)
	}
	if scoreValue >= domain.SafeThreshold {
		t.Fatalf("malicious domain should not score SAFE, got %d", scoreValue)
	}
}

func TestURLDomainAgeTiers(t *testing.T) {
	cases := []struct {
		ageDays int
		code    string
		delta   int
	}{
		{1000, "DOMAIN_WELL_ESTABLISHED", 15},
		{500, "DOMAIN_ESTABLISHED", 10},
		{120, "DOMAIN_AGE_MODERATE", 5},
		{45, "DOMAIN_RECENTLY_REGISTERED", -5},
		{10, "DOMAIN_VERY_NEW", -10},
	}

	for _, c := range cases {
		bundle := domain.URLAnalysisBundle{
			Whois: domain.WhoisDomainAnalysis{Available: true, AgeDays: c.ageDays},
		}
		_, reasons := URL(bundle)
		reason, found := findReason(reasons, c.code)
		if !found {
			t.Fatalf("age %d: reason %s missing from %+v", c.ageDays, c.code, reasons)
		}
		if reason.Delta != c.delta {
			t.Fatalf("age %d: delta %d, want %d", c.ageDays, reason.Delta, c.delta)
		}
	}
}

func TestURLTyposquatPenalty(t *testing.T) {
	bundle := domain.URLAnalysisBundle{
		Homograph: domain.HomographAnalysis{TyposquatOf: "paypal.com", EditDistance: 0, HasConfusables: true},
	}

	_, reasons := URL(bundle)
	reason, found := findReason(reasons, "TYPOSQUAT_SUSPECTED")
	if !found || reason.Delta != -30 {
		t.Fatalf("exact skeleton match should cost -30: %+v", reasons)
	}
	assertUniqueCodes(t, reasons)
}

func TestURLUnavailableDimensionsStayNeutral(t *testing.T) {
	// Nothing but a bare heuristics result: DNS, WHOIS, TLS and reputation
	// all unavailable must not add penalties.
	bundle := domain.URLAnalysisBundle{
		Heuristics: domain.URLHeuristicsAnalysis{UsesHTTPS: true},
	}

	scoreValue, reasons := URL(bundle)
	if scoreValue != 100 {
		t.Fatalf("only a +15 HTTPS delta applies, clamped to 100, got %d", scoreValue)
	}
	for _, code := range []string{"DNS_NO_RECORDS", "DOMAIN_VERY_NEW", "INVALID_TLS_CERTIFICATE"} {
		if _, found := findReason(reasons, code); found {
			t.Fatalf("unavailable dimension produced %s", code)
		}
	}
}

func TestURLZeroDeltaReasonNeverChangesScore(t *testing.T) {
	bundle := healthyURLBundle()
	baseScore, _ := URL(bundle)

	withExtra, reasons := URL(bundle)
	reasons = append(reasons, domain.Reason{Code: "NEUTRAL_NOTE", Message: "n/a", Delta: 0})

	total := 100
	for _, reason := range reasons {
		total += reason.Delta
	}
	if domain.ClampScore(total) != withExtra || withExtra != baseScore {
		t.Fatalf("zero-delta reason changed the score: %d vs %d", withExtra, baseScore)
	}
}
