package analyzers

import (
	"context"
	"errors"
	"testing"

	"kestrel/internal/cache"
	"kestrel/internal/domain"
)

type fakeReputationSource struct {
	name        string
	reliability float64
	verdict     domain.DomainReputationAnalysis
	err         error
	calls       int
}

func (s *fakeReputationSource) Name() string { return s.name }

func (s *fakeReputationSource) Reliability() float64 {
	if s.reliability > 0 {
		return s.reliability
	}
	return 0.8
}

func (s *fakeReputationSource) LookupDomain(_ context.Context, _ string) (domain.DomainReputationAnalysis, error) {
	s.calls++
	if s.err != nil {
		return domain.DomainReputationAnalysis{}, s.err
	}
	return s.verdict, nil
}

func TestTableReputationSource(t *testing.T) {
	source := &TableReputationSource{Tables: loadTestTables(t)}

	verdict, err := source.LookupDomain(context.Background(), "phishing-login.example")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if verdict.Verdict != domain.VerdictMalicious || verdict.Category != "phishing" {
		t.Fatalf("listed domain misclassified: %+v", verdict)
	}

	verdict, err = source.LookupDomain(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if verdict.Verdict != domain.VerdictUnknown {
		t.Fatalf("unlisted domain should be unknown, got %+v", verdict)
	}
}

func TestDomainReputationFirstConclusiveSourceWins(t *testing.T) {
	inconclusive := &fakeReputationSource{
		name:    "first",
		verdict: domain.DomainReputationAnalysis{Available: true, Verdict: domain.VerdictUnknown},
	}
	conclusive := &fakeReputationSource{
		name: "second",
		verdict: domain.DomainReputationAnalysis{
			Available:  true,
			Verdict:    domain.VerdictSuspicious,
			Confidence: 0.6,
		},
	}

	analyzer := &DomainReputationAnalyzer{
		Sources: []DomainReputationSource{inconclusive, conclusive},
		Gate:    newTestGate(nil),
	}

	result := analyzer.Analyze(context.Background(), "shady.example")
	if result.Verdict != domain.VerdictSuspicious {
		t.Fatalf("expected the conclusive verdict, got %+v", result)
	}
	if inconclusive.calls != 1 || conclusive.calls != 1 {
		t.Fatalf("both sources should be consulted once: %d, %d", inconclusive.calls, conclusive.calls)
	}
}

func TestDomainReputationAllSourcesFailingIsNotCached(t *testing.T) {
	broken := &fakeReputationSource{name: "flaky", err: errors.New("upstream down")}

	// No limiter, so the retry is not masked by backoff.
	analyzer := &DomainReputationAnalyzer{
		Sources: []DomainReputationSource{broken},
		Gate:    &Gate{Cache: cache.New(cache.Options{})},
	}

	if result := analyzer.Analyze(context.Background(), "example.com"); result.Available {
		t.Fatalf("no source answering should be unavailable, got %+v", result)
	}

	// The source recovers; the earlier outage must not answer from cache.
	broken.err = nil
	broken.verdict = domain.DomainReputationAnalysis{Available: true, Verdict: domain.VerdictClean}
	result := analyzer.Analyze(context.Background(), "example.com")
	if !result.Available || result.Verdict != domain.VerdictClean {
		t.Fatalf("recovered source should answer, got %+v", result)
	}
}

func TestAnalyzeSourcesKeepsVerdictsSeparate(t *testing.T) {
	malicious := &fakeReputationSource{
		name:        "feed-a",
		reliability: 0.9,
		verdict: domain.DomainReputationAnalysis{
			Available:  true,
			Verdict:    domain.VerdictMalicious,
			Confidence: 0.8,
		},
	}
	unknown := &fakeReputationSource{
		name:    "feed-b",
		verdict: domain.DomainReputationAnalysis{Available: true, Verdict: domain.VerdictUnknown},
	}
	broken := &fakeReputationSource{name: "feed-c", err: errors.New("upstream down")}

	analyzer := &DomainReputationAnalyzer{
		Sources: []DomainReputationSource{malicious, unknown, broken},
		Gate:    &Gate{Cache: cache.New(cache.Options{})},
	}

	result := analyzer.AnalyzeSources(context.Background(), "shady.example")

	if result.SourcesQueried != 3 {
		t.Fatalf("SourcesQueried = %d, want 3", result.SourcesQueried)
	}
	if len(result.Verdicts) != 2 {
		t.Fatalf("failed source should drop out, got %+v", result.Verdicts)
	}

	byName := make(map[string]domain.SourceVerdict, len(result.Verdicts))
	for _, verdict := range result.Verdicts {
		byName[verdict.Source] = verdict
	}
	got, found := byName["feed-a"]
	if !found {
		t.Fatalf("feed-a verdict missing: %+v", byName)
	}
	if got.Verdict != domain.VerdictMalicious || got.Confidence != 0.8 || got.Reliability != 0.9 {
		t.Fatalf("feed-a verdict not carried with its weight: %+v", got)
	}
	if byName["feed-b"].Verdict != domain.VerdictUnknown {
		t.Fatalf("feed-b should report unknown: %+v", byName["feed-b"])
	}
}

func TestAnalyzeSourcesCachesPerSource(t *testing.T) {
	source := &fakeReputationSource{
		name:    "counted",
		verdict: domain.DomainReputationAnalysis{Available: true, Verdict: domain.VerdictClean},
	}

	analyzer := &DomainReputationAnalyzer{
		Sources: []DomainReputationSource{source},
		Gate:    newTestGate(nil),
	}

	analyzer.AnalyzeSources(context.Background(), "example.com")
	analyzer.AnalyzeSources(context.Background(), "example.com")

	if source.calls != 1 {
		t.Fatalf("expected one upstream consult, got %d", source.calls)
	}
}

func TestDomainReputationCached(t *testing.T) {
	source := &fakeReputationSource{
		name: "counted",
		verdict: domain.DomainReputationAnalysis{
			Available: true,
			Verdict:   domain.VerdictClean,
		},
	}

	analyzer := &DomainReputationAnalyzer{
		Sources: []DomainReputationSource{source},
		Gate:    newTestGate(nil),
	}

	analyzer.Analyze(context.Background(), "example.com")
	analyzer.Analyze(context.Background(), "example.com")

	if source.calls != 1 {
		t.Fatalf("expected one upstream consult, got %d", source.calls)
	}
}
