package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"kestrel/internal/cache"
	"kestrel/internal/domain"
	"kestrel/internal/intel"
)

// ServiceReputation is the limiter bucket for domain reputation lookups.
const ServiceReputation = "reputation"

// DomainReputationSource resolves a domain to a reputation verdict. The
// bundled table source is always present; HTTP sources can be layered on.
type DomainReputationSource interface {
	Name() string
	Reliability() float64
	LookupDomain(ctx context.Context, domainName string) (domain.DomainReputationAnalysis, error)
}

// DomainReputationAnalyzer consults its sources in order and returns the
// first conclusive verdict. Results are cached under the reputation kind.
type DomainReputationAnalyzer struct {
	Sources []DomainReputationSource
	Gate    *Gate
}

func (a *DomainReputationAnalyzer) Analyze(ctx context.Context, domainName string) domain.DomainReputationAnalysis {
	payload, err := a.Gate.Do(ctx, ServiceReputation, cache.KindReputation, domainName, func(ctx context.Context) ([]byte, error) {
		result, err := a.consult(ctx, domainName)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		log.Debug("Domain reputation unavailable", "domain", domainName, "error", err)
		return domain.DomainReputationAnalysis{}
	}

	var result domain.DomainReputationAnalysis
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Warn("Corrupt cached reputation", "domain", domainName, "error", err)
		return domain.DomainReputationAnalysis{}
	}
	return result
}

// consult returns the first conclusive verdict. A domain no source could
// answer for is an error, not a cacheable unknown.
func (a *DomainReputationAnalyzer) consult(ctx context.Context, domainName string) (domain.DomainReputationAnalysis, error) {
	answered := 0
	for _, source := range a.Sources {
		verdict, err := source.LookupDomain(ctx, domainName)
		if err != nil {
			log.Debug("Reputation source failed", "source", source.Name(), "domain", domainName, "error", err)
			continue
		}
		if !verdict.Available {
			continue
		}
		answered++
		if verdict.Verdict != domain.VerdictUnknown {
			return verdict, nil
		}
	}
	if answered == 0 {
		return domain.DomainReputationAnalysis{}, fmt.Errorf("domain reputation for %s: %w", domainName, errLookupFailed)
	}
	return domain.DomainReputationAnalysis{Available: true, Verdict: domain.VerdictUnknown}, nil
}

// AnalyzeSources fans the domain out to every source in parallel and keeps
// each verdict separately, for scans that weight sources instead of taking
// the first conclusive answer. Failed sources drop out silently.
func (a *DomainReputationAnalyzer) AnalyzeSources(ctx context.Context, domainName string) domain.EmailReputationAnalysis {
	result := domain.EmailReputationAnalysis{SourcesQueried: len(a.Sources)}
	if len(a.Sources) == 0 {
		return result
	}

	verdicts := make([]*domain.SourceVerdict, len(a.Sources))
	var wg sync.WaitGroup
	for i, source := range a.Sources {
		wg.Add(1)
		go func(i int, source DomainReputationSource) {
			defer wg.Done()
			if verdict, ok := a.lookupSource(ctx, source, domainName); ok {
				verdicts[i] = &verdict
			}
		}(i, source)
	}
	wg.Wait()

	for _, verdict := range verdicts {
		if verdict != nil {
			result.Verdicts = append(result.Verdicts, *verdict)
		}
	}
	return result
}

func (a *DomainReputationAnalyzer) lookupSource(ctx context.Context, source DomainReputationSource, domainName string) (domain.SourceVerdict, bool) {
	key := source.Name() + ":" + domainName

	payload, err := a.Gate.Do(ctx, ServiceReputation, cache.KindReputation, key, func(ctx context.Context) ([]byte, error) {
		analysis, err := source.LookupDomain(ctx, domainName)
		if err != nil {
			return nil, err
		}
		if !analysis.Available {
			return nil, fmt.Errorf("%s gave no answer for %s: %w", source.Name(), domainName, errLookupFailed)
		}
		return json.Marshal(domain.SourceVerdict{
			Verdict:    analysis.Verdict,
			Confidence: analysis.Confidence,
		})
	})
	if err != nil {
		log.Debug("Reputation source unavailable", "source", source.Name(), "domain", domainName, "error", err)
		return domain.SourceVerdict{}, false
	}

	var verdict domain.SourceVerdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		log.Warn("Corrupt cached reputation verdict", "source", source.Name(), "error", err)
		return domain.SourceVerdict{}, false
	}

	// Reliability is an engine-side weight, not a source claim; stamp the
	// configured value even on cached verdicts.
	verdict.Source = source.Name()
	verdict.Reliability = source.Reliability()
	return verdict, true
}

// TableReputationSource answers from the bundled malicious-domain table.
type TableReputationSource struct {
	Tables *intel.Tables
}

func (s *TableReputationSource) Name() string { return "local-tables" }

// Reliability is high but not full: the bundled table is curated yet ages
// between releases.
func (s *TableReputationSource) Reliability() float64 { return 0.9 }

func (s *TableReputationSource) LookupDomain(_ context.Context, domainName string) (domain.DomainReputationAnalysis, error) {
	domainName = strings.ToLower(strings.TrimSpace(domainName))

	if category, found := s.Tables.MaliciousDomainCategory(domainName); found {
		return domain.DomainReputationAnalysis{
			Available:  true,
			Verdict:    domain.VerdictMalicious,
			Confidence: 0.95,
			Category:   category,
		}, nil
	}

	return domain.DomainReputationAnalysis{Available: true, Verdict: domain.VerdictUnknown}, nil
}
