package analyzers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"kestrel/internal/cache"
	"kestrel/internal/domain"
	"kestrel/internal/intel"
)

// ThreatIntelSource is one upstream hash reputation provider.
type ThreatIntelSource interface {
	Name() string
	Reliability() float64
	// Covers reports whether the source indexes the given file type. The
	// orchestrator skips sources whose coverage excludes the file.
	Covers(fileType domain.FileType) bool
	LookupHash(ctx context.Context, hash string) (domain.SourceVerdict, error)
}

// LocalHashAnalyzer matches a hash against the bundled known-bad and
// known-good tables. Offline.
type LocalHashAnalyzer struct {
	Tables *intel.Tables
}

func (a *LocalHashAnalyzer) Analyze(hash string) domain.MaliciousHashAnalysis {
	hash = strings.ToLower(strings.TrimSpace(hash))

	if family, found := a.Tables.MaliciousFamily(hash); found {
		return domain.MaliciousHashAnalysis{KnownMalicious: true, MalwareFamily: family}
	}
	if a.Tables.IsKnownGoodHash(hash) {
		return domain.MaliciousHashAnalysis{KnownGood: true}
	}
	return domain.MaliciousHashAnalysis{}
}

// HashReputationAnalyzer fans a hash out to every covering threat-intel
// source in parallel. Failed and rate-limited sources drop out silently; the
// scorer works with whatever verdicts arrive.
type HashReputationAnalyzer struct {
	Sources []ThreatIntelSource
	Gate    *Gate
}

func (a *HashReputationAnalyzer) Analyze(ctx context.Context, hash string, fileType domain.FileType) domain.FileReputationAnalysis {
	hash = strings.ToLower(strings.TrimSpace(hash))

	var covering []ThreatIntelSource
	for _, source := range a.Sources {
		if source.Covers(fileType) {
			covering = append(covering, source)
		}
	}

	result := domain.FileReputationAnalysis{SourcesQueried: len(covering)}
	if len(covering) == 0 {
		return result
	}

	verdicts := make([]*domain.SourceVerdict, len(covering))
	var wg sync.WaitGroup
	for i, source := range covering {
		wg.Add(1)
		go func(i int, source ThreatIntelSource) {
			defer wg.Done()
			if verdict, ok := a.lookup(ctx, source, hash); ok {
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

func (a *HashReputationAnalyzer) lookup(ctx context.Context, source ThreatIntelSource, hash string) (domain.SourceVerdict, bool) {
	key := source.Name() + ":" + hash

	payload, err := a.Gate.Do(ctx, source.Name(), cache.KindHashReputation, key, func(ctx context.Context) ([]byte, error) {
		verdict, err := source.LookupHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		return json.Marshal(verdict)
	})
	if err != nil {
		log.Debug("Hash reputation source unavailable", "source", source.Name(), "error", err)
		return domain.SourceVerdict{}, false
	}

	var verdict domain.SourceVerdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		log.Warn("Corrupt cached hash verdict", "source", source.Name(), "error", err)
		return domain.SourceVerdict{}, false
	}

	// Reliability is an engine-side weight, not a source claim; stamp the
	// configured value even on cached verdicts.
	verdict.Source = source.Name()
	verdict.Reliability = source.Reliability()
	return verdict, true
}
