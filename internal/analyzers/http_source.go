package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"kestrel/internal/config"
	"kestrel/internal/domain"
)

const maxIntelResponse = 1 << 20

// HTTPHashSource queries a JSON hash reputation API. The URL comes from the
// source catalog with {hash} substituted; the API key is read from the
// configured environment variable at request time.
type HTTPHashSource struct {
	name        string
	url         string
	apiKeyEnv   string
	reliability float64
	coverage    map[domain.FileType]struct{}
	client      *http.Client
}

// NewHTTPHashSource builds a source from its catalog entry. Returns an error
// when the entry cannot produce requests (no URL).
func NewHTTPHashSource(cfg config.ThreatSourceConfig, timeout time.Duration) (*HTTPHashSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("threat source %q has no URL", cfg.Name)
	}

	reliability := cfg.Reliability
	if reliability <= 0 || reliability > 1 {
		reliability = 0.5
	}

	coverage := make(map[domain.FileType]struct{}, len(cfg.Coverage))
	for _, fileType := range cfg.Coverage {
		coverage[domain.FileType(strings.ToLower(fileType))] = struct{}{}
	}

	return &HTTPHashSource{
		name:        cfg.Name,
		url:         cfg.URL,
		apiKeyEnv:   cfg.APIKeyEnv,
		reliability: reliability,
		coverage:    coverage,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPHashSource) Name() string { return s.name }

func (s *HTTPHashSource) Reliability() float64 { return s.reliability }

func (s *HTTPHashSource) Covers(fileType domain.FileType) bool {
	if len(s.coverage) == 0 {
		return true
	}
	if _, found := s.coverage[domain.FileTypeAny]; found {
		return true
	}
	_, found := s.coverage[fileType]
	return found
}

// sourceResponse is the wire shape of a reputation answer. Sources that
// report scanner counts instead of a verdict use positives/total.
type sourceResponse struct {
	Verdict    string   `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Detections []string `json:"detections"`
	Positives  int      `json:"positives"`
	Total      int      `json:"total"`
}

func (s *HTTPHashSource) LookupHash(ctx context.Context, hash string) (domain.SourceVerdict, error) {
	url := strings.ReplaceAll(s.url, "{hash}", hash)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.SourceVerdict{}, err
	}
	request.Header.Set("Accept", "application/json")
	if s.apiKeyEnv != "" {
		if key := os.Getenv(s.apiKeyEnv); key != "" {
			request.Header.Set("x-apikey", key)
		}
	}

	response, err := s.client.Do(request)
	if err != nil {
		return domain.SourceVerdict{}, fmt.Errorf("%s: %w", s.name, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		// Unindexed hash, a valid answer.
		return domain.SourceVerdict{Source: s.name, Verdict: domain.VerdictUnknown}, nil
	}
	if response.StatusCode != http.StatusOK {
		return domain.SourceVerdict{}, fmt.Errorf("%s: unexpected status %d", s.name, response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxIntelResponse))
	if err != nil {
		return domain.SourceVerdict{}, fmt.Errorf("%s: read body: %w", s.name, err)
	}

	var parsed sourceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.SourceVerdict{}, fmt.Errorf("%s: decode body: %w", s.name, err)
	}

	return s.toVerdict(parsed), nil
}

func (s *HTTPHashSource) toVerdict(parsed sourceResponse) domain.SourceVerdict {
	verdict := domain.SourceVerdict{
		Source:      s.name,
		Confidence:  parsed.Confidence,
		Detections:  parsed.Detections,
		Reliability: s.reliability,
	}

	switch strings.ToLower(parsed.Verdict) {
	case string(domain.VerdictMalicious):
		verdict.Verdict = domain.VerdictMalicious
	case string(domain.VerdictSuspicious):
		verdict.Verdict = domain.VerdictSuspicious
	case string(domain.VerdictClean):
		verdict.Verdict = domain.VerdictClean
	case "":
		verdict.Verdict = verdictFromCounts(parsed.Positives, parsed.Total)
		if parsed.Total > 0 && verdict.Confidence == 0 {
			verdict.Confidence = float64(parsed.Positives) / float64(parsed.Total)
		}
	default:
		verdict.Verdict = domain.VerdictUnknown
	}

	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		verdict.Confidence = 0
	}
	return verdict
}

// verdictFromCounts maps scanner detection ratios to a verdict: a handful of
// engines flagging is suspicious, a clear majority is malicious.
func verdictFromCounts(positives, total int) domain.Verdict {
	if total <= 0 {
		return domain.VerdictUnknown
	}
	ratio := float64(positives) / float64(total)
	switch {
	case positives == 0:
		return domain.VerdictClean
	case ratio >= 0.2 || positives >= 5:
		return domain.VerdictMalicious
	default:
		return domain.VerdictSuspicious
	}
}
