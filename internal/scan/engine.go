// Package scan orchestrates a target's analyzers and produces the final
// ScanResult. Scan never returns an error: every failure mode is folded into
// a result the caller can display.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/analyzers"
	"kestrel/internal/cache"
	"kestrel/internal/domain"
	"kestrel/internal/ratelimit"
)

// Analyzers bundles the collaborators the engine fans out to. Offline
// analyzers (homograph, heuristics, provider tables, local hash match) run
// inline; the rest run as sibling goroutines per scan.
type Analyzers struct {
	DNS        *analyzers.DNSAnalyzer
	Whois      *analyzers.WhoisAnalyzer
	TLS        *analyzers.TLSAnalyzer
	Homograph  *analyzers.HomographAnalyzer
	Heuristics *analyzers.URLHeuristicsAnalyzer
	Reputation *analyzers.DomainReputationAnalyzer
	Provider   *analyzers.EmailProviderAnalyzer
	Auth       *analyzers.EmailAuthAnalyzer
	LocalHash  *analyzers.LocalHashAnalyzer
	HashIntel  *analyzers.HashReputationAnalyzer
}

// Metrics is a point-in-time snapshot of the engine's shared state.
type Metrics struct {
	Cache             cache.Metrics
	LimiterRejections uint64
}

// Engine is the single entry point for scans.
type Engine struct {
	analyzers Analyzers
	cache     *cache.Cache
	limiter   *ratelimit.AdaptiveLimiter
	now       func() time.Time
}

func NewEngine(a Analyzers, resultCache *cache.Cache, limiter *ratelimit.AdaptiveLimiter) *Engine {
	return &Engine{
		analyzers: a,
		cache:     resultCache,
		limiter:   limiter,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Scan analyzes one target. It never returns an error: invalid input and
// internal panics both produce deterministic RISK results.
func (e *Engine) Scan(ctx context.Context, target domain.CheckTarget) (result domain.ScanResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Scan panicked", "kind", target.Kind, "panic", r)
			result = e.failure(target, scanErrorCode(target.Kind), fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch target.Kind {
	case domain.TargetURL:
		return e.scanURL(ctx, target)
	case domain.TargetEmail:
		return e.scanEmail(ctx, target)
	case domain.TargetFileHash:
		return e.scanFileHash(ctx, target)
	default:
		return e.failure(target, "UNSUPPORTED_TARGET", fmt.Sprintf("unsupported target kind %q", target.Kind))
	}
}

// Metrics returns the current cache and limiter counters.
func (e *Engine) Metrics() Metrics {
	m := Metrics{}
	if e.cache != nil {
		m.Cache = e.cache.Snapshot()
	}
	if e.limiter != nil {
		m.LimiterRejections = e.limiter.Rejections()
	}
	return m
}

// failure builds the deterministic score-0 RISK result used for invalid
// input and unexpected internal errors.
func (e *Engine) failure(target domain.CheckTarget, code, message string) domain.ScanResult {
	return domain.ScanResult{
		Target: target,
		Score:  0,
		Status: domain.StatusRisk,
		Reasons: []domain.Reason{
			{Code: code, Message: message, Delta: -100},
		},
		Metadata:  map[string]string{"kind": string(target.Kind)},
		ScannedAt: e.now(),
	}
}

func scanErrorCode(kind domain.TargetKind) string {
	switch kind {
	case domain.TargetURL:
		return "URL_SCAN_ERROR"
	case domain.TargetEmail:
		return "EMAIL_SCAN_ERROR"
	case domain.TargetFileHash:
		return "HASH_SCAN_ERROR"
	default:
		return "SCAN_ERROR"
	}
}

// protect runs one analyzer task, turning a panic into the zero-value
// (neutral) analysis so sibling analyzers keep running.
func protect(name string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Analyzer panicked", "analyzer", name, "panic", r)
		}
	}()
	task()
}
