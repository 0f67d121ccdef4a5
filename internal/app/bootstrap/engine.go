// Package bootstrap assembles the scan engine from the loaded configuration.
package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"kestrel/internal/analyzers"
	"kestrel/internal/cache"
	"kestrel/internal/config"
	"kestrel/internal/database"
	"kestrel/internal/domain"
	"kestrel/internal/geolite"
	"kestrel/internal/intel"
	"kestrel/internal/ratelimit"
	"kestrel/internal/scan"
	"kestrel/internal/support"
)

const (
	defaultAnalyzerTimeout = 5 * time.Second
	intelRequestTimeout    = 10 * time.Second
)

// Components carries everything the app layer needs to run and shut down.
type Components struct {
	Engine *scan.Engine
	Cache  *cache.Cache
	DB     *gorm.DB

	geo *geolite.Reader
}

// Close releases held resources.
func (c *Components) Close() {
	if c.geo != nil {
		if err := c.geo.Close(); err != nil {
			log.Warn("Closing GeoLite reader failed", "error", err)
		}
	}
}

// Setup builds the engine from the current configuration snapshot.
func Setup() (*Components, error) {
	cfg := config.GetConfig()

	tables, err := intel.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	components := &Components{}

	store, db, err := cacheStore(cfg)
	if err != nil {
		return nil, err
	}
	components.DB = db

	resultCache := cache.New(cache.Options{
		TTLOverrides: ttlOverrides(cfg),
		MaxEntries:   cfg.Cache.MaxEntries,
		Store:        store,
	})
	components.Cache = resultCache

	limiter := ratelimit.NewAdaptive(ratelimit.New(rateLimits(cfg)), cfg.BurstCaps)
	gate := &analyzers.Gate{Cache: resultCache, Limiter: limiter}

	geo := openGeoLite(cfg)
	components.geo = geo

	resolver := &net.Resolver{}

	whoisClient := &analyzers.PortWhoisClient{
		Server:  cfg.Analyzers.WhoisServer,
		Timeout: timeoutOrDefault(cfg.Analyzers.WhoisTimeoutMs),
	}

	sources := threatSources(cfg)

	engineAnalyzers := scan.Analyzers{
		DNS: &analyzers.DNSAnalyzer{
			Resolver: resolver,
			Geo:      geo,
			Gate:     gate,
			Timeout:  timeoutOrDefault(cfg.Analyzers.DNSTimeoutMs),
		},
		Whois: analyzers.NewWhoisAnalyzer(whoisClient, gate),
		TLS: analyzers.NewTLSAnalyzer(
			timeoutOrDefault(cfg.Analyzers.TLSTimeoutMs),
			cfg.Analyzers.CheckOCSP,
			gate,
		),
		Homograph:  &analyzers.HomographAnalyzer{Tables: tables},
		Heuristics: &analyzers.URLHeuristicsAnalyzer{Tables: tables},
		Reputation: &analyzers.DomainReputationAnalyzer{
			Sources: []analyzers.DomainReputationSource{
				&analyzers.TableReputationSource{Tables: tables},
			},
			Gate: gate,
		},
		Provider: &analyzers.EmailProviderAnalyzer{Tables: tables},
		Auth: &analyzers.EmailAuthAnalyzer{
			Resolver: resolver,
			Gate:     gate,
			Timeout:  timeoutOrDefault(cfg.Analyzers.DNSTimeoutMs),
		},
		LocalHash: &analyzers.LocalHashAnalyzer{Tables: tables},
		HashIntel: &analyzers.HashReputationAnalyzer{Sources: sources, Gate: gate},
	}

	components.Engine = scan.NewEngine(engineAnalyzers, resultCache, limiter)
	return components, nil
}

// cacheStore selects the persistence backend configured behind the in-memory
// cache. "none" runs memory-only.
func cacheStore(cfg config.Config) (cache.Store, *gorm.DB, error) {
	switch cfg.Cache.Persistence {
	case "", "none":
		return nil, nil, nil
	case "database":
		db, err := database.SetupDB()
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: cache persistence: %w", err)
		}
		return database.NewCacheStore(db), db, nil
	case "redis":
		client, err := support.GetRedisClient()
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: cache persistence: %w", err)
		}
		return cache.NewRedisStore(client), nil, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown cache persistence %q", cfg.Cache.Persistence)
	}
}

func openGeoLite(cfg config.Config) *geolite.Reader {
	geo, err := geolite.Open(cfg.GeoLite.DatabasePath)
	if err != nil {
		if !errors.Is(err, geolite.ErrNotConfigured) {
			log.Warn("GeoLite database unavailable, country enrichment disabled", "error", err)
		}
		return nil
	}
	return geo
}

func threatSources(cfg config.Config) []analyzers.ThreatIntelSource {
	sources := make([]analyzers.ThreatIntelSource, 0, len(cfg.ThreatIntel))
	for _, entry := range cfg.ThreatIntel {
		source, err := analyzers.NewHTTPHashSource(entry, intelRequestTimeout)
		if err != nil {
			log.Warn("Skipping misconfigured threat-intel source", "source", entry.Name, "error", err)
			continue
		}
		sources = append(sources, source)
	}
	return sources
}

func rateLimits(cfg config.Config) map[string]domain.RateLimit {
	limits := make(map[string]domain.RateLimit, len(cfg.RateLimits))
	for service, limit := range cfg.RateLimits {
		limits[service] = domain.RateLimit{
			MaxRequests:   limit.MaxRequests,
			WindowSeconds: limit.WindowSeconds,
		}
	}
	return limits
}

func ttlOverrides(cfg config.Config) map[string]time.Duration {
	overrides := make(map[string]time.Duration, len(cfg.Cache.TTLSeconds))
	for kind, seconds := range cfg.Cache.TTLSeconds {
		overrides[kind] = time.Duration(seconds) * time.Second
	}
	return overrides
}

func timeoutOrDefault(ms uint32) time.Duration {
	if ms == 0 {
		return defaultAnalyzerTimeout
	}
	return time.Duration(ms) * time.Millisecond
}
