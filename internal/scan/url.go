package scan

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"kestrel/internal/domain"
	"kestrel/internal/scan/score"
	"kestrel/internal/support"
)

func (e *Engine) scanURL(ctx context.Context, target domain.CheckTarget) domain.ScanResult {
	parsed, err := parseScanURL(target.Value)
	if err != nil {
		return e.failure(target, "INVALID_URL", err.Error())
	}

	host := strings.ToLower(parsed.Hostname())
	registrable, regErr := support.RegisteredDomain(host)
	if regErr != nil {
		// IP-literal hosts and unlisted suffixes still get scanned; the
		// registrable-domain analyzers just work on the full host.
		registrable = host
	}

	bundle := domain.URLAnalysisBundle{Domain: registrable}

	// Offline dimensions run inline.
	protect("heuristics", func() {
		bundle.Heuristics = e.analyzers.Heuristics.Analyze(parsed)
	})
	protect("homograph", func() {
		bundle.Homograph = e.analyzers.Homograph.Analyze(host)
	})

	// Network dimensions fan out as siblings; a panic or failure in one
	// leaves its bundle field neutral.
	var wg sync.WaitGroup
	if !bundle.Heuristics.IPLiteralHost {
		wg.Add(3)
		go func() {
			defer wg.Done()
			protect("dns", func() { bundle.DNS = e.analyzers.DNS.Analyze(ctx, host) })
		}()
		go func() {
			defer wg.Done()
			protect("whois", func() { bundle.Whois = e.analyzers.Whois.Analyze(ctx, registrable) })
		}()
		go func() {
			defer wg.Done()
			protect("reputation", func() { bundle.Reputation = e.analyzers.Reputation.Analyze(ctx, registrable) })
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		protect("tls", func() { bundle.TLS = e.analyzers.TLS.Analyze(ctx, host) })
	}()
	wg.Wait()

	scoreValue, reasons := score.URL(bundle)

	return domain.ScanResult{
		Target:  target,
		Score:   scoreValue,
		Status:  domain.ClassifyScore(scoreValue),
		Reasons: reasons,
		Metadata: map[string]string{
			"host":              host,
			"registered_domain": registrable,
			"scheme":            strings.ToLower(parsed.Scheme),
		},
		ScannedAt: e.now(),
	}
}

func parseScanURL(value string) (*url.URL, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty URL")
	}
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("malformed URL: %v", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("URL has no host")
	}
	return parsed, nil
}
