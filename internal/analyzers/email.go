package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/cache"
	"kestrel/internal/domain"
	"kestrel/internal/intel"
)

// dkimSelectors are the selectors probed when checking for a DKIM key. Most
// hosted mail providers publish under one of these.
var dkimSelectors = []string{"default", "google", "selector1", "selector2", "k1", "dkim"}

// EmailProviderAnalyzer classifies the mailbox domain against the provider
// tables. Offline.
type EmailProviderAnalyzer struct {
	Tables *intel.Tables
}

func (a *EmailProviderAnalyzer) Analyze(mailDomain string) domain.EmailProviderAnalysis {
	mailDomain = strings.ToLower(strings.TrimSpace(mailDomain))
	return domain.EmailProviderAnalysis{
		Domain:            mailDomain,
		IsDisposable:      a.Tables.IsDisposableDomain(mailDomain),
		IsTrustedProvider: a.Tables.IsTrustedProvider(mailDomain),
	}
}

// EmailAuthAnalyzer inspects the mail authentication posture of a domain:
// MX presence, SPF and DMARC policy records, and a best-effort DKIM probe
// across common selectors.
type EmailAuthAnalyzer struct {
	Resolver DnsResolver
	Gate     *Gate
	Timeout  time.Duration
}

func (a *EmailAuthAnalyzer) Analyze(ctx context.Context, mailDomain string) domain.EmailAuthAnalysis {
	payload, err := a.Gate.Do(ctx, ServiceDNS, cache.KindDNS, "auth:"+mailDomain, func(ctx context.Context) ([]byte, error) {
		result := a.resolve(ctx, mailDomain)
		if !result.Available {
			return nil, fmt.Errorf("mail auth lookup for %s: %w", mailDomain, errLookupFailed)
		}
		return json.Marshal(result)
	})
	if err != nil {
		log.Debug("Email auth analysis unavailable", "domain", mailDomain, "error", err)
		return domain.EmailAuthAnalysis{}
	}

	var result domain.EmailAuthAnalysis
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Warn("Corrupt cached email auth analysis", "domain", mailDomain, "error", err)
		return domain.EmailAuthAnalysis{}
	}
	return result
}

func (a *EmailAuthAnalyzer) resolve(ctx context.Context, mailDomain string) domain.EmailAuthAnalysis {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	result := domain.EmailAuthAnalysis{Available: true}

	mxRecords, mxErr := a.Resolver.LookupMX(ctx, mailDomain)
	if mxErr == nil && len(mxRecords) > 0 {
		result.HasMX = true
	}

	txtRecords, txtErr := a.Resolver.LookupTXT(ctx, mailDomain)
	if txtErr == nil {
		for _, record := range txtRecords {
			if strings.HasPrefix(strings.ToLower(record), "v=spf1") {
				result.HasSPF = true
				result.SPFRecord = record
				break
			}
		}
	}

	// When both base lookups failed transiently there is no posture to
	// report at all.
	if transientLookupFailure(mxErr) && transientLookupFailure(txtErr) {
		result.Available = false
		return result
	}

	if txtRecords, err := a.Resolver.LookupTXT(ctx, "_dmarc."+mailDomain); err == nil {
		for _, record := range txtRecords {
			lower := strings.ToLower(record)
			if !strings.HasPrefix(lower, "v=dmarc1") {
				continue
			}
			result.HasDMARC = true
			result.DMARCPolicy = dmarcPolicy(lower)
			break
		}
	}

	for _, selector := range dkimSelectors {
		txtRecords, err := a.Resolver.LookupTXT(ctx, selector+"._domainkey."+mailDomain)
		if err != nil {
			continue
		}
		for _, record := range txtRecords {
			lower := strings.ToLower(record)
			if strings.Contains(lower, "v=dkim1") || strings.Contains(lower, "p=") {
				result.HasDKIM = true
				break
			}
		}
		if result.HasDKIM {
			break
		}
	}

	return result
}

func dmarcPolicy(record string) string {
	for _, part := range strings.Split(record, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "p=") {
			return strings.TrimPrefix(part, "p=")
		}
	}
	return ""
}
