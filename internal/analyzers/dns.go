package analyzers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/cache"
	"kestrel/internal/domain"
	"kestrel/internal/geolite"
)

// ServiceDNS is the limiter bucket shared by every resolver-backed lookup.
const ServiceDNS = "dns"

// DnsResolver is the subset of *net.Resolver the analyzers use.
type DnsResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// DNSAnalyzer resolves a domain's A/AAAA/MX/TXT records and annotates the
// first address with its hosting country when a GeoLite database is loaded.
type DNSAnalyzer struct {
	Resolver DnsResolver
	Geo      *geolite.Reader
	Gate     *Gate
	Timeout  time.Duration
}

func (a *DNSAnalyzer) Analyze(ctx context.Context, domainName string) domain.DNSRecordAnalysis {
	payload, err := a.Gate.Do(ctx, ServiceDNS, cache.KindDNS, domainName, func(ctx context.Context) ([]byte, error) {
		result := a.resolve(ctx, domainName)
		if !result.Available {
			// Caching an outage would pin it for the kind's whole TTL.
			return nil, fmt.Errorf("resolving %s: %w", domainName, errLookupFailed)
		}
		return json.Marshal(result)
	})
	if err != nil {
		log.Debug("DNS analysis unavailable", "domain", domainName, "error", err)
		return domain.DNSRecordAnalysis{}
	}

	var result domain.DNSRecordAnalysis
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Warn("Corrupt cached DNS analysis", "domain", domainName, "error", err)
		return domain.DNSRecordAnalysis{}
	}
	return result
}

// resolve performs the live lookups. Missing MX or TXT records do not make
// the analysis unavailable; only a failed address lookup does, since nothing
// else can be said about a domain that does not resolve.
func (a *DNSAnalyzer) resolve(ctx context.Context, domainName string) domain.DNSRecordAnalysis {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	result := domain.DNSRecordAnalysis{Available: true}

	addrs, err := a.Resolver.LookupIPAddr(ctx, domainName)
	if transientLookupFailure(err) {
		result.Available = false
	}
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			result.ARecords = append(result.ARecords, v4.String())
		} else {
			result.AAAARecords = append(result.AAAARecords, addr.IP.String())
		}
	}

	if mxRecords, err := a.Resolver.LookupMX(ctx, domainName); err == nil {
		for _, mx := range mxRecords {
			result.MXRecords = append(result.MXRecords, mx.Host)
		}
	}

	if txtRecords, err := a.Resolver.LookupTXT(ctx, domainName); err == nil {
		result.TXTRecords = txtRecords
	}

	if a.Geo != nil && len(result.ARecords) > 0 {
		result.HostCountry = a.Geo.Country(result.ARecords[0])
	}

	return result
}

// errLookupFailed marks an analysis that failed for transient reasons.
var errLookupFailed = errors.New("lookup failed")

// transientLookupFailure distinguishes resolver outages from NXDOMAIN
// answers: a missing name is an answer, not an outage.
func transientLookupFailure(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	return !errors.As(err, &dnsErr) || !dnsErr.IsNotFound
}
