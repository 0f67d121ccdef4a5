package analyzers

import (
	"net"
	"net/url"
	"strings"

	"kestrel/internal/domain"
	"kestrel/internal/intel"
	"kestrel/internal/support"
)

const excessiveURLLength = 200

// URLHeuristicsAnalyzer extracts pattern signals from the URL string itself.
// No network traffic, so it always produces a result.
type URLHeuristicsAnalyzer struct {
	Tables *intel.Tables
}

func (a *URLHeuristicsAnalyzer) Analyze(parsed *url.URL) domain.URLHeuristicsAnalysis {
	host := strings.ToLower(parsed.Hostname())

	result := domain.URLHeuristicsAnalysis{
		UsesHTTPS:        strings.EqualFold(parsed.Scheme, "https"),
		IPLiteralHost:    net.ParseIP(host) != nil,
		HasUserInfo:      parsed.User != nil,
		ExcessiveLength:  len(parsed.String()) > excessiveURLLength,
		EncodedCharCount: strings.Count(parsed.RequestURI(), "%"),
	}

	if result.IPLiteralHost {
		return result
	}

	result.IsShortener = a.Tables.IsShortenerDomain(host)
	result.SuspiciousTLD = a.Tables.IsSuspiciousTLD(host)

	if registrable, err := support.RegisteredDomain(host); err == nil {
		result.SubdomainDepth = support.SubdomainDepth(host, registrable)
		if !result.IsShortener {
			result.IsShortener = a.Tables.IsShortenerDomain(registrable)
		}
	}

	return result
}
