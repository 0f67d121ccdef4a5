package support

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// RegisteredDomain reduces a host name to its registrable domain
// (eTLD plus one label), folding case and any IDN form to punycode first.
func RegisteredDomain(host string) (string, error) {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return "", fmt.Errorf("empty host")
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Fall back to the raw host; homograph analysis handles the
		// malformed-IDN case separately.
		ascii = host
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(ascii)
	if err != nil {
		return "", fmt.Errorf("no registrable domain in %q: %w", host, err)
	}
	return registrable, nil
}

// SubdomainDepth counts labels in front of the registrable domain.
func SubdomainDepth(host, registrable string) int {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == registrable || registrable == "" {
		return 0
	}
	prefix := strings.TrimSuffix(host, "."+registrable)
	if prefix == host {
		return 0
	}
	return strings.Count(prefix, ".") + 1
}
