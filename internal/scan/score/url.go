package score

import (
	"fmt"

	"kestrel/internal/domain"
)

const heavyEncodingThreshold = 10

// URL scores a URL analysis bundle.
func URL(bundle domain.URLAnalysisBundle) (int, []domain.Reason) {
	t := newTally()

	scoreTransport(t, bundle)
	scoreDomainAge(t, bundle.Whois)
	scoreDNSPresence(t, bundle.DNS)
	scoreHomograph(t, bundle.Homograph)
	scoreURLPatterns(t, bundle.Heuristics)
	scoreDomainReputation(t, bundle.Reputation)

	return t.finalize()
}

func scoreTransport(t *tally, bundle domain.URLAnalysisBundle) {
	if bundle.Heuristics.UsesHTTPS {
		t.add("HTTPS_USED", "Connection uses HTTPS", 15)
	} else {
		t.add("NO_HTTPS", "Connection does not use HTTPS", -15)
	}

	tls := bundle.TLS
	if !tls.Available || !tls.HTTPSAvailable {
		return
	}
	switch {
	case tls.Revoked:
		t.add("TLS_CERTIFICATE_REVOKED", "TLS certificate has been revoked", -25)
	case !tls.HasValidCertificate:
		message := "TLS certificate failed validation"
		if tls.SelfSigned {
			message = "TLS certificate is self-signed"
		}
		t.add("INVALID_TLS_CERTIFICATE", message, -25)
	default:
		t.add("VALID_TLS_CERTIFICATE", "Valid TLS certificate from "+issuerOrUnknown(tls.Issuer), 25)
	}
}

func issuerOrUnknown(issuer string) string {
	if issuer == "" {
		return "an unknown issuer"
	}
	return issuer
}

func scoreDomainAge(t *tally, whois domain.WhoisDomainAnalysis) {
	if !whois.Available {
		return
	}

	age := whois.AgeDays
	switch {
	case age > 730:
		t.add("DOMAIN_WELL_ESTABLISHED", fmt.Sprintf("Domain registered %d days ago", age), 15)
	case age > 365:
		t.add("DOMAIN_ESTABLISHED", fmt.Sprintf("Domain registered %d days ago", age), 10)
	case age > 90:
		t.add("DOMAIN_AGE_MODERATE", fmt.Sprintf("Domain registered %d days ago", age), 5)
	case age > 30:
		t.add("DOMAIN_RECENTLY_REGISTERED", fmt.Sprintf("Domain registered only %d days ago", age), -5)
	default:
		t.add("DOMAIN_VERY_NEW", fmt.Sprintf("Domain registered only %d days ago", age), -10)
	}
}

func scoreDNSPresence(t *tally, dns domain.DNSRecordAnalysis) {
	if !dns.Available {
		return
	}
	if dns.HasRecords() {
		t.add("DNS_RESOLVES", "Domain resolves to valid addresses", 15)
	} else {
		t.add("DNS_NO_RECORDS", "Domain has no address records", -15)
	}
}

func scoreHomograph(t *tally, homograph domain.HomographAnalysis) {
	switch {
	case homograph.TyposquatOf != "" && homograph.EditDistance == 0:
		t.add("TYPOSQUAT_SUSPECTED",
			fmt.Sprintf("Domain is a look-alike of %s", homograph.TyposquatOf), -30)
	case homograph.TyposquatOf != "":
		t.add("TYPOSQUAT_SUSPECTED",
			fmt.Sprintf("Domain closely resembles %s", homograph.TyposquatOf), -20)
	case homograph.MixedScript || homograph.HasConfusables:
		t.add("HOMOGRAPH_CHARACTERS", "Domain mixes look-alike characters", -15)
	case homograph.IsIDN:
		t.add("IDN_DOMAIN", "Internationalized domain name", -10)
	}
}

func scoreURLPatterns(t *tally, heuristics domain.URLHeuristicsAnalysis) {
	if heuristics.IsShortener {
		t.add("URL_SHORTENER", "URL uses a link-shortening service", -10)
	}
	if heuristics.IPLiteralHost {
		t.add("IP_ADDRESS_HOST", "URL addresses a raw IP instead of a domain", -15)
	}
	if heuristics.SuspiciousTLD {
		t.add("SUSPICIOUS_TLD", "Top-level domain is frequently abused", -10)
	}
	if heuristics.HasUserInfo {
		t.add("USERINFO_IN_URL", "URL embeds credentials before the host", -10)
	}
	if heuristics.SubdomainDepth >= 3 {
		t.add("DEEP_SUBDOMAIN_CHAIN",
			fmt.Sprintf("Host hides behind %d subdomain levels", heuristics.SubdomainDepth), -5)
	}
	if heuristics.ExcessiveLength {
		t.add("EXCESSIVE_URL_LENGTH", "URL is unusually long", -5)
	}
	if heuristics.EncodedCharCount > heavyEncodingThreshold {
		t.add("HEAVY_URL_ENCODING", "URL contains many percent-encoded characters", -5)
	}
}

func scoreDomainReputation(t *tally, reputation domain.DomainReputationAnalysis) {
	if !reputation.Available {
		return
	}
	switch reputation.Verdict {
	case domain.VerdictMalicious:
		message := "Domain is listed as malicious"
		if reputation.Category != "" {
			message = fmt.Sprintf("Domain is listed as malicious (%s)", reputation.Category)
		}
		t.add("MALICIOUS_DOMAIN", message, -50)
	case domain.VerdictSuspicious:
		t.add("SUSPICIOUS_DOMAIN", "Domain is flagged as suspicious", -25)
	case domain.VerdictClean:
		t.add("CLEAN_REPUTATION", "Domain has a clean reputation", 5)
	}
}
