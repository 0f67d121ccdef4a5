package score

import (
	"fmt"
	"unicode"

	"kestrel/internal/domain"
)

// Email scores an email analysis bundle.
func Email(bundle domain.EmailAnalysisBundle) (int, []domain.Reason) {
	t := newTally()

	scoreProvider(t, bundle.Provider)
	scoreMailAuth(t, bundle.Auth)
	scoreEmailReputation(t, bundle.Reputation)
	scoreLocalPart(t, bundle.LocalPart)

	// A mailbox domain that does not resolve at all cannot receive mail.
	if bundle.DNS.Available && !bundle.DNS.HasRecords() && !bundle.Auth.HasMX {
		t.add("DOMAIN_NOT_RESOLVING", "Mailbox domain does not resolve", -15)
	}

	return t.finalize()
}

func scoreProvider(t *tally, provider domain.EmailProviderAnalysis) {
	if provider.IsDisposable {
		t.add("DISPOSABLE_EMAIL_DOMAIN", "Mailbox uses a disposable email service", -25)
		return
	}
	if provider.IsTrustedProvider {
		t.add("TRUSTED_EMAIL_PROVIDER", "Mailbox is hosted by an established provider", 10)
	}
}

func scoreMailAuth(t *tally, auth domain.EmailAuthAnalysis) {
	if !auth.Available {
		return
	}

	if auth.HasMX {
		t.add("MX_RECORDS_PRESENT", "Domain accepts mail via MX records", 15)
	} else {
		t.add("NO_MX_RECORDS", "Domain has no mail exchanger records", -15)
	}

	if auth.HasSPF {
		t.add("SPF_CONFIGURED", "Domain publishes an SPF policy", 10)
	} else {
		t.add("NO_SPF_RECORD", "Domain has no SPF policy", -10)
	}

	if auth.HasDMARC {
		message := "Domain publishes a DMARC policy"
		if auth.DMARCPolicy != "" {
			message += " (" + auth.DMARCPolicy + ")"
		}
		t.add("DMARC_CONFIGURED", message, 10)
	} else {
		t.add("NO_DMARC_RECORD", "Domain has no DMARC policy", -10)
	}

	if auth.HasDKIM {
		t.add("DKIM_KEY_PUBLISHED", "Domain publishes a DKIM signing key", 5)
	}
}

// scoreEmailReputation aggregates the per-source verdicts for the mailbox
// domain the same way file hashes are aggregated. No source answering means
// no reason: unlike hashes, a mailbox domain is usually absent from intel
// feeds and silence is the normal case.
func scoreEmailReputation(t *tally, reputation domain.EmailReputationAnalysis) {
	delta, counted := weightedVerdictAverage(reputation.Verdicts)
	if counted == 0 {
		return
	}

	message := fmt.Sprintf("Aggregated mailbox domain reputation from %d source(s)", counted)
	switch {
	case delta <= -40:
		t.add("MALICIOUS_EMAIL_DOMAIN", message, delta)
	case delta < 0:
		t.add("SUSPICIOUS_EMAIL_DOMAIN", message, delta)
	default:
		t.add("CLEAN_EMAIL_DOMAIN", message, delta)
	}
}

// scoreLocalPart flags mailbox names that look machine-generated.
func scoreLocalPart(t *tally, localPart string) {
	if localPart == "" {
		return
	}

	digits := 0
	for _, r := range localPart {
		if unicode.IsDigit(r) {
			digits++
		}
	}

	digitHeavy := len(localPart) >= 8 && digits*2 > len(localPart)
	if digitHeavy || longestDigitRun(localPart) >= 6 {
		t.add("SUSPICIOUS_LOCAL_PART", "Mailbox name looks machine-generated", -5)
	}
}

func longestDigitRun(s string) int {
	longest, run := 0, 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}
