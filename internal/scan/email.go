package scan

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/idna"

	"kestrel/internal/domain"
	"kestrel/internal/scan/score"
)

func (e *Engine) scanEmail(ctx context.Context, target domain.CheckTarget) domain.ScanResult {
	localPart, mailDomain, err := splitEmail(target.Value)
	if err != nil {
		return e.failure(target, "INVALID_EMAIL", err.Error())
	}

	bundle := domain.EmailAnalysisBundle{
		Domain:    mailDomain,
		LocalPart: localPart,
	}

	protect("provider", func() {
		bundle.Provider = e.analyzers.Provider.Analyze(mailDomain)
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		protect("mail-auth", func() { bundle.Auth = e.analyzers.Auth.Analyze(ctx, mailDomain) })
	}()
	go func() {
		defer wg.Done()
		protect("dns", func() { bundle.DNS = e.analyzers.DNS.Analyze(ctx, mailDomain) })
	}()
	go func() {
		defer wg.Done()
		protect("reputation", func() { bundle.Reputation = e.analyzers.Reputation.AnalyzeSources(ctx, mailDomain) })
	}()
	wg.Wait()

	scoreValue, reasons := score.Email(bundle)

	return domain.ScanResult{
		Target:  target,
		Score:   scoreValue,
		Status:  domain.ClassifyScore(scoreValue),
		Reasons: reasons,
		Metadata: map[string]string{
			"domain":     mailDomain,
			"local_part": localPart,
		},
		ScannedAt: e.now(),
	}
}

// splitEmail validates the address shape and returns the local part and the
// lower-cased, punycoded mailbox domain.
func splitEmail(value string) (string, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", fmt.Errorf("empty email address")
	}

	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 {
		return "", "", fmt.Errorf("malformed email address")
	}

	localPart := value[:at]
	mailDomain := strings.ToLower(value[at+1:])

	if strings.ContainsAny(localPart, " \t") {
		return "", "", fmt.Errorf("email local part contains whitespace")
	}
	if !strings.Contains(mailDomain, ".") || strings.HasPrefix(mailDomain, ".") || strings.HasSuffix(mailDomain, ".") {
		return "", "", fmt.Errorf("malformed email domain")
	}

	ascii, err := idna.Lookup.ToASCII(mailDomain)
	if err != nil {
		return "", "", fmt.Errorf("malformed email domain: %v", err)
	}
	return localPart, ascii, nil
}
