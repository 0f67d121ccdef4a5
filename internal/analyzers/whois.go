package analyzers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/cache"
	"kestrel/internal/domain"
)

// ServiceWhois is the limiter bucket for registry lookups.
const ServiceWhois = "whois"

const (
	defaultWhoisServer = "whois.iana.org:43"
	maxWhoisResponse   = 256 << 10
)

// WhoisClient fetches the raw registry record for a domain.
type WhoisClient interface {
	Lookup(ctx context.Context, domainName string) (string, error)
}

// PortWhoisClient speaks the plain-text port-43 protocol. A lookup against
// the IANA root follows one referral to the TLD registry.
type PortWhoisClient struct {
	Server  string
	Timeout time.Duration
	Dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

func (c *PortWhoisClient) Lookup(ctx context.Context, domainName string) (string, error) {
	server := c.Server
	if server == "" {
		server = defaultWhoisServer
	}

	response, err := c.query(ctx, server, domainName)
	if err != nil {
		return "", err
	}

	if referral := referralServer(response); referral != "" && referral != server {
		referred, err := c.query(ctx, referral, domainName)
		if err == nil && referred != "" {
			return referred, nil
		}
	}
	return response, nil
}

func (c *PortWhoisClient) query(ctx context.Context, server, domainName string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	dial := c.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	conn, err := dial(ctx, "tcp", server)
	if err != nil {
		return "", fmt.Errorf("whois dial %s: %w", server, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s\r\n", domainName); err != nil {
		return "", fmt.Errorf("whois query %s: %w", server, err)
	}

	data, err := io.ReadAll(io.LimitReader(conn, maxWhoisResponse))
	if err != nil && len(data) == 0 {
		return "", fmt.Errorf("whois read %s: %w", server, err)
	}
	return string(data), nil
}

// referralServer extracts the "refer:" or "Registrar WHOIS Server:" target
// from a registry response, normalized to host:43.
func referralServer(response string) string {
	scanner := bufio.NewScanner(strings.NewReader(response))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(line)

		var value string
		switch {
		case strings.HasPrefix(lower, "refer:"):
			value = strings.TrimSpace(line[len("refer:"):])
		case strings.HasPrefix(lower, "registrar whois server:"):
			value = strings.TrimSpace(line[len("registrar whois server:"):])
		case strings.HasPrefix(lower, "whois server:"):
			value = strings.TrimSpace(line[len("whois server:"):])
		}

		if value == "" {
			continue
		}
		value = strings.TrimPrefix(value, "whois://")
		if !strings.Contains(value, ":") {
			value += ":43"
		}
		return value
	}
	return ""
}

// WhoisAnalyzer turns a registry record into registration facts for the
// scorer, most importantly the domain age.
type WhoisAnalyzer struct {
	Client WhoisClient
	Gate   *Gate
	now    func() time.Time
}

func NewWhoisAnalyzer(client WhoisClient, gate *Gate) *WhoisAnalyzer {
	return &WhoisAnalyzer{Client: client, Gate: gate, now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (a *WhoisAnalyzer) SetClock(now func() time.Time) {
	a.now = now
}

func (a *WhoisAnalyzer) Analyze(ctx context.Context, domainName string) domain.WhoisDomainAnalysis {
	payload, err := a.Gate.Do(ctx, ServiceWhois, cache.KindWhois, domainName, func(ctx context.Context) ([]byte, error) {
		raw, err := a.Client.Lookup(ctx, domainName)
		if err != nil {
			return nil, err
		}
		return []byte(raw), nil
	})
	if err != nil {
		log.Debug("Whois analysis unavailable", "domain", domainName, "error", err)
		return domain.WhoisDomainAnalysis{}
	}

	return a.parse(string(payload))
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"January 2 2006",
}

func (a *WhoisAnalyzer) parse(raw string) domain.WhoisDomainAnalysis {
	result := domain.WhoisDomainAnalysis{Available: true}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if value == "" {
			continue
		}

		switch key {
		case "registrar":
			if result.Registrar == "" {
				result.Registrar = value
			}
		case "creation date", "created", "registered on", "registration time":
			if result.RegisteredAt == nil {
				result.RegisteredAt = parseWhoisDate(value)
			}
		case "registry expiry date", "expiry date", "expiration date", "expires":
			if result.ExpiresAt == nil {
				result.ExpiresAt = parseWhoisDate(value)
			}
		case "name server", "nserver":
			result.NameServers = append(result.NameServers, strings.ToLower(strings.Fields(value)[0]))
		case "domain status", "status":
			result.Statuses = append(result.Statuses, strings.Fields(value)[0])
		case "registrant organization", "registrant name":
			if containsPrivacyMarker(value) {
				result.PrivacyProtected = true
			}
		}
	}

	if result.RegisteredAt != nil {
		age := a.now().Sub(*result.RegisteredAt)
		if age > 0 {
			result.AgeDays = int(age.Hours() / 24)
		}
	} else {
		// A record without a creation date tells the scorer nothing.
		result.Available = false
	}

	return result
}

func parseWhoisDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range whoisDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed
		}
	}
	return nil
}

func containsPrivacyMarker(value string) bool {
	lower := strings.ToLower(value)
	for _, marker := range []string{"privacy", "redacted", "whoisguard", "proxy", "protected"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
