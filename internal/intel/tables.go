package intel

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed default_tables.json
var defaultTables []byte

// Document is the on-disk shape of the intel dataset. The content of the
// lists is pluggable data, not engineering; swapping the document swaps the
// whole threat knowledge of the engine.
type Document struct {
	DisposableDomains []string          `json:"disposable_domains"`
	TrustedProviders  []string          `json:"trusted_providers"`
	ShortenerDomains  []string          `json:"shortener_domains"`
	SuspiciousTLDs    []string          `json:"suspicious_tlds"`
	HighValueDomains  []string          `json:"high_value_domains"`
	Confusables       map[string]string `json:"confusables"`
	MaliciousDomains  map[string]string `json:"malicious_domains"`
	MaliciousHashes   map[string]string `json:"malicious_hashes"`
	KnownGoodHashes   []string          `json:"known_good_hashes"`
}

// Tables holds the process-wide read-only lookup sets. Loaded once at
// startup and injected into analyzers; never mutated afterwards.
type Tables struct {
	disposableDomains map[string]struct{}
	trustedProviders  map[string]struct{}
	shortenerDomains  map[string]struct{}
	suspiciousTLDs    map[string]struct{}
	highValueDomains  []string
	confusables       map[rune]rune
	maliciousDomains  map[string]string
	maliciousHashes   map[string]string
	knownGoodHashes   map[string]struct{}
}

// LoadDefault builds the tables from the embedded dataset.
func LoadDefault() (*Tables, error) {
	var doc Document
	if err := json.Unmarshal(defaultTables, &doc); err != nil {
		return nil, fmt.Errorf("intel: parse embedded tables: %w", err)
	}
	return New(doc), nil
}

// New builds immutable tables from a document. Domain entries are folded to
// lower case, hashes to lower-case hex.
func New(doc Document) *Tables {
	t := &Tables{
		disposableDomains: toSet(doc.DisposableDomains),
		trustedProviders:  toSet(doc.TrustedProviders),
		shortenerDomains:  toSet(doc.ShortenerDomains),
		suspiciousTLDs:    toSet(doc.SuspiciousTLDs),
		highValueDomains:  lowerAll(doc.HighValueDomains),
		confusables:       make(map[rune]rune, len(doc.Confusables)),
		maliciousDomains:  make(map[string]string, len(doc.MaliciousDomains)),
		maliciousHashes:   make(map[string]string, len(doc.MaliciousHashes)),
		knownGoodHashes:   toSet(doc.KnownGoodHashes),
	}

	for name, category := range doc.MaliciousDomains {
		t.maliciousDomains[strings.ToLower(name)] = category
	}

	for from, to := range doc.Confusables {
		fromRunes := []rune(from)
		toRunes := []rune(to)
		if len(fromRunes) != 1 || len(toRunes) != 1 {
			continue
		}
		t.confusables[fromRunes[0]] = toRunes[0]
	}

	for hash, family := range doc.MaliciousHashes {
		t.maliciousHashes[strings.ToLower(hash)] = family
	}

	return t
}

func (t *Tables) IsDisposableDomain(domain string) bool {
	_, found := t.disposableDomains[strings.ToLower(domain)]
	return found
}

func (t *Tables) IsTrustedProvider(domain string) bool {
	_, found := t.trustedProviders[strings.ToLower(domain)]
	return found
}

func (t *Tables) IsShortenerDomain(domain string) bool {
	_, found := t.shortenerDomains[strings.ToLower(domain)]
	return found
}

// IsSuspiciousTLD matches the last label of the domain against the table.
func (t *Tables) IsSuspiciousTLD(domain string) bool {
	idx := strings.LastIndex(domain, ".")
	if idx < 0 || idx == len(domain)-1 {
		return false
	}
	_, found := t.suspiciousTLDs[strings.ToLower(domain[idx+1:])]
	return found
}

// HighValueDomains returns the typosquat candidate list. Callers must not
// mutate the returned slice.
func (t *Tables) HighValueDomains() []string {
	return t.highValueDomains
}

// FoldConfusable maps a confusable rune to its ASCII look-alike. The second
// return reports whether the rune is a known confusable.
func (t *Tables) FoldConfusable(r rune) (rune, bool) {
	folded, found := t.confusables[r]
	return folded, found
}

// MaliciousDomainCategory reports the listing category of a known-bad
// domain ("phishing", "malware", ...).
func (t *Tables) MaliciousDomainCategory(domain string) (string, bool) {
	category, found := t.maliciousDomains[strings.ToLower(domain)]
	return category, found
}

// MaliciousFamily reports the malware family of a known-bad hash.
func (t *Tables) MaliciousFamily(hash string) (string, bool) {
	family, found := t.maliciousHashes[strings.ToLower(hash)]
	return family, found
}

func (t *Tables) IsKnownGoodHash(hash string) bool {
	_, found := t.knownGoodHashes[strings.ToLower(hash)]
	return found
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
