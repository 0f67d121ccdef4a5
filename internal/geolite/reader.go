package geolite

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"
)

// ErrNotConfigured indicates that no GeoLite database path was supplied.
var ErrNotConfigured = errors.New("geolite: database path is not configured")

// Reader resolves IP addresses to countries from a local GeoLite2 database.
// The DNS analyzer uses it to annotate resolved hosts; a missing database
// simply disables the enrichment.
type Reader struct {
	mu sync.Mutex
	db *geoip2.Reader
}

// Open loads the country database at the given path. An empty path returns
// ErrNotConfigured so callers can treat GeoIP as optional.
func Open(path string) (*Reader, error) {
	if path == "" {
		return nil, ErrNotConfigured
	}

	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: open %s: %w", path, err)
	}

	log.Debug("GeoLite database loaded", "path", path)
	return &Reader{db: db}, nil
}

// Country returns the ISO country code for an IP, or "" when the address is
// unknown or unparsable.
func (r *Reader) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return ""
	}

	record, err := r.db.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
