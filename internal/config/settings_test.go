package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	if err := LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults returned error: %v", err)
	}

	cfg := GetConfig()

	vt, found := cfg.RateLimits["virustotal"]
	if !found {
		t.Fatal("default settings should carry a virustotal rate limit")
	}
	if vt.MaxRequests != 4 || vt.WindowSeconds != 60 {
		t.Fatalf("virustotal limit = %+v, want 4/60s", vt)
	}

	if cfg.Cache.TTLSeconds["whois"] != 604800 {
		t.Fatalf("whois TTL = %d, want 604800", cfg.Cache.TTLSeconds["whois"])
	}
	if cfg.Cache.MaxEntries != 10000 {
		t.Fatalf("cache max entries = %d, want 10000", cfg.Cache.MaxEntries)
	}
	if cfg.Analyzers.DNSTimeoutMs == 0 {
		t.Fatal("DNS timeout should have a default")
	}
	if len(cfg.ThreatIntel) == 0 {
		t.Fatal("default settings should list at least one threat-intel source")
	}
}

func TestCalculateInterval(t *testing.T) {
	if got := calculateInterval(Timer{}, time.Hour); got != time.Hour {
		t.Fatalf("all-zero timer = %v, want fallback %v", got, time.Hour)
	}
	if got := calculateInterval(Timer{Minutes: 90}, time.Hour); got != 90*time.Minute {
		t.Fatalf("90m timer = %v, want 90m", got)
	}
	if got := calculateInterval(Timer{Days: 1, Hours: 2}, 0); got != 26*time.Hour {
		t.Fatalf("1d2h timer = %v, want 26h", got)
	}
}

func TestSweepIntervalUpdates(t *testing.T) {
	if err := LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults returned error: %v", err)
	}

	updates := CacheSweepIntervalUpdates()
	first := <-updates
	if first <= 0 {
		t.Fatalf("initial sweep interval = %v, want > 0", first)
	}

	cfg := GetConfig()
	cfg.Cache.SweepTimer = Timer{Minutes: 5}
	applyConfigUpdate(cfg, "test")

	select {
	case got := <-updates:
		if got != 5*time.Minute {
			t.Fatalf("updated interval = %v, want 5m", got)
		}
	case <-time.After(time.Second):
		t.Fatal("interval update was not delivered")
	}
}
