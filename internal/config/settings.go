package config

import (
	_ "embed"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Config is the construction-time configuration surface of the engine:
// per-service rate limit overrides, per-kind cache TTL overrides, analyzer
// timeouts and the threat-intel source catalog.
type Config struct {
	RateLimits map[string]RateLimitConfig `json:"rate_limits"`
	BurstCaps  map[string]int             `json:"burst_caps"`

	Cache struct {
		TTLSeconds  map[string]uint32 `json:"ttl_seconds"`
		MaxEntries  int               `json:"max_entries"`
		SweepTimer  Timer             `json:"sweep_timer"`
		Persistence string            `json:"persistence"` // none | database | redis
	} `json:"cache"`

	Analyzers struct {
		DNSTimeoutMs   uint32 `json:"dns_timeout_ms"`
		WhoisTimeoutMs uint32 `json:"whois_timeout_ms"`
		TLSTimeoutMs   uint32 `json:"tls_timeout_ms"`
		IntelTimeoutMs uint32 `json:"intel_timeout_ms"`
		WhoisServer    string `json:"whois_server"`
		CheckOCSP      bool   `json:"check_ocsp"`
	} `json:"analyzers"`

	ThreatIntel []ThreatSourceConfig `json:"threat_intel"`

	History struct {
		Enabled        bool  `json:"enabled"`
		RetentionTimer Timer `json:"retention_timer"`
	} `json:"history"`

	GeoLite struct {
		DatabasePath string `json:"database_path"`
	} `json:"geolite"`
}

// RateLimitConfig mirrors domain.RateLimit in the settings file.
type RateLimitConfig struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

// ThreatSourceConfig describes one reputation upstream. APIKeyEnv names the
// environment variable holding the credential; the key itself never lives in
// the settings file.
type ThreatSourceConfig struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	APIKeyEnv   string   `json:"api_key_env"`
	Reliability float64  `json:"reliability"`
	Coverage    []string `json:"coverage"`
}

const settingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex

	InProductionMode bool
)

func init() {
	configValue.Store(Config{})
}

func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration")

			err = os.MkdirAll("data", os.ModePerm)
			if err != nil {
				log.Error("Error creating directory for settings file:", err)
				return
			}

			err = os.WriteFile(settingsFilePath, defaultConfig, os.ModePerm)
			if err != nil {
				log.Error("Error writing default settings file:", err)
				return
			}

			data = defaultConfig
		} else {
			log.Error("Error reading settings file:", err)
			return
		}
	}

	var newConfig Config
	err = json.Unmarshal(data, &newConfig)
	if err != nil {
		log.Error("Error unmarshalling settings file:", err)
		return
	}

	applyConfigUpdate(newConfig, "file")
	log.Debug("Settings file loaded successfully")
}

// LoadDefaults applies the embedded configuration without touching disk.
// Used by library embedders and tests that must not create data/.
func LoadDefaults() error {
	var newConfig Config
	if err := json.Unmarshal(defaultConfig, &newConfig); err != nil {
		return err
	}
	applyConfigUpdate(newConfig, "embedded")
	return nil
}

func applyConfigUpdate(newConfig Config, source string) {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)
	SetIntervals()

	log.Debug("Configuration applied", "source", source)
}

func GetConfig() Config {
	// Get the current Config atomically
	return configValue.Load().(Config)
}

func SetProductionMode(productionMode bool) {
	InProductionMode = productionMode
}
