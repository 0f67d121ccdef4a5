package config

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer expresses an interval in the settings file as calendar components.
type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

const (
	defaultCacheSweepInterval = time.Hour
	defaultHistoryRetention   = 30 * 24 * time.Hour
	minInterval               = time.Second
)

var (
	cacheSweepInterval   atomic.Value
	historyRetention     atomic.Value
	sweepIntervalClients []chan time.Duration
	listenersMu          sync.Mutex
)

func init() {
	cacheSweepInterval.Store(defaultCacheSweepInterval)
	historyRetention.Store(defaultHistoryRetention)
}

// SetIntervals recomputes the derived durations after a config change.
func SetIntervals() {
	cfg := GetConfig()
	setCacheSweepInterval(calculateInterval(cfg.Cache.SweepTimer, defaultCacheSweepInterval))
	historyRetention.Store(calculateInterval(cfg.History.RetentionTimer, defaultHistoryRetention))
}

// CalculateInterval converts a Timer to a duration with a fallback for the
// all-zero timer and a one-second floor.
func calculateInterval(timer Timer, fallback time.Duration) time.Duration {
	ms := uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000

	if ms == 0 {
		return fallback
	}

	interval := time.Duration(ms) * time.Millisecond
	if interval < minInterval {
		interval = minInterval
	}
	return interval
}

func GetCacheSweepInterval() time.Duration {
	return cacheSweepInterval.Load().(time.Duration)
}

func GetHistoryRetention() time.Duration {
	return historyRetention.Load().(time.Duration)
}

// CacheSweepIntervalUpdates delivers the current interval immediately and
// every later change. Used by the sweep routine to reschedule dynamically.
func CacheSweepIntervalUpdates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	listenersMu.Lock()
	sweepIntervalClients = append(sweepIntervalClients, ch)
	listenersMu.Unlock()

	ch <- GetCacheSweepInterval()
	return ch
}

func setCacheSweepInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultCacheSweepInterval
	}

	current := GetCacheSweepInterval()
	if current == interval {
		return
	}

	cacheSweepInterval.Store(interval)

	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, ch := range sweepIntervalClients {
		select {
		case ch <- interval:
		default:
		}
	}
}
