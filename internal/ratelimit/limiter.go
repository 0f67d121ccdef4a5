package ratelimit

import (
	"sync"
	"time"

	"kestrel/internal/domain"
)

// DefaultService is the limit adopted by unknown service names.
const DefaultService = "default"

// DefaultLimits covers the upstreams the analyzers talk to out of the box.
var DefaultLimits = map[string]domain.RateLimit{
	"virustotal":   {MaxRequests: 4, WindowSeconds: 60},
	"dns":          {MaxRequests: 100, WindowSeconds: 60},
	"whois":        {MaxRequests: 10, WindowSeconds: 60},
	"tls":          {MaxRequests: 30, WindowSeconds: 60},
	DefaultService: {MaxRequests: 60, WindowSeconds: 60},
}

// Limiter tracks request counts per named service inside a rolling window.
// Windows are evaluated lazily by pruning stale timestamps on every call;
// there is no background timer. Each service carries its own lock so scans
// against different services never contend.
type Limiter struct {
	mu       sync.Mutex
	limits   map[string]domain.RateLimit
	services map[string]*serviceState

	now func() time.Time
}

type serviceState struct {
	mu         sync.Mutex
	limit      domain.RateLimit
	timestamps []time.Time
}

// New builds a limiter from the default limits plus the given overrides.
func New(overrides map[string]domain.RateLimit) *Limiter {
	limits := make(map[string]domain.RateLimit, len(DefaultLimits)+len(overrides))
	for name, limit := range DefaultLimits {
		limits[name] = limit
	}
	for name, limit := range overrides {
		if limit.MaxRequests <= 0 || limit.WindowSeconds <= 0 {
			continue
		}
		limits[name] = limit
	}

	return &Limiter{
		limits:   limits,
		services: make(map[string]*serviceState),
		now:      time.Now,
	}
}

// IsAllowed reports whether a request for the service would currently be
// admitted. It does not record anything.
func (l *Limiter) IsAllowed(service string) bool {
	state := l.state(service)
	now := l.now()

	state.mu.Lock()
	defer state.mu.Unlock()

	state.prune(now)
	return len(state.timestamps) < state.limit.MaxRequests
}

// RecordRequest records a request only when the service is still under its
// limit and reports whether it was recorded. Prune and append run under one
// critical section so concurrent callers cannot lose updates.
func (l *Limiter) RecordRequest(service string) bool {
	state := l.state(service)
	now := l.now()

	state.mu.Lock()
	defer state.mu.Unlock()

	state.prune(now)
	if len(state.timestamps) >= state.limit.MaxRequests {
		return false
	}
	state.timestamps = append(state.timestamps, now)
	return true
}

// Remaining reports how many requests are left in the current window.
func (l *Limiter) Remaining(service string) int {
	state := l.state(service)
	now := l.now()

	state.mu.Lock()
	defer state.mu.Unlock()

	state.prune(now)
	remaining := state.limit.MaxRequests - len(state.timestamps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetTime reports when the oldest in-window request falls out of the
// window. With no recorded requests the window is already clear.
func (l *Limiter) ResetTime(service string) time.Time {
	state := l.state(service)
	now := l.now()

	state.mu.Lock()
	defer state.mu.Unlock()

	state.prune(now)
	if len(state.timestamps) == 0 {
		return now
	}
	return state.timestamps[0].Add(state.limit.Window())
}

// Reset drops all recorded requests for the service.
func (l *Limiter) Reset(service string) {
	state := l.state(service)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.timestamps = nil
}

// Limit returns the effective limit for a service name.
func (l *Limiter) Limit(service string) domain.RateLimit {
	if limit, found := l.limits[service]; found {
		return limit
	}
	return l.limits[DefaultService]
}

// SetClock overrides the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Limiter) state(service string) *serviceState {
	l.mu.Lock()
	defer l.mu.Unlock()

	if state, found := l.services[service]; found {
		return state
	}

	state := &serviceState{limit: l.Limit(service)}
	l.services[service] = state
	return state
}

func (s *serviceState) prune(now time.Time) {
	cutoff := now.Add(-s.limit.Window())

	kept := s.timestamps[:0]
	for _, ts := range s.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.timestamps = kept
}
