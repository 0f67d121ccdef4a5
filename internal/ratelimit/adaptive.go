package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	burstWindow    = 10 * time.Second
	backoffBase    = time.Second
	backoffFactor  = 2.0
	maxBackoff     = 5 * time.Minute
	feedbackWindow = 5 * time.Minute

	// Advisory thresholds for the rate recommendation output.
	reduceErrorRate    = 0.3
	reduceLatency      = 3 * time.Second
	increaseLatency    = 500 * time.Millisecond
	minFeedbackSamples = 5
)

// Rejection reasons surfaced to analyzers as typed results, not errors.
const (
	ReasonBackoff = "Error backoff active"
	ReasonBurst   = "Burst limit exceeded"
	ReasonWindow  = "Rate limit exceeded"
)

// Decision is the outcome of an admission attempt.
type Decision struct {
	Allowed bool
	Reason  string
}

// AdaptiveLimiter layers a burst sub-window and error-driven backoff on top
// of the sliding-window limiter. Its rate recommendations are advisory only
// and never throttle by themselves.
type AdaptiveLimiter struct {
	*Limiter

	burstCaps map[string]int

	mu       sync.Mutex
	states   map[string]*adaptiveState
	rejected uint64
}

type adaptiveState struct {
	mu sync.Mutex

	burstTimestamps   []time.Time
	consecutiveErrors int
	backoffUntil      time.Time
	samples           []responseSample
}

type responseSample struct {
	at      time.Time
	latency time.Duration
	failed  bool
}

// NewAdaptive wraps a base limiter. burstCaps maps service names to their
// 10-second burst allowance; services without a cap skip the burst check.
func NewAdaptive(base *Limiter, burstCaps map[string]int) *AdaptiveLimiter {
	caps := make(map[string]int, len(burstCaps))
	for name, burstCap := range burstCaps {
		if burstCap > 0 {
			caps[name] = burstCap
		}
	}

	return &AdaptiveLimiter{
		Limiter:   base,
		burstCaps: caps,
		states:    make(map[string]*adaptiveState),
	}
}

// TryAcquire admits or rejects a request. Backoff is checked first, then the
// burst sub-window, then the base sliding window. An admitted request is
// recorded in both windows. The whole decision runs under the service's state
// lock so two callers at the burst cap cannot both slip through.
func (a *AdaptiveLimiter) TryAcquire(service string) Decision {
	state := a.state(service)
	now := a.now()

	state.mu.Lock()
	defer state.mu.Unlock()

	if now.Before(state.backoffUntil) {
		return a.reject(ReasonBackoff)
	}

	burstCap, hasBurstCap := a.burstCaps[service]
	if hasBurstCap {
		state.pruneBurst(now)
		if len(state.burstTimestamps) >= burstCap {
			return a.reject(ReasonBurst)
		}
	}

	if !a.RecordRequest(service) {
		return a.reject(ReasonWindow)
	}

	if hasBurstCap {
		state.burstTimestamps = append(state.burstTimestamps, now)
	}

	return Decision{Allowed: true}
}

// RecordResponse feeds upstream feedback into the backoff and the advisory
// recommendation window. Backoff grows geometrically with consecutive errors
// and resets on the first non-error response.
func (a *AdaptiveLimiter) RecordResponse(service string, latency time.Duration, failed bool) {
	state := a.state(service)
	now := a.now()

	state.mu.Lock()
	defer state.mu.Unlock()

	if failed {
		state.consecutiveErrors++
		backoff := time.Duration(float64(backoffBase) * math.Pow(backoffFactor, float64(state.consecutiveErrors)))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		state.backoffUntil = now.Add(backoff)
	} else {
		state.consecutiveErrors = 0
		state.backoffUntil = time.Time{}
	}

	state.samples = append(state.samples, responseSample{at: now, latency: latency, failed: failed})
	state.pruneSamples(now)
}

func (a *AdaptiveLimiter) reject(reason string) Decision {
	a.mu.Lock()
	a.rejected++
	a.mu.Unlock()
	return Decision{Reason: reason}
}

// Rejections reports how many admission attempts have been rejected since
// construction, across all services.
func (a *AdaptiveLimiter) Rejections() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rejected
}

// BackoffActive reports whether the service currently rejects on backoff.
func (a *AdaptiveLimiter) BackoffActive(service string) bool {
	state := a.state(service)
	now := a.now()

	state.mu.Lock()
	defer state.mu.Unlock()
	return now.Before(state.backoffUntil)
}

// ShouldReduceRate advises slowing down based on the trailing feedback
// window. Purely informational.
func (a *AdaptiveLimiter) ShouldReduceRate(service string) bool {
	errRate, avgLatency, samples := a.feedback(service)
	if samples == 0 {
		return false
	}
	return errRate >= reduceErrorRate || avgLatency >= reduceLatency
}

// ShouldIncreaseRate advises speeding up when the trailing window shows a
// healthy upstream. Purely informational.
func (a *AdaptiveLimiter) ShouldIncreaseRate(service string) bool {
	errRate, avgLatency, samples := a.feedback(service)
	if samples < minFeedbackSamples {
		return false
	}
	return errRate == 0 && avgLatency <= increaseLatency
}

func (a *AdaptiveLimiter) feedback(service string) (errRate float64, avgLatency time.Duration, samples int) {
	state := a.state(service)
	now := a.now()

	state.mu.Lock()
	defer state.mu.Unlock()

	state.pruneSamples(now)
	samples = len(state.samples)
	if samples == 0 {
		return 0, 0, 0
	}

	var failed int
	var total time.Duration
	for _, s := range state.samples {
		if s.failed {
			failed++
		}
		total += s.latency
	}

	return float64(failed) / float64(samples), total / time.Duration(samples), samples
}

func (a *AdaptiveLimiter) state(service string) *adaptiveState {
	a.mu.Lock()
	defer a.mu.Unlock()

	if state, found := a.states[service]; found {
		return state
	}

	state := &adaptiveState{}
	a.states[service] = state
	return state
}

func (s *adaptiveState) pruneBurst(now time.Time) {
	cutoff := now.Add(-burstWindow)
	kept := s.burstTimestamps[:0]
	for _, ts := range s.burstTimestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.burstTimestamps = kept
}

func (s *adaptiveState) pruneSamples(now time.Time) {
	cutoff := now.Add(-feedbackWindow)
	kept := s.samples[:0]
	for _, sample := range s.samples {
		if sample.at.After(cutoff) {
			kept = append(kept, sample)
		}
	}
	s.samples = kept
}
