package domain

import "time"

// RateLimit is the immutable per-service quota configuration.
type RateLimit struct {
	MaxRequests   int
	WindowSeconds int
}

func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}
