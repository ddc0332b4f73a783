// Package ratelimit keeps the harvester inside the upstream API quota.
// It tracks the X-RateLimit-* headers the directory API returns and paces
// outgoing requests on the client side.
package ratelimit

import (
	"time"
)

// Quota headers returned by the upstream API.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// QuotaThresholdWarning triggers a warning log once fewer calls than this
// remain in the current quota window.
const QuotaThresholdWarning = 50

// QuotaState is the last quota snapshot seen on a response.
type QuotaState struct {
	// Limit is the size of the quota window (X-RateLimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the number of calls left (X-RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets, derived from X-RateLimit-Reset
	// (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the snapshot was taken.
	LastUpdate time.Time `json:"last_update"`

	// Known is false until a response carried quota headers.
	Known bool `json:"known"`
}

// Exhausted reports whether no calls remain and the window has not reset yet.
func (s QuotaState) Exhausted(now time.Time) bool {
	return s.Known && s.Remaining <= 0 && now.Before(s.ResetAt)
}

// NeedsWarning reports whether the quota is running low but not exhausted.
func (s QuotaState) NeedsWarning() bool {
	return s.Known && s.Remaining > 0 && s.Remaining < QuotaThresholdWarning
}

// TimeUntilReset returns the duration until the quota resets.
// Returns 0 if the reset time has already passed.
func (s QuotaState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
