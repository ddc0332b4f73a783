package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrQuotaExhausted is returned when the upstream quota has no calls left.
var ErrQuotaExhausted = errors.New("upstream quota exhausted")

var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvest_quota_remaining",
		Help: "Calls remaining in the current upstream quota window",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_quota_blocks_total",
		Help: "Requests refused locally because the upstream quota was exhausted",
	})
)

// Tracker records quota state from response headers and gates requests.
// It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	state  QuotaState
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker with no known quota (every request allowed).
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger,
		now:    time.Now,
	}
}

// State returns a copy of the current quota snapshot.
func (t *Tracker) State() QuotaState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromHeaders parses the quota headers of a response.
// Responses without X-RateLimit-Remaining leave the state untouched.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit := 0
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	resetSeconds := 0
	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		if resetSeconds, err = strconv.Atoi(resetStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
	}

	now := t.now()
	state := QuotaState{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
		Known:      true,
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	quotaRemaining.Set(float64(remain))

	if state.NeedsWarning() {
		t.logger.Warn().
			Int("remaining", remain).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Msg("Upstream quota running low")
	} else {
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("Upstream quota updated")
	}

	return nil
}

// ShouldAllowRequest returns ErrQuotaExhausted while the quota is used up.
func (t *Tracker) ShouldAllowRequest() error {
	now := t.now()
	state := t.State()

	if state.Exhausted(now) {
		wait := state.TimeUntilReset(now)
		t.logger.Error().
			Dur("wait_duration", wait).
			Msg("Upstream quota exhausted - refusing request")
		quotaBlocksTotal.Inc()
		return fmt.Errorf("%w: resets in %s", ErrQuotaExhausted, wait.Round(time.Second))
	}

	return nil
}
