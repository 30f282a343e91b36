package slack

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Middleware throttles Slack members who post faster than the pipeline
// should process.
type Middleware struct {
	logger  zerolog.Logger
	limiter *RateLimiter
}

// NewMiddleware allows each member maxMessages per window.
func NewMiddleware(logger zerolog.Logger, maxMessages int, window time.Duration) *Middleware {
	return &Middleware{
		logger:  logger.With().Str("component", "slack.middleware").Logger(),
		limiter: NewRateLimiter(maxMessages, window),
	}
}

// CheckRateLimit reports whether a message from slackUser may be processed.
// Only the first rejection of a burst is logged.
func (m *Middleware) CheckRateLimit(slackUser string) bool {
	ok, wait, first := m.limiter.reserve(slackUser)
	if !ok && first {
		m.logger.Warn().Str("slack_user", slackUser).Dur("retry_after", wait).Msg("rate limited")
	}
	return ok
}

// memberLog is the timestamps of a member's accepted messages, oldest first.
type memberLog struct {
	accepted []time.Time
	rejected bool
}

// RateLimiter is a sliding-window limiter keyed by Slack member.
type RateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
	logs   map[string]*memberLog
	calls  int
}

// NewRateLimiter allows max events per window per key.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max < 1 {
		max = 1
	}
	return &RateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
		logs:   make(map[string]*memberLog),
	}
}

// Allow records an event for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(key string) bool {
	ok, _, _ := r.reserve(key)
	return ok
}

// reserve is Allow that also returns how long until the next slot frees up
// and whether this is the first rejection since the key was last allowed.
func (r *RateLimiter) reserve(key string) (ok bool, wait time.Duration, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.calls++
	if r.calls%256 == 0 {
		r.sweep(now)
	}

	l, found := r.logs[key]
	if !found {
		l = &memberLog{}
		r.logs[key] = l
	}
	l.accepted = trim(l.accepted, now.Add(-r.window))

	if len(l.accepted) >= r.max {
		first = !l.rejected
		l.rejected = true
		return false, l.accepted[0].Add(r.window).Sub(now), first
	}
	l.accepted = append(l.accepted, now)
	l.rejected = false
	return true, 0, false
}

// sweep drops members with no events inside the window. Caller holds mu.
func (r *RateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-r.window)
	for key, l := range r.logs {
		if len(trim(l.accepted, cutoff)) == 0 {
			delete(r.logs, key)
		}
	}
}

func (r *RateLimiter) members() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

// trim drops timestamps at or before cutoff.
func trim(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
