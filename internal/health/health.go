// Package health reports whether the intake service can take messages: the
// store must answer, the structured extractor is optional.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the state of one dependency, or of the whole service.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) Status

// Report is the outcome of one readiness evaluation.
type Report struct {
	Status    Status            `json:"status"`
	Checks    map[string]Status `json:"checks"`
	CheckedAt time.Time         `json:"checkedAt"`
}

// Ready reports whether the service should receive traffic. Degraded
// dependencies do not block readiness.
func (r Report) Ready() bool { return r.Status != StatusDown }

// Overall folds check results into one status: any down wins, then any
// degraded.
func Overall(results map[string]Status) Status {
	out := StatusOK
	for _, s := range results {
		switch s {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			out = StatusDegraded
		}
	}
	return out
}

// Option configures a Checker.
type Option func(*Checker)

// WithCheckTimeout bounds every individual check. Default 5s.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Checker runs the registered checks and remembers the last report.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	last    Report
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewChecker creates a checker with no checks.
func NewChecker(logger zerolog.Logger, opts ...Option) *Checker {
	c := &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: 5 * time.Second,
		now:     time.Now,
		logger:  logger.With().Str("component", "health").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Register adds or replaces a named check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll runs every check concurrently and returns the per-check results.
func (c *Checker) RunAll(ctx context.Context) map[string]Status {
	return c.Evaluate(ctx).Checks
}

// Evaluate runs every check concurrently, logs checks whose status changed
// since the previous run and stores the report.
func (c *Checker) Evaluate(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	fns := make([]CheckFunc, 0, len(c.checks))
	for name, fn := range c.checks {
		names = append(names, name)
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	statuses := make([]Status, len(fns))
	var wg sync.WaitGroup
	for i := range fns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			statuses[i] = fns[i](checkCtx)
		}(i)
	}
	wg.Wait()

	results := make(map[string]Status, len(names))
	for i, name := range names {
		results[name] = statuses[i]
	}
	report := Report{Status: Overall(results), Checks: results, CheckedAt: c.now()}

	c.mu.Lock()
	prev := c.last.Checks
	c.last = report
	c.mu.Unlock()

	c.logTransitions(prev, results)
	return report
}

func (c *Checker) logTransitions(prev, cur map[string]Status) {
	names := make([]string, 0, len(cur))
	for name := range cur {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := cur[name]
		before, seen := prev[name]
		if seen && before == s {
			continue
		}
		if !seen && s == StatusOK {
			continue
		}
		ev := c.logger.Info()
		if s == StatusDown {
			ev = c.logger.Warn()
		}
		ev.Str("check", name).Str("status", string(s)).Str("previous", string(before)).Msg("health check changed")
	}
}

// IsReady evaluates the checks and reports readiness.
func (c *Checker) IsReady(ctx context.Context) bool {
	return c.Evaluate(ctx).Ready()
}

// Last returns the most recent report. Its Checks map is a copy.
func (c *Checker) Last() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.last
	out.Checks = make(map[string]Status, len(c.last.Checks))
	for k, v := range c.last.Checks {
		out.Checks[k] = v
	}
	return out
}

// Pinger is anything that can report reachability, such as *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingCheck reports down when p cannot be pinged.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) Status {
		if err := p.PingContext(ctx); err != nil {
			return StatusDown
		}
		return StatusOK
	}
}

// CapabilityCheck reports degraded when an optional capability is absent.
func CapabilityCheck(present bool) CheckFunc {
	return func(context.Context) Status {
		if present {
			return StatusOK
		}
		return StatusDegraded
	}
}

// LivenessHandler serves /health. It answers as long as the process runs.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]Status{"status": StatusOK})
	}
}

// ReadinessHandler serves /ready with the full report; 503 when a required
// dependency is down.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Evaluate(r.Context())
		code := http.StatusOK
		if !report.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
