package integration

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CostRule assigns a token cost to actions matching Pattern
// (trailing-* glob, same semantics as capability matching).
type CostRule struct {
	Pattern string
	Cost    int
}

// CostTable resolves an action name to its token cost, falling back to
// DefaultCost when no rule matches (spec §4.13).
type CostTable struct {
	Rules       []CostRule
	DefaultCost int
}

// CostFor returns the first matching rule's cost, or DefaultCost.
func (t CostTable) CostFor(action string) int {
	for _, r := range t.Rules {
		if ruleMatches(r.Pattern, action) {
			return r.Cost
		}
	}
	if t.DefaultCost <= 0 {
		return 1
	}
	return t.DefaultCost
}

func ruleMatches(pattern, action string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(action, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == action
}

// Limiter is a per-identity token-bucket rate limiter: each distinct
// key (typically a user or agent ID) gets its own bucket, sized and
// refilled per the configured rate.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	costs    CostTable
}

// NewLimiter builds a Limiter refilling at rps tokens/sec with the
// given burst capacity and per-action cost table.
func NewLimiter(rps float64, burst int, costs CostTable) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		costs:   costs,
	}
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Allow reports whether action may proceed for key right now,
// debiting its bucket by the action's configured cost.
func (l *Limiter) Allow(key, action string) bool {
	cost := l.costs.CostFor(action)
	return l.bucketFor(key).AllowN(time.Now(), cost)
}
