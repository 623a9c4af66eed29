package quota

import (
	"context"
	"sync"
	"time"

	"github.com/threadbrief/core/internal/pkg/clock"
)

// Decision is the outcome of a quota check. When Allowed is false, ResetAt
// is the next UTC midnight at which the requester's bucket resets.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces a per-requester, per-UTC-day quota.
//
// CheckAndIncrement is atomic per key: a denied call never increments the
// counter, and concurrent calls racing for the last slot admit exactly one.
// Refund gives back one slot in the current bucket; it exists for the
// refund-on-failure policy and never drives a counter below zero.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, key string) (Decision, error)
	Refund(ctx context.Context, key string) error
}

// DayBucket formats the UTC calendar day partition for a quota key.
func DayBucket(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// NextUTCDay returns the upcoming UTC midnight.
func NextUTCDay(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// MemoryLimiter is the in-process Limiter. Counters for past days are swept
// lazily when the bucket rolls over.
type MemoryLimiter struct {
	mu       sync.Mutex
	counts   map[string]int
	limit    int
	clk      clock.Clock
	sweepDay string
}

func NewMemoryLimiter(limit int, clk clock.Clock) *MemoryLimiter {
	if clk == nil {
		clk = clock.System()
	}
	return &MemoryLimiter{
		counts: make(map[string]int),
		limit:  limit,
		clk:    clk,
	}
}

func bucketKey(key, day string) string { return key + "@" + day }

func (m *MemoryLimiter) CheckAndIncrement(_ context.Context, key string) (Decision, error) {
	now := m.clk.Now()
	day := DayBucket(now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(day)

	bk := bucketKey(key, day)
	count := m.counts[bk]
	if count >= m.limit {
		return Decision{Allowed: false, ResetAt: NextUTCDay(now)}, nil
	}
	m.counts[bk] = count + 1
	return Decision{Allowed: true, Remaining: m.limit - count - 1}, nil
}

func (m *MemoryLimiter) Refund(_ context.Context, key string) error {
	day := DayBucket(m.clk.Now())
	bk := bucketKey(key, day)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[bk] > 0 {
		m.counts[bk]--
	}
	return nil
}

// sweepLocked drops counters from previous day buckets once the day changes.
func (m *MemoryLimiter) sweepLocked(day string) {
	if m.sweepDay == day {
		return
	}
	suffix := "@" + day
	for k := range m.counts {
		if len(k) < len(suffix) || k[len(k)-len(suffix):] != suffix {
			delete(m.counts, k)
		}
	}
	m.sweepDay = day
}
