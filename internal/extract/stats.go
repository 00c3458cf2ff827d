package extract

import (
	"slices"
	"sync"
	"time"

	"github.com/dgallion1/papergest/internal/paper"
)

type sample struct {
	at      time.Time
	ms      int64
	kind    paper.FormatKind
	failed  bool
	items   int
	mention int
}

// StatsSnapshot aggregates the extractions seen within the window.
type StatsSnapshot struct {
	Count    int            `json:"count"`
	Failures int            `json:"failures"`
	ByFormat map[string]int `json:"by_format"`
	Items    int            `json:"items"`
	Mentions int            `json:"mentions"`
	MinMs    int64          `json:"min_ms"`
	MaxMs    int64          `json:"max_ms"`
	AvgMs    float64        `json:"avg_ms"`
	P50Ms    float64        `json:"p50_ms"`
	P95Ms    float64        `json:"p95_ms"`
	P99Ms    float64        `json:"p99_ms"`
}

// Stats keeps a rolling window of extraction outcomes. Safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		window:  window,
		now:     time.Now,
	}
}

// RecordResult adds an extraction outcome with its format and link counts.
func (s *Stats) RecordResult(kind paper.FormatKind, d time.Duration, sum Summary, err error) {
	s.add(sample{
		ms:      d.Milliseconds(),
		kind:    kind,
		failed:  err != nil,
		items:   sum.Tables + sum.Figures,
		mention: sum.Mentions,
	})
}

func (s *Stats) add(sm sample) {
	if sm.ms < 0 {
		sm.ms = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sm.at = s.now()
	s.pruneLocked(sm.at)
	s.samples = append(s.samples, sm)
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap := StatsSnapshot{ByFormat: map[string]int{}}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		snap.ByFormat[sm.kind.String()]++
		if sm.failed {
			snap.Failures++
			continue
		}
		snap.Items += sm.items
		snap.Mentions += sm.mention
		values = append(values, sm.ms)
		sum += sm.ms
	}
	snap.Count = len(s.samples)
	if len(values) == 0 {
		return snap
	}
	slices.Sort(values)

	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(index-float64(lower))
}
