package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/papergest/internal/paper"
)

func TestStatsSnapshotPercentiles(t *testing.T) {
	stats := NewStats(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		stats.RecordResult(paper.FormatArXiv, time.Duration(ms)*time.Millisecond, Summary{}, nil)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 {
		t.Fatalf("expected min=100, got %d", snap.MinMs)
	}
	if snap.MaxMs != 500 {
		t.Fatalf("expected max=500, got %d", snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestStatsPrunesExpiredSamples(t *testing.T) {
	now := time.Now()
	stats := NewStats(10 * time.Minute)
	stats.now = func() time.Time { return now }
	stats.RecordResult(paper.FormatArXiv, 100*time.Millisecond, Summary{}, nil)

	now = now.Add(11 * time.Minute)
	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.RecordResult(paper.FormatPubMed, 200*time.Millisecond, Summary{}, nil)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestStatsFailuresAndFormats(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.RecordResult(paper.FormatArXiv, 10*time.Millisecond, Summary{Tables: 2, Figures: 1, Mentions: 4}, nil)
	stats.RecordResult(paper.FormatPubMed, 20*time.Millisecond, Summary{Figures: 3, Mentions: 1}, nil)
	stats.RecordResult(paper.FormatPubMed, 5*time.Millisecond, Summary{}, errors.New("bad xml"))

	snap := stats.Snapshot()
	if snap.Count != 3 || snap.Failures != 1 {
		t.Fatalf("expected count=3 failures=1, got count=%d failures=%d", snap.Count, snap.Failures)
	}
	if snap.ByFormat["arxiv"] != 1 || snap.ByFormat["pubmed"] != 2 {
		t.Errorf("unexpected per-format counts: %v", snap.ByFormat)
	}
	if snap.Items != 6 || snap.Mentions != 5 {
		t.Errorf("expected items=6 mentions=5, got items=%d mentions=%d", snap.Items, snap.Mentions)
	}
	// Failed extractions do not count toward latency.
	if snap.MinMs != 10 || snap.MaxMs != 20 {
		t.Errorf("expected latency over successes only, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestStatsClampsNegativeDuration(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.RecordResult(paper.FormatArXiv, -10*time.Millisecond, Summary{}, nil)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestStatsEmptySnapshot(t *testing.T) {
	snap := NewStats(0).Snapshot()
	if snap.Count != 0 || snap.ByFormat == nil {
		t.Errorf("expected empty snapshot with non-nil map, got %+v", snap)
	}
}
