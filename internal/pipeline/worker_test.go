package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/papergest/internal/chunker"
	"github.com/dgallion1/papergest/internal/config"
	"github.com/dgallion1/papergest/internal/extract"
	"github.com/dgallion1/papergest/internal/index"
	"github.com/dgallion1/papergest/internal/paper"
)

// fakeIndex records indexed documents and can fail a number of times.
type fakeIndex struct {
	mu        sync.Mutex
	docs      map[string]index.Document
	failIndex []error
	calls     int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]index.Document)}
}

func (f *fakeIndex) Init(context.Context) error { return nil }

func (f *fakeIndex) IndexArticle(_ context.Context, d index.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.failIndex) > 0 {
		err := f.failIndex[0]
		f.failIndex = f.failIndex[1:]
		return err
	}
	f.docs[d.Article.PaperID] = d
	return nil
}

func (f *fakeIndex) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[id]
	return ok, nil
}

func (f *fakeIndex) Get(_ context.Context, id string) (*paper.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, index.ErrNotFound
	}
	return d.Article, nil
}

func (f *fakeIndex) Delete(context.Context, string) error { return nil }
func (f *fakeIndex) List(context.Context, int, int) ([]index.Summary, error) {
	return nil, nil
}
func (f *fakeIndex) Search(context.Context, index.Query) ([]index.Hit, error) { return nil, nil }
func (f *fakeIndex) Counts(context.Context) (index.Counts, error)              { return index.Counts{}, nil }
func (f *fakeIndex) Close() error                                              { return nil }

const arxivPage = `<html><body><article class="ltx_document">
<figure class="ltx_figure"><img src="x1.png"><figcaption>Results of the deep learning model</figcaption></figure>
<p><a href="#fig_0">see Figure 1</a></p>
<p>The deep learning model achieved strong results.</p>
</article></body></html>`

func newTestWorker(idx index.Index, stats *extract.Stats) *Worker {
	w := NewWorker(idx, stats, slog.New(slog.DiscardHandler), chunker.Config{Size: 5, Overlap: 0, MinWords: 1}, time.Minute)
	w.backoff = func(int) time.Duration { return time.Millisecond }
	return w
}

func TestWorker_ProcessIndexesArticle(t *testing.T) {
	idx := newFakeIndex()
	stats := extract.NewStats(time.Hour)
	meta := &paper.Metadata{Title: "Deep Results", Authors: []string{"Ada"}, Published: "2024-01-02", Source: "arxiv"}
	job := NewJob("j1", "2401.00001.html", []byte(arxivPage), meta, false)

	newTestWorker(idx, stats).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Figures != 1 || snap.Progress.Mentions != 1 || snap.Progress.Passages == 0 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	d, ok := idx.docs["2401.00001"]
	if !ok {
		t.Fatal("expected article to be indexed")
	}
	if d.Article.Title != "Deep Results" || d.Article.Date != "2024-01-02" {
		t.Errorf("expected metadata merged, got title=%q date=%q", d.Article.Title, d.Article.Date)
	}
	if len(d.Passages) != snap.Progress.Passages {
		t.Errorf("expected %d passages, got %d", snap.Progress.Passages, len(d.Passages))
	}
	if s := stats.Snapshot(); s.Count != 1 || s.Failures != 0 {
		t.Errorf("expected one successful extraction recorded, got %+v", s)
	}
	if job.FileData() != nil {
		t.Error("expected file data released after processing")
	}
}

func TestWorker_DuplicateSkipped(t *testing.T) {
	idx := newFakeIndex()
	idx.docs["2401.00001"] = index.Document{Article: &paper.Article{}}
	job := NewJob("j2", "2401.00001.html", []byte(arxivPage), nil, false)

	newTestWorker(idx, nil).Process(context.Background(), job)

	if job.Snapshot().Status != StatusDupSkipped {
		t.Errorf("expected duplicate_skipped, got %q", job.Snapshot().Status)
	}
	if idx.calls != 0 {
		t.Errorf("expected no index calls, got %d", idx.calls)
	}
}

func TestWorker_ForceReindexes(t *testing.T) {
	idx := newFakeIndex()
	idx.docs["2401.00001"] = index.Document{Article: &paper.Article{}}
	job := NewJob("j3", "2401.00001.html", []byte(arxivPage), nil, true)

	newTestWorker(idx, nil).Process(context.Background(), job)

	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed, got %q", job.Snapshot().Status)
	}
	if got := idx.docs["2401.00001"].Article.Title; got != "2401.00001" {
		t.Errorf("expected paper id as fallback title, got %q", got)
	}
}

func TestWorker_ParseFailure(t *testing.T) {
	stats := extract.NewStats(time.Hour)
	job := NewJob("j4", "PMC5.xml", []byte("not markup"), nil, false)

	newTestWorker(newFakeIndex(), stats).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("expected failed in parsing, got %q/%q", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", snap.Progress.Errors)
	}
	if s := stats.Snapshot(); s.Failures != 1 {
		t.Errorf("expected failure recorded, got %+v", s)
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	job := NewJob("j5", "paper.pdf", []byte("%PDF"), nil, false)
	newTestWorker(newFakeIndex(), nil).Process(context.Background(), job)
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected failed, got %q", job.Snapshot().Status)
	}
}

func TestWorker_RetriesRetryableIndexErrors(t *testing.T) {
	idx := newFakeIndex()
	busy := &index.RetryableError{Err: errors.New("database is locked")}
	idx.failIndex = []error{busy, busy}
	job := NewJob("j6", "2401.00001.html", []byte(arxivPage), nil, false)

	newTestWorker(idx, nil).Process(context.Background(), job)

	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed after retries, got %q", job.Snapshot().Status)
	}
	if idx.calls != 3 {
		t.Errorf("expected 3 index attempts, got %d", idx.calls)
	}
}

func TestWorker_GivesUpAfterMaxRetries(t *testing.T) {
	idx := newFakeIndex()
	busy := &index.RetryableError{Err: errors.New("503")}
	idx.failIndex = []error{busy, busy, busy, busy}
	job := NewJob("j7", "2401.00001.html", []byte(arxivPage), nil, false)

	newTestWorker(idx, nil).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "indexing" {
		t.Errorf("expected failed in indexing, got %q/%q", snap.Status, snap.Phase)
	}
	if idx.calls != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, idx.calls)
	}
}

func TestWorker_NonRetryableErrorFailsImmediately(t *testing.T) {
	idx := newFakeIndex()
	idx.failIndex = []error{errors.New("disk full")}
	job := NewJob("j8", "2401.00001.html", []byte(arxivPage), nil, false)

	newTestWorker(idx, nil).Process(context.Background(), job)

	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected failed, got %q", job.Snapshot().Status)
	}
	if idx.calls != 1 {
		t.Errorf("expected a single attempt, got %d", idx.calls)
	}
}

func TestOrchestrator_SubmitAndProcess(t *testing.T) {
	idx := newFakeIndex()
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, JobTTL: time.Hour, PassageSize: 50, ExtractTimeout: time.Minute}
	o := NewOrchestrator(cfg, extract.New(), idx, slog.New(slog.DiscardHandler))
	o.Start(context.Background())

	job := NewJob("oj", "2401.00001.html", []byte(arxivPage), nil, false)
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.Snapshot().Status.Terminal() {
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", job.Snapshot().Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	o.Stop()

	if o.GetJob("oj") != job {
		t.Error("expected job to be retrievable")
	}
	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed, got %q", job.Snapshot().Status)
	}
	if o.Index() != index.Index(idx) {
		t.Error("expected orchestrator to expose its index")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, extract.New(), newFakeIndex(), slog.New(slog.DiscardHandler))
	// Not started: the queue fills.
	if err := o.Submit(NewJob("a", "2401.00001.html", nil, nil, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := NewJob("b", "2401.00002.html", nil, nil, false)
	if err := o.Submit(b); err == nil {
		t.Fatal("expected queue full error")
	}
	if b.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", b.Snapshot().Status)
	}
}
