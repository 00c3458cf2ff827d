package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/papergest/internal/extract"
	"github.com/dgallion1/papergest/internal/paper"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob_FromFilename(t *testing.T) {
	meta := &paper.Metadata{Title: "Coffee"}
	job := NewJob("j1", "PMC999.xml", []byte("<article/>"), meta, true)

	if job.PaperID != "PMC999" {
		t.Errorf("expected paper id PMC999, got %q", job.PaperID)
	}
	if job.Kind != paper.FormatPubMed {
		t.Errorf("expected pubmed kind, got %v", job.Kind)
	}
	if job.Status != StatusQueued || !job.Force {
		t.Errorf("unexpected initial state %+v", job.Snapshot())
	}
	if job.ContentHash != ContentHashHex([]byte("<article/>")) {
		t.Errorf("expected content hash of the upload, got %q", job.ContentHash)
	}
	if snap := job.Snapshot(); snap.Format != "pubmed" {
		t.Errorf("expected format pubmed in snapshot, got %q", snap.Format)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusExtracting, "extracting"},
		{StatusIndexing, "indexing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	for _, s := range []JobStatus{StatusCompleted, StatusFailed, StatusDupSkipped} {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	for _, s := range []JobStatus{StatusQueued, StatusParsing, StatusExtracting, StatusIndexing} {
		if s.Terminal() {
			t.Errorf("expected %q not to be terminal", s)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("parse: no elements")
	job.AddError("index: busy")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "parse: no elements" {
		t.Errorf("expected first error %q, got %q", "parse: no elements", snap.Progress.Errors[0])
	}
}

func TestJob_SetSummary(t *testing.T) {
	job := &Job{ID: "sum-test", UpdatedAt: time.Now()}
	job.SetSummary(extract.Summary{Tables: 2, Figures: 3, Paragraphs: 10, Mentions: 4, Context: 5}, 7)

	p := job.Snapshot().Progress
	if p.Tables != 2 || p.Figures != 3 || p.Paragraphs != 10 || p.Mentions != 4 || p.Context != 5 || p.Passages != 7 {
		t.Errorf("unexpected progress %+v", p)
	}
}

func TestJob_ReleaseDropsFileData(t *testing.T) {
	job := NewJob("j", "2401.00001.html", []byte("<html/>"), nil, false)
	if string(job.FileData()) != "<html/>" {
		t.Fatalf("expected file data, got %q", job.FileData())
	}
	job.release()
	if job.FileData() != nil {
		t.Error("expected file data to be released")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	store.Put(&Job{ID: "old", UpdatedAt: time.Now()})
	time.Sleep(100 * time.Millisecond)
	store.Put(&Job{ID: "new", UpdatedAt: time.Now()})

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job left, got %d", store.Len())
	}
}
