package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/papergest/internal/chunker"
	"github.com/dgallion1/papergest/internal/extract"
	"github.com/dgallion1/papergest/internal/index"
	"github.com/dgallion1/papergest/internal/paper"
	"github.com/dgallion1/papergest/internal/parser"
)

// Worker processes a single paper job.
type Worker struct {
	idx      index.Index
	stats    *extract.Stats
	log      *slog.Logger
	chunkCfg chunker.Config
	timeout  time.Duration

	// backoff is Backoff outside of tests.
	backoff func(int) time.Duration
}

func NewWorker(idx index.Index, stats *extract.Stats, log *slog.Logger, chunkCfg chunker.Config, timeout time.Duration) *Worker {
	return &Worker{
		idx:      idx,
		stats:    stats,
		log:      log,
		chunkCfg: chunkCfg,
		timeout:  timeout,
		backoff:  Backoff,
	}
}

// Process runs dedup, parse, extract, merge and index for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "paper_id", job.PaperID)
	defer job.release()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	// Phase 1: Dedup
	if !job.Force {
		var exists bool
		err := retry(ctx, log, "exists", w.backoff, func() error {
			var err error
			exists, err = w.idx.Exists(ctx, job.PaperID)
			return err
		})
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if exists {
			log.Info("paper already indexed, skipping")
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Parse
	job.SetStatus(StatusParsing, "parsing")
	start := time.Now()
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.Fail("parsing", err)
		return
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		w.record(job.Kind, start, extract.Summary{}, err)
		job.Fail("parsing", fmt.Errorf("parse: %w", err))
		return
	}

	// Phase 3: Extract
	job.SetStatus(StatusExtracting, "extracting")
	rec, sum := extract.Process(doc, extract.Input{PaperID: job.PaperID, Kind: job.Kind})
	w.record(job.Kind, start, sum, nil)
	if err := ctx.Err(); err != nil {
		job.Fail("extracting", err)
		return
	}

	article := paper.NewArticle(*rec, job.meta, job.Kind)
	d := index.NewDocument(&article, w.chunkCfg)
	job.SetSummary(sum, len(d.Passages))
	log.Info("extraction complete", "tables", sum.Tables, "figures", sum.Figures, "passages", len(d.Passages))

	// Phase 4: Index
	job.SetStatus(StatusIndexing, "indexing")
	err = retry(ctx, log, "index", w.backoff, func() error {
		return w.idx.IndexArticle(ctx, d)
	})
	if err != nil {
		log.Error("index failed", "error", err)
		job.Fail("indexing", fmt.Errorf("index: %w", err))
		return
	}

	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) record(kind paper.FormatKind, start time.Time, sum extract.Summary, err error) {
	if w.stats != nil {
		w.stats.RecordResult(kind, time.Since(start), sum, err)
	}
}
