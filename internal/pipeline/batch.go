package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/papergest/internal/chunker"
	"github.com/dgallion1/papergest/internal/extract"
	"github.com/dgallion1/papergest/internal/index"
	"github.com/dgallion1/papergest/internal/paper"
	"github.com/dgallion1/papergest/internal/parser"
)

// Batch indexes every supported document under a set of directories.
type Batch struct {
	Index       index.Index
	Stats       *extract.Stats
	Log         *slog.Logger
	ChunkCfg    chunker.Config
	Timeout     time.Duration
	Concurrency int
	Force       bool
}

// BatchResult counts outcomes by final job status.
type BatchResult struct {
	Indexed int      `json:"indexed"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// Collect lists supported documents under dirs, sorted. Metadata sidecars
// are not documents.
func Collect(dirs ...string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasSuffix(path, paper.SidecarSuffix) {
				return nil
			}
			if parser.IsSupportedExtension(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run processes files in parallel. Per-document failures are logged and
// counted; only cancellation stops the batch.
func (b *Batch) Run(ctx context.Context, files []string) (BatchResult, error) {
	log := b.Log
	if log == nil {
		log = slog.Default()
	}
	w := NewWorker(b.Index, b.Stats, log, b.ChunkCfg, b.Timeout)

	var (
		mu  sync.Mutex
		res = BatchResult{Errors: []string{}}
	)
	var g errgroup.Group
	g.SetLimit(max(b.Concurrency, 1))

	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			job, err := b.load(i, path)
			if err != nil {
				log.Warn("skipping document", "path", path, "error", err)
				mu.Lock()
				res.Failed++
				res.Errors = append(res.Errors, err.Error())
				mu.Unlock()
				return nil
			}
			w.Process(ctx, job)

			snap := job.Snapshot()
			mu.Lock()
			defer mu.Unlock()
			switch snap.Status {
			case StatusCompleted:
				res.Indexed++
			case StatusDupSkipped:
				res.Skipped++
			default:
				res.Failed++
				for _, e := range snap.Progress.Errors {
					res.Errors = append(res.Errors, path+": "+e)
				}
				log.Warn("document failed", "path", path, "phase", snap.Phase, "errors", snap.Progress.Errors)
			}
			return nil
		})
	}
	_ = g.Wait()
	return res, ctx.Err()
}

// load reads a document and its sidecar into a queued job.
func (b *Batch) load(i int, path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	meta, err := paper.ReadSidecar(paper.SidecarFor(path))
	if err != nil {
		return nil, err
	}
	return NewJob(fmt.Sprintf("batch-%d", i), filepath.Base(path), data, meta, b.Force), nil
}
