package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dgallion1/papergest/internal/chunker"
	"github.com/dgallion1/papergest/internal/config"
	"github.com/dgallion1/papergest/internal/extract"
	"github.com/dgallion1/papergest/internal/index"
	"github.com/dgallion1/papergest/internal/paper"
	"github.com/dgallion1/papergest/internal/pipeline"
	"github.com/dgallion1/papergest/internal/scraper"
)

const usage = `usage: papergest <command> [flags] [args]

commands:
  extract <file>              print the extracted record as JSON
  index <dir>...              extract and index every .html/.xml file
  search <query>              search the index
  scrape arxiv|pubmed         download papers into the data directory
`

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	var err error
	switch os.Args[1] {
	case "extract":
		err = runExtract(os.Args[2:], os.Stdout)
	case "index":
		err = runIndex(ctx, cfg, log, os.Args[2:], os.Stdout)
	case "search":
		err = runSearch(ctx, cfg, log, os.Args[2:], os.Stdout)
	case "scrape":
		err = runScrape(ctx, cfg, log, os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func runExtract(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	format := fs.String("format", "", "force the source format (arxiv or pubmed)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("extract takes exactly one file")
	}
	path := fs.Arg(0)

	kind := paper.KindForFilename(path)
	if *format != "" {
		k, ok := paper.ParseFormatKind(*format)
		if !ok {
			return fmt.Errorf("unknown format %q", *format)
		}
		kind = k
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rec, _, err := extract.New().ProcessAs(f, path, kind)
	if err != nil {
		return err
	}
	return writeJSON(out, rec)
}

func runIndex(ctx context.Context, cfg config.Config, log *slog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	force := fs.Bool("force", false, "re-index papers that are already indexed")
	workers := fs.Int("workers", cfg.WorkerCount, "documents processed in parallel")
	timeout := fs.Duration("timeout", cfg.ExtractTimeout, "per-document processing budget")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs = []string{cfg.DataDir}
	}
	if err := cfg.ValidateIndex(); err != nil {
		return err
	}

	files, err := pipeline.Collect(dirs...)
	if err != nil {
		return err
	}
	idx, err := index.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer idx.Close()

	log.Info("indexing", "files", len(files), "workers", *workers, "force", *force)
	b := &pipeline.Batch{
		Index:       idx,
		Stats:       extract.NewStats(0),
		Log:         log,
		ChunkCfg:    chunker.Config{Size: cfg.PassageSize, Overlap: cfg.PassageOverlap},
		Timeout:     *timeout,
		Concurrency: *workers,
		Force:       *force,
	}
	res, err := b.Run(ctx, files)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]any{
		"result":     res,
		"extraction": b.Stats.Snapshot(),
	})
}

func runSearch(ctx context.Context, cfg config.Config, log *slog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	target := fs.String("index", "articles", "articles, tables, figures or passages")
	limit := fs.Int("limit", index.DefaultLimit, "maximum number of hits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, ok := index.ParseTarget(*target)
	if !ok {
		return fmt.Errorf("unknown index %q", *target)
	}
	if err := cfg.ValidateIndex(); err != nil {
		return err
	}

	idx, err := index.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer idx.Close()

	hits, err := idx.Search(ctx, index.Query{Target: t, Text: strings.Join(fs.Args(), " "), Limit: *limit})
	if err != nil {
		return err
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	return writeJSON(out, hits)
}

func runScrape(ctx context.Context, cfg config.Config, log *slog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("scrape needs a source: arxiv or pubmed")
	}
	source := args[0]

	fs := flag.NewFlagSet("scrape "+source, flag.ContinueOnError)
	query := fs.String("query", "", "search query")
	maxResults := fs.Int("max", 10, "maximum number of papers")
	dir := fs.String("dir", cfg.DataDir, "output directory")
	email := fs.String("email", cfg.EntrezEmail, "contact email sent to NCBI E-utilities")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *query == "" {
		return fmt.Errorf("-query is required")
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return err
	}

	sc := scraper.Config{DataDir: *dir, Delay: cfg.ScrapeDelay, Email: *email}
	var (
		res scraper.Result
		err error
	)
	switch source {
	case "arxiv":
		res, err = scraper.NewArXiv(sc, log).Scrape(ctx, *query, *maxResults)
	case "pubmed":
		res, err = scraper.NewPubMed(sc, log).Scrape(ctx, *query, *maxResults)
	default:
		return fmt.Errorf("unknown source %q", source)
	}
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
