// Package extract is the entry point of the extraction engine: it picks the
// document adapter, links every table and figure to its paragraphs and
// assembles the paper record.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/papergest/internal/adapter"
	"github.com/dgallion1/papergest/internal/doctree"
	"github.com/dgallion1/papergest/internal/linker"
	"github.com/dgallion1/papergest/internal/paper"
	"github.com/dgallion1/papergest/internal/parser"
)

// Input identifies a document for extraction.
type Input struct {
	PaperID string
	Kind    paper.FormatKind
}

// Summary describes an extraction for progress reporting.
type Summary struct {
	Tables     int
	Figures    int
	Paragraphs int
	Mentions   int
	Context    int
}

// Process runs the adapter for in.Kind over doc and links every item. It
// never mutates doc and keeps no state between calls.
func Process(doc doctree.Node, in Input) (*paper.Record, Summary) {
	res := adapter.For(in.Kind).Adapt(doc, in.PaperID)

	l := linker.New(res.Paragraphs)
	rec := &paper.Record{
		PaperID:  in.PaperID,
		FullText: res.FullText,
		Tables:   l.LinkAll(res.Tables),
		Figures:  l.LinkAll(res.Figures),
	}

	sum := Summary{
		Tables:     len(rec.Tables),
		Figures:    len(rec.Figures),
		Paragraphs: len(res.Paragraphs),
	}
	sum.Mentions, sum.Context = rec.LinkCounts()
	return rec, sum
}

// Extractor parses raw files and runs Process, recording latency in Stats.
type Extractor struct {
	Stats *Stats
}

// New returns an Extractor with a one-hour latency window.
func New() *Extractor {
	return &Extractor{Stats: NewStats(time.Hour)}
}

// ProcessFile parses r as the markup implied by filename and extracts it.
// The paper id and format come from the filename convention. Parse failures
// are returned as *parser.ParseError and no record is produced.
func (e *Extractor) ProcessFile(r io.Reader, filename string) (*paper.Record, Summary, error) {
	return e.ProcessAs(r, filename, paper.KindForFilename(filename))
}

// ProcessAs is ProcessFile with an explicit format.
func (e *Extractor) ProcessAs(r io.Reader, filename string, kind paper.FormatKind) (rec *paper.Record, sum Summary, err error) {
	start := time.Now()
	defer func() {
		if e.Stats != nil {
			e.Stats.RecordResult(kind, time.Since(start), sum, err)
		}
	}()

	p, err := parser.ForFile(filename)
	if err != nil {
		return nil, Summary{}, err
	}
	doc, err := p.Parse(r, filename)
	if err != nil {
		return nil, Summary{}, err
	}

	rec, sum = Process(doc, Input{PaperID: paper.PaperIDFromFilename(filename), Kind: kind})
	return rec, sum, nil
}

// ProcessBytes is ProcessFile over an in-memory document.
func (e *Extractor) ProcessBytes(data []byte, filename string) (*paper.Record, Summary, error) {
	rec, sum, err := e.ProcessFile(bytes.NewReader(data), filename)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("extract %s: %w", filename, err)
	}
	return rec, sum, nil
}
