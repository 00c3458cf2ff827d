package index

import (
	"errors"
	"testing"
)

func TestFTSQuery(t *testing.T) {
	cols := []string{"title", "caption", "body"}
	tests := []struct {
		in   string
		want string
	}{
		{"speech text", `"speech" AND "text"`},
		{"speech AND text", `"speech" AND "text"`},
		{"speech OR audio", `"speech" OR "audio"`},
		{"speech NOT noise", `"speech" NOT "noise"`},
		{"speech -noise", `"speech" NOT "noise"`},
		{"+speech", `"speech"`},
		{"caption:result", `caption : "result"`},
		{"CAPTION:result", `caption : "result"`},
		{"author:smith", `"author smith"`},
		{`"deep learning" model`, `"deep learning" AND "model"`},
		{`caption:"deep learning"`, `caption : "deep learning"`},
		{"(speech OR audio) text", `( "speech" OR "audio" ) AND "text"`},
		{"speech AND", `"speech"`},
		{"OR speech", `"speech"`},
		{"(speech", `( "speech" )`},
		{"speech)", `"speech"`},
		{"WER-4.2", `"WER-4.2"`},
		{`say "hi`, `"say" AND "hi"`},
		{"speech and text", `"speech" AND "and" AND "text"`},
	}
	for _, tt := range tests {
		got, err := ftsQuery(tt.in, cols)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestFTSQuery_Rejects(t *testing.T) {
	for _, in := range []string{"NOT noise", "", "AND OR", "()", "-noise"} {
		if _, err := ftsQuery(in, nil); !errors.Is(err, ErrBadQuery) {
			t.Errorf("%q: expected ErrBadQuery, got %v", in, err)
		}
	}
}

func TestParseTarget(t *testing.T) {
	if got, ok := ParseTarget(""); !ok || got != TargetArticles {
		t.Errorf("expected articles default, got %q ok=%v", got, ok)
	}
	if got, ok := ParseTarget(" Figures "); !ok || got != TargetFigures {
		t.Errorf("expected figures, got %q ok=%v", got, ok)
	}
	if _, ok := ParseTarget("_all"); ok {
		t.Error("expected unknown target to be rejected")
	}
}

func TestResolveImageURL(t *testing.T) {
	tests := []struct{ id, ref, want string }{
		{"2401.00001", "x1.png", "https://arxiv.org/html/2401.00001/x1.png"},
		{"2401.00001", "/x1.png", "https://arxiv.org/html/2401.00001/x1.png"},
		{"PMC1", "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1/bin/f1.jpg", "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1/bin/f1.jpg"},
		{"2401.00001", "", ""},
		{"hep-th_9901001v1", "x1.png", "https://arxiv.org/html/hep-th/9901001v1/x1.png"},
	}
	for _, tt := range tests {
		if got := ResolveImageURL(tt.id, tt.ref); got != tt.want {
			t.Errorf("ResolveImageURL(%q, %q): expected %q, got %q", tt.id, tt.ref, tt.want, got)
		}
	}
}

func TestQueryNormalized(t *testing.T) {
	q, err := Query{Text: " speech ", Limit: 1000}.normalized()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Target != TargetArticles || q.Limit != MaxLimit || q.Text != "speech" {
		t.Errorf("unexpected normalized query %+v", q)
	}
	if _, err := (Query{Text: "x", Target: "bogus"}).normalized(); !errors.Is(err, ErrBadQuery) {
		t.Errorf("expected ErrBadQuery for unknown target, got %v", err)
	}
}
