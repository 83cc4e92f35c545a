package search

import (
	"testing"
)

func sampleDocs() []Doc {
	return []Doc{
		{ID: "1", Kind: "post", Slug: "chennai-gold-rate-2025-01-15", Title: "Chennai gold rate 15 January", Text: "22 carat gold in Chennai rose sharply."},
		{ID: "2", Kind: "article", Slug: "buying-guide", Title: "Buying guide", Text: "How to check hallmark purity before buying jewellery."},
		{ID: "3", Kind: "post", Slug: "madurai-gold-rate-2025-01-15", Title: "Madurai gold rate", Text: "Madurai jewellers saw steady demand."},
		{ID: "4", Kind: "article", Slug: "empty", Title: "", Text: "the a an"},
	}
}

func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.maxDocs != 0 || def.titleWeight != 1 || len(def.stopwords) == 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}
	cfg := def
	WithStopwords([]string{"  The ", "", "An"})(&cfg)
	if _, ok := cfg.stopwords["the"]; !ok || len(cfg.stopwords) != 2 {
		t.Fatalf("WithStopwords failed: %#v", cfg.stopwords)
	}
	WithMaxDocs(2)(&cfg)
	WithMaxDocs(0)(&cfg) // no-op
	if cfg.maxDocs != 2 {
		t.Fatalf("WithMaxDocs = %d", cfg.maxDocs)
	}
	WithTitleBoost(3)(&cfg)
	WithTitleBoost(-1)(&cfg) // no-op
	if cfg.titleWeight != 3 {
		t.Fatalf("WithTitleBoost = %d", cfg.titleWeight)
	}
}

func TestTopK_RanksMatches(t *testing.T) {
	idx := NewIndex(sampleDocs())
	res := idx.TopK("Madurai gold", 5)
	if len(res) == 0 {
		t.Fatalf("expected hits")
	}
	if res[0].ID != "3" || res[0].Kind != "post" || res[0].Slug != "madurai-gold-rate-2025-01-15" {
		t.Fatalf("top hit = %+v", res[0])
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score > res[i-1].Score {
			t.Fatalf("results not sorted by score: %+v", res)
		}
	}
}

func TestTopK_EdgeCases(t *testing.T) {
	idx := NewIndex(sampleDocs())
	if got := idx.TopK("   ", 3); got != nil {
		t.Fatalf("blank query: %v", got)
	}
	if got := idx.TopK("the and", 3); got != nil {
		t.Fatalf("stopword-only query: %v", got)
	}
	if got := idx.TopK("platinum", 3); got != nil {
		t.Fatalf("no match: %v", got)
	}
	if got := idx.TopK("gold", 1); len(got) != 1 {
		t.Fatalf("k=1 should truncate, got %d", len(got))
	}
	if got := idx.TopK("gold", 0); len(got) != 2 {
		t.Fatalf("k=0 falls back to default, got %d", len(got))
	}
	if got := NewIndex(nil).TopK("gold", 3); got != nil {
		t.Fatalf("empty index: %v", got)
	}
}

func TestNewIndex_SkipsEmptyAndCaps(t *testing.T) {
	idx := NewIndex(sampleDocs()).(*index)
	if len(idx.docs) != 3 {
		t.Fatalf("stopword-only doc should be skipped, got %d docs", len(idx.docs))
	}
	capped := NewIndex(sampleDocs(), WithMaxDocs(1)).(*index)
	if len(capped.docs) != 1 {
		t.Fatalf("WithMaxDocs(1) gave %d docs", len(capped.docs))
	}
}

func TestTokenizeAndOverlap(t *testing.T) {
	toks := tokenize("22K Gold, gold & Chennai!", nil)
	for _, w := range []string{"22k", "gold", "chennai"} {
		if _, ok := toks[w]; !ok {
			t.Fatalf("missing token %q in %v", w, toks)
		}
	}
	if len(toks) != 3 {
		t.Fatalf("tokens = %v", toks)
	}
	if tokenize("!!!", nil) != nil {
		t.Fatalf("punctuation-only should be nil")
	}
	b := tokenize("gold silver", nil)
	if overlap(toks, b) != 1 || overlap(nil, b) != 0 {
		t.Fatalf("overlap wrong")
	}
}
