// Package search provides the site's two ranking routines:
//
//   - Related: keyword re-ranking of a recency-ordered pool of content items
//     (related.go).
//   - Index: a small, deterministic in-memory full-text index over content
//     items, scored by Jaccard similarity between the query token set and each
//     document's token set: score = |Q ∩ D| / |Q ∪ D|.
//
// Neither routine logs; callers decide how/what to log. An Index is immutable
// after construction and safe for concurrent use. It is built per request
// from the current published items, so there is no cache to invalidate.
package search

import (
	"regexp"
	"sort"
	"strings"
)

// Doc is one searchable content item.
type Doc struct {
	ID    string
	Kind  string // "post" or "article"
	Slug  string
	Title string
	Text  string
}

// Result is a ranked document with its similarity score.
type Result struct {
	ID    string  `json:"id"`
	Kind  string  `json:"kind"`
	Slug  string  `json:"slug"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords   map[string]struct{}
	maxDocs     int
	titleWeight int
}

func defaultConfig() config {
	return config{
		stopwords:   defaultStopwords,
		maxDocs:     0,
		titleWeight: 1,
	}
}

// WithStopwords replaces the default stop-word list.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		c.stopwords = m
	}
}

// WithMaxDocs caps the number of indexed documents.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithTitleBoost repeats title tokens n extra times in the tie-break length,
// favouring shorter documents whose title matches.
func WithTitleBoost(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.titleWeight = n
		}
	}
}

var defaultStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "in": {}, "on": {},
	"to": {}, "for": {}, "is": {}, "are": {}, "today": {}, "rate": {}, "price": {},
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	Doc
	tokens      map[string]struct{}
	titleTokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over docs.
func NewIndex(docs []Doc, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		toks := tokenize(d.Title+" "+d.Text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		out = append(out, doc{Doc: d, tokens: toks, titleTokens: tokenize(d.Title, cfg.stopwords)})
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

// TopK returns up to k best-matching documents by Jaccard similarity. Ties
// prefer more title hits, then the original document order.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 10
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		d         *doc
		score     float64
		titleHits int
	}

	buf := make([]scored, 0, len(i.docs))
	for n := range i.docs {
		d := &i.docs[n]
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + len(d.tokens) - over)
		if union <= 0 {
			continue
		}
		buf = append(buf, scored{
			d:         d,
			score:     float64(over) / union,
			titleHits: overlap(qTokens, d.titleTokens) * i.cfg.titleWeight,
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		return buf[a].titleHits > buf[b].titleHits
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		d := buf[n].d
		out[n] = Result{ID: d.ID, Kind: d.Kind, Slug: d.Slug, Title: d.Title, Score: buf[n].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+\p{L}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
