package search

import (
	"sort"
	"strings"
)

// Candidate is a content item that can take part in related-content ranking.
type Candidate interface {
	RelatedID() string
	RelatedKeywords() string
}

// Related returns up to k items from pool ranked by keyword overlap with
// target. The target itself (matched by RelatedID) is excluded.
//
// pool must already be ordered most-recent-first: ties, including the
// all-zero case, keep that order, so the result is a re-ranking of the
// recency list rather than a relevance filter. When target carries no
// keywords the k most recent candidates are returned unscored.
func Related[T Candidate](target T, pool []T, k int) []T {
	if k <= 0 || len(pool) == 0 {
		return []T{}
	}
	id := target.RelatedID()
	cands := make([]T, 0, len(pool))
	for _, c := range pool {
		if c.RelatedID() == id {
			continue
		}
		cands = append(cands, c)
	}

	terms := KeywordTerms(target.RelatedKeywords())
	if len(terms) > 0 {
		scores := make([]int, len(cands))
		for i, c := range cands {
			scores[i] = Score(terms, KeywordTerms(c.RelatedKeywords()))
		}
		idx := make([]int, len(cands))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return scores[idx[a]] > scores[idx[b]]
		})
		ranked := make([]T, len(cands))
		for i, j := range idx {
			ranked[i] = cands[j]
		}
		cands = ranked
	}

	if k > len(cands) {
		k = len(cands)
	}
	return cands[:k]
}

// Score counts the target terms that are a substring of, or contain, at
// least one candidate term. Each target term scores at most one point.
func Score(target, candidate []string) int {
	score := 0
	for _, t := range target {
		for _, c := range candidate {
			if strings.Contains(c, t) || strings.Contains(t, c) {
				score++
				break
			}
		}
	}
	return score
}

// KeywordTerms splits a comma-separated keyword tag into lower-case,
// trimmed, non-empty terms.
func KeywordTerms(tag string) []string {
	if strings.TrimSpace(tag) == "" {
		return nil
	}
	parts := strings.Split(tag, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.ToLower(strings.TrimSpace(p)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
