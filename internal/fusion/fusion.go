// Package fusion merges the dense and lexical retrieval legs into one
// ranking. Weighted-sum fusion is used when both legs report comparable
// [0,1] scores; otherwise it falls back to Reciprocal Rank Fusion, which
// only needs ranks.
package fusion

import (
	"sort"

	"github.com/quarry-dev/quarry/internal/domain/search"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// Fuse merges the two legs, assigns 1-based ranks, and truncates to limit
// after fusion so a document strong in only one leg still gets its fused
// score before the cut. Ties break on ascending id for determinism.
// The returned flag reports whether rank-based RRF scoring was used; RRF
// scores are reciprocal-rank sums near 1/rrfK, not [0,1] similarities.
func Fuse(dense, lexical []search.Result, denseWeight, lexicalWeight float64, limit int, forceRRF bool) ([]search.Result, bool) {
	usedRRF := forceRRF || !scoresComparable(dense) || !scoresComparable(lexical)

	var fused []search.Result
	if usedRRF {
		fused = fuseRRF(dense, lexical)
	} else {
		fused = fuseWeighted(dense, lexical, denseWeight, lexicalWeight)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score() != fused[j].Score() {
			return fused[i].Score() > fused[j].Score()
		}
		return fused[i].ID() < fused[j].ID()
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	ranked := make([]search.Result, len(fused))
	for i, r := range fused {
		ranked[i] = r.WithScoreRank(r.Score(), i+1)
	}
	return ranked, usedRRF
}

// Rank assigns 1-based ranks to a single already-scored leg, used for
// dense-only retrieval where no fusion happens.
func Rank(results []search.Result, limit int) []search.Result {
	sorted := make([]search.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score() != sorted[j].Score() {
			return sorted[i].Score() > sorted[j].Score()
		}
		return sorted[i].ID() < sorted[j].ID()
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	ranked := make([]search.Result, len(sorted))
	for i, r := range sorted {
		ranked[i] = r.WithScoreRank(r.Score(), i+1)
	}
	return ranked
}

// scoresComparable reports whether every score sits in [0,1].
func scoresComparable(results []search.Result) bool {
	for _, r := range results {
		if r.Score() < 0 || r.Score() > 1 {
			return false
		}
	}
	return true
}

// fuseWeighted computes weight-normalized score sums. A document missing
// from one leg contributes zero for that leg.
func fuseWeighted(dense, lexical []search.Result, denseWeight, lexicalWeight float64) []search.Result {
	total := denseWeight + lexicalWeight
	if total <= 0 {
		return nil
	}

	type scored struct {
		res   search.Result
		score float64
		dense bool
	}
	merged := make(map[string]*scored, len(dense)+len(lexical))

	for _, r := range dense {
		merged[r.ID()] = &scored{res: r, score: r.Score() * denseWeight / total, dense: true}
	}
	for _, r := range lexical {
		if existing, ok := merged[r.ID()]; ok {
			existing.score += r.Score() * lexicalWeight / total
		} else {
			merged[r.ID()] = &scored{res: r, score: r.Score() * lexicalWeight / total}
		}
	}

	out := make([]search.Result, 0, len(merged))
	for _, s := range merged {
		out = append(out, s.res.WithScoreRank(s.score, 0))
	}
	return out
}

// fuseRRF merges the legs via Reciprocal Rank Fusion:
// score(d) = sum over legs of 1/(k + rank(d)). The dense result is kept
// when a document appears in both legs.
func fuseRRF(dense, lexical []search.Result) []search.Result {
	type scored struct {
		res   search.Result
		score float64
	}
	merged := make(map[string]*scored, len(dense)+len(lexical))

	for rank, r := range dense {
		merged[r.ID()] = &scored{res: r, score: 1.0 / float64(rrfK+rank+1)}
	}
	for rank, r := range lexical {
		s := 1.0 / float64(rrfK+rank+1)
		if existing, ok := merged[r.ID()]; ok {
			existing.score += s
		} else {
			merged[r.ID()] = &scored{res: r, score: s}
		}
	}

	out := make([]search.Result, 0, len(merged))
	for _, s := range merged {
		out = append(out, s.res.WithScoreRank(s.score, 0))
	}
	return out
}
