package matching

import (
	"sort"

	"github.com/google/uuid"
)

type Candidate struct {
	FreelancerID uuid.UUID
	Result       Result
}

type Ranked struct {
	Candidate
	Rank int
}

// RankTopN orders candidates by descending total score and keeps the first
// topN, assigning ranks 1..K. Equal scores keep their input order, so the
// caller's candidate order is the tie-break.
func RankTopN(cands []Candidate, topN int) []Ranked {
	if topN <= 0 || len(cands) == 0 {
		return []Ranked{}
	}

	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Result.TotalScore.GreaterThan(sorted[j].Result.TotalScore)
	})

	k := min(topN, len(sorted))
	out := make([]Ranked, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, Ranked{Candidate: sorted[i], Rank: i + 1})
	}
	return out
}
