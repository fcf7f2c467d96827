package match

import (
	"time"

	"freelance-match/internal/domain/matching"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchScore is one persisted recommendation, unique per (ProjectID, FreelancerID).
type MatchScore struct {
	ProjectID       uuid.UUID
	FreelancerID    uuid.UUID
	TotalScore      decimal.Decimal
	SkillScore      decimal.Decimal
	ExperienceScore decimal.Decimal
	Rank            int
	Reasons         matching.Reasons
	ComputedAt      time.Time
}

// FromRanked builds the rows persisted by one recomputation.
func FromRanked(projectID uuid.UUID, ranked []matching.Ranked, computedAt time.Time) []MatchScore {
	out := make([]MatchScore, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, MatchScore{
			ProjectID:       projectID,
			FreelancerID:    r.FreelancerID,
			TotalScore:      r.Result.TotalScore,
			SkillScore:      r.Result.SkillScore,
			ExperienceScore: r.Result.ExperienceScore,
			Rank:            r.Rank,
			Reasons:         r.Result.Reasons,
			ComputedAt:      computedAt,
		})
	}
	return out
}
