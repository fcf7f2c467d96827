package matching

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when the calculator is handed an empty
// required-skill set. Callers are expected to reject that case first.
var ErrInvalidInput = errors.New("invalid scoring input")

const scorePlaces = 2

var (
	maxSkillScore      = decimal.NewFromInt(60)
	maxTenureScore     = decimal.NewFromInt(20)
	maxTrackScore      = decimal.NewFromInt(10)
	maxReputationScore = decimal.NewFromInt(10)

	tenureYearsCap   = decimal.NewFromInt(10)
	trackProjectsCap = decimal.NewFromInt(10)
	ratingCap        = decimal.NewFromInt(5)
)

type FreelancerSkill struct {
	Name        string
	Proficiency Proficiency
}

// Signals are the profile values that feed the experience sub-score.
// Nil ExperienceYears or AverageRating contribute nothing.
type Signals struct {
	ExperienceYears   *int
	CompletedProjects int
	AverageRating     *decimal.Decimal
}

// Reasons is the display data persisted next to a score.
type Reasons struct {
	MatchedSkills     []string
	SkillScore        decimal.Decimal
	ExperienceYears   *int
	ExperienceScore   decimal.Decimal
	CompletedProjects int
	AverageRating     *decimal.Decimal
}

type Result struct {
	SkillScore      decimal.Decimal
	ExperienceScore decimal.Decimal
	TotalScore      decimal.Decimal
	Reasons         Reasons
}

// Score computes the skill (max 60), experience (max 40) and total score of
// one freelancer against a project's required skills.
//
// Required skill names compare case-insensitively; duplicates are collapsed
// so the match rate never exceeds 1. The total is summed from unrounded
// sub-scores and rounded once, half-up, to two places.
func Score(required []string, skills []FreelancerSkill, sig Signals) (Result, error) {
	reqs := NormalizeSkillNames(required)
	if len(reqs) == 0 {
		return Result{}, ErrInvalidInput
	}

	weightSum := decimal.Zero
	matched := make([]string, 0, len(reqs))
	for _, name := range reqs {
		fs, ok := findSkill(skills, name)
		if !ok {
			continue
		}
		weightSum = weightSum.Add(fs.Proficiency.Weight())
		matched = append(matched, name)
	}

	// weightSum/len(reqs) is the match rate; multiplying first keeps the
	// division the only inexact step.
	skillRaw := weightSum.Mul(maxSkillScore).Div(decimal.NewFromInt(int64(len(reqs))))
	skillRaw = decimal.Min(skillRaw, maxSkillScore)

	expRaw := tenureScore(sig.ExperienceYears).
		Add(trackRecordScore(sig.CompletedProjects)).
		Add(reputationScore(sig.AverageRating))

	skillScore := skillRaw.Round(scorePlaces)
	expScore := expRaw.Round(scorePlaces)
	total := skillRaw.Add(expRaw).Round(scorePlaces)

	return Result{
		SkillScore:      skillScore,
		ExperienceScore: expScore,
		TotalScore:      total,
		Reasons: Reasons{
			MatchedSkills:     matched,
			SkillScore:        skillScore,
			ExperienceYears:   sig.ExperienceYears,
			ExperienceScore:   expScore,
			CompletedProjects: sig.CompletedProjects,
			AverageRating:     sig.AverageRating,
		},
	}, nil
}

// NormalizeSkillNames trims names, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling seen.
func NormalizeSkillNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		k := strings.ToLower(n)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}

// first match wins
func findSkill(skills []FreelancerSkill, name string) (FreelancerSkill, bool) {
	for _, s := range skills {
		if strings.EqualFold(strings.TrimSpace(s.Name), name) {
			return s, true
		}
	}
	return FreelancerSkill{}, false
}

func tenureScore(years *int) decimal.Decimal {
	if years == nil || *years <= 0 {
		return decimal.Zero
	}
	v := decimal.NewFromInt(int64(*years)).Div(tenureYearsCap).Mul(maxTenureScore)
	return decimal.Min(v, maxTenureScore)
}

func trackRecordScore(completed int) decimal.Decimal {
	if completed <= 0 {
		return decimal.Zero
	}
	v := decimal.NewFromInt(int64(completed)).Div(trackProjectsCap).Mul(maxTrackScore)
	return decimal.Min(v, maxTrackScore)
}

func reputationScore(rating *decimal.Decimal) decimal.Decimal {
	if rating == nil || !rating.IsPositive() {
		return decimal.Zero
	}
	v := rating.Div(ratingCap).Mul(maxReputationScore)
	return decimal.Min(v, maxReputationScore)
}
