package dto

import (
	"encoding/json"
	"time"

	"freelance-match/internal/domain/match"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scores are rendered as JSON numbers with exactly two decimals.
type RecommendationResponse struct {
	FreelancerID    uuid.UUID             `json:"freelancer_id"`
	Rank            int                   `json:"rank"`
	TotalScore      json.Number           `json:"total_score"`
	SkillScore      json.Number           `json:"skill_score"`
	ExperienceScore json.Number           `json:"experience_score"`
	Reasons         RecommendationReasons `json:"reasons"`
	ComputedAt      time.Time             `json:"computed_at"`
}

type RecommendationReasons struct {
	MatchedSkills     []string     `json:"matched_skills"`
	SkillScore        json.Number  `json:"skill_score"`
	ExperienceYears   *int         `json:"experience_years"`
	ExperienceScore   json.Number  `json:"experience_score"`
	CompletedProjects int          `json:"completed_projects"`
	AverageRating     *json.Number `json:"average_rating"`
}

type RecommendationListResponse struct {
	ProjectID uuid.UUID                `json:"project_id"`
	Count     int                      `json:"count"`
	Items     []RecommendationResponse `json:"items"`
}

type RecalculateResponse struct {
	ProjectID uuid.UUID `json:"project_id"`
	Persisted int       `json:"persisted"`
}

func NewRecommendationResponse(ms match.MatchScore) RecommendationResponse {
	skills := ms.Reasons.MatchedSkills
	if skills == nil {
		skills = []string{}
	}
	var rating *json.Number
	if ms.Reasons.AverageRating != nil {
		n := fixed(*ms.Reasons.AverageRating)
		rating = &n
	}
	return RecommendationResponse{
		FreelancerID:    ms.FreelancerID,
		Rank:            ms.Rank,
		TotalScore:      fixed(ms.TotalScore),
		SkillScore:      fixed(ms.SkillScore),
		ExperienceScore: fixed(ms.ExperienceScore),
		Reasons: RecommendationReasons{
			MatchedSkills:     skills,
			SkillScore:        fixed(ms.Reasons.SkillScore),
			ExperienceYears:   ms.Reasons.ExperienceYears,
			ExperienceScore:   fixed(ms.Reasons.ExperienceScore),
			CompletedProjects: ms.Reasons.CompletedProjects,
			AverageRating:     rating,
		},
		ComputedAt: ms.ComputedAt.UTC(),
	}
}

func NewRecommendationListResponse(projectID uuid.UUID, rows []match.MatchScore) RecommendationListResponse {
	items := make([]RecommendationResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, NewRecommendationResponse(r))
	}
	return RecommendationListResponse{ProjectID: projectID, Count: len(items), Items: items}
}

func fixed(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
