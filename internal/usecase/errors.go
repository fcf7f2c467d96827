package usecase

import "errors"

var (
	ErrProjectNotFound        = errors.New("Project not found")
	ErrFreelancerNotFound     = errors.New("Freelancer not found")
	ErrRecommendationNotFound = errors.New("Recommendation not found")
	ErrNoRequiredSkills       = errors.New("Project has no required skills configured")
	ErrInvalidQuery           = errors.New("invalid query parameters")
	ErrPersistence            = errors.New("failed to persist recommendations")
	ErrInternal               = errors.New("internal error")
)
