package handler

import (
	"errors"
	"strconv"
	"strings"

	"freelance-match/internal/delivery/http/dto"
	"freelance-match/internal/delivery/http/middleware"
	"freelance-match/internal/pkg/response"
	"freelance-match/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type RecommendationHandler struct {
	uc usecase.RecommendationQuery
}

func NewRecommendationHandler(uc usecase.RecommendationQuery) *RecommendationHandler {
	return &RecommendationHandler{uc: uc}
}

// RegisterRoutes mounts the read routes on r and the recalculation route on
// r behind protect, when given.
func (h *RecommendationHandler) RegisterRoutes(r fiber.Router, protect ...fiber.Handler) {
	if r == nil {
		return
	}
	grp := r.Group("/recommend")
	grp.Get("/:projectId", h.GetRecommendations)
	grp.Get("/:projectId/freelancers/:freelancerId", h.GetRecommendation)

	if len(protect) > 0 && protect[0] != nil {
		grp.Post("/:projectId/recalculate", protect[0], h.Recalculate)
		return
	}
	grp.Post("/:projectId/recalculate", h.Recalculate)
}

func (h *RecommendationHandler) GetRecommendations(c fiber.Ctx) error {
	projectID, err := parseUUIDParam(c, "projectId", "Invalid project id")
	if err != nil {
		return err
	}

	var params usecase.RecommendationParams
	if s := strings.TrimSpace(c.Query("limit")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return middleware.NewAppError(fiber.StatusBadRequest, "limit must be an integer", nil, err)
		}
		params.Limit = &v
	}
	if s := strings.TrimSpace(c.Query("minScore")); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return middleware.NewAppError(fiber.StatusBadRequest, "minScore must be a number", nil, err)
		}
		params.MinScore = &v
	}

	rows, err := h.uc.GetRecommendations(c.Context(), projectID, params)
	if err != nil {
		return mapRecommendationUsecaseError(err)
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewRecommendationListResponse(projectID, rows))
}

func (h *RecommendationHandler) GetRecommendation(c fiber.Ctx) error {
	projectID, err := parseUUIDParam(c, "projectId", "Invalid project id")
	if err != nil {
		return err
	}
	freelancerID, err := parseUUIDParam(c, "freelancerId", "Invalid freelancer id")
	if err != nil {
		return err
	}

	ms, err := h.uc.GetRecommendation(c.Context(), projectID, freelancerID)
	if err != nil {
		return mapRecommendationUsecaseError(err)
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewRecommendationResponse(ms))
}

func (h *RecommendationHandler) Recalculate(c fiber.Ctx) error {
	projectID, err := parseUUIDParam(c, "projectId", "Invalid project id")
	if err != nil {
		return err
	}

	n, err := h.uc.Recalculate(c.Context(), projectID)
	if err != nil {
		return mapRecommendationUsecaseError(err)
	}

	return response.Success(c, fiber.StatusOK, "Recommendations recalculated", dto.RecalculateResponse{
		ProjectID: projectID,
		Persisted: n,
	})
}

func parseUUIDParam(c fiber.Ctx, key, message string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(key)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, middleware.NewAppError(fiber.StatusBadRequest, message, nil, err)
	}
	return id, nil
}

func mapRecommendationUsecaseError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidQuery):
		return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	case errors.Is(err, usecase.ErrNoRequiredSkills):
		return middleware.NewAppError(fiber.StatusBadRequest, usecase.ErrNoRequiredSkills.Error(), nil, err)
	case errors.Is(err, usecase.ErrProjectNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, usecase.ErrProjectNotFound.Error(), nil, err)
	case errors.Is(err, usecase.ErrFreelancerNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, usecase.ErrFreelancerNotFound.Error(), nil, err)
	case errors.Is(err, usecase.ErrRecommendationNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, usecase.ErrRecommendationNotFound.Error(), nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
