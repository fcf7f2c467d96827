package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"freelance-match/internal/delivery/http/middleware"
	"freelance-match/internal/domain/match"
	"freelance-match/internal/domain/matching"
	"freelance-match/internal/pkg/logger"
	"freelance-match/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuery struct {
	rows       []match.MatchScore
	one        match.MatchScore
	persisted  int
	err        error
	lastParams usecase.RecommendationParams
}

func (f *fakeQuery) GetRecommendations(_ context.Context, _ uuid.UUID, p usecase.RecommendationParams) ([]match.MatchScore, error) {
	f.lastParams = p
	return f.rows, f.err
}

func (f *fakeQuery) GetRecommendation(context.Context, uuid.UUID, uuid.UUID) (match.MatchScore, error) {
	return f.one, f.err
}

func (f *fakeQuery) Recalculate(context.Context, uuid.UUID) (int, error) {
	return f.persisted, f.err
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T, q usecase.RecommendationQuery) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(middleware.NewErrorMiddleware(logger.NewTestLogger(t)).Middleware())
	NewRecommendationHandler(q).RegisterRoutes(app.Group("/api/v1"))
	return app
}

func do(t *testing.T, app *fiber.App, method, target string) (int, envelope) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return resp.StatusCode, env
}

func sampleRow() match.MatchScore {
	years := 5
	rating := decimal.RequireFromString("4")
	return match.MatchScore{
		FreelancerID:    uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Rank:            1,
		TotalScore:      decimal.RequireFromString("58"),
		SkillScore:      decimal.RequireFromString("30"),
		ExperienceScore: decimal.RequireFromString("28"),
		Reasons: matching.Reasons{
			MatchedSkills:     []string{"React"},
			SkillScore:        decimal.RequireFromString("30"),
			ExperienceYears:   &years,
			ExperienceScore:   decimal.RequireFromString("28"),
			CompletedProjects: 10,
			AverageRating:     &rating,
		},
		ComputedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestGetRecommendations_RendersItems(t *testing.T) {
	q := &fakeQuery{rows: []match.MatchScore{sampleRow()}}
	app := newTestApp(t, q)
	projectID := uuid.New()

	status, env := do(t, app, http.MethodGet, fmt.Sprintf("/api/v1/recommend/%s?limit=5&minScore=50.5", projectID))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", env.Message)

	require.NotNil(t, q.lastParams.Limit)
	assert.Equal(t, 5, *q.lastParams.Limit)
	require.NotNil(t, q.lastParams.MinScore)
	assert.Equal(t, 50.5, *q.lastParams.MinScore)

	data := string(env.Data)
	assert.Contains(t, data, `"count":1`)
	assert.Contains(t, data, `"total_score":58.00`)
	assert.Contains(t, data, `"skill_score":30.00`)
	assert.Contains(t, data, `"matched_skills":["React"]`)
	assert.Contains(t, data, `"average_rating":4.00`)
	assert.Contains(t, data, `"freelancer_id":"11111111-1111-1111-1111-111111111111"`)
}

func TestGetRecommendations_OmittedParamsStayNil(t *testing.T) {
	q := &fakeQuery{}
	app := newTestApp(t, q)

	status, env := do(t, app, http.MethodGet, "/api/v1/recommend/"+uuid.NewString())
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, q.lastParams.Limit)
	assert.Nil(t, q.lastParams.MinScore)
	assert.Contains(t, string(env.Data), `"items":[]`)
}

func TestGetRecommendations_BadInput(t *testing.T) {
	app := newTestApp(t, &fakeQuery{})

	for _, target := range []string{
		"/api/v1/recommend/not-a-uuid",
		"/api/v1/recommend/" + uuid.NewString() + "?limit=ten",
		"/api/v1/recommend/" + uuid.NewString() + "?minScore=high",
	} {
		status, env := do(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, status, target)
		assert.Equal(t, http.StatusBadRequest, env.Status)
	}
}

func TestRecommendationHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{usecase.ErrInvalidQuery, http.StatusBadRequest},
		{usecase.ErrNoRequiredSkills, http.StatusBadRequest},
		{usecase.ErrProjectNotFound, http.StatusNotFound},
		{usecase.ErrFreelancerNotFound, http.StatusNotFound},
		{usecase.ErrRecommendationNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: %w", usecase.ErrPersistence, io.ErrUnexpectedEOF), http.StatusInternalServerError},
		{usecase.ErrInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			app := newTestApp(t, &fakeQuery{err: tt.err})
			status, env := do(t, app, http.MethodPost, "/api/v1/recommend/"+uuid.NewString()+"/recalculate")
			assert.Equal(t, tt.status, status)
			if tt.status >= 500 {
				assert.Equal(t, "internal server error", env.Message)
			}
		})
	}
}

func TestRecalculate_ReturnsCount(t *testing.T) {
	app := newTestApp(t, &fakeQuery{persisted: 7})
	projectID := uuid.New()

	status, env := do(t, app, http.MethodPost, "/api/v1/recommend/"+projectID.String()+"/recalculate")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, fmt.Sprintf(`{"project_id":%q,"persisted":7}`, projectID), string(env.Data))
}

func TestGetRecommendation_Single(t *testing.T) {
	app := newTestApp(t, &fakeQuery{one: sampleRow()})

	status, env := do(t, app, http.MethodGet,
		"/api/v1/recommend/"+uuid.NewString()+"/freelancers/11111111-1111-1111-1111-111111111111")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"rank":1`)
	assert.Contains(t, string(env.Data), `"computed_at":"2026-01-02T03:04:05Z"`)
}
