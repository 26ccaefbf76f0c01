//nolint:noctx // Test file uses http.NewRequest for simplicity
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/engine"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/leaderboard"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

// Mock Engine
type mockEngine struct {
	awardResult *engine.Result
	grantResult *engine.Result
	err         error
	hasLevel    bool
	lastAward   engine.AwardRequest
	lastTarget  engine.LevelTarget
	profile     *models.Profile
}

func (m *mockEngine) AwardXP(_ context.Context, req engine.AwardRequest) (*engine.Result, error) {
	m.lastAward = req
	return m.awardResult, m.err
}

func (m *mockEngine) GrantReward(_ context.Context, _ engine.GrantRequest) (*engine.Result, error) {
	return m.grantResult, m.err
}

func (m *mockEngine) GetProfile(_ context.Context, a models.Awardable) (*engine.ProfileView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &engine.ProfileView{Profile: &models.Profile{AwardableType: a.Type, AwardableID: a.ID, OptIn: true}}, nil
}

func (m *mockEngine) GetLevelInfo(_ context.Context, _ models.Awardable, group string) (*engine.LevelInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &engine.LevelInfo{Track: "group", Slug: group, CurrentLevel: 2}, nil
}

func (m *mockEngine) GetMetricLevelInfo(_ context.Context, _ models.Awardable, metric string) (*engine.LevelInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &engine.LevelInfo{Track: "metric", Slug: metric, CurrentLevel: 3, MaxLevel: true}, nil
}

func (m *mockEngine) HasLevel(_ context.Context, _ models.Awardable, _ int, target engine.LevelTarget) (bool, error) {
	m.lastTarget = target
	if target.Metric != "" && target.Group != "" {
		return false, errs.InvalidArgument("has_level", "target", "exactly one of metric and group is required")
	}
	return m.hasLevel, m.err
}

func (m *mockEngine) SetOptIn(_ context.Context, _ models.Awardable, optIn bool) (*models.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.profile.OptIn = optIn
	return m.profile, nil
}

// Mock Leaderboard Service
type mockLeaderboardService struct {
	board    *leaderboard.Board
	excluded []models.Awardable
	included []models.Awardable
}

func (m *mockLeaderboardService) Top(_ context.Context, limit int) (*leaderboard.Board, error) {
	if m.board == nil {
		return nil, errors.New("redis down and database down")
	}
	entries := m.board.Entries
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return &leaderboard.Board{Entries: entries, Source: m.board.Source}, nil
}

func (m *mockLeaderboardService) GetStats(_ context.Context, a models.Awardable) (*leaderboard.Stats, error) {
	return &leaderboard.Stats{Awardable: a, Rank: 4}, nil
}

func (m *mockLeaderboardService) Exclude(_ context.Context, a models.Awardable) error {
	m.excluded = append(m.excluded, a)
	return nil
}

func (m *mockLeaderboardService) Include(_ context.Context, a models.Awardable, _ int64) error {
	m.included = append(m.included, a)
	return nil
}

// Test Setup
func setupTestRouter() (*gin.Engine, *mockEngine, *mockLeaderboardService) {
	gin.SetMode(gin.TestMode)
	eng := &mockEngine{profile: &models.Profile{AwardableType: "user", AwardableID: 7, OptIn: true, TotalXP: 120}}
	lb := &mockLeaderboardService{}
	handler := NewHandlerWithInterfaces(eng, lb, logger.Nop())

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router, eng, lb
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

// Tests

func TestAwardXP_Success(t *testing.T) {
	router, eng, _ := setupTestRouter()
	eng.awardResult = &engine.Result{Success: true, Message: "Awarded 50 XP"}

	w := doRequest(router, http.MethodPost, "/api/v1/awards", map[string]any{
		"awardable_type": "user",
		"awardable_id":   7,
		"metric":         "combat-xp",
		"amount":         50,
		"source":         "quest",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
	assert.Equal(t, models.NewAwardable("user", 7), eng.lastAward.Awardable)
	assert.Equal(t, int64(50), eng.lastAward.Amount)
	assert.Equal(t, "quest", eng.lastAward.Source)
}

func TestAwardXP_ResultStatus(t *testing.T) {
	tests := []struct {
		name string
		kind string
		want int
	}{
		{"not found", "not_found", http.StatusNotFound},
		{"inactive", "invalid_state", http.StatusUnprocessableEntity},
		{"opted out", "opted_out", http.StatusForbidden},
		{"already granted", "already_granted", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, eng, _ := setupTestRouter()
			eng.awardResult = &engine.Result{Success: false, Kind: tt.kind, Message: "refused"}

			w := doRequest(router, http.MethodPost, "/api/v1/awards", map[string]any{
				"awardable_type": "user", "awardable_id": 7, "metric": "combat-xp", "amount": 5,
			})

			assert.Equal(t, tt.want, w.Code)
			response := decode(t, w)
			assert.Equal(t, false, response["success"])
			assert.Equal(t, tt.kind, response["kind"])
		})
	}
}

func TestAwardXP_Errors(t *testing.T) {
	router, eng, _ := setupTestRouter()

	w := doRequest(router, http.MethodPost, "/api/v1/awards", map[string]any{"metric": "combat-xp"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid request body")

	eng.err = errs.InvalidArgument("award", "amount", "amount must be positive")
	w = doRequest(router, http.MethodPost, "/api/v1/awards", map[string]any{
		"awardable_type": "user", "awardable_id": 7, "metric": "combat-xp", "amount": -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decode(t, w)
	assert.Equal(t, "amount", response["field"])
	assert.Equal(t, "amount must be positive", response["error"])

	eng.err = errors.New("connection reset by peer")
	w = doRequest(router, http.MethodPost, "/api/v1/awards", map[string]any{
		"awardable_type": "user", "awardable_id": 7, "metric": "combat-xp", "amount": 5,
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to award XP", decode(t, w)["error"])
}

func TestGrantReward(t *testing.T) {
	router, eng, _ := setupTestRouter()
	eng.grantResult = &engine.Result{Success: false, Kind: "already_granted", Message: "already unlocked"}

	w := doRequest(router, http.MethodPost, "/api/v1/grants", map[string]any{
		"awardable_type": "user", "awardable_id": 7, "slug": "veteran",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already unlocked", decode(t, w)["message"])
}

func TestGetProfile(t *testing.T) {
	router, eng, _ := setupTestRouter()

	w := doRequest(router, http.MethodGet, "/api/v1/profiles/user/7", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Contains(t, response, "profile")
	stats, ok := response["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), stats["rank"])

	w = doRequest(router, http.MethodGet, "/api/v1/profiles/user/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid awardable ID")

	eng.err = errs.InvalidArgument("profile", "recipient", "a recipient is required")
	w = doRequest(router, http.MethodGet, "/api/v1/profiles/user/7", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLevelInfoEndpoints(t *testing.T) {
	router, eng, _ := setupTestRouter()

	w := doRequest(router, http.MethodGet, "/api/v1/profiles/user/7/groups/total-level", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	level := decode(t, w)["level"].(map[string]interface{})
	assert.Equal(t, "total-level", level["slug"])
	assert.Equal(t, float64(2), level["current_level"])

	w = doRequest(router, http.MethodGet, "/api/v1/profiles/user/7/metrics/combat-xp", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	level = decode(t, w)["level"].(map[string]interface{})
	assert.Equal(t, true, level["max_level"])

	eng.err = errs.NotFound("level_info", "group", "group %q not found", "missing")
	w = doRequest(router, http.MethodGet, "/api/v1/profiles/user/7/groups/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["kind"])
}

func TestHasLevel(t *testing.T) {
	router, eng, _ := setupTestRouter()
	eng.hasLevel = true

	w := doRequest(router, http.MethodGet, "/api/v1/profiles/user/7/has-level?level=3&metric=combat-xp", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["reached"])
	assert.Equal(t, engine.LevelTarget{Metric: "combat-xp"}, eng.lastTarget)

	w = doRequest(router, http.MethodGet, "/api/v1/profiles/user/7/has-level?level=3&metric=a&group=b", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "target", decode(t, w)["field"])

	w = doRequest(router, http.MethodGet, "/api/v1/profiles/user/7/has-level?level=top&metric=a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid level")
}

func TestSetOptIn_SyncsLeaderboard(t *testing.T) {
	router, _, lb := setupTestRouter()
	user := models.NewAwardable("user", 7)

	w := doRequest(router, http.MethodPut, "/api/v1/profiles/user/7/opt-in", map[string]any{"opt_in": false})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.Awardable{user}, lb.excluded)
	assert.Empty(t, lb.included)

	w = doRequest(router, http.MethodPut, "/api/v1/profiles/user/7/opt-in", map[string]any{"opt_in": true})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.Awardable{user}, lb.included)

	w = doRequest(router, http.MethodPut, "/api/v1/profiles/user/7/opt-in", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLeaderboard(t *testing.T) {
	router, _, lb := setupTestRouter()

	w := doRequest(router, http.MethodGet, "/api/v1/leaderboard", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to retrieve leaderboard", decode(t, w)["error"])

	lb.board = &leaderboard.Board{
		Entries: []leaderboard.Entry{
			{Rank: 1, Awardable: models.NewAwardable("user", 2), TotalXP: 300},
			{Rank: 2, Awardable: models.NewAwardable("user", 7), TotalXP: 120},
		},
		Source: leaderboard.SourceCache,
	}

	w = doRequest(router, http.MethodGet, "/api/v1/leaderboard?limit=1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, float64(1), response["total_entries"])
	assert.Equal(t, "cache", response["source"])

	w = doRequest(router, http.MethodGet, "/api/v1/leaderboard?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "limit must be greater than 0")
}
