// Package dashboard provides REST API handlers for the gamification engine.
// It exposes endpoints for awarding XP, granting rewards, reading profile
// progress and the leaderboard.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/engine"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/leaderboard"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

// EngineService interface for award, grant and progress operations.
type EngineService interface {
	AwardXP(ctx context.Context, req engine.AwardRequest) (*engine.Result, error)
	GrantReward(ctx context.Context, req engine.GrantRequest) (*engine.Result, error)
	GetProfile(ctx context.Context, a models.Awardable) (*engine.ProfileView, error)
	GetLevelInfo(ctx context.Context, a models.Awardable, group string) (*engine.LevelInfo, error)
	GetMetricLevelInfo(ctx context.Context, a models.Awardable, metric string) (*engine.LevelInfo, error)
	HasLevel(ctx context.Context, a models.Awardable, level int, target engine.LevelTarget) (bool, error)
	SetOptIn(ctx context.Context, a models.Awardable, optIn bool) (*models.Profile, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	Top(ctx context.Context, limit int) (*leaderboard.Board, error)
	GetStats(ctx context.Context, a models.Awardable) (*leaderboard.Stats, error)
	Exclude(ctx context.Context, a models.Awardable) error
	Include(ctx context.Context, a models.Awardable, totalXP int64) error
}

// Handler handles dashboard API requests.
type Handler struct {
	engine             EngineService
	leaderboardService LeaderboardService
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(e *engine.Engine, leaderboardService *leaderboard.Service, log *logger.Logger) *Handler {
	return NewHandlerWithInterfaces(e, leaderboardService, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(e EngineService, leaderboardService LeaderboardService, log *logger.Logger) *Handler {
	return &Handler{
		engine:             e,
		leaderboardService: leaderboardService,
		log:                log.Component("dashboard"),
	}
}

// RegisterRoutes mounts every endpoint on the given group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/awards", h.AwardXP)
	api.POST("/grants", h.GrantReward)
	api.GET("/leaderboard", h.GetLeaderboard)

	profiles := api.Group("/profiles/:type/:id")
	profiles.GET("", h.GetProfile)
	profiles.GET("/groups/:group", h.GetGroupLevel)
	profiles.GET("/metrics/:metric", h.GetMetricLevel)
	profiles.GET("/has-level", h.HasLevel)
	profiles.PUT("/opt-in", h.SetOptIn)
}

type awardBody struct {
	AwardableType string          `json:"awardable_type" binding:"required"`
	AwardableID   uint            `json:"awardable_id" binding:"required"`
	Metric        string          `json:"metric" binding:"required"`
	Amount        int64           `json:"amount"`
	Reason        string          `json:"reason"`
	Source        string          `json:"source"`
	Meta          json.RawMessage `json:"meta"`
}

type grantBody struct {
	AwardableType string          `json:"awardable_type" binding:"required"`
	AwardableID   uint            `json:"awardable_id" binding:"required"`
	Slug          string          `json:"slug" binding:"required"`
	Kind          string          `json:"kind"`
	Reason        string          `json:"reason"`
	Source        string          `json:"source"`
	Meta          json.RawMessage `json:"meta"`
}

type optInBody struct {
	OptIn *bool `json:"opt_in" binding:"required"`
}

// AwardXP records XP for an awardable.
// POST /api/v1/awards.
func (h *Handler) AwardXP(c *gin.Context) {
	var body awardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	a := models.NewAwardable(body.AwardableType, body.AwardableID)
	result, err := h.engine.AwardXP(c.Request.Context(), engine.AwardRequest{
		Awardable: a,
		Metric:    body.Metric,
		Amount:    body.Amount,
		Reason:    body.Reason,
		Source:    body.Source,
		Meta:      body.Meta,
	})
	if err != nil {
		h.failure(c, err, "Failed to award XP")
		return
	}

	h.log.Info().
		Str("awardable", a.String()).
		Str("metric", body.Metric).
		Int64("amount", body.Amount).
		Bool("success", result.Success).
		Msg("Processed XP award")

	h.resultResponse(c, result)
}

// GrantReward grants an achievement or prize to an awardable.
// POST /api/v1/grants.
func (h *Handler) GrantReward(c *gin.Context) {
	var body grantBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	a := models.NewAwardable(body.AwardableType, body.AwardableID)
	result, err := h.engine.GrantReward(c.Request.Context(), engine.GrantRequest{
		Awardable: a,
		Slug:      body.Slug,
		Kind:      body.Kind,
		Reason:    body.Reason,
		Source:    body.Source,
		Meta:      body.Meta,
	})
	if err != nil {
		h.failure(c, err, "Failed to grant reward")
		return
	}

	h.log.Info().
		Str("awardable", a.String()).
		Str("slug", body.Slug).
		Bool("success", result.Success).
		Msg("Processed reward grant")

	h.resultResponse(c, result)
}

// GetProfile returns an awardable's progress, rewards and standing.
// GET /api/v1/profiles/:type/:id.
func (h *Handler) GetProfile(c *gin.Context) {
	a, err := h.parseAwardable(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	view, err := h.engine.GetProfile(ctx, a)
	if err != nil {
		h.failure(c, err, "Failed to retrieve profile")
		return
	}

	stats, err := h.leaderboardService.GetStats(ctx, a)
	if err != nil {
		h.log.Warn().Err(err).Str("awardable", a.String()).Msg("Failed to get profile stats")
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":      view,
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetGroupLevel returns progress through a group ladder.
// GET /api/v1/profiles/:type/:id/groups/:group.
func (h *Handler) GetGroupLevel(c *gin.Context) {
	a, err := h.parseAwardable(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.engine.GetLevelInfo(c.Request.Context(), a, c.Param("group"))
	if err != nil {
		h.failure(c, err, "Failed to retrieve level info")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"level":        info,
		"generated_at": time.Now().UTC(),
	})
}

// GetMetricLevel returns progress through a metric ladder.
// GET /api/v1/profiles/:type/:id/metrics/:metric.
func (h *Handler) GetMetricLevel(c *gin.Context) {
	a, err := h.parseAwardable(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.engine.GetMetricLevelInfo(c.Request.Context(), a, c.Param("metric"))
	if err != nil {
		h.failure(c, err, "Failed to retrieve level info")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"level":        info,
		"generated_at": time.Now().UTC(),
	})
}

// HasLevel reports whether an awardable reached a level.
// GET /api/v1/profiles/:type/:id/has-level?level=3&metric=combat-xp.
func (h *Handler) HasLevel(c *gin.Context) {
	a, err := h.parseAwardable(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	levelStr := c.Query("level")
	level, err := strconv.Atoi(levelStr)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid level parameter: %s", levelStr))
		return
	}

	target := engine.LevelTarget{Metric: c.Query("metric"), Group: c.Query("group")}
	reached, err := h.engine.HasLevel(c.Request.Context(), a, level, target)
	if err != nil {
		h.failure(c, err, "Failed to check level")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"awardable": a,
		"level":     level,
		"metric":    target.Metric,
		"group":     target.Group,
		"reached":   reached,
	})
}

// SetOptIn enables or disables gamification for an awardable.
// PUT /api/v1/profiles/:type/:id/opt-in.
func (h *Handler) SetOptIn(c *gin.Context) {
	a, err := h.parseAwardable(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var body optInBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctx := c.Request.Context()
	profile, err := h.engine.SetOptIn(ctx, a, *body.OptIn)
	if err != nil {
		h.failure(c, err, "Failed to update opt-in")
		return
	}

	if profile.OptIn {
		err = h.leaderboardService.Include(ctx, a, profile.TotalXP)
	} else {
		err = h.leaderboardService.Exclude(ctx, a)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("awardable", a.String()).Msg("Failed to sync leaderboard after opt-in change")
	}

	h.log.Info().
		Str("awardable", a.String()).
		Bool("opt_in", profile.OptIn).
		Msg("Updated opt-in")

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// GetLeaderboard returns the top ranked profiles by total XP.
// GET /api/v1/leaderboard?limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit, err := h.parseLimit(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	board, err := h.leaderboardService.Top(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   board.Entries,
		"source":        board.Source,
		"total_entries": len(board.Entries),
		"generated_at":  time.Now().UTC(),
	})
}

// Helper functions

// parseAwardable extracts the awardable reference from the URL parameters.
func (h *Handler) parseAwardable(c *gin.Context) (models.Awardable, error) {
	kind := c.Param("type")
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return models.Awardable{}, fmt.Errorf("invalid awardable ID: %s", idStr)
	}
	return models.NewAwardable(kind, uint(id)), nil
}

// parseLimit extracts and validates the limit query parameter. Zero lets the
// leaderboard apply its configured default.
func (h *Handler) parseLimit(c *gin.Context) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	return limit, nil
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "already_granted":
		return http.StatusConflict
	case "invalid_state":
		return http.StatusUnprocessableEntity
	case "opted_out":
		return http.StatusForbidden
	case "invalid_argument":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// resultResponse writes an award or grant result, successful or not.
func (h *Handler) resultResponse(c *gin.Context, result *engine.Result) {
	if result.Success {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(statusFor(result.Kind), result)
}

// failure writes a classified error; unclassified errors are logged and hidden.
func (h *Handler) failure(c *gin.Context, err error, message string) {
	status := statusFor(errs.KindName(err))
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		h.errorResponse(c, status, message)
		return
	}
	c.JSON(status, gin.H{
		"error":     errs.MessageOf(err),
		"field":     errs.FieldOf(err),
		"kind":      errs.KindName(err),
		"timestamp": time.Now().UTC(),
	})
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
