package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sofia/crm-revenue/internal/engine"
	"github.com/sofia/crm-revenue/internal/models"
)

// forecastQueryFromRequest reads the shared period/owner options. Explicit
// start_date/end_date (date-only) override the named period token.
func forecastQueryFromRequest(c echo.Context) engine.ForecastQuery {
	q := engine.ForecastQuery{
		Period: c.QueryParam("period"),
		Owner:  strings.TrimSpace(c.QueryParam("owner")),
	}

	if raw := c.QueryParam("exclude_overdue"); raw != "" {
		q.ExcludeOverdue = raw == "1" || strings.EqualFold(raw, "true")
	}

	start, okStart := models.ParseFlexTime(c.QueryParam("start_date"))
	end, okEnd := models.ParseFlexTime(c.QueryParam("end_date"))
	if okStart && okEnd {
		q.StartDate = &start
		q.EndDate = &end
	}

	return q
}

func (s *Server) handleForecast(c echo.Context) error {
	result, err := s.Engine.ResolveForecast(c.Request().Context(), forecastQueryFromRequest(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleScoreDeal(c echo.Context) error {
	scored, err := s.Engine.ScoreOne(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, models.ErrInvalidID):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid deal id"})
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "deal not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, scored)
}

type scenarioRequest struct {
	Period         string                    `json:"period"`
	Owner          string                    `json:"owner"`
	StartDate      *models.FlexTime          `json:"start_date"`
	EndDate        *models.FlexTime          `json:"end_date"`
	ExcludeOverdue bool                      `json:"exclude_overdue"`
	Overrides      []models.ScenarioOverride `json:"overrides"`
}

func (s *Server) handleScenario(c echo.Context) error {
	var req scenarioRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	q := engine.ForecastQuery{
		Period:         req.Period,
		Owner:          strings.TrimSpace(req.Owner),
		ExcludeOverdue: req.ExcludeOverdue,
	}
	if req.StartDate != nil && !req.StartDate.IsZero() && req.EndDate != nil && !req.EndDate.IsZero() {
		start, end := req.StartDate.Time, req.EndDate.Time
		q.StartDate = &start
		q.EndDate = &end
	}

	result, err := s.Engine.RunScenario(c.Request().Context(), q, req.Overrides)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleRepPerformance(c echo.Context) error {
	reps, err := s.Engine.RepPerformance(c.Request().Context(), forecastQueryFromRequest(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if reps == nil {
		reps = []models.RepPerformance{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reps":         reps,
		"generated_at": time.Now().UTC(),
	})
}

func (s *Server) handleAttention(c echo.Context) error {
	limit := 500
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 2000 {
			limit = parsed
		}
	}

	result, err := s.Engine.Attention(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}
