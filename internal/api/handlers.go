package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"

	"github.com/gin-gonic/gin"
)

const maxListLimit = 5000

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := s.bot.Status()
	checks := gin.H{}
	healthy := !status.Halted
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "healthy"
	}

	body := gin.H{
		"status":    "healthy",
		"state":     status.State,
		"halted":    status.Halted,
		"checks":    checks,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"ws_client": s.hub.GetClientCount(),
	}
	if !healthy {
		body["status"] = "unhealthy"
		if status.HaltReason != "" {
			body["halt_reason"] = status.HaltReason
		}
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// handleStatus returns the trader state, balances and last trades
func (s *Server) handleStatus(c *gin.Context) {
	successResponse(c, s.bot.Status())
}

// handleWorks returns the observations. ?scope=all includes history before
// the last trade, ?smoothed=true applies the noise filter, ?limit=N keeps the
// N most recent.
func (s *Server) handleWorks(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	var works []chart.Work
	switch c.DefaultQuery("scope", "current") {
	case "current":
		works = s.chart.Works()
	case "all":
		works = s.chart.AllWorks()
	default:
		errorResponse(c, http.StatusBadRequest, "scope must be current or all")
		return
	}

	if smoothed, _ := strconv.ParseBool(c.Query("smoothed")); smoothed {
		works = s.chart.Smooth(works)
	}
	successResponse(c, tail(works, limit))
}

// handleTrades returns the trade ledger, newest last
func (s *Server) handleTrades(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	if s.history != nil {
		if limit == 0 {
			limit = maxListLimit
		}
		trades, err := s.history.ListTrades(c.Request.Context(), s.bot.Status().Symbol, limit)
		if err != nil {
			errorResponse(c, http.StatusInternalServerError, "Failed to fetch trade history")
			return
		}
		successResponse(c, trades)
		return
	}

	successResponse(c, tail(s.bot.Trades(), limit))
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit > maxListLimit {
		errorResponse(c, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	return limit, true
}

// tail returns the last n items, or all of them when n is 0.
func tail[T chart.Work | database.Trade](items []T, n int) []T {
	if items == nil {
		items = []T{}
	}
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}
