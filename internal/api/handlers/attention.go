package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attention/internal/engine"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/pkg/dto"
)

const (
	defaultTopLimit    = 10
	defaultRecentLimit = 50
)

// AttentionHandler serves live tracks, the people counter and the attention
// history of one engine.
type AttentionHandler struct {
	engine *engine.Engine
}

func NewAttentionHandler(e *engine.Engine) *AttentionHandler {
	return &AttentionHandler{engine: e}
}

func (h *AttentionHandler) Tracks(c *gin.Context) {
	tracks := h.engine.Snapshot()
	if tracks == nil {
		tracks = []models.Track{}
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks, "total": len(tracks)})
}

func (h *AttentionHandler) Counter(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.CounterStats())
}

func (h *AttentionHandler) ResetCounter(c *gin.Context) {
	h.engine.ResetCounter()
	c.JSON(http.StatusOK, h.engine.CounterStats())
}

func (h *AttentionHandler) Daily(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.DailySummary(date))
}

func (h *AttentionHandler) Top(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}
	limit, ok := limitParam(c, defaultTopLimit)
	if !ok {
		return
	}
	if date == "" {
		date = h.engine.Today()
	}
	getters := h.engine.TopAttentionGetters(date, limit)
	c.JSON(http.StatusOK, gin.H{"date": date, "getters": nonNil(getters)})
}

func (h *AttentionHandler) Recent(c *gin.Context) {
	limit, ok := limitParam(c, defaultRecentLimit)
	if !ok {
		return
	}
	records := h.engine.RecentRecords(limit)
	c.JSON(http.StatusOK, gin.H{"records": nonNil(records), "total": len(records)})
}

func (h *AttentionHandler) Dates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"dates": nonNil(h.engine.Dates())})
}

func (h *AttentionHandler) Clear(c *gin.Context) {
	h.engine.ClearHistory(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// dateParam reads ?date=YYYY-MM-DD; empty means today.
func dateParam(c *gin.Context) (string, bool) {
	date := c.Query("date")
	if date == "" {
		return "", true
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "date must be YYYY-MM-DD"})
		return "", false
	}
	return date, true
}

func limitParam(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "limit must be a positive integer"})
		return 0, false
	}
	return n, true
}
