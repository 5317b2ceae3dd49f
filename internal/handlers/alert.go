package handlers

import (
	"net/http"
	"strconv"

	"github.com/algofinserve/stock-alerts/internal/models"
	"github.com/algofinserve/stock-alerts/internal/services"
	"github.com/algofinserve/stock-alerts/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Global handler instance
var globalHandler *AlertHandler

// AlertHandler is the ingestion and query boundary over the pipeline.
type AlertHandler struct {
	processor *services.Processor
	consumer  *services.BatchConsumer
	engine    *services.RecommendationEngine
	monitor   *services.StoplossMonitor
	report    *services.ReportGenerator
	index     *services.AlertIndex
	store     store.Store
	logger    *zap.Logger
}

// NewAlertHandler creates a handler over the pipeline components.
func NewAlertHandler(
	processor *services.Processor,
	consumer *services.BatchConsumer,
	engine *services.RecommendationEngine,
	monitor *services.StoplossMonitor,
	report *services.ReportGenerator,
	index *services.AlertIndex,
	st store.Store,
	logger *zap.Logger,
) *AlertHandler {
	return &AlertHandler{
		processor: processor,
		consumer:  consumer,
		engine:    engine,
		monitor:   monitor,
		report:    report,
		index:     index,
		store:     st,
		logger:    logger,
	}
}

// SetGlobalHandler sets the global handler instance
func SetGlobalHandler(handler *AlertHandler) {
	globalHandler = handler
}

// GetGlobalHandler returns the global handler instance
func GetGlobalHandler() *AlertHandler {
	return globalHandler
}

func (h *AlertHandler) ingest(c *gin.Context, direction models.Direction, eod bool) {
	var raw models.RawAlert
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert payload: " + err.Error()})
		return
	}

	if err := h.processor.Process(raw, direction, eod); err != nil {
		h.logger.Warn("rejected malformed alert",
			zap.String("scan", raw.ScanName), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "alert queued"})
}

// HandleBuyAlert ingests a buy-direction scanner alert.
func (h *AlertHandler) HandleBuyAlert(c *gin.Context) {
	h.ingest(c, models.DirectionBuy, false)
}

// HandleSellAlert ingests a sell-direction scanner alert.
func (h *AlertHandler) HandleSellAlert(c *gin.Context) {
	h.ingest(c, models.DirectionSell, false)
}

// HandleBuyAlertEOD ingests an end-of-day buy alert.
func (h *AlertHandler) HandleBuyAlertEOD(c *gin.Context) {
	h.ingest(c, models.DirectionBuy, true)
}

// HandleSellAlertEOD ingests an end-of-day sell alert.
func (h *AlertHandler) HandleSellAlertEOD(c *gin.Context) {
	h.ingest(c, models.DirectionSell, true)
}

// GetAlerts returns recent alerts, newest first, with pagination.
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	alerts, err := h.store.RecentAlerts(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"limit":  limit,
		"offset": offset,
	})
}

// GetStockHistory returns a symbol's alerts, optionally filtered to the
// trailing days.
func (h *AlertHandler) GetStockHistory(c *gin.Context) {
	symbol := c.Param("code")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	alerts, err := h.store.StockHistory(symbol, days, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "alerts": alerts})
}

// RecomputeSinceDays rewrites the streak field for all stored alerts.
func (h *AlertHandler) RecomputeSinceDays(c *gin.Context) {
	if err := h.consumer.RecomputeSinceDays(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "since-days recomputed"})
}

// GetActiveRecommendations lists ACTIVE recommendations, optionally scoped to
// one symbol.
func (h *AlertHandler) GetActiveRecommendations(c *gin.Context) {
	symbol := c.Query("symbol")
	recs, err := h.engine.ActiveRecommendations(symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve recommendations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// CloseRecommendation closes one recommendation by id.
func (h *AlertHandler) CloseRecommendation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recommendation id"})
		return
	}

	reason := models.CloseReason(c.DefaultQuery("reason", string(models.CloseManual)))
	switch reason {
	case models.CloseManual, models.CloseOppositeSignal, models.CloseStoplossHit:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid close reason"})
		return
	}

	if err := h.engine.CloseRecommendation(uint(id), reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recommendation closed"})
}

// CheckStoploss runs the manual stoploss check for one symbol.
func (h *AlertHandler) CheckStoploss(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := h.monitor.CheckSymbol(c.Request.Context(), symbol); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stoploss checked", "symbol": symbol})
}

// ClearIndex drops the in-memory per-run alert index.
func (h *AlertHandler) ClearIndex(c *gin.Context) {
	h.index.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "all data cleared"})
}

// GenerateReport writes the end-of-day report and clears the index.
func (h *AlertHandler) GenerateReport(c *gin.Context) {
	path, err := h.report.Generate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "report generated", "path": path})
}
