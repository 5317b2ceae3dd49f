package routes

import (
	"github.com/algofinserve/stock-alerts/internal/handlers"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(r *gin.Engine) {
	alertHandler := handlers.GetGlobalHandler()

	// Scanner webhook endpoints; the path determines direction and urgency.
	r.POST("/BuyAlert", alertHandler.HandleBuyAlert)
	r.POST("/SellAlert", alertHandler.HandleSellAlert)
	r.POST("/BuyAlertEOD", alertHandler.HandleBuyAlertEOD)
	r.POST("/SellAlertEOD", alertHandler.HandleSellAlertEOD)

	// Maintenance endpoints
	r.POST("/Clear", alertHandler.ClearIndex)
	r.POST("/GenerateReport", alertHandler.GenerateReport)

	// API routes
	api := r.Group("/api/v1")
	{
		alerts := api.Group("/alerts")
		{
			alerts.GET("", alertHandler.GetAlerts)
			alerts.GET("/stock/:code", alertHandler.GetStockHistory)
			alerts.POST("/recompute-since-days", alertHandler.RecomputeSinceDays)
		}

		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("/active", alertHandler.GetActiveRecommendations)
			recommendations.POST("/:id/close", alertHandler.CloseRecommendation)
		}

		api.POST("/stoploss/check/:symbol", alertHandler.CheckStoploss)
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "stock-alerts",
		})
	})
}
