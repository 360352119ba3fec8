package api

import (
	"github.com/gin-gonic/gin"

	"github.com/modelgate/modelgate/internal/handlers"
	"github.com/modelgate/modelgate/internal/middleware"
	"github.com/modelgate/modelgate/internal/payments"
)

func registerPaymentRoutes(group *gin.RouterGroup, h *handlers.PaymentHandler) {
	pay := group.Group("/payments")
	{
		pay.POST("/verify", h.Verify)
		pay.GET("/status", h.Status)
		pay.GET("/history", h.History)
	}
}

func registerResourceRoutes(group *gin.RouterGroup, h *handlers.ResourceHandler, gate *payments.Gate) {
	group.GET("/models/:id/analytics",
		middleware.RequirePayment(gate, handlers.ResourceModelDetails, "id"),
		h.ModelAnalytics,
	)
	group.GET("/competitions/:id/entry",
		middleware.RequirePayment(gate, handlers.ResourceCompetitionEntry, "id"),
		h.CompetitionEntry,
	)
}
