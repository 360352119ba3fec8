package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/pkg/response"
)

const healthCheckTimeout = 2 * time.Second

// Health returns a readiness payload backed by a database ping.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
				err = sqlDB.PingContext(ctx)
				cancel()
			}
			if err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{"success": code == http.StatusOK, "status": status, "checked_at": time.Now().UTC()})
	}
}

// Live returns a liveness payload with no dependencies.
func Live() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
