package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modelgate/modelgate/internal/middleware"
	"github.com/modelgate/modelgate/internal/models"
	"github.com/modelgate/modelgate/pkg/response"
)

// Resource types served by the gate. External consumers (dashboard, agent)
// probe these; anything else falls back to the default fee rule.
const (
	ResourceModelDetails     = "model-details"
	ResourceCompetitionEntry = "competition-entry"
	ResourceDeposit          = "deposit"
)

// ResourceHandler serves the priced artifacts behind the paygate. It trusts
// the middleware entirely: by the time a request arrives here, access has
// been granted.
type ResourceHandler struct{}

// NewResourceHandler constructs a resource handler.
func NewResourceHandler() *ResourceHandler {
	return &ResourceHandler{}
}

// ModelAnalytics releases the detailed analytics for a model.
func (h *ResourceHandler) ModelAnalytics(c *gin.Context) {
	modelID := strings.TrimSpace(c.Param("id"))

	payload := gin.H{
		"model_id":     modelID,
		"subject":      c.GetString(middleware.CtxSubjectKey),
		"generated_at": time.Now().UTC(),
		"analytics": gin.H{
			"signal_breakdown": true,
			"trade_log":        true,
			"risk_metrics":     true,
		},
	}
	if grant := grantFromContext(c); grant != nil {
		payload["access_expires_at"] = grant.ExpiresAt
	}

	response.Success(c, http.StatusOK, payload)
}

// CompetitionEntry releases a competition entry pack.
func (h *ResourceHandler) CompetitionEntry(c *gin.Context) {
	competitionID := strings.TrimSpace(c.Param("id"))

	response.Success(c, http.StatusOK, gin.H{
		"competition_id": competitionID,
		"subject":        c.GetString(middleware.CtxSubjectKey),
		"entry": gin.H{
			"registered": true,
			"issued_at":  time.Now().UTC(),
		},
	})
}

func grantFromContext(c *gin.Context) *models.Grant {
	v, ok := c.Get(middleware.CtxGrantKey)
	if !ok {
		return nil
	}
	grant, _ := v.(*models.Grant)
	return grant
}
