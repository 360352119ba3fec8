package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modelgate/modelgate/internal/middleware"
	"github.com/modelgate/modelgate/internal/models"
	"github.com/modelgate/modelgate/internal/payments"
	"github.com/modelgate/modelgate/pkg/errors"
	"github.com/modelgate/modelgate/pkg/response"
	"github.com/modelgate/modelgate/pkg/validator"
)

// PaymentDTO is the API-friendly view of a grant.
type PaymentDTO struct {
	GrantID      string    `json:"grant_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	TxReference  string    `json:"tx_reference"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func paymentDTO(grant *models.Grant) PaymentDTO {
	return PaymentDTO{
		GrantID:      grant.ID,
		ResourceType: grant.ResourceType,
		ResourceID:   grant.ResourceID,
		Amount:       grant.AmountPaid,
		Currency:     grant.Currency,
		TxReference:  grant.TxReference,
		CreatedAt:    grant.CreatedAt,
		ExpiresAt:    grant.ExpiresAt,
	}
}

// PaymentHandler exposes the verify, status and history endpoints.
type PaymentHandler struct {
	verifier *payments.Verifier
	gate     *payments.Gate
	grants   *payments.GrantStore
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(verifier *payments.Verifier, gate *payments.Gate, grants *payments.GrantStore) *PaymentHandler {
	return &PaymentHandler{verifier: verifier, gate: gate, grants: grants}
}

// VerifyRequest is the payload of POST /api/payments/verify.
type VerifyRequest struct {
	TxHash        string `json:"tx_hash" validate:"required"`
	ResourceType  string `json:"resource_type" validate:"required"`
	ResourceID    string `json:"resource_id" validate:"required"`
	WalletAddress string `json:"wallet_address" validate:"required"`
}

// Verify validates a claimed payment and persists the grant on success.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.NewBadRequest("invalid JSON body"))
		return
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	grant, err := h.verifier.Verify(c.Request.Context(), payments.VerifyInput{
		TxReference:  strings.TrimSpace(req.TxHash),
		ResourceType: strings.TrimSpace(req.ResourceType),
		ResourceID:   strings.TrimSpace(req.ResourceID),
		Subject:      req.WalletAddress,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"payment": paymentDTO(grant)})
}

// Status reports whether the subject has paid for a resource, with the
// required payment terms when they have not.
func (h *PaymentHandler) Status(c *gin.Context) {
	subject := middleware.Subject(c)
	if subject == "" {
		response.Error(c, errors.ErrAuthenticationMissing)
		return
	}

	resourceType := strings.TrimSpace(c.Query("resource_type"))
	resourceID := strings.TrimSpace(c.Query("resource_id"))
	if resourceType == "" || resourceID == "" {
		response.Error(c, errors.NewBadRequest("resource_type and resource_id are required"))
		return
	}

	grant, err := h.grants.FindActive(c.Request.Context(), subject, resourceType, resourceID, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	if grant != nil {
		response.Success(c, http.StatusOK, gin.H{
			"paid":    true,
			"payment": paymentDTO(grant),
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"paid":     false,
		"required": h.gate.RequiredPayment(resourceType, resourceID),
	})
}

// History returns the subject's most recent grants, newest first.
func (h *PaymentHandler) History(c *gin.Context) {
	subject := middleware.Subject(c)
	if subject == "" {
		response.Error(c, errors.ErrAuthenticationMissing)
		return
	}

	limit := parseIntQuery(c, "limit", payments.DefaultHistoryLimit)
	grants, err := h.grants.FindRecent(c.Request.Context(), subject, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]PaymentDTO, 0, len(grants))
	for i := range grants {
		items = append(items, paymentDTO(&grants[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"payments": items})
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
