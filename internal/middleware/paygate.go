package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/modelgate/modelgate/internal/payments"
	"github.com/modelgate/modelgate/pkg/errors"
	"github.com/modelgate/modelgate/pkg/response"
)

const (
	// CtxSubjectKey carries the normalized wallet address of the caller.
	CtxSubjectKey = "walletAddress"
	// CtxGrantKey carries the grant that authorised the request, when the
	// decision came from the store rather than the session cache.
	CtxGrantKey = "accessGrant"

	// SubjectHeader identifies the caller's wallet address.
	SubjectHeader = "X-Wallet-Address"
)

// Subject extracts the caller's wallet address from the request. Dashboard
// clients send the header; plain links may use the query parameter.
func Subject(c *gin.Context) string {
	if addr := strings.TrimSpace(c.GetHeader(SubjectHeader)); addr != "" {
		return addr
	}
	return strings.TrimSpace(c.Query("wallet_address"))
}

// RequirePayment gates a route behind proof of payment for the given
// resource type. The resource id is read from the named route parameter.
// A missing wallet address is an authentication failure (401), distinct
// from the payment-required denial (402).
func RequirePayment(gate *payments.Gate, resourceType, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := Subject(c)
		resourceID := strings.TrimSpace(c.Param(idParam))

		decision, err := gate.Check(c.Request.Context(), subject, resourceType, resourceID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if !decision.Allowed {
			response.ErrorWithDetail(c, errors.ErrPaymentRequired, gin.H{"payment": decision.Required})
			c.Abort()
			return
		}

		c.Set(CtxSubjectKey, payments.NormalizeSubject(subject))
		if decision.Grant != nil {
			c.Set(CtxGrantKey, decision.Grant)
		}

		c.Next()
	}
}
