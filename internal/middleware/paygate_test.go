package middleware_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/modelgate/internal/database/testutil"
	"github.com/modelgate/modelgate/internal/middleware"
	"github.com/modelgate/modelgate/internal/models"
	"github.com/modelgate/modelgate/internal/payments"
)

const (
	testWallet      = "0xAbCd000000000000000000000000000000000001"
	testDestination = "0x1111111111111111111111111111111111111111"
)

func newGatedRouter(t *testing.T) (*gin.Engine, *payments.GrantStore) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	store, err := payments.NewGrantStore(db)
	require.NoError(t, err)

	fees, err := payments.NewFeeSchedule(testDestination, "ETH", 18,
		map[string]decimal.Decimal{"model-details": decimal.RequireFromString("0.0001")},
		decimal.RequireFromString("0.0001"))
	require.NoError(t, err)

	gate, err := payments.NewGate(store, nil, fees, "testnet", big.NewInt(1337))
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/models/:id/analytics",
		middleware.RequirePayment(gate, "model-details", "id"),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"subject": c.GetString(middleware.CtxSubjectKey)})
		},
	)

	return router, store
}

func doRequest(router *gin.Engine, wallet string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/models/model-1/analytics", nil)
	if wallet != "" {
		req.Header.Set(middleware.SubjectHeader, wallet)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequirePaymentMissingWallet(t *testing.T) {
	router, _ := newGatedRouter(t)

	rec := doRequest(router, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "AUTHENTICATION_MISSING", body.Error.Code)
}

func TestRequirePaymentDeniesUnpaid(t *testing.T) {
	router, _ := newGatedRouter(t)

	rec := doRequest(router, testWallet)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Payment struct {
				ResourceType   string `json:"resource_type"`
				ResourceID     string `json:"resource_id"`
				Amount         string `json:"amount"`
				Currency       string `json:"currency"`
				PaymentAddress string `json:"payment_address"`
				Network        string `json:"network"`
				ChainID        string `json:"chain_id"`
			} `json:"payment"`
		} `json:"data"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "PAYMENT_REQUIRED", body.Error.Code)

	payment := body.Data.Payment
	require.Equal(t, "model-details", payment.ResourceType)
	require.Equal(t, "model-1", payment.ResourceID)
	require.Equal(t, "0.0001", payment.Amount)
	require.Equal(t, "ETH", payment.Currency)
	require.Equal(t, testDestination, payment.PaymentAddress)
	require.Equal(t, "testnet", payment.Network)
	require.Equal(t, "1337", payment.ChainID)
}

func TestRequirePaymentAllowsGranted(t *testing.T) {
	router, store := newGatedRouter(t)

	grant := &models.Grant{
		Subject:      testWallet,
		ResourceType: "model-details",
		ResourceID:   "model-1",
		AmountPaid:   "100000000000000",
		Currency:     "ETH",
		TxReference:  "0xtx-middleware-1",
		Status:       models.GrantStatusVerified,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, store.Put(context.Background(), grant))

	rec := doRequest(router, testWallet)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Subject string `json:"subject"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "0xabcd000000000000000000000000000000000001", body.Subject)
}
