package payments

import (
	"context"
	"errors"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/internal/models"
	apperrors "github.com/modelgate/modelgate/pkg/errors"
	"github.com/modelgate/modelgate/pkg/logger"
	"github.com/modelgate/modelgate/pkg/metrics"
)

// PaymentInstructions enumerate the self-serve retry sequence carried by
// every payment-required denial.
type PaymentInstructions struct {
	Step1 string `json:"step1"`
	Step2 string `json:"step2"`
	Step3 string `json:"step3"`
}

// PaymentRequiredInfo is the self-contained body of a payment-required
// denial: everything a client needs to pay and retry without out-of-band
// lookup.
type PaymentRequiredInfo struct {
	ResourceType   string              `json:"resource_type"`
	ResourceID     string              `json:"resource_id"`
	Amount         string              `json:"amount"`
	Currency       string              `json:"currency"`
	PaymentAddress string              `json:"payment_address"`
	Network        string              `json:"network"`
	ChainID        string              `json:"chain_id"`
	Instructions   PaymentInstructions `json:"instructions"`
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed  bool
	Grant    *models.Grant
	Required *PaymentRequiredInfo
}

// Gate is the policy-enforcement point guarding priced resources. It is a
// pure read path: it never mutates grant state, and the session cache it
// consults is an optimization that always falls back to the grant store.
type Gate struct {
	grants  *GrantStore
	cache   *SessionCache
	fees    *FeeSchedule
	network string
	chainID string
	log     *zap.Logger
}

// NewGate constructs a Gate. cache may be nil.
func NewGate(grants *GrantStore, cache *SessionCache, fees *FeeSchedule, network string, chainID *big.Int) (*Gate, error) {
	if grants == nil {
		return nil, errors.New("gate: grant store is required")
	}
	if fees == nil {
		return nil, errors.New("gate: fee schedule is required")
	}

	chain := ""
	if chainID != nil {
		chain = chainID.String()
	}

	return &Gate{
		grants:  grants,
		cache:   cache,
		fees:    fees,
		network: network,
		chainID: chain,
		log:     logger.WithModule("gate"),
	}, nil
}

// Check decides whether the subject may access the resource right now.
// An absent subject is an authentication failure, distinct from a payment
// failure.
func (g *Gate) Check(ctx context.Context, subject, resourceType, resourceID string) (*Decision, error) {
	subject = NormalizeSubject(subject)
	if subject == "" {
		return nil, apperrors.ErrAuthenticationMissing
	}

	// Fast path: the cached flag is only ever set after a real grant was
	// observed, and its TTL never outlives the grant.
	if g.cache.Granted(ctx, subject, resourceType, resourceID) {
		metrics.AccessChecks.WithLabelValues(resourceType, "allow").Inc()
		return &Decision{Allowed: true}, nil
	}

	grant, err := g.grants.FindActive(ctx, subject, resourceType, resourceID, time.Now().UTC())
	if err != nil {
		metrics.AccessChecks.WithLabelValues(resourceType, "error").Inc()
		return nil, err
	}
	if grant != nil {
		g.cache.MarkGranted(ctx, grant)
		metrics.AccessChecks.WithLabelValues(resourceType, "allow").Inc()
		return &Decision{Allowed: true, Grant: grant}, nil
	}

	metrics.AccessChecks.WithLabelValues(resourceType, "deny").Inc()
	g.log.Debug("access denied pending payment",
		zap.String("subject", subject),
		zap.String("resource_type", resourceType),
		zap.String("resource_id", resourceID),
	)

	return &Decision{
		Allowed:  false,
		Required: g.RequiredPayment(resourceType, resourceID),
	}, nil
}

// RequiredPayment builds the payment-required body for a resource from the
// fee schedule.
func (g *Gate) RequiredPayment(resourceType, resourceID string) *PaymentRequiredInfo {
	rule := g.fees.Lookup(resourceType)

	return &PaymentRequiredInfo{
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Amount:         rule.Amount.String(),
		Currency:       rule.Currency,
		PaymentAddress: rule.Destination,
		Network:        g.network,
		ChainID:        g.chainID,
		Instructions: PaymentInstructions{
			Step1: "Send the required amount to the payment address on the listed network",
			Step2: "Submit the transaction hash to POST /api/payments/verify with this resource type and id",
			Step3: "Retry the original request once verification succeeds",
		},
	}
}
