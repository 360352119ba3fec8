package payments

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/modelgate/modelgate/pkg/logger"
	"github.com/modelgate/modelgate/pkg/metrics"
)

// FeeRule is the payment terms for one resource type. Immutable at runtime.
type FeeRule struct {
	ResourceType string
	Amount       decimal.Decimal // display units, e.g. "0.0001"
	AmountWei    *big.Int
	Currency     string
	Destination  string
}

// FeeSchedule maps resource types to payment terms. Lookups never fail:
// unknown resource types are served by the default rule so future resource
// types need no deploy, but every fallback is logged and counted so the
// permissiveness stays auditable.
type FeeSchedule struct {
	rules    map[string]FeeRule
	fallback FeeRule
	log      *zap.Logger
}

// NewFeeSchedule builds a schedule from per-resource-type amounts plus a
// default. All rules pay to the same destination address. decimals is the
// currency's base-unit exponent (18 for ETH).
func NewFeeSchedule(destination, currency string, decimals int32, fees map[string]decimal.Decimal, defaultFee decimal.Decimal) (*FeeSchedule, error) {
	if !common.IsHexAddress(destination) {
		return nil, fmt.Errorf("fee schedule: invalid destination address %q", destination)
	}
	if currency == "" {
		return nil, errors.New("fee schedule: currency is required")
	}
	if defaultFee.IsNegative() {
		return nil, errors.New("fee schedule: default fee must not be negative")
	}

	schedule := &FeeSchedule{
		rules: make(map[string]FeeRule, len(fees)),
		fallback: FeeRule{
			Amount:      defaultFee,
			AmountWei:   toBaseUnits(defaultFee, decimals),
			Currency:    currency,
			Destination: destination,
		},
		log: logger.WithModule("fees"),
	}

	for resourceType, amount := range fees {
		if amount.IsNegative() {
			return nil, fmt.Errorf("fee schedule: negative fee for %q", resourceType)
		}
		schedule.rules[resourceType] = FeeRule{
			ResourceType: resourceType,
			Amount:       amount,
			AmountWei:    toBaseUnits(amount, decimals),
			Currency:     currency,
			Destination:  destination,
		}
	}

	return schedule, nil
}

// Lookup returns the payment terms for a resource type. Pure, side-effect
// free apart from fallback observability.
func (s *FeeSchedule) Lookup(resourceType string) FeeRule {
	if rule, ok := s.rules[resourceType]; ok {
		return rule
	}

	s.log.Warn("fee lookup fell back to default rule",
		zap.String("resource_type", resourceType),
		zap.String("amount", s.fallback.Amount.String()),
	)
	metrics.FeeFallbacks.WithLabelValues(resourceType).Inc()

	rule := s.fallback
	rule.ResourceType = resourceType
	return rule
}

func toBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}
