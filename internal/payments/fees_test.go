package payments

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testDestination = "0x1111111111111111111111111111111111111111"

func testFeeSchedule(t *testing.T) *FeeSchedule {
	t.Helper()

	fees := map[string]decimal.Decimal{
		"model-details":     decimal.RequireFromString("0.0001"),
		"competition-entry": decimal.RequireFromString("0.0005"),
	}
	schedule, err := NewFeeSchedule(testDestination, "ETH", 18, fees, decimal.RequireFromString("0.0001"))
	require.NoError(t, err)
	return schedule
}

func TestFeeScheduleLookup(t *testing.T) {
	schedule := testFeeSchedule(t)

	rule := schedule.Lookup("model-details")
	require.Equal(t, "model-details", rule.ResourceType)
	require.Equal(t, "0.0001", rule.Amount.String())
	require.Equal(t, "ETH", rule.Currency)
	require.Equal(t, testDestination, rule.Destination)

	// 0.0001 ETH in wei
	require.Equal(t, big.NewInt(100_000_000_000_000), rule.AmountWei)
}

func TestFeeScheduleLookupFallback(t *testing.T) {
	schedule := testFeeSchedule(t)

	rule := schedule.Lookup("something-new")
	require.Equal(t, "something-new", rule.ResourceType)
	require.Equal(t, "0.0001", rule.Amount.String())
	require.Equal(t, testDestination, rule.Destination)
	require.Equal(t, big.NewInt(100_000_000_000_000), rule.AmountWei)
}

func TestNewFeeScheduleValidation(t *testing.T) {
	defaultFee := decimal.RequireFromString("0.0001")

	_, err := NewFeeSchedule("not-an-address", "ETH", 18, nil, defaultFee)
	require.Error(t, err)

	_, err = NewFeeSchedule(testDestination, "", 18, nil, defaultFee)
	require.Error(t, err)

	_, err = NewFeeSchedule(testDestination, "ETH", 18, nil, decimal.RequireFromString("-1"))
	require.Error(t, err)

	_, err = NewFeeSchedule(testDestination, "ETH", 18, map[string]decimal.Decimal{
		"model-details": decimal.RequireFromString("-0.1"),
	}, defaultFee)
	require.Error(t, err)
}
