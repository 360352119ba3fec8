package payments

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/database/testutil"
	"github.com/modelgate/modelgate/internal/ledger"
	"github.com/modelgate/modelgate/internal/models"
	apperrors "github.com/modelgate/modelgate/pkg/errors"
)

const (
	testSender = "0xAbCd000000000000000000000000000000000001"
	testTxHash = "0x00000000000000000000000000000000000000000000000000000000000000aa"
)

// fakeLedger satisfies ledger.Client with canned responses.
type fakeLedger struct {
	payment    *ledger.Payment
	resolveErr error
	awaitErr   error
}

func (f *fakeLedger) PaymentByRef(ctx context.Context, txRef string) (*ledger.Payment, bool, error) {
	if f.resolveErr != nil {
		return nil, false, f.resolveErr
	}
	return f.payment, false, nil
}

func (f *fakeLedger) AwaitConfirmation(ctx context.Context, txRef string) (*ledger.Payment, error) {
	if f.awaitErr != nil {
		return nil, f.awaitErr
	}
	return f.payment, nil
}

func (f *fakeLedger) Network() string   { return "testnet" }
func (f *fakeLedger) ChainID() *big.Int { return big.NewInt(1337) }
func (f *fakeLedger) Close()            {}

func confirmedPayment() *ledger.Payment {
	return &ledger.Payment{
		TxReference: testTxHash,
		Sender:      testSender,
		Recipient:   testDestination,
		Amount:      big.NewInt(100_000_000_000_000), // exactly the model-details fee
		BlockNumber: 10,
	}
}

type verifierFixture struct {
	db       *gorm.DB
	store    *GrantStore
	attempts *AttemptRecorder
	verifier *Verifier
	ledger   *fakeLedger
}

func newVerifierFixture(t *testing.T, client *fakeLedger) *verifierFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	store, err := NewGrantStore(db)
	require.NoError(t, err)

	attempts := NewAttemptRecorder(db)
	verifier, err := NewVerifier(client, testFeeSchedule(t), store, nil, attempts, time.Hour)
	require.NoError(t, err)

	return &verifierFixture{db: db, store: store, attempts: attempts, verifier: verifier, ledger: client}
}

func defaultInput() VerifyInput {
	return VerifyInput{
		TxReference:  testTxHash,
		ResourceType: "model-details",
		ResourceID:   "model-1",
		Subject:      testSender,
	}
}

func TestVerifySuccess(t *testing.T) {
	fx := newVerifierFixture(t, &fakeLedger{payment: confirmedPayment()})

	grant, err := fx.verifier.Verify(context.Background(), defaultInput())
	require.NoError(t, err)
	require.NotNil(t, grant)
	require.NotEmpty(t, grant.ID)
	require.Equal(t, "0xabcd000000000000000000000000000000000001", grant.Subject)
	require.Equal(t, "model-details", grant.ResourceType)
	require.Equal(t, "model-1", grant.ResourceID)
	require.Equal(t, "100000000000000", grant.AmountPaid)
	require.Equal(t, "ETH", grant.Currency)
	require.Equal(t, testTxHash, grant.TxReference)
	require.Equal(t, models.GrantStatusVerified, grant.Status)
	require.True(t, grant.Active(time.Now().UTC()))

	fx.attempts.Flush()
	attempts, err := fx.attempts.RecentForSubject(context.Background(), testSender, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, "verified", attempts[0].Outcome)
}

func TestVerifyMissingSubject(t *testing.T) {
	fx := newVerifierFixture(t, &fakeLedger{payment: confirmedPayment()})

	in := defaultInput()
	in.Subject = "   "
	_, err := fx.verifier.Verify(context.Background(), in)
	require.Equal(t, "AUTHENTICATION_MISSING", apperrors.FromError(err).Code)
}

func TestVerifyTransactionNotFound(t *testing.T) {
	fx := newVerifierFixture(t, &fakeLedger{resolveErr: ledger.ErrTxNotFound})

	_, err := fx.verifier.Verify(context.Background(), defaultInput())
	require.Equal(t, "TX_NOT_FOUND", apperrors.FromError(err).Code)
}

func TestVerifyTransactionReverted(t *testing.T) {
	fx := newVerifierFixture(t, &fakeLedger{payment: confirmedPayment(), awaitErr: ledger.ErrTxReverted})

	_, err := fx.verifier.Verify(context.Background(), defaultInput())
	require.Equal(t, "TX_FAILED", apperrors.FromError(err).Code)
	requireNoGrants(t, fx.db)
}

func TestVerifyConfirmationTimeout(t *testing.T) {
	fx := newVerifierFixture(t, &fakeLedger{payment: confirmedPayment(), awaitErr: ledger.ErrConfirmationTimeout})

	_, err := fx.verifier.Verify(context.Background(), defaultInput())
	appErr := apperrors.FromError(err)
	// Timeouts surface as the transient not-found kind so clients retry.
	require.Equal(t, "TX_NOT_FOUND", appErr.Code)
	requireNoGrants(t, fx.db)
}

func TestVerifySenderMismatch(t *testing.T) {
	payment := confirmedPayment()
	payment.Sender = "0x2222222222222222222222222222222222222222"
	fx := newVerifierFixture(t, &fakeLedger{payment: payment})

	_, err := fx.verifier.Verify(context.Background(), defaultInput())
	require.Equal(t, "SENDER_MISMATCH", apperrors.FromError(err).Code)
	requireNoGrants(t, fx.db)
}

func TestVerifyRecipientMismatch(t *testing.T) {
	payment := confirmedPayment()
	payment.Recipient = "0x3333333333333333333333333333333333333333"
	fx := newVerifierFixture(t, &fakeLedger{payment: payment})

	_, err := fx.verifier.Verify(context.Background(), defaultInput())
	require.Equal(t, "RECIPIENT_MISMATCH", apperrors.FromError(err).Code)
	requireNoGrants(t, fx.db)
}

func TestVerifyAmountBoundaries(t *testing.T) {
	t.Run("one wei short", func(t *testing.T) {
		payment := confirmedPayment()
		payment.Amount = big.NewInt(100_000_000_000_000 - 1)
		fx := newVerifierFixture(t, &fakeLedger{payment: payment})

		_, err := fx.verifier.Verify(context.Background(), defaultInput())
		require.Equal(t, "INSUFFICIENT_PAYMENT", apperrors.FromError(err).Code)
		requireNoGrants(t, fx.db)
	})

	t.Run("exact amount", func(t *testing.T) {
		fx := newVerifierFixture(t, &fakeLedger{payment: confirmedPayment()})

		_, err := fx.verifier.Verify(context.Background(), defaultInput())
		require.NoError(t, err)
	})

	t.Run("overpayment accepted", func(t *testing.T) {
		payment := confirmedPayment()
		payment.Amount = big.NewInt(2 * 100_000_000_000_000)
		fx := newVerifierFixture(t, &fakeLedger{payment: payment})

		grant, err := fx.verifier.Verify(context.Background(), defaultInput())
		require.NoError(t, err)
		require.Equal(t, "200000000000000", grant.AmountPaid)
	})
}

func TestVerifySenderCaseInsensitive(t *testing.T) {
	payment := confirmedPayment()
	payment.Sender = "0xABCD000000000000000000000000000000000001"
	fx := newVerifierFixture(t, &fakeLedger{payment: payment})

	in := defaultInput()
	in.Subject = "0xabcd000000000000000000000000000000000001"
	_, err := fx.verifier.Verify(context.Background(), in)
	require.NoError(t, err)
}

func TestVerifyReplayRejected(t *testing.T) {
	fx := newVerifierFixture(t, &fakeLedger{payment: confirmedPayment()})
	ctx := context.Background()

	_, err := fx.verifier.Verify(ctx, defaultInput())
	require.NoError(t, err)

	// Same transaction against a different resource.
	in := defaultInput()
	in.ResourceID = "model-2"
	_, err = fx.verifier.Verify(ctx, in)
	require.Equal(t, "ALREADY_CONSUMED", apperrors.FromError(err).Code)

	var count int64
	require.NoError(t, fx.db.Model(&models.Grant{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	fx.attempts.Flush()
	attempts, err := fx.attempts.RecentForSubject(ctx, testSender, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
}

func TestVerifyConcurrentSameTransaction(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store, err := NewGrantStore(db)
	require.NoError(t, err)
	verifier, err := NewVerifier(&fakeLedger{payment: confirmedPayment()}, testFeeSchedule(t), store, nil, nil, time.Hour)
	require.NoError(t, err)

	const workers = 4
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := verifier.Verify(context.Background(), defaultInput())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejected int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		require.Equal(t, "ALREADY_CONSUMED", apperrors.FromError(err).Code)
		rejected++
	}

	require.Equal(t, 1, successes)
	require.Equal(t, workers-1, rejected)

	var count int64
	require.NoError(t, db.Model(&models.Grant{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func requireNoGrants(t *testing.T, db *gorm.DB) {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Grant{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}
