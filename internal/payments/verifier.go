package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/internal/ledger"
	"github.com/modelgate/modelgate/internal/models"
	apperrors "github.com/modelgate/modelgate/pkg/errors"
	"github.com/modelgate/modelgate/pkg/logger"
	"github.com/modelgate/modelgate/pkg/metrics"
)

const defaultValidityWindow = 30 * 24 * time.Hour

// Verifier validates a claimed payment against the ledger and the fee
// schedule, and persists an access grant on success. It is the only writer
// of grants, and the write happens atomically at the final step: an
// abandoned or failed verification can never leave partial state behind.
type Verifier struct {
	ledger   ledger.Client
	fees     *FeeSchedule
	grants   *GrantStore
	cache    *SessionCache
	attempts *AttemptRecorder
	validity time.Duration
	log      *zap.Logger
}

// NewVerifier constructs a Verifier. cache and attempts may be nil.
func NewVerifier(client ledger.Client, fees *FeeSchedule, grants *GrantStore, cache *SessionCache, attempts *AttemptRecorder, validity time.Duration) (*Verifier, error) {
	if client == nil {
		return nil, errors.New("verifier: ledger client is required")
	}
	if fees == nil {
		return nil, errors.New("verifier: fee schedule is required")
	}
	if grants == nil {
		return nil, errors.New("verifier: grant store is required")
	}
	if validity <= 0 {
		validity = defaultValidityWindow
	}

	return &Verifier{
		ledger:   client,
		fees:     fees,
		grants:   grants,
		cache:    cache,
		attempts: attempts,
		validity: validity,
		log:      logger.WithModule("verifier"),
	}, nil
}

// VerifyInput identifies the claimed payment and the resource it pays for.
type VerifyInput struct {
	TxReference  string
	ResourceType string
	ResourceID   string
	Subject      string
}

// Verify runs the full verification algorithm and returns the persisted
// grant, or a typed error describing why the claim was rejected. No error
// kind is retried internally; ErrTxNotFound tells the client to retry later.
func (v *Verifier) Verify(ctx context.Context, in VerifyInput) (*models.Grant, error) {
	subject := NormalizeSubject(in.Subject)

	grant, err := v.verify(ctx, in, subject)

	outcome := "verified"
	detail := ""
	if err != nil {
		appErr := apperrors.FromError(err)
		outcome = strings.ToLower(appErr.Code)
		detail = appErr.Message
	}
	v.attempts.Record(subject, in.ResourceType, in.ResourceID, in.TxReference, outcome, detail)
	metrics.Verifications.WithLabelValues(in.ResourceType, outcome).Inc()

	if err != nil {
		v.log.Info("verification rejected",
			zap.String("tx_reference", in.TxReference),
			zap.String("resource_type", in.ResourceType),
			zap.String("resource_id", in.ResourceID),
			zap.String("outcome", outcome),
		)
		return nil, err
	}

	v.log.Info("payment verified",
		zap.String("tx_reference", grant.TxReference),
		zap.String("subject", grant.Subject),
		zap.String("resource_type", grant.ResourceType),
		zap.String("resource_id", grant.ResourceID),
		zap.Time("expires_at", grant.ExpiresAt),
	)
	return grant, nil
}

func (v *Verifier) verify(ctx context.Context, in VerifyInput, subject string) (*models.Grant, error) {
	if subject == "" {
		return nil, apperrors.ErrAuthenticationMissing
	}

	// Step 1: resolve the transaction. Unresolved is transient; the caller
	// retries after the ledger has propagated it.
	if _, _, err := v.ledger.PaymentByRef(ctx, in.TxReference); err != nil {
		if errors.Is(err, ledger.ErrTxNotFound) {
			return nil, apperrors.ErrTxNotFound
		}
		return nil, apperrors.Wrap(err, "resolve transaction")
	}

	// Step 2: await inclusion. This is the one suspending operation; it
	// wakes on new heads and is bounded server-side, so other requests keep
	// making progress.
	payment, err := v.ledger.AwaitConfirmation(ctx, in.TxReference)
	switch {
	case errors.Is(err, ledger.ErrTxReverted):
		return nil, apperrors.ErrTransactionFailed
	case errors.Is(err, ledger.ErrConfirmationTimeout):
		return nil, apperrors.ErrTxNotFound.WithMessage("Transaction not confirmed yet; retry shortly")
	case err != nil:
		return nil, apperrors.Wrap(err, "await confirmation")
	}

	// Step 3: validate the observed payment against the fee rule, in order.
	rule := v.fees.Lookup(in.ResourceType)
	if !strings.EqualFold(payment.Sender, subject) {
		return nil, apperrors.ErrSenderMismatch
	}
	if !strings.EqualFold(payment.Recipient, rule.Destination) {
		return nil, apperrors.ErrRecipientMismatch
	}
	if payment.Amount.Cmp(rule.AmountWei) < 0 {
		return nil, apperrors.ErrInsufficientPayment
	}

	// Step 4: replay check. A transaction authorises at most one grant,
	// ever, even across different resources.
	existing, err := v.grants.FindByTxReference(ctx, payment.TxReference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrAlreadyConsumed
	}

	// Step 5: persist. The unique index closes the window between the check
	// above and this insert; the loser of a concurrent duplicate resolves to
	// AlreadyConsumed, never a second grant.
	now := time.Now().UTC()
	grant := &models.Grant{
		Subject:      subject,
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		AmountPaid:   payment.Amount.String(),
		Currency:     rule.Currency,
		TxReference:  payment.TxReference,
		Status:       models.GrantStatusVerified,
		ExpiresAt:    now.Add(v.validity),
	}

	if err := v.grants.Put(ctx, grant); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrAlreadyConsumed
		}
		return nil, err
	}

	metrics.GrantsCreated.Inc()
	v.cache.MarkGranted(ctx, grant)

	return grant, nil
}
