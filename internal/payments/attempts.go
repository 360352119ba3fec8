package payments

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/models"
	"github.com/modelgate/modelgate/pkg/logger"
)

const attemptWriteTimeout = 5 * time.Second

// AttemptRecorder keeps an additive audit log of verification attempts,
// successes and failures alike. Writes happen off the request path and are
// best-effort: the recorder is never consulted for authorization and a lost
// row never blocks a verification.
type AttemptRecorder struct {
	db  *gorm.DB
	log *zap.Logger
	wg  sync.WaitGroup
}

// NewAttemptRecorder constructs a recorder. A nil db yields a nil recorder,
// which is safe to call.
func NewAttemptRecorder(db *gorm.DB) *AttemptRecorder {
	if db == nil {
		return nil
	}
	return &AttemptRecorder{db: db, log: logger.WithModule("attempts")}
}

// Record persists an attempt asynchronously.
func (r *AttemptRecorder) Record(subject, resourceType, resourceID, txReference, outcome, detail string) {
	if r == nil {
		return
	}

	attempt := models.VerificationAttempt{
		Subject:      NormalizeSubject(subject),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		TxReference:  txReference,
		Outcome:      outcome,
		Detail:       detail,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), attemptWriteTimeout)
		defer cancel()

		if err := r.db.WithContext(ctx).Create(&attempt).Error; err != nil {
			r.log.Warn("attempt log write failed",
				zap.String("tx_reference", attempt.TxReference),
				zap.String("outcome", attempt.Outcome),
				zap.Error(err),
			)
		}
	}()
}

// RecentForSubject returns the subject's latest attempts, newest first.
func (r *AttemptRecorder) RecentForSubject(ctx context.Context, subject string, limit int) ([]models.VerificationAttempt, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	var attempts []models.VerificationAttempt
	err := r.db.WithContext(ctx).
		Where("subject = ?", NormalizeSubject(subject)).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// Flush waits for in-flight writes. Used on shutdown and in tests.
func (r *AttemptRecorder) Flush() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
