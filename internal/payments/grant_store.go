package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/models"
	apperrors "github.com/modelgate/modelgate/pkg/errors"
)

// DefaultHistoryLimit bounds FindRecent when the caller does not.
const DefaultHistoryLimit = 50

// GrantStore is the durable store of access grants. The unique index on
// tx_reference is the single arbiter of the duplicate-verification race:
// exactly one Put for a given transaction ever succeeds.
type GrantStore struct {
	db *gorm.DB
}

// NewGrantStore constructs a GrantStore.
func NewGrantStore(db *gorm.DB) (*GrantStore, error) {
	if db == nil {
		return nil, errors.New("grant store: db is required")
	}
	return &GrantStore{db: db}, nil
}

// Put inserts a grant. It returns ErrConflict when a grant with the same
// tx reference already exists; the check is enforced by the storage layer,
// not an application-level existence probe, so two concurrent verifications
// of the same transaction resolve deterministically.
func (s *GrantStore) Put(ctx context.Context, grant *models.Grant) error {
	if grant == nil {
		return errors.New("grant store: grant is nil")
	}
	grant.Subject = NormalizeSubject(grant.Subject)

	err := s.db.WithContext(ctx).Create(grant).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrConflict
	}
	if err != nil {
		return apperrors.ErrStoreUnavailable.WithInternal(err)
	}
	return nil
}

// FindActive returns the most recent grant authorising the tuple at the
// given instant, or nil when none exists.
func (s *GrantStore) FindActive(ctx context.Context, subject, resourceType, resourceID string, now time.Time) (*models.Grant, error) {
	var grant models.Grant
	err := s.db.WithContext(ctx).
		Where("subject = ? AND resource_type = ? AND resource_id = ?", NormalizeSubject(subject), resourceType, resourceID).
		Where("expires_at > ?", now).
		Order("expires_at DESC").
		First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ErrStoreUnavailable.WithInternal(err)
	}
	return &grant, nil
}

// FindByTxReference returns the grant consuming a transaction, or nil.
func (s *GrantStore) FindByTxReference(ctx context.Context, txReference string) (*models.Grant, error) {
	var grant models.Grant
	err := s.db.WithContext(ctx).
		Where("tx_reference = ?", txReference).
		First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ErrStoreUnavailable.WithInternal(err)
	}
	return &grant, nil
}

// FindRecent returns the subject's most recent grants, newest first.
func (s *GrantStore) FindRecent(ctx context.Context, subject string, limit int) ([]models.Grant, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	var grants []models.Grant
	err := s.db.WithContext(ctx).
		Where("subject = ?", NormalizeSubject(subject)).
		Order("created_at DESC").
		Limit(limit).
		Find(&grants).Error
	if err != nil {
		return nil, apperrors.ErrStoreUnavailable.WithInternal(err)
	}
	return grants, nil
}
