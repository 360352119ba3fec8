package models

import "time"

// Grant statuses. A grant row only ever exists in the verified state; failed
// verification attempts are recorded separately and never become grants.
const GrantStatusVerified = "verified"

// Grant records that a subject has paid for access to a specific resource.
//
// The unique index on TxReference is the anti-replay invariant: a ledger
// transaction authorises at most one grant, ever, even across resources. The
// composite index mirrors the authorization query in GrantStore.FindActive.
type Grant struct {
	BaseModel
	Subject      string    `gorm:"size:128;not null;index:idx_grants_subject_resource,priority:1" json:"subject"`
	ResourceType string    `gorm:"size:64;not null;index:idx_grants_subject_resource,priority:2" json:"resource_type"`
	ResourceID   string    `gorm:"size:128;not null;index:idx_grants_subject_resource,priority:3" json:"resource_id"`
	AmountPaid   string    `gorm:"size:78;not null" json:"amount_paid"`
	Currency     string    `gorm:"size:16;not null" json:"currency"`
	TxReference  string    `gorm:"size:128;not null;uniqueIndex:uniq_grants_tx_reference" json:"tx_reference"`
	Status       string    `gorm:"size:16;not null;default:verified" json:"status"`
	ExpiresAt    time.Time `gorm:"not null;index:idx_grants_subject_resource,priority:4" json:"expires_at"`
}

// Active reports whether the grant still authorises access at the given time.
func (g *Grant) Active(now time.Time) bool {
	return g != nil && g.ExpiresAt.After(now)
}
