package models

// VerificationAttempt is an additive audit record of a payment verification,
// successful or not. It is written best-effort off the request path and plays
// no part in authorization decisions.
type VerificationAttempt struct {
	BaseModel
	Subject      string `gorm:"size:128;index" json:"subject"`
	ResourceType string `gorm:"size:64" json:"resource_type"`
	ResourceID   string `gorm:"size:128" json:"resource_id"`
	TxReference  string `gorm:"size:128;index" json:"tx_reference"`
	Outcome      string `gorm:"size:32;not null" json:"outcome"`
	Detail       string `gorm:"size:512" json:"detail,omitempty"`
}
