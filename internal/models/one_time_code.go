package models

import "time"

// CodePurpose scopes a one-time passcode to a single flow.
type CodePurpose string

const (
	PurposeRegistration  CodePurpose = "registration"
	PurposePasswordReset CodePurpose = "password_reset"
)

// OneTimeCode is a short-lived ledger entry proving control of an email
// address. The code is stored and compared as a fixed-width string so
// leading zeros are never dropped. At most one unconsumed row may exist
// per (email, purpose); issuing a new code removes the previous ones.
type OneTimeCode struct {
	ID      uint        `gorm:"primaryKey" json:"id"`
	Email   string      `gorm:"size:255;not null;index:idx_code_lookup" json:"email"`
	Code    string      `gorm:"size:6;not null" json:"-"`
	Purpose CodePurpose `gorm:"size:20;not null;index:idx_code_lookup" json:"purpose"`

	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Consumed  bool      `gorm:"default:false" json:"consumed"`

	CreatedAt time.Time `json:"created_at"`
}

// Usable reports whether the code can still be matched at the given instant.
func (c *OneTimeCode) Usable(now time.Time) bool {
	return !c.Consumed && now.Before(c.ExpiresAt)
}
