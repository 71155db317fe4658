package models

import "time"

// User is a registered account. A row exists only after the registration
// passcode has been verified, so IsVerified is true from creation; it stays
// a column because the login path and older rows still check it.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	ProfileImage string `gorm:"size:500" json:"profile_image,omitempty"`
	IsVerified   bool   `gorm:"default:false" json:"is_verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
