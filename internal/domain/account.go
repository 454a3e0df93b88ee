package domain

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin    = "ADMIN"
	RoleSeller   = "SELLER"
	RoleCustomer = "CUSTOMER"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

type Account struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `gorm:"not null" json:"last_name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`

	// nil for accounts auto-provisioned through Google sign-in
	Phone *string `gorm:"uniqueIndex" json:"phone,omitempty"`

	// empty for Google-only accounts
	PasswordHash string  `json:"-"`
	GoogleID     *string `gorm:"uniqueIndex" json:"-"`

	AvatarURL     string     `json:"avatar_url,omitempty"`
	Role          string     `gorm:"type:varchar(20);not null;default:CUSTOMER" json:"role"`
	Status        string     `gorm:"type:varchar(20);not null;default:active" json:"status"`
	EmailVerified bool       `gorm:"not null;default:false" json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`

	ResetTokenHash      string     `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	gorm.Model `json:"-"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSeller, RoleCustomer:
		return true
	}
	return false
}

func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// MarkDeleted flags the account as deleted and renames its unique
// identifiers so the email/phone slots can be reused by a new account.
func (a *Account) MarkDeleted() {
	a.Status = StatusDeleted
	a.Email = fmt.Sprintf("deleted:%d:%s", a.ID, a.Email)
	if a.Phone != nil {
		renamed := fmt.Sprintf("deleted:%d:%s", a.ID, *a.Phone)
		a.Phone = &renamed
	}
}

// HasPassword reports whether the account can authenticate locally.
// Accounts provisioned through Google sign-in carry no password hash.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}
