package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User represents an account holder. Balance changes go through the
// reconciliation engine; Version guards every write against lost updates.
type User struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	Username     string          `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string          `gorm:"size:255" json:"email,omitempty"`
	PasswordHash string          `gorm:"size:255;not null" json:"-"`
	Role         Role            `gorm:"size:16;index;not null" json:"role"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	Version      int64           `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BeforeCreate assigns an id on first insert.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleClient
	}
	return nil
}

// UserUpdate is a partial update: nil fields are left untouched.
type UserUpdate struct {
	Username *string          `json:"username"`
	Email    *string          `json:"email"`
	Password *string          `json:"password"`
	Role     *Role            `json:"role"`
	Balance  *decimal.Decimal `json:"balance"`
}

// Merge copies every set field onto u. The password is returned in plain
// text for the caller to hash; the id is never touched.
func (p UserUpdate) Merge(u *User) (newPassword string, changed bool) {
	if p.Username != nil {
		u.Username = *p.Username
		changed = true
	}
	if p.Email != nil {
		u.Email = *p.Email
		changed = true
	}
	if p.Role != nil {
		u.Role = *p.Role
		changed = true
	}
	if p.Balance != nil {
		u.Balance = *p.Balance
		changed = true
	}
	if p.Password != nil {
		newPassword = *p.Password
		changed = true
	}
	return newPassword, changed
}
