package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeExpense    TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeExpense:
		return true
	}
	return false
}

func (t TransactionType) Value() (driver.Value, error) {
	return string(t), nil
}

// IsDebit reports whether the type draws on the owner's balance.
func (t TransactionType) IsDebit() bool {
	return t == TypeWithdrawal || t == TypeExpense
}

// Transaction is one ledger record. Rejected debits are stored with
// Completed=false and kept for audit.
type Transaction struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	Description   string          `gorm:"size:255" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Date          string          `gorm:"size:10;not null" json:"date"`
	TimestampDate int64           `gorm:"index;not null" json:"timestamp_date"`
	Type          TransactionType `gorm:"size:16;index;not null" json:"type"`
	AssignedID    *string         `gorm:"size:36;index" json:"assigned_id"`
	Completed     bool            `gorm:"not null" json:"completed"`
	Created       int64           `gorm:"index;not null" json:"created"`
	Modified      int64           `gorm:"not null" json:"modified"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Touch stamps the modification time, and the creation time when unset.
func (t *Transaction) Touch(now time.Time) {
	ts := now.Unix()
	t.Modified = ts
	if t.Created == 0 {
		t.Created = ts
	}
}

// OwnedBy reports whether the record is assigned to userID.
func (t *Transaction) OwnedBy(userID string) bool {
	return t.AssignedID != nil && *t.AssignedID == userID
}
