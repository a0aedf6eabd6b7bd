package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClientEntry is one movement kept inside a client record. Entries are
// stored with their client, not in the ledger table.
type ClientEntry struct {
	Title    string          `json:"title"`
	Text     string          `json:"text"`
	Type     string          `json:"type,omitempty"`
	Cost     decimal.Decimal `json:"cost"`
	Created  int64           `json:"created"`
	Modified int64           `json:"modified"`
}

func (e *ClientEntry) touch(ts int64) {
	if e.Created == 0 {
		e.Created = ts
	}
	if e.Modified == 0 {
		e.Modified = ts
	}
}

// Client is a bookkeeping record with its movements embedded. It has no
// login and its balance is set directly, never by the reconciliation
// engine.
type Client struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	Name         string          `gorm:"size:128" json:"name"`
	Lastname     string          `gorm:"size:128" json:"lastname"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	Transactions []ClientEntry   `gorm:"type:text;serializer:json" json:"transactions"`
	Expenses     *ClientEntry    `gorm:"type:text;serializer:json" json:"expenses"`
	Created      int64           `gorm:"index;not null" json:"created"`
	Modified     int64           `gorm:"not null" json:"modified"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Touch stamps the client and any embedded entry that has no times yet.
func (c *Client) Touch(now time.Time) {
	ts := now.Unix()
	c.Modified = ts
	if c.Created == 0 {
		c.Created = ts
	}
	for i := range c.Transactions {
		c.Transactions[i].touch(ts)
	}
	if c.Expenses != nil {
		c.Expenses.touch(ts)
	}
}

// ClientUpdate is a partial update of a client; nil fields are kept.
type ClientUpdate struct {
	Name         *string          `json:"name"`
	Lastname     *string          `json:"lastname"`
	Balance      *decimal.Decimal `json:"balance"`
	Transactions *[]ClientEntry   `json:"transactions"`
	Expenses     *ClientEntry     `json:"expenses"`
}

// Merge copies every set field onto c and reports whether anything was set.
func (p ClientUpdate) Merge(c *Client) bool {
	changed := false
	if p.Name != nil {
		c.Name, changed = *p.Name, true
	}
	if p.Lastname != nil {
		c.Lastname, changed = *p.Lastname, true
	}
	if p.Balance != nil {
		c.Balance, changed = *p.Balance, true
	}
	if p.Transactions != nil {
		c.Transactions, changed = *p.Transactions, true
	}
	if p.Expenses != nil {
		c.Expenses, changed = p.Expenses, true
	}
	return changed
}
