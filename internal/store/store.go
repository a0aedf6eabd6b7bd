// Package store holds the gorm-backed persistence for users, ledger
// records, refresh sessions and audit logs.
package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound means no row matched the id or key.
	ErrNotFound = errors.New("record not found")

	// ErrStaleWrite means the row changed since it was read.
	ErrStaleWrite = errors.New("stale write: record was modified concurrently")

	// ErrDuplicate means a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// Page is a resolved slice of a result set. An empty Order leaves the
// ordering to the database.
type Page struct {
	Offset int
	Limit  int
	Order  string
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	if p.Order != "" {
		q = q.Order(p.Order)
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	// the pure Go sqlite driver is not covered by gorm's translator
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry") {
		return ErrDuplicate
	}
	return err
}
