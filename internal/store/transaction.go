package store

import (
	"context"
	"fmt"
	"time"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"gorm.io/gorm"
)

// Filter narrows a ledger search. A nil Owner means every owner. The
// timestamp range and the substring match are exclusive: when HasRange is
// set, Column and Term are ignored.
type Filter struct {
	Owner *string

	HasRange bool
	From     int64
	To       int64

	// Column is "type" or "description".
	Column string
	Term   string
}

// Transactions is the ledger store.
type Transactions struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTransactions(db *gorm.DB) *Transactions {
	return &Transactions{db: db, now: time.Now}
}

func (s *Transactions) Get(ctx context.Context, id string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// Save inserts t when it has no id yet, otherwise overwrites the stored row.
// Modified is restamped on every call; Created only when still zero.
func (s *Transactions) Save(ctx context.Context, t *models.Transaction) error {
	t.Touch(s.now())
	db := s.db.WithContext(ctx)
	var err error
	if t.ID == "" {
		err = db.Create(t).Error
	} else {
		err = db.Save(t).Error
	}
	if err != nil {
		return fmt.Errorf("save transaction: %w", translate(err))
	}
	return nil
}

func (s *Transactions) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Transaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Transactions) ListAll(ctx context.Context, page Page) ([]models.Transaction, int64, error) {
	return s.Search(ctx, Filter{}, page)
}

func (s *Transactions) ListByOwner(ctx context.Context, owner string, page Page) ([]models.Transaction, int64, error) {
	return s.Search(ctx, Filter{Owner: &owner}, page)
}

// Search counts every row matching f and returns the requested page of it.
func (s *Transactions) Search(ctx context.Context, f Filter, page Page) ([]models.Transaction, int64, error) {
	base := s.db.WithContext(ctx).Model(&models.Transaction{})
	if f.Owner != nil {
		base = base.Where("assigned_id = ?", *f.Owner)
	}
	switch {
	case f.HasRange:
		base = base.Where("timestamp_date >= ? AND timestamp_date <= ?", f.From, f.To)
	case f.Column == "type" || f.Column == "description":
		base = base.Where(f.Column+" LIKE ?", "%"+f.Term+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Transaction
	if err := page.apply(base.Session(&gorm.Session{})).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListForExport returns every record of one owner, oldest declared date first.
func (s *Transactions) ListForExport(ctx context.Context, owner string) ([]models.Transaction, error) {
	var items []models.Transaction
	err := s.db.WithContext(ctx).
		Where("assigned_id = ?", owner).
		Order("timestamp_date ASC").
		Order("created ASC").
		Find(&items).Error
	return items, err
}
