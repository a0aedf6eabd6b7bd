package store

import (
	"context"
	"fmt"
	"time"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"gorm.io/gorm"
)

// Clients stores client records together with their embedded entries.
type Clients struct {
	db  *gorm.DB
	now func() time.Time
}

func NewClients(db *gorm.DB) *Clients {
	return &Clients{db: db, now: time.Now}
}

func (s *Clients) Get(ctx context.Context, id string) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// Save inserts c when it has no id yet, otherwise overwrites it. Every
// call restamps Modified.
func (s *Clients) Save(ctx context.Context, c *models.Client) error {
	c.Touch(s.now())
	db := s.db.WithContext(ctx)
	var err error
	if c.ID == "" {
		err = db.Create(c).Error
	} else {
		err = db.Save(c).Error
	}
	if err != nil {
		return fmt.Errorf("save client: %w", translate(err))
	}
	return nil
}

func (s *Clients) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Client{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of clients and the total count.
func (s *Clients) List(ctx context.Context, page Page) ([]models.Client, int64, error) {
	base := s.db.WithContext(ctx).Model(&models.Client{})

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var clients []models.Client
	if err := page.apply(base.Session(&gorm.Session{})).Find(&clients).Error; err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}
