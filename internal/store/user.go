package store

import (
	"context"
	"fmt"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"gorm.io/gorm"
)

// Users is the identity store.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (s *Users) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Users) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Users) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Users) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

// Create inserts a new user. A taken username yields ErrDuplicate.
func (s *Users) Create(ctx context.Context, u *models.User) error {
	u.Version = 0
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user %q: %w", u.Username, translate(err))
	}
	return nil
}

// Save writes every mutable column of u, provided the stored version still
// equals u.Version. On success u.Version is advanced; otherwise
// ErrStaleWrite is returned and nothing is written.
func (s *Users) Save(ctx context.Context, u *models.User) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND version = ?", u.ID, u.Version).
		Updates(map[string]any{
			"username":      u.Username,
			"email":         u.Email,
			"password_hash": u.PasswordHash,
			"role":          string(u.Role),
			"balance":       u.Balance,
			"version":       u.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("save user %s: %w", u.ID, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save user %s: %w", u.ID, ErrStaleWrite)
	}
	u.Version++
	return nil
}

// Delete removes the user unconditionally; their ledger records are kept.
func (s *Users) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
