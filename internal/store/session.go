package store

import (
	"context"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"gorm.io/gorm"
)

// Sessions tracks issued refresh tokens so they can be revoked.
type Sessions struct {
	db *gorm.DB
}

func NewSessions(db *gorm.DB) *Sessions {
	return &Sessions{db: db}
}

func (s *Sessions) Create(ctx context.Context, sess *models.Session) error {
	return translate(s.db.WithContext(ctx).Create(sess).Error)
}

func (s *Sessions) Get(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

// Revoke marks the session unusable. Revoking twice is not an error.
func (s *Sessions) Revoke(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// mysql reports unchanged rows as unaffected
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeUser revokes every session of one user, e.g. when it is deleted.
func (s *Sessions) RevokeUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}
