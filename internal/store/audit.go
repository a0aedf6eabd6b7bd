package store

import (
	"context"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"gorm.io/gorm"
)

type AuditLogs struct {
	db *gorm.DB
}

func NewAuditLogs(db *gorm.DB) *AuditLogs {
	return &AuditLogs{db: db}
}

func (s *AuditLogs) Create(ctx context.Context, l *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(l).Error
}

// List returns one page of the audit trail, newest first unless page.Order
// says otherwise.
func (s *AuditLogs) List(ctx context.Context, page Page) ([]models.AuditLog, int64, error) {
	base := s.db.WithContext(ctx).Model(&models.AuditLog{})

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page.Order == "" {
		page.Order = "id DESC"
	}
	var logs []models.AuditLog
	if err := page.apply(base.Session(&gorm.Session{})).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
