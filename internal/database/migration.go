package database

import (
	"fmt"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Session{},
		&models.AuditLog{},
		&models.Client{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
