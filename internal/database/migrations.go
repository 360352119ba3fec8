package database

import (
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Grant{},
		&models.VerificationAttempt{},
		&models.CacheEntry{},
	)
}
