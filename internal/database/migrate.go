package database

import (
	"fmt"

	"gorm.io/gorm"

	"flashsale/internal/model"
	"flashsale/pkg/log"
)

// AutoMigrate creates or updates the campaign and reservation tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Campaign{},
		&model.Reservation{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	log.Info("Database migration completed")
	return nil
}
