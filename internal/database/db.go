package database

import (
	"fmt"
	"log"
	"time"

	"stockcount-backend/internal/config"
	"stockcount-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	db, err := Open(postgres.Open(cfg.DatabaseDSN))
	if err != nil {
		log.Fatalf("[FATAL] could not connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("[FATAL] could not get connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(db); err != nil {
		log.Fatalf("[FATAL] AutoMigrate failed: %v", err)
	}

	DB = db
	log.Println("Database connected, migration complete.")
}

// Open connects with the project's gorm settings. Tests pass a sqlite dialector.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Unit{},
		&models.Employee{},
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.ProductUnit{},
		&models.StockCount{},
		&models.StockCountItem{},
		&models.AuditLog{},
	)
}
