package config

import (
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
)

// NewDatabaseClient opens the task store. A postgres:// DSN selects the
// postgres driver; anything else is treated as a sqlite file path.
func NewDatabaseClient(dsn string) *gorm.DB {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	if err := db.AutoMigrate(&model.Task{}); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	return db
}
