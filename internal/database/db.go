package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"companion-api/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB() (*gorm.DB, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	// Open connection
	db, err := gorm.Open(postgres.Open(dbURL), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("error migrating database: %v", err)
	}

	return db, nil
}

// gormConfig builds the shared gorm settings. TranslateError must stay on:
// the repositories match on gorm sentinels like ErrDuplicatedKey, which gorm
// only produces from driver errors when translation is enabled.
func gormConfig() *gorm.Config {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Info,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	return &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	}
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.FavoriteConversation{},
		&models.CreditUsage{},
		&models.RequestLog{},
		&models.WebhookEvent{},
		&models.AdminToken{},
	)
}
