package database

import (
	"fmt"
	"os"

	"github.com/pec-cloud/server/internal/config"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdminUser(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate is exported so tests can run the same schema against an
// in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Node{},
		&models.Share{},
		&models.Link{},
		&models.UserLog{},
		&models.NodeLog{},
	)
}

func seedAdminUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	authKey := os.Getenv("ADMIN_AUTHENTICATION_KEY")
	if authKey == "" {
		authKey = "admin123"
	}

	hash, err := utils.HashAuthenticationKey(authKey)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:                "admin",
		Email:                   "admin@pec.local",
		HashedAuthenticationKey: hash,
		AccessLevel:             models.AccessLevelAdministrator,
		UserStatus:              models.UserStatusOK,
	}

	return db.Create(&admin).Error
}
