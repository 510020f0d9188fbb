package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/onlineshop/settlement/services/order/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{})
}

// isUniqueViolation covers postgres (translated by gorm) and sqlite, whose driver is not translated.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
