package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/models"
)

// ConfirmResult reports whether this call applied the transition. Oversold lists products whose stock went
// negative in the same transaction.
type ConfirmResult struct {
	Applied  bool
	Oversold []uuid.UUID
}

// CreateOrder inserts the order and its items in one transaction.
// A reference collision is reported as domain.ErrConflict.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reference %s already used", domain.ErrConflict, order.ReferenceKey)
		}
		return err
	}
	return nil
}

func (r *GormRepo) FindByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Preload("Items").Where("reference_key = ?", reference).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reference %s", domain.ErrNotFound, reference)
		}
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Preload("Items").Where("id = ? AND user_id = ?", orderID, userID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var orders []models.Order
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Confirm moves a pending order to confirmed and decrements stock for each item in the same transaction.
// An already-confirmed order is a no-op (Applied=false); a failed order yields domain.ErrInvalidTransition.
func (r *GormRepo) Confirm(ctx context.Context, orderID uuid.UUID, proof string) (ConfirmResult, error) {
	var result ConfirmResult

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", orderID, domain.PaymentPending).
			Updates(map[string]any{
				"payment_status":        domain.PaymentConfirmed,
				"transaction_signature": proof,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return terminalOutcome(tx, orderID, domain.PaymentConfirmed)
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(items))
		for _, it := range items {
			if err := tx.Model(&models.Product{}).
				Where("id = ?", it.ProductID).
				UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity)).Error; err != nil {
				return err
			}
			ids = append(ids, it.ProductID)
		}

		var oversold []models.Product
		if len(ids) > 0 {
			if err := tx.Where("id IN ? AND stock < 0", ids).Find(&oversold).Error; err != nil {
				return err
			}
		}
		for _, p := range oversold {
			result.Oversold = append(result.Oversold, p.ID)
		}

		result.Applied = true
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	return result, nil
}

// Fail moves a pending order to failed and cancels fulfillment. It never touches a confirmed order:
// a terminal order is a no-op (false, nil).
func (r *GormRepo) Fail(ctx context.Context, orderID uuid.UUID, reason string) (bool, error) {
	applied := false

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", orderID, domain.PaymentPending).
			Updates(map[string]any{
				"payment_status":     domain.PaymentFailed,
				"fulfillment_status": domain.FulfillmentCancelled,
				"failure_reason":     reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
			}
			return nil
		}
		applied = true
		return nil
	})
	return applied, err
}

// SweepExpired fails every pending order whose expiry is before now.
func (r *GormRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("payment_status = ? AND expires_at < ?", domain.PaymentPending, now).
		Updates(map[string]any{
			"payment_status":     domain.PaymentFailed,
			"fulfillment_status": domain.FulfillmentCancelled,
			"failure_reason":     domain.ReasonExpired,
		})
	return res.RowsAffected, res.Error
}

// terminalOutcome explains why a conditional update on a non-pending order touched no rows.
func terminalOutcome(tx *gorm.DB, orderID uuid.UUID, wanted domain.PaymentStatus) error {
	var current models.Order
	if err := tx.Select("id", "payment_status").Where("id = ?", orderID).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
		}
		return err
	}
	if current.PaymentStatus == wanted {
		return nil
	}
	return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, orderID, current.PaymentStatus)
}
