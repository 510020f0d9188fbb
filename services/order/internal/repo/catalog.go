package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/models"
)

// GetPrices returns current price and stock for the purchasable subset of ids.
// Ids missing from the result are unknown or not for sale.
func (r *GormRepo) GetPrices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.ProductQuote, error) {
	out := make(map[uuid.UUID]domain.ProductQuote, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := r.DB.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, models.ProductStatusActive).
		Find(&products).Error; err != nil {
		return nil, err
	}

	for _, p := range products {
		out[p.ID] = domain.ProductQuote{
			Name:        p.Name,
			Price:       p.Price,
			Stock:       p.Stock,
			Purchasable: true,
		}
	}
	return out, nil
}
