package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/onlineshop/settlement/services/order/internal/domain"
)

const maxLineQuantity = 10_000

type Catalog interface {
	GetPrices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.ProductQuote, error)
}

// CartValidator prices a cart against the live catalog. It never mutates stock.
type CartValidator struct {
	Catalog Catalog
}

func NewCartValidator(c Catalog) *CartValidator {
	return &CartValidator{Catalog: c}
}

func (v *CartValidator) Validate(ctx context.Context, lines []domain.CartLine) (domain.ValidatedCart, error) {
	merged, err := aggregate(lines)
	if err != nil {
		return domain.ValidatedCart{}, err
	}

	ids := make([]uuid.UUID, len(merged))
	for i, l := range merged {
		ids[i] = l.ProductID
	}

	quotes, err := v.Catalog.GetPrices(ctx, ids)
	if err != nil {
		return domain.ValidatedCart{}, fmt.Errorf("catalog lookup: %w", err)
	}

	out := domain.ValidatedCart{Success: true, Items: make([]domain.ValidatedLine, 0, len(merged))}
	for _, l := range merged {
		line := domain.ValidatedLine{
			ProductID: l.ProductID,
			Name:      domain.UnknownProductName,
			Quantity:  l.Quantity,
		}

		if q, ok := quotes[l.ProductID]; ok && q.Purchasable {
			line.Name = q.Name
			line.UnitPrice = q.Price
			line.AvailableStock = q.Stock
			line.Subtotal = q.Price * int64(l.Quantity)
			line.InStock = q.Stock >= l.Quantity
		}

		if line.InStock && line.UnitPrice > 0 {
			out.TotalFiat += line.Subtotal
		} else {
			out.Success = false
		}
		out.Items = append(out.Items, line)
	}

	return out, nil
}

// aggregate sums quantities per product, keeping first-seen order.
func aggregate(lines []domain.CartLine) ([]domain.CartLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrBadRequest)
	}

	idx := make(map[uuid.UUID]int, len(lines))
	merged := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product_id is required", domain.ErrBadRequest)
		}
		if l.Quantity <= 0 || l.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("%w: quantity for %s must be between 1 and %d", domain.ErrBadRequest, l.ProductID, maxLineQuantity)
		}

		if i, ok := idx[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
		} else {
			idx[l.ProductID] = len(merged)
			merged = append(merged, l)
		}
	}

	for _, l := range merged {
		if l.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("%w: quantity for %s exceeds %d", domain.ErrBadRequest, l.ProductID, maxLineQuantity)
		}
	}
	return merged, nil
}
