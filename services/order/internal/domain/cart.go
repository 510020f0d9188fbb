package domain

import "github.com/google/uuid"

const UnknownProductName = "Unknown Product"

type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// ProductQuote is the authoritative catalog view of one product at call time.
type ProductQuote struct {
	Name        string
	Price       int64
	Stock       int
	Purchasable bool
}

type ValidatedLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPrice      int64     `json:"unit_price"`
	Quantity       int       `json:"quantity"`
	Subtotal       int64     `json:"subtotal"`
	InStock        bool      `json:"in_stock"`
	AvailableStock int       `json:"available_stock"`
}

type ValidatedCart struct {
	Success   bool            `json:"success"`
	Items     []ValidatedLine `json:"items"`
	TotalFiat int64           `json:"total_fiat"`
}

// Blocking lists lines that are out of stock or unpriced, in cart order.
func (c ValidatedCart) Blocking() []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range c.Items {
		if !it.InStock || it.UnitPrice <= 0 {
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}
