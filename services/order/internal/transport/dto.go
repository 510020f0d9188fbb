package transport

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/onlineshop/settlement/services/order/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type ValidateCartRequest struct {
	Items []CartItem `json:"items"`
}

type DeliveryInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type CreateOrderRequest struct {
	Items         []CartItem    `json:"items"`
	PaymentMethod string        `json:"payment_method"`
	Delivery      *DeliveryInfo `json:"delivery,omitempty"`
}

// InsufficientStockResponse names the products that block checkout.
type InsufficientStockResponse struct {
	Message    string      `json:"message"`
	ProductIDs []uuid.UUID `json:"product_ids"`
}

func CartLines(items []CartItem) []domain.CartLine {
	out := make([]domain.CartLine, len(items))
	for i, it := range items {
		out[i] = domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

// Method defaults to the on-chain rail when the client does not choose one.
func (r CreateOrderRequest) Method() domain.PaymentMethod {
	if r.PaymentMethod == "" {
		return domain.MethodSolana
	}
	return domain.PaymentMethod(r.PaymentMethod)
}

func (r CreateOrderRequest) DeliveryDetails() domain.Delivery {
	if r.Delivery == nil {
		return domain.Delivery{}
	}
	return domain.Delivery{
		Name:    r.Delivery.Name,
		Email:   r.Delivery.Email,
		Phone:   r.Delivery.Phone,
		Address: r.Delivery.Address,
	}
}

func ParseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Page converts 1-based page and size query values to offset and limit.
func Page(page, size int) (offset, limit int) {
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return (page - 1) * size, size
}
