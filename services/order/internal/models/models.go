package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/onlineshop/settlement/services/order/internal/domain"
)

// ProductStatusActive marks products that are publicly purchasable.
const ProductStatusActive = "active"

// Product is the slice of the catalog's products table this service reads and, on confirm, decrements.
type Product struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"               json:"id"`
	Name   string    `gorm:"not null"                           json:"name"`
	Price  int64     `gorm:"not null"                           json:"price"`
	Stock  int       `gorm:"not null;default:0"                 json:"stock"`
	Status string    `gorm:"size:16;not null;default:active;index" json:"status"`
}

func (Product) TableName() string {
	return "products"
}

type Order struct {
	ID                   uuid.UUID                `gorm:"type:uuid;primaryKey"                 json:"id"`
	UserID               uuid.UUID                `gorm:"type:uuid;index;not null"             json:"user_id"`
	PaymentMethod        domain.PaymentMethod     `gorm:"size:16;not null"                     json:"payment_method"`
	Currency             string                   `gorm:"size:8;not null"                      json:"currency"`
	TotalAmountFiat      int64                    `gorm:"not null"                             json:"total_amount_fiat"`
	TotalAmountCrypto    *int64                   `                                            json:"total_amount_crypto,omitempty"`
	PaymentStatus        domain.PaymentStatus     `gorm:"size:16;index;not null"               json:"payment_status"`
	FulfillmentStatus    domain.FulfillmentStatus `gorm:"size:16;not null"                     json:"fulfillment_status"`
	ReferenceKey         string                   `gorm:"size:64;uniqueIndex;not null"         json:"reference_key"`
	TransactionSignature *string                  `gorm:"size:128"                             json:"transaction_signature,omitempty"`
	FailureReason        *string                  `gorm:"size:32"                              json:"failure_reason,omitempty"`
	ExpiresAt            time.Time                `gorm:"index;not null"                       json:"expires_at"`
	ContactName          string                   `                                            json:"contact_name,omitempty"`
	ContactEmail         string                   `                                            json:"contact_email,omitempty"`
	ContactPhone         string                   `                                            json:"contact_phone,omitempty"`
	DeliveryAddress      string                   `                                            json:"delivery_address,omitempty"`
	CreatedAt            time.Time                `                                            json:"created_at"`
	UpdatedAt            time.Time                `                                            json:"updated_at"`
	Items                []OrderItem              `gorm:"foreignKey:OrderID"                   json:"items,omitempty"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o *Order) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// OrderItem is written once with the order; PriceAtPurchase is a copy of the catalog price at checkout.
type OrderItem struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"         json:"id"`
	OrderID         uuid.UUID `gorm:"type:uuid;index;not null"     json:"order_id"`
	ProductID       uuid.UUID `gorm:"type:uuid;not null"           json:"product_id"`
	ProductName     string    `gorm:"not null"                     json:"product_name"`
	Quantity        int       `gorm:"not null;check:quantity>0"    json:"quantity"`
	PriceAtPurchase int64     `gorm:"not null"                     json:"price_at_purchase"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (OrderItem) TableName() string {
	return "order_items"
}
