package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentConfirmed || s == PaymentFailed
}

type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

type PaymentMethod string

const (
	MethodSolana   PaymentMethod = "solana"
	MethodPaystack PaymentMethod = "paystack"
)

// Failure reasons stored on failed orders.
const (
	ReasonExpired       = "expired"
	ReasonGatewayFailed = "gateway_failed"
	ReasonMismatch      = "mismatch"
)

// Verdict is the three-way outcome of checking a reference against the payment source.
type Verdict struct {
	Status PaymentStatus
	Proof  string
	Reason string
}

func Pending(reason string) Verdict { return Verdict{Status: PaymentPending, Reason: reason} }

func Confirmed(proof string) Verdict { return Verdict{Status: PaymentConfirmed, Proof: proof} }

func Failed(reason string) Verdict { return Verdict{Status: PaymentFailed, Reason: reason} }

type Delivery struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type PaymentInstructions struct {
	Method      PaymentMethod `json:"method"`
	URL         string        `json:"url,omitempty"`
	QRPayload   string        `json:"qr_payload,omitempty"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

type OrderSummary struct {
	OrderID             string              `json:"order_id"`
	ReferenceKey        string              `json:"reference_key"`
	TotalFiat           int64               `json:"total_fiat"`
	Currency            string              `json:"currency"`
	TotalCrypto         *int64              `json:"total_crypto,omitempty"`
	TotalCryptoDisplay  string              `json:"total_crypto_display,omitempty"`
	PaymentInstructions PaymentInstructions `json:"payment_instructions"`
	ExpiresAt           time.Time           `json:"expires_at"`
}

type VerifyResult struct {
	OrderID          string        `json:"order_id"`
	Status           PaymentStatus `json:"status"`
	TransactionProof *string       `json:"transaction_proof,omitempty"`
}
