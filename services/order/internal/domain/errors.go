package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrBadRequest         = errors.New("bad request")         // 400
	ErrInsufficientStock  = errors.New("insufficient stock")  // 400
	ErrNotFound           = errors.New("not found")           // 404
	ErrPaymentUnavailable = errors.New("payment unavailable") // 503, retryable by caller
	ErrPaymentMismatch    = errors.New("payment mismatch")    // terminal
	ErrConflict           = errors.New("conflict")            // duplicate reference, retried internally
	ErrInvalidTransition  = errors.New("invalid transition")
)

// InsufficientStockError names every product that blocks checkout.
type InsufficientStockError struct {
	ProductIDs []uuid.UUID
}

func (e *InsufficientStockError) Error() string {
	ids := make([]string, len(e.ProductIDs))
	for i, id := range e.ProductIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("insufficient stock: %s", strings.Join(ids, ", "))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
