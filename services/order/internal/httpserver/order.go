package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/onlineshop/settlement/pkg/logging"
	middleware "github.com/onlineshop/settlement/pkg/middleware/auth"
	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/service"
	"github.com/onlineshop/settlement/services/order/internal/transport"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) GetID(c echo.Context) (uuid.UUID, error) {
	s, ok := c.Get(middleware.ContextUserID).(string)
	if !ok || s == "" {
		return uuid.Nil, errors.New("unauthorized")
	}

	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("unauthorized")
	}
	return userID, nil
}

func (h *OrderHTTP) ValidateCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.validate_cart")

	var req transport.ValidateCartRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("validate_cart_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	cart, err := h.Svc.ValidateCart(ctx, transport.CartLines(req.Items))
	if err != nil {
		return httpError(l, "validate_cart_error", err)
	}

	return c.JSON(http.StatusOK, cart)
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("create_order_error", "status", 401, "reason", "no user in context", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	summary, err := h.Svc.CreateOrder(ctx, service.CreateOrderInput{
		UserID:   userID,
		Method:   req.Method(),
		Items:    transport.CartLines(req.Items),
		Delivery: req.DeliveryDetails(),
	})
	if err != nil {
		return httpError(l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", summary.OrderID)
	return c.JSON(http.StatusCreated, summary)
}

func (h *OrderHTTP) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.verify_payment")

	ref := c.QueryParam("reference")
	if ref == "" {
		l.Warn("verify_payment_error", "status", 400, "reason", "missing reference")
		return echo.NewHTTPError(http.StatusBadRequest, "reference is required")
	}

	res, err := h.Svc.VerifyPayment(ctx, ref)
	if err != nil {
		return httpError(l, "verify_payment_error", err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("get_order_error", "status", 401, "reason", "no user in context", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_order_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	order, err := h.Svc.GetOrder(ctx, userID, orderID)
	if err != nil {
		return httpError(l, "get_order_error", err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("list_orders_error", "status", 401, "reason", "no user in context", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	page := transport.ParseIntDefault(c.QueryParam("page"), 1)
	size := transport.ParseIntDefault(c.QueryParam("size"), transport.DefaultPageSize)
	offset, limit := transport.Page(page, size)

	orders, err := h.Svc.ListOrders(ctx, userID, limit, offset)
	if err != nil {
		return httpError(l, "list_orders_error", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": orders,
		"meta": map[string]any{"page": page, "size": limit},
	})
}

// httpError maps domain errors to status codes; internal details stay in the log.
func httpError(l *slog.Logger, event string, err error) error {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		l.Warn(event, "status", 400, "reason", "insufficient stock", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, transport.InsufficientStockResponse{
			Message:    "insufficient stock",
			ProductIDs: stockErr.ProductIDs,
		})
	case errors.Is(err, domain.ErrBadRequest):
		l.Warn(event, "status", 400, "reason", "invalid request", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		l.Warn(event, "status", 404, "reason", "not found", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrPaymentUnavailable):
		l.Warn(event, "status", 503, "reason", "payment unavailable", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payment temporarily unavailable, retry later")
	default:
		l.Error(event, "status", 500, "reason", "internal error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
