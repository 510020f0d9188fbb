package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/onlineshop/settlement/pkg/logging"
	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/gateway"
	"github.com/onlineshop/settlement/services/order/internal/metrics"
	"github.com/onlineshop/settlement/services/order/internal/service"
)

const maxWebhookBody = 1 << 20

type WebhookHTTP struct {
	Svc    *service.OrderService
	Secret string
}

// Paystack re-verifies the referenced transaction server-to-server; the
// payload itself is only a trigger. Duplicate deliveries are harmless.
func (h *WebhookHTTP) Paystack(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "webhook.paystack")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		l.Warn("paystack_webhook_error", "status", 400, "reason", "unreadable body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if !gateway.VerifySignature(body, c.Request().Header.Get(gateway.SignatureHeader), h.Secret) {
		metrics.RecordOperation(metrics.OpWebhook, "bad_signature")
		l.Warn("paystack_webhook_error", "status", 401, "reason", "bad signature")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	ev, err := gateway.ParseWebhook(body)
	if err != nil {
		l.Warn("paystack_webhook_error", "status", 400, "reason", "invalid json", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if ev.Event != gateway.EventChargeSuccess || ev.Data.Reference == "" {
		metrics.RecordOperation(metrics.OpWebhook, "ignored")
		l.Info("paystack_webhook_ignored", "event", ev.Event)
		return c.NoContent(http.StatusOK)
	}

	res, err := h.Svc.VerifyPayment(ctx, ev.Data.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.RecordOperation(metrics.OpWebhook, "unknown_reference")
			l.Warn("paystack_webhook_unknown_reference", "reference", ev.Data.Reference)
			return c.NoContent(http.StatusOK)
		}
		metrics.RecordOperation(metrics.OpWebhook, "error")
		l.Error("paystack_webhook_error", "status", 500, "reason", "verify failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	metrics.RecordOperation(metrics.OpWebhook, string(res.Status))
	l.Info("paystack_webhook_processed", "reference", ev.Data.Reference, "status", res.Status)
	return c.NoContent(http.StatusOK)
}
