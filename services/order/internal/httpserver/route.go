package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	middleware "github.com/onlineshop/settlement/pkg/middleware/auth"
)

type Deps struct {
	OrderHandler   *OrderHTTP
	WebhookHandler *WebhookHTTP
	JWTSecret      []byte

	// VerifyRate and VerifyBurst bound polling per client IP on the verify endpoint.
	VerifyRate  float64
	VerifyBurst int

	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authMW := middleware.NewAuthMiddleware(d.JWTSecret)

	e.POST("/cart/validate", d.OrderHandler.ValidateCart)

	orders := e.Group("/orders")
	orders.GET("/verify", d.OrderHandler.VerifyPayment, verifyLimiter(d.VerifyRate, d.VerifyBurst))

	owned := orders.Group("", authMW.RequireAuth)
	owned.POST("", d.OrderHandler.CreateOrder)
	owned.GET("", d.OrderHandler.ListOrders)
	owned.GET("/:id", d.OrderHandler.GetOrder)

	e.POST("/payments/paystack/webhook", d.WebhookHandler.Paystack)
}

func verifyLimiter(rps float64, burst int) echo.MiddlewareFunc {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 5
	}
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many verification requests")
		},
	})
}
