package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/onlineshop/settlement/services/order/internal/metrics"
)

// Sweeper periodically fails pending orders that outlived their TTL.
type Sweeper struct {
	Ledger   Ledger
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger().Error("sweep_expired_failed", "err", err)
			}
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	n, err := s.Ledger.SweepExpired(ctx, now)
	if err != nil {
		metrics.RecordOperation(metrics.OpSweep, "error")
		return 0, err
	}
	metrics.RecordOperation(metrics.OpSweep, "success")
	if n > 0 {
		s.logger().Info("expired_orders_failed", "count", n)
	}
	return n, nil
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
