package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
)

// StartPendingOrderReaper периодически сверяет и отменяет заказы, не оплаченные дольше PendingOrderTTL.
// Блокируется до отмены ctx.
func (s *Service) StartPendingOrderReaper(ctx context.Context) {
	if s.opts.PendingOrderTTL <= 0 || s.opts.ReapInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.opts.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapStaleOrders(ctx)
		}
	}
}

func (s *Service) reapStaleOrders(ctx context.Context) {
	limit := s.opts.ReapBatchSize
	if limit <= 0 {
		limit = 20
	}

	orders, err := s.repo.ListStalePendingOrders(ctx, s.now().Add(-s.opts.PendingOrderTTL), limit)
	if err != nil {
		s.logger.Warn("list stale orders failed", zap.Error(err))
		return
	}

	for i := range orders {
		o := &orders[i]

		if o.PaymentReference != nil && s.verifier != nil &&
			(o.PaymentProvider == nil || *o.PaymentProvider == model.ProviderPaystack) {
			tx, statusCode, retryAfter, err := s.verifier.VerifyTransaction(ctx, *o.PaymentReference)
			if err != nil {
				s.logger.Warn("verify transaction failed", zap.Error(err), zap.String("order_id", o.ID.String()))
				continue
			}

			if statusCode == http.StatusTooManyRequests {
				if retryAfter > 0 {
					timer := time.NewTimer(retryAfter)
					select {
					case <-ctx.Done():
						timer.Stop()
						return
					case <-timer.C:
					}
				}
				continue
			}

			if tx.Succeeded() {
				outcome, err := s.applyPayment(ctx, o, tx.Reference, tx.Amount, tx.PaidAt)
				if err != nil {
					s.logger.Warn("reconcile payment failed", zap.Error(err), zap.String("order_id", o.ID.String()))
					continue
				}
				// Частичная оплата остаётся на ручную проверку.
				s.logger.Info("stale order reconciled", zap.String("order_id", o.ID.String()), zap.String("outcome", string(outcome)))
				continue
			}
		}

		if err := s.repo.CancelStaleOrder(ctx, o.ID); err != nil {
			if errors.Is(err, repository.ErrOrderNotStale) {
				s.logger.Info("stale order changed before cancel", zap.String("order_id", o.ID.String()))
				continue
			}
			s.logger.Warn("cancel stale order failed", zap.Error(err), zap.String("order_id", o.ID.String()))
			continue
		}
		s.metrics.OrdersReaped.Inc()
		s.logger.Info("stale order cancelled", zap.String("order_id", o.ID.String()), zap.String("order_number", o.OrderNumber))

		o.Status = model.OrderStatusCancelled
		cancelled := *o
		s.notifyAsync(ctx, func(ctx context.Context) error { return s.notifier.OrderStatusChanged(ctx, &cancelled) })
	}
}
