package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/quotation"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// NewQuotationExpireHandler expires pending and sent quotations whose
// validity window has lapsed.
func NewQuotationExpireHandler(engine *quotation.Engine, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		expired, err := engine.ExpireDue(ctx)
		if err != nil {
			logger.Error("quotation expiry sweep", slog.Any("error", err))
			return err
		}
		if len(expired) > 0 {
			logger.Info("quotations expired", slog.Int("count", len(expired)))
		}
		return nil
	}
}

// NewInvoiceOverdueHandler marks open invoices past their due date.
func NewInvoiceOverdueHandler(ledger *billing.Ledger, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		overdue, err := ledger.MarkOverdueDue(ctx)
		if err != nil {
			logger.Error("invoice overdue sweep", slog.Any("error", err))
			return err
		}
		if len(overdue) > 0 {
			logger.Info("invoices marked overdue", slog.Int("count", len(overdue)))
		}
		return nil
	}
}

// NewIdempotencyCleanupHandler prunes idempotency keys older than ttl.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, ttl time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := store.Cleanup(ctx, ttl); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		return nil
	}
}
