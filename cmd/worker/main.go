package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/velocity-dms/velocity-dms/internal/app"
	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/customerorder"
	"github.com/velocity-dms/velocity-dms/internal/dealerorder"
	"github.com/velocity-dms/velocity-dms/internal/gateway"
	"github.com/velocity-dms/velocity-dms/internal/platform/db"
	"github.com/velocity-dms/velocity-dms/internal/quotation"
	"github.com/velocity-dms/velocity-dms/internal/shared"
	"github.com/velocity-dms/velocity-dms/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	dealerOrders := dealerorder.NewService(dealerorder.NewRepository(pool))
	customerOrders := customerorder.NewService(customerorder.NewRepository(pool))
	quotes := quotation.NewEngine(quotation.NewRepository(pool)).
		WithDetacher(&gateway.QuoteDetachAdapter{Dealers: dealerOrders, Customers: customerOrders})
	billingLedger := billing.NewLedger(
		billing.NewRepository(pool),
		&gateway.OrderPaidAdapter{Customers: customerOrders},
		auditLogger,
	)

	now := time.Now().UTC()
	expireTask, err := jobs.NewQuotationExpireTask(now)
	if err != nil {
		logger.Error("build expire task", slog.Any("error", err))
		os.Exit(1)
	}
	overdueTask, err := jobs.NewInvoiceOverdueTask(now)
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(now)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQuotationExpire, Handler: jobs.NewQuotationExpireHandler(quotes, logger)},
			{Type: jobs.TaskInvoiceOverdue, Handler: jobs.NewInvoiceOverdueHandler(billingLedger, logger)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, cfg.IdempotencyTTL, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: expireTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 1 * * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
