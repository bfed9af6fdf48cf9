package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velocity-dms/velocity-dms/internal/app"
	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/catalog"
	"github.com/velocity-dms/velocity-dms/internal/customerorder"
	"github.com/velocity-dms/velocity-dms/internal/customers"
	"github.com/velocity-dms/velocity-dms/internal/dealerorder"
	"github.com/velocity-dms/velocity-dms/internal/delivery"
	"github.com/velocity-dms/velocity-dms/internal/gateway"
	"github.com/velocity-dms/velocity-dms/internal/inventory"
	"github.com/velocity-dms/velocity-dms/internal/platform/cache"
	"github.com/velocity-dms/velocity-dms/internal/platform/db"
	"github.com/velocity-dms/velocity-dms/internal/quotation"
	"github.com/velocity-dms/velocity-dms/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	locker := shared.NewEntityLocker(redisClient, cfg.LockTTL)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), redisClient)
	customersService := customers.NewService(customers.NewRepository(dbpool))

	dealerOrders := dealerorder.NewService(dealerorder.NewRepository(dbpool))
	customerOrders := customerorder.NewService(customerorder.NewRepository(dbpool))
	quotes := quotation.NewEngine(quotation.NewRepository(dbpool)).
		WithDetacher(&gateway.QuoteDetachAdapter{Dealers: dealerOrders, Customers: customerOrders})
	inventoryLedger := inventory.NewLedger(inventory.NewRepository(dbpool), auditLogger)
	billingLedger := billing.NewLedger(
		billing.NewRepository(dbpool),
		&gateway.OrderPaidAdapter{Customers: customerOrders},
		auditLogger,
	)
	scheduler := delivery.NewScheduler(delivery.NewRepository(dbpool), auditLogger)

	workflow := gateway.NewWorkflow(logger, dealerOrders, customerOrders, quotes, billingLedger, inventoryLedger, scheduler, locker).
		WithApprovalLog(approvalRecorder)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Pool:                 dbpool,
		CatalogHandler:       catalog.NewHandler(logger, catalogService),
		CustomersHandler:     customers.NewHandler(logger, customersService),
		DealerOrderHandler:   dealerorder.NewHandler(logger, dealerOrders),
		CustomerOrderHandler: customerorder.NewHandler(logger, customerOrders),
		QuotationHandler:     quotation.NewHandler(logger, quotes),
		InventoryHandler:     inventory.NewHandler(logger, inventoryLedger),
		BillingHandler:       billing.NewHandler(logger, billingLedger),
		DeliveryHandler:      delivery.NewHandler(logger, scheduler),
		GatewayHandler:       gateway.NewHandler(logger, workflow, idempotencyStore),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
