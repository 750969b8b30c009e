package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/orlcnr/mesa-core/api/routes"
	"github.com/orlcnr/mesa-core/internal/cashier"
	"github.com/orlcnr/mesa-core/internal/menu"
	"github.com/orlcnr/mesa-core/internal/orders"
	"github.com/orlcnr/mesa-core/internal/payments"
	"github.com/orlcnr/mesa-core/internal/rules"
	"github.com/orlcnr/mesa-core/internal/stock"
	"github.com/orlcnr/mesa-core/internal/tables"
	"github.com/orlcnr/mesa-core/pkg/config"
	"github.com/orlcnr/mesa-core/pkg/db"
	"github.com/orlcnr/mesa-core/pkg/logger"
	"github.com/orlcnr/mesa-core/pkg/metrics"
	"github.com/orlcnr/mesa-core/pkg/migrate"
	"github.com/orlcnr/mesa-core/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	txMetrics := metrics.NewTransactionMetrics(registry)

	conn := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	ruleEvaluator := rules.NewEvaluator(conn)
	menuProvider := menu.NewProvider(conn)

	stockSvc, err := stock.NewService(stock.NewRepository(conn), menuProvider, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(orders.NewRepository(conn), menuProvider, ruleEvaluator, outboxSvc, dbClient, logg, txMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}
	cashierSvc, err := cashier.NewService(cashier.NewRepository(conn), dbClient, logg, txMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create cashier service", err)
		os.Exit(1)
	}
	paymentsSvc, err := payments.NewService(payments.NewRepository(conn), stockSvc, cashierSvc, outboxSvc, dbClient, logg, txMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}
	tablesSvc, err := tables.NewService(tables.NewRepository(conn), outboxSvc, dbClient, logg, txMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create table service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, registry, ordersSvc, paymentsSvc, stockSvc, cashierSvc, tablesSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
