package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderengine/internal/config"
	"orderengine/internal/handler"
	"orderengine/internal/infra/db"
	infraRepo "orderengine/internal/infra/repository"
	"orderengine/internal/logging"
	"orderengine/internal/metrics"
	"orderengine/internal/observability"
	"orderengine/internal/outbox"
	"orderengine/internal/server"
	"orderengine/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい（本番は環境変数を直接渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	//DB接続
	gormDB, err := db.Connect(cfg, log)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}
	defer sqlDB.Close()

	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	m := metrics.New()

	//Repository（GORM実装）とTx
	txm := infraRepo.NewTxManagerGorm(gormDB, infraRepo.TxOptions{
		MaxAttempts: cfg.TxMaxAttempts,
		LockTimeout: cfg.TxLockTimeout,
		Backoff:     cfg.TxRetryBackoff,
		OnRetry:     m.IncTxRetries,
	}, log)

	//Usecase生成
	clock := usecase.SystemClock{}
	orderUC := usecase.NewOrderUsecase(txm, clock, log, m, cfg.OrderPageLimitDefault)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, clock, log, m)
	exchangeReturnUC := usecase.NewExchangeReturnUsecase(txm, clock, log, usecase.NewCompletionHook(cfg.RestockOnReturnComplete))

	//Handler生成
	e := server.New(cfg, log, m, server.Handlers{
		Health:         handler.NewHealthHandler(sqlDB),
		Order:          handler.NewOrderHandler(orderUC),
		AdminOrder:     handler.NewAdminOrderHandler(adminOrderUC),
		ExchangeReturn: handler.NewExchangeReturnHandler(exchangeReturnUC),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, e, cfg.Addr(), log)
	})

	if len(cfg.KafkaBrokers) > 0 {
		pub := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
		defer pub.Close()

		relay := outbox.NewRelay(txm, pub, cfg.OutboxBatchSize, cfg.OutboxPollInterval, log, m)
		g.Go(func() error {
			return relay.Run(gctx)
		})
	} else {
		log.Info("KAFKA_BROKERS not set, outbox events stay pending")
	}

	log.Info("order engine started", zap.String("env", cfg.GoEnv), zap.String("addr", cfg.Addr()))
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("order engine stopped")
	return nil
}
