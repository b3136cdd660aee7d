package db

import (
	"fmt"
	"time"

	"orderengine/internal/config"
	"orderengine/internal/domain/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config, zl *zap.Logger) (*gorm.DB, error) {
	//gormのログはWarn以上だけ、zapに流す
	gl := logger.New(zap.NewStdLog(zl.Named("gorm")), logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

// Migrate はテーブルと、AutoMigrateで表せないインデックスを作る
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Item{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.ExchangeReturn{},
		&model.AuditLog{},
		&model.OutboxEvent{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	//PENDINGは1注文1件まで
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_exchange_returns_pending_order
		ON exchange_returns (order_id) WHERE status = 'PENDING'`).Error; err != nil {
		return fmt.Errorf("create pending index: %w", err)
	}
	return nil
}
