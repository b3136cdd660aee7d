package repository

import (
	"context"
	"fmt"
	"time"

	repo "orderengine/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type txReposGorm struct {
	orders          repo.OrderRepository
	orderItems      repo.OrderItemRepository
	carts           repo.CartRepository
	inventory       repo.InventoryRepository
	users           repo.UserRepository
	exchangeReturns repo.ExchangeReturnRepository
	auditLogs       repo.AuditLogRepository
	outbox          repo.OutboxRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                   { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository           { return r.orderItems }
func (r *txReposGorm) Carts() repo.CartRepository                     { return r.carts }
func (r *txReposGorm) Inventory() repo.InventoryRepository            { return r.inventory }
func (r *txReposGorm) Users() repo.UserRepository                     { return r.users }
func (r *txReposGorm) ExchangeReturns() repo.ExchangeReturnRepository { return r.exchangeReturns }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository             { return r.auditLogs }
func (r *txReposGorm) Outbox() repo.OutboxRepository                  { return r.outbox }

type TxOptions struct {
	MaxAttempts int           // 1以上
	LockTimeout time.Duration // 0ならSET LOCALしない
	Backoff     time.Duration // 試行回数に比例して待つ
	OnRetry     func()        // メトリクス用（nil可）
}

type TxManagerGorm struct {
	db     *gorm.DB
	opts   TxOptions
	logger *zap.Logger
}

func NewTxManagerGorm(db *gorm.DB, opts TxOptions, logger *zap.Logger) *TxManagerGorm {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxManagerGorm{db: db, opts: opts, logger: logger}
}

// fnはリトライで複数回呼ばれることがある
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	var err error
	for attempt := 1; attempt <= tm.opts.MaxAttempts; attempt++ {
		err = tm.once(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}

		tm.logger.Warn("transaction retry",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", tm.opts.MaxAttempts),
			zap.String("pg_code", pgCode(err)),
			zap.Error(err),
		)
		if tm.opts.OnRetry != nil {
			tm.opts.OnRetry()
		}

		if attempt == tm.opts.MaxAttempts {
			break
		}
		wait := tm.opts.Backoff * time.Duration(attempt)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("%w: %w", repo.ErrTransient, err)
}

func (tm *TxManagerGorm) once(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tm.opts.LockTimeout > 0 {
			//ロック待ちで詰まらないように
			ms := tm.opts.LockTimeout.Milliseconds()
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error; err != nil {
				return err
			}
		}

		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:          NewOrderGormRepository(tx),
			orderItems:      NewOrderItemGormRepository(tx),
			carts:           NewCartGormRepository(tx),
			inventory:       NewInventoryGormRepository(tx),
			users:           NewUserGormRepository(tx),
			exchangeReturns: NewExchangeReturnGormRepository(tx),
			auditLogs:       NewAuditLogGormRepository(tx),
			outbox:          NewOutboxGormRepository(tx),
		}
		return fn(r)
	})
}
