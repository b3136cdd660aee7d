package repository

import (
	"context"
	"time"

	"orderengine/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status model.OrderStatus
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)

	//所有者で絞った検索（他人の注文は ErrNotFound）
	FindOwned(ctx context.Context, userID int64, orderID int64) (model.Order, error)
	FindOwnedForUpdate(ctx context.Context, userID int64, orderID int64) (model.Order, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	Create(ctx context.Context, order model.Order) (int64, error)

	// fromの状態のときだけtoへ更新。違えば ErrStaleState
	UpdateStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) error

	// 未確定のときだけ確定にする。すでに確定なら ErrStaleState
	MarkPurchaseConfirmed(ctx context.Context, orderID int64) error
}
