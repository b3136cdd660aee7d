package repository

import (
	"context"

	"orderengine/internal/domain/model"
)

// 在庫台帳。必ずトランザクション内のリポジトリで使う
type InventoryRepository interface {
	// 商品行をFOR UPDATEで取得（価格の再取得とロック順序の固定）
	FindItemForUpdate(ctx context.Context, itemID int64) (model.Item, error)

	// 在庫が足りるときだけ減算。足りなければ ErrInsufficientStock
	Reserve(ctx context.Context, itemID int64, qty int64) error

	// 在庫戻し（キャンセルなど）
	Release(ctx context.Context, itemID int64, qty int64) error
}
