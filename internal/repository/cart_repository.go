package repository

import (
	"context"

	"orderengine/internal/domain/model"
)

type CartRepository interface {
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// 明細だけ全削除（カート本体は残す）
	Clear(ctx context.Context, cartID int64) error
}
