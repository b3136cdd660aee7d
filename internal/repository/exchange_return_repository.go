package repository

import (
	"context"

	"orderengine/internal/domain/model"
)

type ExchangeReturnRepository interface {
	// PENDINGの重複は ErrDuplicate
	Create(ctx context.Context, er model.ExchangeReturn) (model.ExchangeReturn, error)
	FindByIDForUpdate(ctx context.Context, id int64) (model.ExchangeReturn, error)
	HasPending(ctx context.Context, orderID int64) (bool, error)
	// excludeID以外にCOMPLETEDのRETURNがあるか（在庫の二重戻し防止）
	HasCompletedReturn(ctx context.Context, orderID int64, excludeID int64) (bool, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.ExchangeReturn, error)
	ListAll(ctx context.Context) ([]model.ExchangeReturn, error)
	UpdateStatus(ctx context.Context, id int64, from model.ExchangeReturnStatus, to model.ExchangeReturnStatus, adminComment *string) error
}
