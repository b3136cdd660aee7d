package repository

import (
	"context"

	"orderengine/internal/domain/model"
)

// ユーザーは参照のみ（既定の配送先を注文へ写すため）
type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (model.User, error)
}
