package repository

import (
	"context"
	"errors"

	"orderengine/internal/domain/model"
	repo "orderengine/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 商品行をロックして取得
func (r *InventoryGormRepository) FindItemForUpdate(ctx context.Context, itemID int64) (model.Item, error) {
	var it model.Item
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", itemID).
		First(&it).Error
	if isNotFound(err) {
		return model.Item{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Item{}, err
	}
	return it, nil
}

// 在庫が足りるときだけ減らす
// 0になったらSOLD_OUTにする（SETの右辺は更新前の値を見る）
func (r *InventoryGormRepository) Reserve(ctx context.Context, itemID int64, qty int64) error {
	if qty <= 0 {
		return errors.New("reserve: quantity must be positive")
	}

	res := r.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ? AND stock_number >= ?", itemID, qty).
		Updates(map[string]interface{}{
			"stock_number": gorm.Expr("stock_number - ?", qty),
			"sell_status":  gorm.Expr("CASE WHEN stock_number - ? = 0 THEN ? ELSE sell_status END", qty, string(model.SellStatusSoldOut)),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	//0行：商品が無いのか在庫不足なのかを見分ける
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Item{}).Where("id = ?", itemID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return repo.ErrNotFound
	}
	return repo.ErrInsufficientStock
}

// 在庫戻し（キャンセル・返品）
func (r *InventoryGormRepository) Release(ctx context.Context, itemID int64, qty int64) error {
	if qty <= 0 {
		return errors.New("release: quantity must be positive")
	}

	res := r.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"stock_number": gorm.Expr("stock_number + ?", qty),
			"sell_status":  string(model.SellStatusSell),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
