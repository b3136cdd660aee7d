package repository

import (
	"context"

	"orderengine/internal/domain/model"
	repo "orderengine/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExchangeReturnGormRepository struct {
	db *gorm.DB
}

func NewExchangeReturnGormRepository(db *gorm.DB) *ExchangeReturnGormRepository {
	return &ExchangeReturnGormRepository{db: db}
}

func (r *ExchangeReturnGormRepository) Create(ctx context.Context, er model.ExchangeReturn) (model.ExchangeReturn, error) {
	if er.Status == "" {
		er.Status = model.ExchangeReturnStatusPending
	}
	if err := r.db.WithContext(ctx).Create(&er).Error; err != nil {
		//uniq_exchange_returns_pending_order に当たった
		if isUniqueViolation(err) {
			return model.ExchangeReturn{}, repo.ErrDuplicate
		}
		return model.ExchangeReturn{}, err
	}
	return er, nil
}

func (r *ExchangeReturnGormRepository) FindByIDForUpdate(ctx context.Context, id int64) (model.ExchangeReturn, error) {
	var er model.ExchangeReturn
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&er).Error
	if isNotFound(err) {
		return model.ExchangeReturn{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ExchangeReturn{}, err
	}
	return er, nil
}

func (r *ExchangeReturnGormRepository) HasPending(ctx context.Context, orderID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ExchangeReturn{}).
		Where("order_id = ? AND status = ?", orderID, string(model.ExchangeReturnStatusPending)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ExchangeReturnGormRepository) HasCompletedReturn(ctx context.Context, orderID int64, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ExchangeReturn{}).
		Where("order_id = ? AND id <> ? AND type = ? AND status = ?",
			orderID, excludeID, string(model.ExchangeReturnTypeReturn), string(model.ExchangeReturnStatusCompleted)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ExchangeReturnGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.ExchangeReturn, error) {
	var rows []model.ExchangeReturn
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Find(&rows).Error
	if err != nil {
		return []model.ExchangeReturn{}, err
	}
	return rows, nil
}

func (r *ExchangeReturnGormRepository) ListAll(ctx context.Context) ([]model.ExchangeReturn, error) {
	var rows []model.ExchangeReturn
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Order("id desc").
		Find(&rows).Error
	if err != nil {
		return []model.ExchangeReturn{}, err
	}
	return rows, nil
}

func (r *ExchangeReturnGormRepository) UpdateStatus(ctx context.Context, id int64, from model.ExchangeReturnStatus, to model.ExchangeReturnStatus, adminComment *string) error {
	updates := map[string]interface{}{
		"status": string(to),
	}
	if adminComment != nil {
		updates["admin_comment"] = *adminComment
	}

	res := r.db.WithContext(ctx).Model(&model.ExchangeReturn{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.ExchangeReturn{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return repo.ErrNotFound
		}
		return repo.ErrStaleState
	}
	return nil
}
