package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"orderengine/internal/domain/model"
	repo "orderengine/internal/repository"
)

// ロック済みの注文をキャンセルする（ユーザー・管理者共通）
// 明細の数量をすべて在庫に戻してからステータスを書く。actorIDは管理者のときだけ
func cancelLocked(ctx context.Context, r repo.TxRepos, o model.Order, actorID int64, now time.Time) error {
	if o.Status == model.OrderStatusCancel {
		return NewAppError(KindConflict, CodeAlreadyCancelled, "order already cancelled")
	}
	if !o.Status.Cancellable() {
		return NewAppError(KindState, CodeInvalidTransition,
			fmt.Sprintf("order in status %s cannot be cancelled", o.Status))
	}

	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return internal(err)
	}
	if err := releaseItems(ctx, r, items); err != nil {
		return err
	}

	if err := r.Orders().UpdateStatus(ctx, o.ID, o.Status, model.OrderStatusCancel); err != nil {
		return staleOrInternal(err)
	}

	return appendEvent(ctx, r, TopicOrderCancelled, o.ID, orderEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(model.OrderStatusCancel),
		PrevStatus: string(o.Status),
		TotalPrice: totalPrice(items),
		Items:      toEventItems(items),
		ActorID:    actorID,
		OccurredAt: now,
	}, now)
}

// 在庫戻し（商品ID順でロック順をそろえる）
func releaseItems(ctx context.Context, r repo.TxRepos, items []model.OrderItem) error {
	sorted := make([]model.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })

	for _, it := range sorted {
		if err := r.Inventory().Release(ctx, it.ItemID, it.Count); err != nil {
			//商品が消えていたら戻し先が無いので全部ロールバック
			return internal(fmt.Errorf("release item %d: %w", it.ItemID, err))
		}
	}
	return nil
}

func staleOrInternal(err error) error {
	if errors.Is(err, repo.ErrStaleState) {
		return NewAppError(KindState, CodeInvalidTransition, "order status changed concurrently")
	}
	if errors.Is(err, repo.ErrNotFound) {
		return orderNotFound()
	}
	return internal(err)
}
