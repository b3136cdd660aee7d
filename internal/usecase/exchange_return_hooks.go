package usecase

import (
	"context"
	"time"

	"orderengine/internal/domain/model"
	repo "orderengine/internal/repository"
)

// COMPLETEDになったときにトランザクション内で呼ばれる
// エラーを返すとステータス更新ごとロールバックする
type CompletionHook interface {
	OnCompleted(ctx context.Context, r repo.TxRepos, er model.ExchangeReturn, now time.Time) error
}

// 既定：完了イベントを積むだけ（在庫・返金は手動）
type EmitCompletedEvent struct{}

func (EmitCompletedEvent) OnCompleted(ctx context.Context, r repo.TxRepos, er model.ExchangeReturn, now time.Time) error {
	return appendCompleted(ctx, r, er, false, now)
}

// RETURNなら注文明細の数量を在庫に戻す。EXCHANGEは戻さない
// 在庫を戻すのは1注文につき1回だけ
type RestockOnReturn struct{}

func (RestockOnReturn) OnCompleted(ctx context.Context, r repo.TxRepos, er model.ExchangeReturn, now time.Time) error {
	if er.Type != model.ExchangeReturnTypeReturn {
		return appendCompleted(ctx, r, er, false, now)
	}

	//注文行をロックして、同じ注文の完了処理を直列にする
	if _, err := r.Orders().FindByIDForUpdate(ctx, er.OrderID); err != nil {
		return internal(err)
	}
	done, err := r.ExchangeReturns().HasCompletedReturn(ctx, er.OrderID, er.ID)
	if err != nil {
		return internal(err)
	}
	if done {
		return appendCompleted(ctx, r, er, false, now)
	}

	items, err := r.OrderItems().ListByOrderID(ctx, er.OrderID)
	if err != nil {
		return internal(err)
	}
	if err := releaseItems(ctx, r, items); err != nil {
		return err
	}
	return appendCompleted(ctx, r, er, true, now)
}

func appendCompleted(ctx context.Context, r repo.TxRepos, er model.ExchangeReturn, restocked bool, now time.Time) error {
	return appendEvent(ctx, r, TopicExchangeReturnCompleted, er.ID, exchangeReturnEvent{
		ID:           er.ID,
		OrderID:      er.OrderID,
		UserID:       er.UserID,
		Type:         string(er.Type),
		Status:       string(er.Status),
		AdminComment: er.AdminComment,
		Restocked:    restocked,
		OccurredAt:   now,
	}, now)
}

// 設定から選ぶ
func NewCompletionHook(restockOnReturn bool) CompletionHook {
	if restockOnReturn {
		return RestockOnReturn{}
	}
	return EmitCompletedEvent{}
}
