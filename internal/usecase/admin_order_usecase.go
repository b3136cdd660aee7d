package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"orderengine/internal/domain/model"
	"orderengine/internal/logging"
	"orderengine/internal/metrics"
	repo "orderengine/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx      repo.TransactionManager
	clock   Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewAdminOrderUsecase(tx repo.TransactionManager, clock Clock, log *zap.Logger, m *metrics.Metrics) *AdminOrderUsecase {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminOrderUsecase{tx: tx, clock: clock, log: log, metrics: m}
}

type AdminOrderListInput struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	Sort   string // "yesterday" なら前日分だけ
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, in AdminOrderListInput) (out OrderListOutput, err error) {
	ctx, span := tracer.Start(ctx, "AdminOrderUsecase.List")
	defer func() { endSpan(span, err) }()

	page, limit, err := normalizePage(in.Page, in.Limit, 50)
	if err != nil {
		return OrderListOutput{}, err
	}

	f := repo.AdminOrderListFilter{Page: page, Limit: limit, UserID: in.UserID}
	if s := strings.TrimSpace(in.Status); s != "" {
		st, ok := model.ParseOrderStatus(s)
		if !ok {
			return OrderListOutput{}, invalid("invalid status")
		}
		f.Status = st
	}
	if in.UserID != nil && *in.UserID <= 0 {
		return OrderListOutput{}, invalid("invalid user_id")
	}

	switch strings.TrimSpace(in.Sort) {
	case "":
	case "yesterday":
		from, to := yesterdayRange(u.clock.Now())
		f.From, f.To = &from, &to
	default:
		return OrderListOutput{}, invalid("invalid sort")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return internal(err)
		}
		outs, err := withItems(ctx, r, orders)
		if err != nil {
			return err
		}
		out = OrderListOutput{Orders: outs, Pagination: newPagination(total, page, limit)}
		return nil
	})
	if err = finishTx(err); err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// 前日の0:00から当日0:00の直前まで
func yesterdayRange(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -1), today.Add(-time.Nanosecond)
}

// ステータス更新（CANCEL なら在庫戻し)
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (err error) {
	ctx, span := tracer.Start(ctx, "AdminOrderUsecase.UpdateStatus")
	defer func() { endSpan(span, err) }()

	if actorAdminUserID <= 0 {
		return unauthorized()
	}
	if orderID <= 0 {
		return invalid("invalid id")
	}

	//列挙外の文字列は受け付けない
	next, ok := model.ParseOrderStatus(in.Status)
	if !ok {
		return invalid("invalid status")
	}

	var before model.OrderStatus
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return orderNotFound()
		}
		if err != nil {
			return internal(err)
		}
		before = o.Status
		now := u.clock.Now()

		if next == model.OrderStatusCancel {
			if err := cancelLocked(ctx, r, o, actorAdminUserID, now); err != nil {
				return err
			}
		} else {
			// 同じステータスもエラー（前進は1段ずつ）
			if !o.Status.CanTransitionTo(next) {
				return NewAppError(KindState, CodeInvalidTransition,
					fmt.Sprintf("cannot change order status from %s to %s", o.Status, next))
			}
			if err := r.Orders().UpdateStatus(ctx, orderID, o.Status, next); err != nil {
				return staleOrInternal(err)
			}
			if err := appendEvent(ctx, r, TopicOrderStatusChanged, orderID, orderEvent{
				OrderID:    orderID,
				UserID:     o.UserID,
				Status:     string(next),
				PrevStatus: string(o.Status),
				ActorID:    actorAdminUserID,
				OccurredAt: now,
			}, now); err != nil {
				return err
			}
		}

		// ★監査ログ（UPDATE_ORDER_STATUS）
		return writeAudit(ctx, r, actorAdminUserID, model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, orderID,
			map[string]any{"status": o.Status},
			map[string]any{"status": next},
			now)
	})
	if err = finishTx(err); err != nil {
		return err
	}

	if next == model.OrderStatusCancel {
		u.metrics.IncOrdersCancelled()
	}
	logging.FromContext(ctx, u.log).Info("order status updated",
		zap.Int64("actor_id", actorAdminUserID),
		zap.Int64("order_id", orderID),
		zap.String("from", string(before)),
		zap.String("to", string(next)),
	)
	return nil
}

// 監査ログは状態変更と同じトランザクションで書く
func writeAudit(ctx context.Context, r repo.TxRepos, actorID int64, action model.AuditAction, resource model.AuditResourceType, resourceID int64, before any, after any, now time.Time) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return internal(err)
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return internal(err)
	}
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    now,
	}); err != nil {
		return internal(err)
	}
	return nil
}
