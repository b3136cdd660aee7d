package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"orderengine/internal/domain/model"
	"orderengine/internal/logging"
	repo "orderengine/internal/repository"

	"go.uber.org/zap"
)

const maxReasonLen = 1000

type ExchangeReturnUsecase struct {
	tx    repo.TransactionManager
	clock Clock
	log   *zap.Logger
	hook  CompletionHook
}

// hookがnilなら完了イベントを積むだけ
func NewExchangeReturnUsecase(tx repo.TransactionManager, clock Clock, log *zap.Logger, hook CompletionHook) *ExchangeReturnUsecase {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if hook == nil {
		hook = EmitCompletedEvent{}
	}
	return &ExchangeReturnUsecase{tx: tx, clock: clock, log: log, hook: hook}
}

type CreateExchangeReturnInput struct {
	OrderID int64
	Type    string
	Reason  string
}

type UpdateExchangeReturnStatusInput struct {
	Status       string
	AdminComment *string
}

type OrderSummary struct {
	OrderDate  time.Time `json:"order_date"`
	Status     string    `json:"order_status"`
	TotalPrice int64     `json:"total_price"`
}

type ExchangeReturnOutput struct {
	ID           int64         `json:"id"`
	OrderID      int64         `json:"order_id"`
	UserID       int64         `json:"user_id"`
	Type         string        `json:"type"`
	Reason       string        `json:"reason"`
	Status       string        `json:"status"`
	AdminComment *string       `json:"admin_comment"`
	Order        *OrderSummary `json:"order,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (u *ExchangeReturnUsecase) Create(ctx context.Context, userID int64, in CreateExchangeReturnInput) (id int64, err error) {
	ctx, span := tracer.Start(ctx, "ExchangeReturnUsecase.Create")
	defer func() { endSpan(span, err) }()

	if userID <= 0 {
		return 0, unauthorized()
	}
	if in.OrderID <= 0 {
		return 0, invalid("order_id is required")
	}
	typ, ok := model.ParseExchangeReturnType(in.Type)
	if !ok {
		return 0, invalid("type must be EXCHANGE or RETURN")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return 0, invalid("reason is required")
	}
	if utf8.RuneCountInString(reason) > maxReasonLen {
		return 0, invalid("reason too long (max %d)", maxReasonLen)
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//親の注文をロックして、PENDINGの重複作成を直列化する
		o, err := r.Orders().FindOwnedForUpdate(ctx, userID, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return orderNotFound()
		}
		if err != nil {
			return internal(err)
		}
		if o.Status != model.OrderStatusDelivered {
			return NewAppError(KindState, CodeOrderNotEligible, "only delivered orders can be exchanged or returned")
		}

		pending, err := r.ExchangeReturns().HasPending(ctx, o.ID)
		if err != nil {
			return internal(err)
		}
		if pending {
			return duplicatePending()
		}

		created, err := r.ExchangeReturns().Create(ctx, model.ExchangeReturn{
			OrderID: o.ID,
			UserID:  userID,
			Type:    typ,
			Reason:  reason,
			Status:  model.ExchangeReturnStatusPending,
		})
		if errors.Is(err, repo.ErrDuplicate) {
			return duplicatePending()
		}
		if err != nil {
			return internal(err)
		}
		id = created.ID

		now := u.clock.Now()
		return appendEvent(ctx, r, TopicExchangeReturnCreated, created.ID, exchangeReturnEvent{
			ID:         created.ID,
			OrderID:    created.OrderID,
			UserID:     created.UserID,
			Type:       string(created.Type),
			Status:     string(created.Status),
			OccurredAt: now,
		}, now)
	})
	if err = finishTx(err); err != nil {
		return 0, err
	}

	logging.FromContext(ctx, u.log).Info("exchange/return requested",
		zap.Int64("user_id", userID), zap.Int64("order_id", in.OrderID), zap.Int64("exchange_return_id", id))
	return id, nil
}

func duplicatePending() error {
	return NewAppError(KindConflict, CodeDuplicateRequest, "a pending exchange/return request already exists for this order")
}

func (u *ExchangeReturnUsecase) ListMine(ctx context.Context, userID int64) (outs []ExchangeReturnOutput, err error) {
	ctx, span := tracer.Start(ctx, "ExchangeReturnUsecase.ListMine")
	defer func() { endSpan(span, err) }()

	if userID <= 0 {
		return []ExchangeReturnOutput{}, unauthorized()
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rows, err := r.ExchangeReturns().ListByUserID(ctx, userID)
		if err != nil {
			return internal(err)
		}
		outs, err = withOrderSummary(ctx, r, rows)
		return err
	})
	if err = finishTx(err); err != nil {
		return []ExchangeReturnOutput{}, err
	}
	return outs, nil
}

func (u *ExchangeReturnUsecase) ListAll(ctx context.Context, adminID int64) (outs []ExchangeReturnOutput, err error) {
	ctx, span := tracer.Start(ctx, "ExchangeReturnUsecase.ListAll")
	defer func() { endSpan(span, err) }()

	if adminID <= 0 {
		return []ExchangeReturnOutput{}, unauthorized()
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rows, err := r.ExchangeReturns().ListAll(ctx)
		if err != nil {
			return internal(err)
		}
		outs, err = withOrderSummary(ctx, r, rows)
		return err
	})
	if err = finishTx(err); err != nil {
		return []ExchangeReturnOutput{}, err
	}
	return outs, nil
}

// PENDING -> APPROVED|REJECTED, APPROVED -> COMPLETED
func (u *ExchangeReturnUsecase) UpdateStatus(ctx context.Context, adminID int64, id int64, in UpdateExchangeReturnStatusInput) (err error) {
	ctx, span := tracer.Start(ctx, "ExchangeReturnUsecase.UpdateStatus")
	defer func() { endSpan(span, err) }()

	if adminID <= 0 {
		return unauthorized()
	}
	if id <= 0 {
		return invalid("invalid id")
	}
	next, ok := model.ParseExchangeReturnStatus(in.Status)
	if !ok || next == model.ExchangeReturnStatusPending {
		return invalid("status must be APPROVED, REJECTED or COMPLETED")
	}

	var comment *string
	if in.AdminComment != nil {
		c := strings.TrimSpace(*in.AdminComment)
		if utf8.RuneCountInString(c) > maxReasonLen {
			return invalid("admin_comment too long (max %d)", maxReasonLen)
		}
		comment = &c
	}

	var before model.ExchangeReturnStatus
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		er, err := r.ExchangeReturns().FindByIDForUpdate(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return exchangeReturnNotFound()
		}
		if err != nil {
			return internal(err)
		}
		before = er.Status

		if !er.Status.CanTransitionTo(next) {
			return NewAppError(KindState, CodeInvalidTransition,
				fmt.Sprintf("cannot change exchange/return status from %s to %s", er.Status, next))
		}

		if err := r.ExchangeReturns().UpdateStatus(ctx, er.ID, er.Status, next, comment); err != nil {
			switch {
			case errors.Is(err, repo.ErrStaleState):
				return NewAppError(KindState, CodeInvalidTransition, "exchange/return status changed concurrently")
			case errors.Is(err, repo.ErrNotFound):
				return exchangeReturnNotFound()
			}
			return internal(err)
		}

		now := u.clock.Now()
		if err := writeAudit(ctx, r, adminID, model.AuditActionUpdateExchangeReturnStatus, model.AuditResourceExchangeReturn, er.ID,
			map[string]any{"status": er.Status, "admin_comment": er.AdminComment},
			map[string]any{"status": next, "admin_comment": mergeComment(er.AdminComment, comment)},
			now); err != nil {
			return err
		}

		prev := er.Status
		er.Status = next
		er.AdminComment = mergeComment(er.AdminComment, comment)
		if err := appendEvent(ctx, r, TopicExchangeReturnStatusChanged, er.ID, exchangeReturnEvent{
			ID:           er.ID,
			OrderID:      er.OrderID,
			UserID:       er.UserID,
			Type:         string(er.Type),
			Status:       string(next),
			PrevStatus:   string(prev),
			AdminComment: er.AdminComment,
			ActorID:      adminID,
			OccurredAt:   now,
		}, now); err != nil {
			return err
		}

		if next == model.ExchangeReturnStatusCompleted {
			return u.hook.OnCompleted(ctx, r, er, now)
		}
		return nil
	})
	if err = finishTx(err); err != nil {
		return err
	}

	logging.FromContext(ctx, u.log).Info("exchange/return status updated",
		zap.Int64("actor_id", adminID),
		zap.Int64("exchange_return_id", id),
		zap.String("from", string(before)),
		zap.String("to", string(next)),
	)
	return nil
}

func exchangeReturnNotFound() error {
	return NewAppError(KindNotFound, CodeExchangeReturnNotFound, "exchange/return request not found")
}

// コメント未指定なら既存を残す
func mergeComment(current *string, next *string) *string {
	if next != nil {
		return next
	}
	return current
}

func withOrderSummary(ctx context.Context, r repo.TxRepos, rows []model.ExchangeReturn) ([]ExchangeReturnOutput, error) {
	outs := make([]ExchangeReturnOutput, 0, len(rows))
	for _, er := range rows {
		out := toExchangeReturnOutput(er)

		o, err := r.Orders().FindByID(ctx, er.OrderID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			//注文が消えていても申請は表示する
		case err != nil:
			return nil, internal(err)
		default:
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return nil, internal(err)
			}
			out.Order = &OrderSummary{
				OrderDate:  o.OrderDate,
				Status:     string(o.Status),
				TotalPrice: totalPrice(items),
			}
		}
		outs = append(outs, out)
	}
	return outs, nil
}

func toExchangeReturnOutput(er model.ExchangeReturn) ExchangeReturnOutput {
	return ExchangeReturnOutput{
		ID:           er.ID,
		OrderID:      er.OrderID,
		UserID:       er.UserID,
		Type:         string(er.Type),
		Reason:       er.Reason,
		Status:       string(er.Status),
		AdminComment: er.AdminComment,
		CreatedAt:    er.CreatedAt,
		UpdatedAt:    er.UpdatedAt,
	}
}
