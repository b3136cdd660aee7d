package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"orderengine/internal/domain/model"
	repo "orderengine/internal/repository"

	"github.com/google/uuid"
)

// outboxのトピック
const (
	TopicOrderPlaced                 = "order.placed"
	TopicOrderCancelled              = "order.cancelled"
	TopicOrderStatusChanged          = "order.status_changed"
	TopicOrderPurchaseConfirmed      = "order.purchase_confirmed"
	TopicExchangeReturnCreated       = "exchange_return.created"
	TopicExchangeReturnStatusChanged = "exchange_return.status_changed"
	TopicExchangeReturnCompleted     = "exchange_return.completed"
)

type eventItem struct {
	ItemID     int64 `json:"item_id"`
	Count      int64 `json:"count"`
	OrderPrice int64 `json:"order_price"`
}

type orderEvent struct {
	OrderID    int64       `json:"order_id"`
	UserID     int64       `json:"user_id"`
	Status     string      `json:"status"`
	PrevStatus string      `json:"prev_status,omitempty"`
	TotalPrice int64       `json:"total_price,omitempty"`
	Items      []eventItem `json:"items,omitempty"`
	ActorID    int64       `json:"actor_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type exchangeReturnEvent struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	UserID       int64     `json:"user_id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	PrevStatus   string    `json:"prev_status,omitempty"`
	AdminComment *string   `json:"admin_comment,omitempty"`
	Restocked    bool      `json:"restocked,omitempty"`
	ActorID      int64     `json:"actor_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func toEventItems(items []model.OrderItem) []eventItem {
	out := make([]eventItem, 0, len(items))
	for _, it := range items {
		out = append(out, eventItem{ItemID: it.ItemID, Count: it.Count, OrderPrice: it.OrderPrice})
	}
	return out
}

// 状態変更と同じトランザクションでoutboxに積む
func appendEvent(ctx context.Context, r repo.TxRepos, topic string, key int64, payload any, now time.Time) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return internal(err)
	}
	if err := r.Outbox().Append(ctx, model.OutboxEvent{
		EventID:   uuid.NewString(),
		Topic:     topic,
		Key:       strconv.FormatInt(key, 10),
		Payload:   string(b),
		CreatedAt: now,
	}); err != nil {
		return internal(err)
	}
	return nil
}
