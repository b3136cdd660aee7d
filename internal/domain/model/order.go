package model

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusOrder     OrderStatus = "ORDER"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancel    OrderStatus = "CANCEL"
)

// 前進方向の遷移（1段ずつ）
var orderForward = map[OrderStatus]OrderStatus{
	OrderStatusOrder:   OrderStatusReady,
	OrderStatusReady:   OrderStatusShipped,
	OrderStatusShipped: OrderStatusDelivered,
}

// ParseOrderStatus は外部から来た文字列を列挙値に変換する。列挙外は false
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case OrderStatusOrder, OrderStatusReady, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancel:
		return st, true
	}
	return "", false
}

// 終端（CANCEL / DELIVERED）からはステータス遷移できない
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancel || s == OrderStatusDelivered
}

// キャンセルできるのは配送完了前だけ
func (s OrderStatus) Cancellable() bool {
	_, known := ParseOrderStatus(string(s))
	return known && !s.IsTerminal()
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusCancel {
		return s.Cancellable()
	}
	return orderForward[s] == next
}

// 注文時点の配送先。ユーザープロフィールとは切り離して保存する
type DeliverySnapshot struct {
	Name          string `gorm:"type:varchar(255)" json:"name"`
	Phone         string `gorm:"type:varchar(20)" json:"phone"`
	Address       string `gorm:"type:varchar(500)" json:"address"`
	AddressDetail string `gorm:"type:varchar(255)" json:"address_detail"`
	Request       string `gorm:"type:varchar(255)" json:"request"`
}

type Order struct {
	ID                  int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64            `gorm:"not null;index;uniqueIndex:idx_orders_user_idempotency,priority:1" json:"user_id"`
	OrderDate           time.Time        `gorm:"not null;index" json:"order_date"`
	Status              OrderStatus      `gorm:"column:order_status;type:varchar(20);not null;index" json:"order_status"`
	Delivery            DeliverySnapshot `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery"`
	IsPurchaseConfirmed bool             `gorm:"not null;default:false" json:"is_purchase_confirmed"`
	IdempotencyKey      *string          `gorm:"type:varchar(255);uniqueIndex:idx_orders_user_idempotency,priority:2" json:"-"`
	Items               []OrderItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt           time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
