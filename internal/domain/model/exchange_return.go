package model

import (
	"strings"
	"time"
)

type ExchangeReturnType string

const (
	ExchangeReturnTypeExchange ExchangeReturnType = "EXCHANGE"
	ExchangeReturnTypeReturn   ExchangeReturnType = "RETURN"
)

func ParseExchangeReturnType(s string) (ExchangeReturnType, bool) {
	t := ExchangeReturnType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case ExchangeReturnTypeExchange, ExchangeReturnTypeReturn:
		return t, true
	}
	return "", false
}

type ExchangeReturnStatus string

const (
	ExchangeReturnStatusPending   ExchangeReturnStatus = "PENDING"
	ExchangeReturnStatusApproved  ExchangeReturnStatus = "APPROVED"
	ExchangeReturnStatusRejected  ExchangeReturnStatus = "REJECTED"
	ExchangeReturnStatusCompleted ExchangeReturnStatus = "COMPLETED"
)

func ParseExchangeReturnStatus(s string) (ExchangeReturnStatus, bool) {
	st := ExchangeReturnStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case ExchangeReturnStatusPending, ExchangeReturnStatusApproved, ExchangeReturnStatusRejected, ExchangeReturnStatusCompleted:
		return st, true
	}
	return "", false
}

// PENDING -> APPROVED|REJECTED, APPROVED -> COMPLETED
func (s ExchangeReturnStatus) CanTransitionTo(next ExchangeReturnStatus) bool {
	switch s {
	case ExchangeReturnStatusPending:
		return next == ExchangeReturnStatusApproved || next == ExchangeReturnStatusRejected
	case ExchangeReturnStatusApproved:
		return next == ExchangeReturnStatusCompleted
	}
	return false
}

// 交換・返品の申請。注文・ユーザーは参照のみ
// 1注文につきPENDINGは1件まで（部分ユニークインデックスでも保証）
type ExchangeReturn struct {
	ID           int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      int64                `gorm:"not null;index" json:"order_id"`
	UserID       int64                `gorm:"not null;index" json:"user_id"`
	Type         ExchangeReturnType   `gorm:"type:varchar(20);not null" json:"type"`
	Reason       string               `gorm:"type:text;not null" json:"reason"`
	Status       ExchangeReturnStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	AdminComment *string              `gorm:"type:text" json:"admin_comment"`
	CreatedAt    time.Time            `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
