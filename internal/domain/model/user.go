package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ユーザー。会員管理側が持つデータで、ここでは読むだけ
type User struct {
	ID                           int64  `gorm:"primaryKey;autoIncrement"`
	Name                         string `gorm:"type:varchar(255)"`
	PhoneNumber                  string `gorm:"type:varchar(20)"`
	Role                         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	DefaultDeliveryName          string `gorm:"type:varchar(255)"`
	DefaultDeliveryPhone         string `gorm:"type:varchar(20)"`
	DefaultDeliveryAddress       string `gorm:"type:varchar(500)"`
	DefaultDeliveryAddressDetail string `gorm:"type:varchar(255)"`
	DefaultDeliveryRequest       string `gorm:"type:varchar(255)"`
	CreatedAt                    time.Time
	UpdatedAt                    time.Time
}

// 既定の配送先を注文用のスナップショットとして複製する
func (u User) DefaultDelivery() DeliverySnapshot {
	return DeliverySnapshot{
		Name:          u.DefaultDeliveryName,
		Phone:         u.DefaultDeliveryPhone,
		Address:       u.DefaultDeliveryAddress,
		AddressDetail: u.DefaultDeliveryAddressDetail,
		Request:       u.DefaultDeliveryRequest,
	}
}
