package model

import "time"

// 注文明細。作成後は変更しない
// order_priceは「単価×数量」を注文時点で確定させた金額
type OrderItem struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          int64     `gorm:"not null;index" json:"order_id"`
	ItemID           int64     `gorm:"not null;index" json:"item_id"`
	ItemNameSnapshot string    `gorm:"type:varchar(255);not null" json:"item_name"`
	OrderPrice       int64     `gorm:"not null" json:"order_price"`
	Count            int64     `gorm:"not null;check:chk_order_items_count,count >= 1" json:"count"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
