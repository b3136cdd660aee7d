package model

import "time"

type SellStatus string

const (
	SellStatusSell    SellStatus = "SELL"
	SellStatusSoldOut SellStatus = "SOLD_OUT"
)

// 商品。在庫数(stock_number)が唯一の正
// sell_statusは表示用で、在庫の増減に合わせて台帳側が更新する
type Item struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Price       int64      `gorm:"not null" json:"price"`
	StockNumber int64      `gorm:"not null;check:chk_items_stock_number,stock_number >= 0" json:"stock_number"`
	SellStatus  SellStatus `gorm:"type:varchar(20);not null;default:'SELL'" json:"sell_status"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
