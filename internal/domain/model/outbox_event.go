package model

import "time"

// 状態変更と同じトランザクションで書き込むイベント
// リレーがKafkaへ送ったらsent_atを埋める
type OutboxEvent struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"event_id"`
	Topic     string     `gorm:"type:varchar(100);not null" json:"topic"`
	Key       string     `gorm:"type:varchar(100);not null" json:"key"`
	Payload   string     `gorm:"type:text;not null" json:"payload"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	SentAt    *time.Time `gorm:"index" json:"sent_at"`
}
