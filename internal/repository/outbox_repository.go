package repository

import (
	"context"
	"time"

	"orderengine/internal/domain/model"
)

type OutboxRepository interface {
	Append(ctx context.Context, ev model.OutboxEvent) error
	// 未送信を古い順に取得。別レプリカのリレーと取り合わないようSKIP LOCKED
	FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []int64, sentAt time.Time) error
}
