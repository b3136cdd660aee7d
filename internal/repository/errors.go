package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 在庫が足りない（条件付き減算が0行）
	ErrInsufficientStock = errors.New("insufficient stock")

	// 一意制約違反
	ErrDuplicate = errors.New("duplicate")

	// 状態が想定と違って更新できなかった（比較更新が0行）
	ErrStaleState = errors.New("stale state")

	// ロック待ちタイムアウト・デッドロック・直列化失敗でリトライを使い切った
	ErrTransient = errors.New("transient storage error")
)
