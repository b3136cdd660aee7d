package usecase_test

import (
	"context"
	"time"

	"orderengine/internal/domain/model"
	repo "orderengine/internal/repository"

	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	inventory  repo.InventoryRepository
	audits     repo.AuditLogRepository
	outbox     repo.OutboxRepository

	// 使わないが TxRepos interface を満たすために保持
	carts repo.CartRepository
	users repo.UserRepository
	ers   repo.ExchangeReturnRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository                   { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository           { return r.orderItems }
func (r *TxReposMock) Inventory() repo.InventoryRepository            { return r.inventory }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository             { return r.audits }
func (r *TxReposMock) Outbox() repo.OutboxRepository                  { return r.outbox }
func (r *TxReposMock) Carts() repo.CartRepository                     { return r.carts }
func (r *TxReposMock) Users() repo.UserRepository                     { return r.users }
func (r *TxReposMock) ExchangeReturns() repo.ExchangeReturnRepository { return r.ers }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindOwned(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	panic("not used")
}

func (m *OrderRepoMock) FindOwnedForUpdate(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	panic("not used")
}

func (m *OrderRepoMock) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	panic("not used")
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	panic("not used")
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	panic("not used")
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) error {
	args := m.Called(ctx, orderID, from, to)
	return args.Error(0)
}

func (m *OrderRepoMock) MarkPurchaseConfirmed(ctx context.Context, orderID int64) error {
	panic("not used")
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	panic("not used")
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) FindItemForUpdate(ctx context.Context, itemID int64) (model.Item, error) {
	panic("not used")
}

func (m *InventoryRepoMock) Reserve(ctx context.Context, itemID int64, qty int64) error {
	panic("not used")
}

func (m *InventoryRepoMock) Release(ctx context.Context, itemID int64, qty int64) error {
	args := m.Called(ctx, itemID, qty)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

type OutboxRepoMock struct{ mock.Mock }

func (m *OutboxRepoMock) Append(ctx context.Context, ev model.OutboxEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *OutboxRepoMock) FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	panic("not used")
}

func (m *OutboxRepoMock) MarkSent(ctx context.Context, ids []int64, sentAt time.Time) error {
	panic("not used")
}
