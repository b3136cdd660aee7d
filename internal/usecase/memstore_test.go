package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"orderengine/internal/domain/model"
	repo "orderengine/internal/repository"
)

// =====================
// インメモリのトランザクション付きストア
// WithinTxごとに状態を複製し、fnが成功したときだけ差し替える（失敗なら丸ごと捨てる）
// =====================

type memState struct {
	items      map[int64]model.Item
	orders     map[int64]model.Order
	orderItems map[int64][]model.OrderItem
	carts      map[int64]model.Cart // user_id -> cart
	cartItems  map[int64][]model.CartItem
	users      map[int64]model.User
	ers        map[int64]model.ExchangeReturn
	audits     []model.AuditLog
	outbox     []model.OutboxEvent
	nextID     int64
}

func newMemState() *memState {
	return &memState{
		items:      map[int64]model.Item{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64][]model.OrderItem{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64][]model.CartItem{},
		users:      map[int64]model.User{},
		ers:        map[int64]model.ExchangeReturn{},
		nextID:     1000,
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = append([]model.CartItem(nil), v...)
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.ers {
		c.ers[k] = v
	}
	c.audits = append([]model.AuditLog(nil), s.audits...)
	c.outbox = append([]model.OutboxEvent(nil), s.outbox...)
	c.nextID = s.nextID
	return c
}

func (s *memState) newID() int64 {
	s.nextID++
	return s.nextID
}

type memStore struct {
	mu    sync.Mutex
	state *memState

	// 故障注入
	failCartClear error
	failOutbox    error

	txCalls int
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

// トランザクションはストア全体のmutexで直列になる
// そのためFOR UPDATEの行ロックはここでは検証できない。実際の競合はpostgres_integration_test.goで見る
func (m *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txCalls++
	if err := ctx.Err(); err != nil {
		return err
	}

	work := m.state.clone()
	if err := fn(&memRepos{s: work, store: m}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// ---- seed / inspect helpers ----

func (m *memStore) seedItem(id int64, name string, price int64, stock int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := model.SellStatusSell
	if stock == 0 {
		st = model.SellStatusSoldOut
	}
	m.state.items[id] = model.Item{ID: id, Name: name, Price: price, StockNumber: stock, SellStatus: st}
}

func (m *memStore) seedCart(userID int64, itemIDs ...int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := model.Cart{ID: m.state.newID(), UserID: userID}
	m.state.carts[userID] = cart
	for _, id := range itemIDs {
		m.state.cartItems[cart.ID] = append(m.state.cartItems[cart.ID], model.CartItem{ID: m.state.newID(), CartID: cart.ID, ItemID: id, Quantity: 1})
	}
	return cart.ID
}

func (m *memStore) seedUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[u.ID] = u
}

func (m *memStore) setOrderStatus(orderID int64, st model.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.state.orders[orderID]
	o.Status = st
	m.state.orders[orderID] = o
}

func (m *memStore) item(id int64) model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.items[id]
}

func (m *memStore) order(id int64) (model.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	return o, ok
}

func (m *memStore) orderItems(id int64) []model.OrderItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OrderItem(nil), m.state.orderItems[id]...)
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *memStore) cartItemCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.cartItems[m.state.carts[userID].ID])
}

func (m *memStore) exchangeReturns() []model.ExchangeReturn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ExchangeReturn, 0, len(m.state.ers))
	for _, er := range m.state.ers {
		out = append(out, er)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) audits() []model.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditLog(nil), m.state.audits...)
}

func (m *memStore) topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.state.outbox))
	for _, ev := range m.state.outbox {
		out = append(out, ev.Topic)
	}
	return out
}

func (m *memStore) outbox() []model.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OutboxEvent(nil), m.state.outbox...)
}

// ---- TxRepos ----

type memRepos struct {
	s     *memState
	store *memStore
}

func (r *memRepos) Orders() repo.OrderRepository                   { return memOrders{r.s} }
func (r *memRepos) OrderItems() repo.OrderItemRepository           { return memOrderItems{r.s} }
func (r *memRepos) Carts() repo.CartRepository                     { return memCarts{r.s, r.store.failCartClear} }
func (r *memRepos) Inventory() repo.InventoryRepository            { return memInventory{r.s} }
func (r *memRepos) Users() repo.UserRepository                     { return memUsers{r.s} }
func (r *memRepos) ExchangeReturns() repo.ExchangeReturnRepository { return memExchangeReturns{r.s} }
func (r *memRepos) AuditLogs() repo.AuditLogRepository             { return memAudits{r.s} }
func (r *memRepos) Outbox() repo.OutboxRepository                  { return memOutbox{r.s, r.store.failOutbox} }

type memInventory struct{ s *memState }

func (r memInventory) FindItemForUpdate(ctx context.Context, itemID int64) (model.Item, error) {
	it, ok := r.s.items[itemID]
	if !ok {
		return model.Item{}, repo.ErrNotFound
	}
	return it, nil
}

func (r memInventory) Reserve(ctx context.Context, itemID int64, qty int64) error {
	it, ok := r.s.items[itemID]
	if !ok {
		return repo.ErrNotFound
	}
	if it.StockNumber < qty {
		return repo.ErrInsufficientStock
	}
	it.StockNumber -= qty
	if it.StockNumber == 0 {
		it.SellStatus = model.SellStatusSoldOut
	}
	r.s.items[itemID] = it
	return nil
}

func (r memInventory) Release(ctx context.Context, itemID int64, qty int64) error {
	it, ok := r.s.items[itemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.StockNumber += qty
	it.SellStatus = model.SellStatusSell
	r.s.items[itemID] = it
	return nil
}

type memOrders struct{ s *memState }

func (r memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := r.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r memOrders) FindOwned(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	o, ok := r.s.orders[orderID]
	if !ok || o.UserID != userID {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) FindOwnedForUpdate(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	return r.FindOwned(ctx, userID, orderID)
}

func (r memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range r.s.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (r memOrders) sorted(keep func(model.Order) bool) []model.Order {
	var out []model.Order
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.After(out[j].OrderDate)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func paginate(all []model.Order, page int, limit int) []model.Order {
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.Order{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func (r memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	all := r.sorted(func(o model.Order) bool { return o.UserID == userID })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	all := r.sorted(func(o model.Order) bool {
		if f.Status != "" && o.Status != f.Status {
			return false
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			return false
		}
		if f.From != nil && o.OrderDate.Before(*f.From) {
			return false
		}
		if f.To != nil && o.OrderDate.After(*f.To) {
			return false
		}
		return true
	})
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	if order.IdempotencyKey != nil {
		if _, found, _ := r.FindByIdempotencyKey(ctx, order.UserID, *order.IdempotencyKey); found {
			return 0, repo.ErrDuplicate
		}
	}
	order.ID = r.s.newID()
	order.CreatedAt = order.OrderDate
	order.UpdatedAt = order.OrderDate
	order.Items = nil
	r.s.orders[order.ID] = order
	return order.ID, nil
}

func (r memOrders) UpdateStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) error {
	o, ok := r.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	if o.Status != from {
		return repo.ErrStaleState
	}
	o.Status = to
	r.s.orders[orderID] = o
	return nil
}

func (r memOrders) MarkPurchaseConfirmed(ctx context.Context, orderID int64) error {
	o, ok := r.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	if o.Status != model.OrderStatusDelivered || o.IsPurchaseConfirmed {
		return repo.ErrStaleState
	}
	o.IsPurchaseConfirmed = true
	r.s.orders[orderID] = o
	return nil
}

type memOrderItems struct{ s *memState }

func (r memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = r.s.newID()
		it.OrderID = orderID
		r.s.orderItems[orderID] = append(r.s.orderItems[orderID], it)
	}
	return nil
}

func (r memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, r.s.orderItems[orderID]...), nil
}

type memCarts struct {
	s         *memState
	failClear error
}

func (r memCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	c, ok := r.s.carts[userID]
	if !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	return c, nil
}

func (r memCarts) Clear(ctx context.Context, cartID int64) error {
	if r.failClear != nil {
		return r.failClear
	}
	delete(r.s.cartItems, cartID)
	return nil
}

type memUsers struct{ s *memState }

func (r memUsers) FindByID(ctx context.Context, userID int64) (model.User, error) {
	u, ok := r.s.users[userID]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

type memExchangeReturns struct{ s *memState }

func (r memExchangeReturns) Create(ctx context.Context, er model.ExchangeReturn) (model.ExchangeReturn, error) {
	//部分ユニークインデックス相当
	for _, e := range r.s.ers {
		if e.OrderID == er.OrderID && e.Status == model.ExchangeReturnStatusPending {
			return model.ExchangeReturn{}, repo.ErrDuplicate
		}
	}
	er.ID = r.s.newID()
	er.CreatedAt = time.Now()
	er.UpdatedAt = er.CreatedAt
	r.s.ers[er.ID] = er
	return er, nil
}

func (r memExchangeReturns) FindByIDForUpdate(ctx context.Context, id int64) (model.ExchangeReturn, error) {
	er, ok := r.s.ers[id]
	if !ok {
		return model.ExchangeReturn{}, repo.ErrNotFound
	}
	return er, nil
}

func (r memExchangeReturns) HasPending(ctx context.Context, orderID int64) (bool, error) {
	for _, e := range r.s.ers {
		if e.OrderID == orderID && e.Status == model.ExchangeReturnStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r memExchangeReturns) HasCompletedReturn(ctx context.Context, orderID int64, excludeID int64) (bool, error) {
	for _, e := range r.s.ers {
		if e.OrderID == orderID && e.ID != excludeID &&
			e.Type == model.ExchangeReturnTypeReturn && e.Status == model.ExchangeReturnStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r memExchangeReturns) list(keep func(model.ExchangeReturn) bool) []model.ExchangeReturn {
	out := []model.ExchangeReturn{}
	for _, e := range r.s.ers {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r memExchangeReturns) ListByUserID(ctx context.Context, userID int64) ([]model.ExchangeReturn, error) {
	return r.list(func(e model.ExchangeReturn) bool { return e.UserID == userID }), nil
}

func (r memExchangeReturns) ListAll(ctx context.Context) ([]model.ExchangeReturn, error) {
	return r.list(func(model.ExchangeReturn) bool { return true }), nil
}

func (r memExchangeReturns) UpdateStatus(ctx context.Context, id int64, from model.ExchangeReturnStatus, to model.ExchangeReturnStatus, adminComment *string) error {
	er, ok := r.s.ers[id]
	if !ok {
		return repo.ErrNotFound
	}
	if er.Status != from {
		return repo.ErrStaleState
	}
	er.Status = to
	if adminComment != nil {
		c := *adminComment
		er.AdminComment = &c
	}
	r.s.ers[id] = er
	return nil
}

type memAudits struct{ s *memState }

func (r memAudits) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = r.s.newID()
	r.s.audits = append(r.s.audits, log)
	return nil
}

type memOutbox struct {
	s    *memState
	fail error
}

func (r memOutbox) Append(ctx context.Context, ev model.OutboxEvent) error {
	if r.fail != nil {
		return r.fail
	}
	ev.ID = r.s.newID()
	r.s.outbox = append(r.s.outbox, ev)
	return nil
}

func (r memOutbox) FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var out []model.OutboxEvent
	for _, ev := range r.s.outbox {
		if ev.SentAt == nil && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r memOutbox) MarkSent(ctx context.Context, ids []int64, sentAt time.Time) error {
	set := map[int64]bool{}
	for _, id := range ids {
		set[id] = true
	}
	for i := range r.s.outbox {
		if set[r.s.outbox[i].ID] {
			t := sentAt
			r.s.outbox[i].SentAt = &t
		}
	}
	return nil
}

// 固定時計
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
