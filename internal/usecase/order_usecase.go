package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"orderengine/internal/domain/model"
	"orderengine/internal/logging"
	"orderengine/internal/metrics"
	repo "orderengine/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	maxOrderLines        = 100
	maxLineQuantity      = 10000
	maxIdempotencyKeyLen = 255
	maxPageLimit         = 100
)

type OrderUsecase struct {
	tx           repo.TransactionManager
	clock        Clock
	log          *zap.Logger
	metrics      *metrics.Metrics
	defaultLimit int
}

func NewOrderUsecase(tx repo.TransactionManager, clock Clock, log *zap.Logger, m *metrics.Metrics, defaultLimit int) *OrderUsecase {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &OrderUsecase{tx: tx, clock: clock, log: log, metrics: m, defaultLimit: defaultLimit}
}

type PlaceOrderLine struct {
	ItemID    int64
	UnitPrice int64 // 存在チェックだけ。金額は商品から取り直す
	Quantity  int64
}

type PlaceOrderInput struct {
	Items          []PlaceOrderLine
	Delivery       *model.DeliverySnapshot // nilならユーザーの既定配送先
	IdempotencyKey string
}

type PlaceOrderOutput struct {
	OrderID  int64
	Replayed bool // 同じ冪等キーの既存注文を返した
}

type OrderItemOutput struct {
	ItemID     int64  `json:"item_id"`
	Name       string `json:"name"`
	OrderPrice int64  `json:"order_price"`
	Count      int64  `json:"count"`
}

type OrderOutput struct {
	ID                  int64                  `json:"id"`
	UserID              int64                  `json:"user_id"`
	OrderDate           time.Time              `json:"order_date"`
	Status              string                 `json:"order_status"`
	Delivery            model.DeliverySnapshot `json:"delivery"`
	IsPurchaseConfirmed bool                   `json:"is_purchase_confirmed"`
	TotalPrice          int64                  `json:"total_price"`
	Items               []OrderItemOutput      `json:"items"`
	CreatedAt           time.Time              `json:"created_at"`
}

type Pagination struct {
	TotalOrders int64 `json:"totalOrders"`
	TotalPages  int64 `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
}

type OrderListOutput struct {
	Orders     []OrderOutput `json:"orders"`
	Pagination Pagination    `json:"pagination"`
}

type reservedLine struct {
	itemID int64
	qty    int64
}

// 入力チェックと同一商品の合算。ストレージに触る前に終わらせる
func normalizeLines(lines []PlaceOrderLine) ([]reservedLine, error) {
	if len(lines) == 0 {
		return nil, invalid("items must not be empty")
	}
	if len(lines) > maxOrderLines {
		return nil, invalid("too many items (max %d)", maxOrderLines)
	}

	qty := make(map[int64]int64, len(lines))
	for i, l := range lines {
		if l.ItemID <= 0 {
			return nil, invalid("items[%d]: item_id is required", i)
		}
		if l.UnitPrice <= 0 {
			return nil, invalid("items[%d]: price must be positive", i)
		}
		if l.Quantity < 1 || l.Quantity > maxLineQuantity {
			return nil, invalid("items[%d]: quantity must be between 1 and %d", i, maxLineQuantity)
		}
		qty[l.ItemID] += l.Quantity
	}

	out := make([]reservedLine, 0, len(qty))
	for id, q := range qty {
		if q > maxLineQuantity {
			return nil, invalid("item %d: quantity must be between 1 and %d", id, maxLineQuantity)
		}
		out = append(out, reservedLine{itemID: id, qty: q})
	}
	//ロック順を固定（デッドロック防止）
	sort.Slice(out, func(i, j int) bool { return out[i].itemID < out[j].itemID })
	return out, nil
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (out PlaceOrderOutput, err error) {
	ctx, span := tracer.Start(ctx, "OrderUsecase.PlaceOrder")
	defer func() { endSpan(span, err) }()

	if userID <= 0 {
		return PlaceOrderOutput{}, unauthorized()
	}
	lines, err := normalizeLines(in.Items)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return PlaceOrderOutput{}, invalid("idempotency key too long (max %d)", maxIdempotencyKeyLen)
	}
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int("order.lines", len(lines)))

	log := logging.FromContext(ctx, u.log)

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		out = PlaceOrderOutput{}

		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err != nil {
				return internal(err)
			}
			if found {
				out = PlaceOrderOutput{OrderID: existing.ID, Replayed: true}
				return nil
			}
		}

		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewAppError(KindNotFound, CodeCartNotFound, "cart not found")
		}
		if err != nil {
			return internal(err)
		}

		//在庫の確保。1行でも失敗したら全部ロールバック
		orderItems := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			item, err := r.Inventory().FindItemForUpdate(ctx, l.itemID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewAppError(KindNotFound, CodeItemNotFound, fmt.Sprintf("item %d not found", l.itemID))
			}
			if err != nil {
				return internal(err)
			}

			if err := r.Inventory().Reserve(ctx, l.itemID, l.qty); err != nil {
				switch {
				case errors.Is(err, repo.ErrInsufficientStock):
					return NewAppError(KindConflict, CodeInsufficientStock,
						fmt.Sprintf("insufficient stock for item %d (%s)", item.ID, item.Name))
				case errors.Is(err, repo.ErrNotFound):
					return NewAppError(KindNotFound, CodeItemNotFound, fmt.Sprintf("item %d not found", l.itemID))
				}
				return internal(err)
			}

			//金額は注文時点の商品価格で確定
			orderItems = append(orderItems, model.OrderItem{
				ItemID:           item.ID,
				ItemNameSnapshot: item.Name,
				OrderPrice:       item.Price * l.qty,
				Count:            l.qty,
			})
		}

		delivery, err := u.deliveryFor(ctx, r, userID, in.Delivery)
		if err != nil {
			return err
		}

		now := u.clock.Now()
		order := model.Order{
			UserID:    userID,
			OrderDate: now,
			Status:    model.OrderStatusOrder,
			Delivery:  delivery,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}

		orderID, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) {
			//同じキーの注文が並行して作られた
			return NewAppError(KindConflict, CodeDuplicateRequest, "an order with this idempotency key is already being placed")
		}
		if err != nil {
			return internal(err)
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return internal(err)
		}

		//カート明細をクリア（本体は残す）
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return internal(err)
		}

		if err := appendEvent(ctx, r, TopicOrderPlaced, orderID, orderEvent{
			OrderID:    orderID,
			UserID:     userID,
			Status:     string(model.OrderStatusOrder),
			TotalPrice: totalPrice(orderItems),
			Items:      toEventItems(orderItems),
			OccurredAt: now,
		}, now); err != nil {
			return err
		}

		out = PlaceOrderOutput{OrderID: orderID}
		return nil
	})

	if err = finishTx(err); err != nil {
		if ae, ok := AsAppError(err); ok && ae.Code == CodeInsufficientStock {
			u.metrics.IncStockConflicts()
			log.Warn("stock conflict", zap.Int64("user_id", userID), zap.String("reason", ae.Message))
		}
		return PlaceOrderOutput{}, err
	}

	if !out.Replayed {
		u.metrics.IncOrdersPlaced()
		log.Info("order placed", zap.Int64("user_id", userID), zap.Int64("order_id", out.OrderID), zap.Int("lines", len(lines)))
	}
	return out, nil
}

func (u *OrderUsecase) deliveryFor(ctx context.Context, r repo.TxRepos, userID int64, in *model.DeliverySnapshot) (model.DeliverySnapshot, error) {
	if in != nil {
		return *in, nil
	}
	user, err := r.Users().FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.DeliverySnapshot{}, nil
	}
	if err != nil {
		return model.DeliverySnapshot{}, internal(err)
	}
	return user.DefaultDelivery(), nil
}

// 新しい順。他人の注文は含まない
func (u *OrderUsecase) ListOrders(ctx context.Context, userID int64, page int, limit int) (out OrderListOutput, err error) {
	ctx, span := tracer.Start(ctx, "OrderUsecase.ListOrders")
	defer func() { endSpan(span, err) }()

	if userID <= 0 {
		return OrderListOutput{}, unauthorized()
	}
	page, limit, err = normalizePage(page, limit, u.defaultLimit)
	if err != nil {
		return OrderListOutput{}, err
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return internal(err)
		}
		outs, err := withItems(ctx, r, orders)
		if err != nil {
			return err
		}
		out = OrderListOutput{Orders: outs, Pagination: newPagination(total, page, limit)}
		return nil
	})
	if err = finishTx(err); err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, userID int64, orderID int64) (out OrderOutput, err error) {
	ctx, span := tracer.Start(ctx, "OrderUsecase.GetOrder")
	defer func() { endSpan(span, err) }()

	if userID <= 0 {
		return OrderOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, invalid("invalid id")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//他人の注文は「存在しない扱い」
		o, err := r.Orders().FindOwned(ctx, userID, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return orderNotFound()
		}
		if err != nil {
			return internal(err)
		}
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return internal(err)
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err = finishTx(err); err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) CancelOrder(ctx context.Context, userID int64, orderID int64) (err error) {
	ctx, span := tracer.Start(ctx, "OrderUsecase.CancelOrder")
	defer func() { endSpan(span, err) }()

	if userID <= 0 {
		return unauthorized()
	}
	if orderID <= 0 {
		return invalid("invalid id")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindOwnedForUpdate(ctx, userID, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return orderNotFound()
		}
		if err != nil {
			return internal(err)
		}
		return cancelLocked(ctx, r, o, 0, u.clock.Now())
	})
	if err = finishTx(err); err != nil {
		return err
	}

	u.metrics.IncOrdersCancelled()
	logging.FromContext(ctx, u.log).Info("order cancelled", zap.Int64("user_id", userID), zap.Int64("order_id", orderID))
	return nil
}

func (u *OrderUsecase) ConfirmPurchase(ctx context.Context, userID int64, orderID int64) (err error) {
	ctx, span := tracer.Start(ctx, "OrderUsecase.ConfirmPurchase")
	defer func() { endSpan(span, err) }()

	if userID <= 0 {
		return unauthorized()
	}
	if orderID <= 0 {
		return invalid("invalid id")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindOwnedForUpdate(ctx, userID, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return orderNotFound()
		}
		if err != nil {
			return internal(err)
		}

		if o.Status != model.OrderStatusDelivered {
			return NewAppError(KindState, CodeNotDelivered, "order is not delivered yet")
		}
		if o.IsPurchaseConfirmed {
			return alreadyConfirmed()
		}

		if err := r.Orders().MarkPurchaseConfirmed(ctx, o.ID); err != nil {
			if errors.Is(err, repo.ErrStaleState) {
				return alreadyConfirmed()
			}
			return internal(err)
		}

		now := u.clock.Now()
		return appendEvent(ctx, r, TopicOrderPurchaseConfirmed, o.ID, orderEvent{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Status:     string(o.Status),
			OccurredAt: now,
		}, now)
	})
	return finishTx(err)
}

func orderNotFound() error {
	return NewAppError(KindNotFound, CodeOrderNotFound, "order not found")
}

func alreadyConfirmed() error {
	return NewAppError(KindConflict, CodeAlreadyConfirmed, "purchase already confirmed")
}

func normalizePage(page int, limit int, defaultLimit int) (int, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		return 0, 0, invalid("limit must be <= %d", maxPageLimit)
	}
	return page, limit, nil
}

func newPagination(total int64, page int, limit int) Pagination {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Pagination{TotalOrders: total, TotalPages: pages, CurrentPage: page, Limit: limit}
}

func withItems(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return nil, internal(err)
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return outs, nil
}

func totalPrice(items []model.OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.OrderPrice
	}
	return total
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ItemID:     it.ItemID,
			Name:       it.ItemNameSnapshot,
			OrderPrice: it.OrderPrice,
			Count:      it.Count,
		})
	}

	return OrderOutput{
		ID:                  o.ID,
		UserID:              o.UserID,
		OrderDate:           o.OrderDate,
		Status:              string(o.Status),
		Delivery:            o.Delivery,
		IsPurchaseConfirmed: o.IsPurchaseConfirmed,
		TotalPrice:          totalPrice(items),
		Items:               outItems,
		CreatedAt:           o.CreatedAt,
	}
}
