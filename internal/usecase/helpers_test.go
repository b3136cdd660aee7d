package usecase_test

import (
	"testing"
	"time"

	"orderengine/internal/domain/model"
	"orderengine/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func assertAppErr(t *testing.T, err error, kind usecase.ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	ae, ok := usecase.AsAppError(err)
	require.True(t, ok, "err=%v is not AppError", err)
	assert.Equal(t, kind, ae.Kind, "err=%v", err)
	assert.Equal(t, code, ae.Code, "err=%v", err)
}

func newOrderUC(store *memStore) *usecase.OrderUsecase {
	return usecase.NewOrderUsecase(store, fixedClock{testNow}, nil, nil, 5)
}

func newAdminUC(store *memStore) *usecase.AdminOrderUsecase {
	return usecase.NewAdminOrderUsecase(store, fixedClock{testNow}, nil, nil)
}

func line(itemID, price, qty int64) usecase.PlaceOrderLine {
	return usecase.PlaceOrderLine{ItemID: itemID, UnitPrice: price, Quantity: qty}
}

func delivery() *model.DeliverySnapshot {
	return &model.DeliverySnapshot{Name: "山田", Phone: "090-0000-0000", Address: "東京都", AddressDetail: "1-2-3", Request: "置き配"}
}
