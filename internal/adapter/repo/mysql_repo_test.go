package repo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *MySQLOrderRepo, *MySQLPaymentRepo, *MySQLCartRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return mock, NewMySQLOrderRepo(db), NewMySQLPaymentRepo(db), NewMySQLCartRepo(db)
}

var orderCols = []string{"id", "parent_id", "status", "shipping_method", "payment_method",
	"delivery_address", "is_address_edited", "total_paise", "items_json", "idempotency_key"}

func TestOrderRepo_TransitionStatus(t *testing.T) {
	mock, orders, _, _ := newMock(t)
	mock.ExpectExec(`UPDATE orders`).
		WithArgs("PAID", "o1", "PENDING", "FAILED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE orders`).
		WithArgs("FAILED", "o1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := orders.TransitionStatus(context.Background(), "o1", "PAID", "PENDING", "FAILED")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = orders.TransitionStatus(context.Background(), "o1", "FAILED", "PENDING")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestOrderRepo_TransitionStatusWithoutSources(t *testing.T) {
	_, orders, _, _ := newMock(t)
	changed, err := orders.TransitionStatus(context.Background(), "o1", "PAID")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestOrderRepo_CreateAndGet(t *testing.T) {
	mock, orders, _, _ := newMock(t)
	rec := &usecase.OrderRecord{
		ID: "o1", ParentID: "p1", Status: "PENDING", ShippingMethod: "home", PaymentMethod: "DIRECT",
		DeliveryAddress: "12 Oak St", TotalPaise: 150000, ItemsJSON: "[]",
	}
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs("o1", "p1", "PENDING", "home", "DIRECT", "12 Oak St", false, int64(150000), "[]", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM orders WHERE id=\?`).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow("o1", "p1", "PENDING", "home", "DIRECT", "12 Oak St", false, 150000, "[]", ""))

	require.NoError(t, orders.Create(context.Background(), rec))
	got, err := orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ParentID)
	assert.Equal(t, int64(150000), got.TotalPaise)
}

func TestOrderRepo_CreateDuplicateIdempotencyKey(t *testing.T) {
	mock, orders, _, _ := newMock(t)
	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'p1-k1' for key 'uq_orders_idem'"})

	err := orders.Create(context.Background(), &usecase.OrderRecord{ID: "o2", ParentID: "p1", IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, usecase.ErrDuplicate)
}

func TestOrderRepo_GetMissing(t *testing.T) {
	mock, orders, _, _ := newMock(t)
	mock.ExpectQuery(`FROM orders WHERE id=\?`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := orders.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, usecase.ErrOrderNotFound)
}

func TestOrderRepo_ListByParent(t *testing.T) {
	mock, orders, _, _ := newMock(t)
	mock.ExpectQuery(`FROM orders WHERE parent_id=\?`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow("o2", "p1", "PAID", "school", "DIRECT", "", false, 120000, "[]", "").
			AddRow("o1", "p1", "CANCELLED", "school", "DIRECT", "", false, 120000, "[]", "k1"))

	got, err := orders.ListByParent(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o2", got[0].ID)
	assert.Equal(t, "k1", got[1].IdempotencyKey)
}

func TestPaymentRepo_UpsertAndList(t *testing.T) {
	mock, _, payments, _ := newMock(t)
	mock.ExpectExec(`INSERT INTO order_payments`).
		WithArgs("o1", "PAID", "AC1", "BR1", "2024-06-01T10:00:00Z", "upi", "dt.payment.captured", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM order_payments WHERE order_id=\?`).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "status", "application_code", "bank_reference_id",
			"transaction_timestamp", "payment_group", "event", "error"}).
			AddRow("o1", "PAID", "AC1", "BR1", "2024-06-01T10:00:00Z", "upi", "dt.payment.captured", ""))

	err := payments.Upsert(context.Background(), usecase.PaymentRecord{
		OrderID: "o1", Status: "PAID", ApplicationCode: "AC1", BankReferenceID: "BR1",
		TransactionTimestamp: "2024-06-01T10:00:00Z", PaymentGroup: "upi", Event: "dt.payment.captured",
	})
	require.NoError(t, err)

	got, err := payments.ListByOrder(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AC1", got[0].ApplicationCode)
}

var cartCols = []string{"bundle_id", "quantity", "price", "student_id", "name", "image", "gender",
	"student_name", "class", "house", "address"}

func TestCartRepo_Snapshot(t *testing.T) {
	mock, _, _, carts := newMock(t)
	mock.ExpectQuery(`FROM cart_items ci`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(cartCols).
			AddRow(3, 2, "500.00", 11, "Summer Kit", "kit.png", "Unisex", "Asha", "IV", "Dragons", "12 Oak St"))

	snap, err := carts.Snapshot(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.True(t, decimal.RequireFromString("1000").Equal(snap.Subtotal()))
	assert.Equal(t, "12 Oak St", snap.OnFileAddress())
}

func TestCartRepo_AddBundleRejectsNonPositiveQuantity(t *testing.T) {
	_, _, _, carts := newMock(t)
	_, err := carts.AddBundle(context.Background(), "p1", domain.CartItem{BundleID: 3, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrQuantityPositive)
}

func TestCartRepo_AddRemoveClear(t *testing.T) {
	mock, _, _, carts := newMock(t)
	mock.ExpectExec(`INSERT INTO cart_items`).
		WithArgs("p1", int64(7), int64(11), 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM cart_items ci`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(cartCols).
			AddRow(7, 1, "1200.00", 11, "Winter Kit", "", "Unisex", "Asha", "IV", "Dragons", ""))
	mock.ExpectExec(`DELETE FROM cart_items WHERE parent_id=\? AND bundle_id=\?`).
		WithArgs("p1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM cart_items ci`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(cartCols))
	mock.ExpectExec(`DELETE FROM cart_items WHERE parent_id=\?`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	snap, err := carts.AddBundle(context.Background(), "p1", domain.CartItem{BundleID: 7, StudentID: 11, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalQuantity())

	snap, err = carts.RemoveBundle(context.Background(), "p1", 7)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())

	require.NoError(t, carts.Clear(context.Background(), "p1"))
}
