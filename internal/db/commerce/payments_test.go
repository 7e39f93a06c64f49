package commercedb

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"liveshop/internal/orders"
	"liveshop/internal/payments"
)

func testPayment() payments.Payment {
	return payments.Payment{
		ID:            "payment-1",
		UserID:        "user-1",
		OrderID:       "order-1",
		Amount:        15000,
		OrderQuantity: 3,
		Method:        payments.MethodKakaoPay,
		TID:           "T1234567890",
		Status:        payments.StatusRequested,
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreatePayment_RejectsDuplicateTID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	p := testPayment()

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(p.ID, p.UserID, p.OrderID, p.Amount, p.OrderQuantity, "KAKAO_PAY", p.TID, "REQUESTED", "", "", p.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(p.ID, p.UserID, p.OrderID, p.Amount, p.OrderQuantity, "KAKAO_PAY", p.TID, "REQUESTED", "", "", p.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	store := NewStore(db)

	if err := store.CreatePayment(context.Background(), p); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.CreatePayment(context.Background(), p)
	if !errors.Is(err, payments.ErrDuplicateTransactionID) {
		t.Fatalf("expected ErrDuplicateTransactionID, got %v", err)
	}
}

func TestCompleteOrderWithPayment_UpdatesBothInOneTx(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	approvedAt := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status =").
		WithArgs("payment-1", "COMPLETED", approvedAt, "REQUESTED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET status =").
		WithArgs("order-1", "COMPLETED", "READY").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	store := NewStore(db)
	if err := store.CompleteOrderWithPayment(context.Background(), "order-1", "payment-1", approvedAt); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestCompleteOrderWithPayment_SecondCallIsRejected(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	approvedAt := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	// The payment already moved off REQUESTED: nothing commits, the order
	// row is untouched.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status =").
		WithArgs("payment-1", "COMPLETED", approvedAt, "REQUESTED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectClose()

	store := NewStore(db)
	err := store.CompleteOrderWithPayment(context.Background(), "order-1", "payment-1", approvedAt)
	if !errors.Is(err, payments.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestCompleteOrderWithPayment_OrderLeftReadyRollsBackPayment(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	approvedAt := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status =").
		WithArgs("payment-1", "COMPLETED", approvedAt, "REQUESTED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET status =").
		WithArgs("order-1", "COMPLETED", "READY").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectClose()

	store := NewStore(db)
	err := store.CompleteOrderWithPayment(context.Background(), "order-1", "payment-1", approvedAt)
	if !errors.Is(err, orders.ErrOrderNotReady) {
		t.Fatalf("expected ErrOrderNotReady, got %v", err)
	}
}

func TestFailPayment_NeverDemotesCompleted(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("UPDATE payments SET status =").
		WithArgs("payment-1", "FAILED", "COMPLETED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	store := NewStore(db)
	err := store.FailPayment(context.Background(), "payment-1")
	if !errors.Is(err, payments.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestPaymentByTID_MapsMissingRow(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery("SELECT id, user_id, order_id, amount").
		WithArgs("T-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectClose()

	store := NewStore(db)
	_, err := store.PaymentByTID(context.Background(), "T-missing")
	if !errors.Is(err, payments.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestPaymentByOrderID_ScansRow(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	p := testPayment()
	mock.ExpectQuery("SELECT id, user_id, order_id, amount").
		WithArgs(p.OrderID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "order_id", "amount", "order_quantity", "method",
			"tid", "status", "shipping_address", "delivery_request", "created_at",
			"approved_at",
		}).AddRow(p.ID, p.UserID, p.OrderID, p.Amount, p.OrderQuantity, "KAKAO_PAY",
			p.TID, "REQUESTED", "", "", p.CreatedAt, nil))
	mock.ExpectClose()

	store := NewStore(db)
	got, err := store.PaymentByOrderID(context.Background(), p.OrderID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.TID != p.TID || got.Method != payments.MethodKakaoPay || got.Status != payments.StatusRequested {
		t.Fatalf("unexpected payment: %+v", got)
	}
	// A payment that was never approved scans with a zero timestamp.
	if !got.ApprovedAt.IsZero() {
		t.Fatalf("expected zero approved_at, got %v", got.ApprovedAt)
	}
}

func TestPaymentByTID_ScansApprovedAt(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	p := testPayment()
	approvedAt := p.CreatedAt.Add(30 * time.Second)
	mock.ExpectQuery("SELECT id, user_id, order_id, amount").
		WithArgs(p.TID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "order_id", "amount", "order_quantity", "method",
			"tid", "status", "shipping_address", "delivery_request", "created_at",
			"approved_at",
		}).AddRow(p.ID, p.UserID, p.OrderID, p.Amount, p.OrderQuantity, "KAKAO_PAY",
			p.TID, "COMPLETED", "", "", p.CreatedAt, approvedAt))
	mock.ExpectClose()

	store := NewStore(db)
	got, err := store.PaymentByTID(context.Background(), p.TID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Status != payments.StatusCompleted {
		t.Fatalf("unexpected status: %v", got.Status)
	}
	if !got.ApprovedAt.Equal(approvedAt) {
		t.Fatalf("approved_at = %v, want %v", got.ApprovedAt, approvedAt)
	}
}
