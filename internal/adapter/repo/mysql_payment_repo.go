package repo

import (
	"context"
	"database/sql"

	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
)

// MySQLPaymentRepo keeps one audit row per (order_id, status). Writes are
// upserts so replayed notifications overwrite instead of appending.
type MySQLPaymentRepo struct{ db *sql.DB }

func NewMySQLPaymentRepo(db *sql.DB) *MySQLPaymentRepo { return &MySQLPaymentRepo{db: db} }

func (r *MySQLPaymentRepo) Upsert(ctx context.Context, p usecase.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO order_payments (order_id,status,application_code,bank_reference_id,transaction_timestamp,payment_group,event,error,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,NOW(),NOW())
ON DUPLICATE KEY UPDATE
  application_code = COALESCE(NULLIF(VALUES(application_code),''), application_code),
  bank_reference_id = COALESCE(NULLIF(VALUES(bank_reference_id),''), bank_reference_id),
  transaction_timestamp = COALESCE(NULLIF(VALUES(transaction_timestamp),''), transaction_timestamp),
  payment_group = COALESCE(NULLIF(VALUES(payment_group),''), payment_group),
  event = VALUES(event),
  error = VALUES(error),
  updated_at = NOW()
`, p.OrderID, p.Status, p.ApplicationCode, p.BankReferenceID, p.TransactionTimestamp, p.PaymentGroup, p.Event, p.Error)
	return err
}

func (r *MySQLPaymentRepo) ListByOrder(ctx context.Context, orderID string) ([]usecase.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT order_id,status,application_code,bank_reference_id,transaction_timestamp,payment_group,event,error
FROM order_payments WHERE order_id=? ORDER BY updated_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.PaymentRecord
	for rows.Next() {
		var p usecase.PaymentRecord
		if err := rows.Scan(&p.OrderID, &p.Status, &p.ApplicationCode, &p.BankReferenceID,
			&p.TransactionTimestamp, &p.PaymentGroup, &p.Event, &p.Error); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ usecase.PaymentRepo = (*MySQLPaymentRepo)(nil)
