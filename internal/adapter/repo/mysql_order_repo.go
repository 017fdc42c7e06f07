package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) TransitionStatus(ctx context.Context, id, toStatus string, from ...string) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := make([]any, 0, len(from)+2)
	args = append(args, toStatus, id)
	for _, f := range from {
		args = append(args, f)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")

	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET status = ?, updated_at = NOW()
        WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	// rows == 0 → nothing matched (either not found or status mismatch)
	return rows > 0, nil
}

func (r *MySQLOrderRepo) Create(ctx context.Context, o *usecase.OrderRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (id,parent_id,status,shipping_method,payment_method,delivery_address,is_address_edited,total_paise,items_json,idempotency_key,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,0,NOW(),NOW())
`, o.ID, o.ParentID, o.Status, o.ShippingMethod, o.PaymentMethod, o.DeliveryAddress, o.IsAddressEdited, o.TotalPaise, o.ItemsJSON, nullable(o.IdempotencyKey))
	if isDuplicateKey(err) {
		// uq_orders_idem: the same parent retried with a key whose lock expired.
		return fmt.Errorf("%w: %v", usecase.ErrDuplicate, err)
	}
	return err
}

const errDupEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

const orderColumns = `id,parent_id,status,shipping_method,payment_method,delivery_address,is_address_edited,total_paise,items_json,COALESCE(idempotency_key,'')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (usecase.OrderRecord, error) {
	var rec usecase.OrderRecord
	err := row.Scan(&rec.ID, &rec.ParentID, &rec.Status, &rec.ShippingMethod, &rec.PaymentMethod,
		&rec.DeliveryAddress, &rec.IsAddressEdited, &rec.TotalPaise, &rec.ItemsJSON, &rec.IdempotencyKey)
	return rec, err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*usecase.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id)
	rec, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *MySQLOrderRepo) ListByParent(ctx context.Context, parentID string) ([]usecase.OrderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE parent_id=? ORDER BY created_at DESC`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
