package repo

import (
	"context"
	"database/sql"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
)

type MySQLCartRepo struct{ db *sql.DB }

func NewMySQLCartRepo(db *sql.DB) *MySQLCartRepo { return &MySQLCartRepo{db: db} }

func (r *MySQLCartRepo) Snapshot(ctx context.Context, parentID string) (domain.CartSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT ci.bundle_id, ci.quantity, b.price, ci.student_id,
       b.name, b.image, b.gender,
       s.student_name, s.class, s.house, s.address
FROM cart_items ci
JOIN bundles b ON b.id = ci.bundle_id
JOIN students s ON s.id = ci.student_id
WHERE ci.parent_id = ?
ORDER BY ci.id`, parentID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	defer rows.Close()

	snap := domain.CartSnapshot{ParentID: parentID}
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.BundleID, &it.Quantity, &it.UnitPrice, &it.StudentID,
			&it.Bundle.Name, &it.Bundle.Image, &it.Bundle.Gender,
			&it.Student.Name, &it.Student.Class, &it.Student.House, &it.Student.Address); err != nil {
			return domain.CartSnapshot{}, err
		}
		snap.Items = append(snap.Items, it)
	}
	return snap, rows.Err()
}

func (r *MySQLCartRepo) AddBundle(ctx context.Context, parentID string, item domain.CartItem) (domain.CartSnapshot, error) {
	if item.Quantity <= 0 {
		return domain.CartSnapshot{}, domain.ErrQuantityPositive
	}
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO cart_items (parent_id,bundle_id,student_id,quantity,created_at)
VALUES (?,?,?,?,NOW())
ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		parentID, item.BundleID, item.StudentID, item.Quantity); err != nil {
		return domain.CartSnapshot{}, err
	}
	return r.Snapshot(ctx, parentID)
}

func (r *MySQLCartRepo) RemoveBundle(ctx context.Context, parentID string, bundleID int64) (domain.CartSnapshot, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE parent_id=? AND bundle_id=?`, parentID, bundleID); err != nil {
		return domain.CartSnapshot{}, err
	}
	return r.Snapshot(ctx, parentID)
}

func (r *MySQLCartRepo) Clear(ctx context.Context, parentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE parent_id=?`, parentID)
	return err
}

var _ usecase.CartStore = (*MySQLCartRepo)(nil)
