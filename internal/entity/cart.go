package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart        = errors.New("your cart is empty")
	ErrQuantityPositive = errors.New("quantity must be positive")
)

type BundleMeta struct {
	Name   string `json:"name"`
	Image  string `json:"image"`
	Gender string `json:"gender"`
}

type StudentMeta struct {
	Name    string `json:"studentName"`
	Class   string `json:"class"`
	House   string `json:"house"`
	Address string `json:"address"`
}

type CartItem struct {
	BundleID  int64           `json:"bundleId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	StudentID int64           `json:"studentId"`
	Bundle    BundleMeta      `json:"bundle"`
	Student   StudentMeta     `json:"student"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type CartSnapshot struct {
	ParentID string     `json:"parentId"`
	Items    []CartItem `json:"items"`
}

func (c CartSnapshot) IsEmpty() bool { return len(c.Items) == 0 }

func (c CartSnapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c CartSnapshot) TotalQuantity() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// GrandTotal adds the flat shipping charge for home delivery.
func (c CartSnapshot) GrandTotal(method ShippingMethod, shippingCharge decimal.Decimal) decimal.Decimal {
	if method == ShippingHome {
		return c.Subtotal().Add(shippingCharge)
	}
	return c.Subtotal()
}

// OnFileAddress is the address of the student on the first cart line.
func (c CartSnapshot) OnFileAddress() string {
	if len(c.Items) == 0 {
		return ""
	}
	return c.Items[0].Student.Address
}

// Clone returns a copy whose Items slice does not alias c.
func (c CartSnapshot) Clone() CartSnapshot {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return CartSnapshot{ParentID: c.ParentID, Items: items}
}
