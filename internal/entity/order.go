package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

type ShippingMethod string

const (
	ShippingSchool ShippingMethod = "school"
	ShippingHome   ShippingMethod = "home"
)

func (m ShippingMethod) Valid() bool {
	return m == ShippingSchool || m == ShippingHome
}

// PaymentMethodDirect is the only method the portal offers.
const PaymentMethodDirect = "DIRECT"

var (
	ErrInvalidShipping = errors.New("shipping method must be school or home")
	ErrAddressRequired = errors.New("address cannot be empty")
)

// PendingOrder is created once per placement and never mutated afterwards.
type PendingOrder struct {
	OrderID         string
	ParentID        string
	ShippingMethod  ShippingMethod
	PaymentMethod   string
	DeliveryAddress string
	IsAddressEdited bool
	Total           decimal.Decimal
	CreatedAt       time.Time
}

// Delivery resolves the address fields of an order. Only home delivery
// carries an address; school pickup always yields ("", false).
func Delivery(method ShippingMethod, address string, cart CartSnapshot) (string, bool, error) {
	if !method.Valid() {
		return "", false, ErrInvalidShipping
	}
	if method == ShippingSchool {
		return "", false, nil
	}
	if strings.TrimSpace(address) == "" {
		return "", false, ErrAddressRequired
	}
	edited := strings.TrimSpace(address) != strings.TrimSpace(cart.OnFileAddress())
	return address, edited, nil
}
