package usecase

import (
	"context"
	"errors"
	"testing"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shippingCharge = decimal.NewFromInt(500)

func TestPlaceOrder_EmptyCartNeverCallsBackend(t *testing.T) {
	api := &fakeOrderAPI{}
	uc := NewPlaceOrder(api, shippingCharge)

	_, err := uc.Execute(context.Background(), sessionWith(), PlaceOrderInput{Shipping: domain.ShippingSchool})

	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	created, _, _, _ := api.counts()
	assert.Zero(t, created)
}

func TestPlaceOrder_HomeWithoutAddressRejectedBeforeBackend(t *testing.T) {
	api := &fakeOrderAPI{}
	uc := NewPlaceOrder(api, shippingCharge)

	_, err := uc.Execute(context.Background(), sessionWith(item(3, 1, 500, "")), PlaceOrderInput{
		Shipping: domain.ShippingHome,
		Address:  "   ",
	})

	assert.ErrorIs(t, err, domain.ErrAddressRequired)
	created, _, _, _ := api.counts()
	assert.Zero(t, created)
}

func TestPlaceOrder_UnknownShipping(t *testing.T) {
	uc := NewPlaceOrder(&fakeOrderAPI{}, shippingCharge)
	_, err := uc.Execute(context.Background(), sessionWith(item(3, 1, 500, "")), PlaceOrderInput{Shipping: "drone"})
	assert.ErrorIs(t, err, domain.ErrInvalidShipping)
}

func TestPlaceOrder_SchoolDelivery(t *testing.T) {
	api := &fakeOrderAPI{nextID: "o-A"}
	uc := NewPlaceOrder(api, shippingCharge)
	sess := sessionWith(item(7, 1, 1200, "12 Oak St"))

	order, err := uc.Execute(context.Background(), sess, PlaceOrderInput{Shipping: domain.ShippingSchool, Address: "ignored"})
	require.NoError(t, err)

	require.Len(t, api.created, 1)
	req := api.created[0]
	assert.Equal(t, "", req.DeliveryAddress)
	assert.False(t, req.IsAddressEdited)
	assert.Equal(t, domain.PaymentMethodDirect, req.PaymentMethod)

	assert.Equal(t, "o-A", order.OrderID)
	assert.True(t, decimal.NewFromInt(1200).Equal(order.Total))
	assert.Equal(t, "o-A", sess.OrderID())

	view := sess.View()
	assert.Equal(t, StateAwaitingPayment, view.State)
	require.NotNil(t, view.Widget)
	assert.Equal(t, "o-A", view.Widget.Config.OrderCode)
	assert.Equal(t, "9999999999", view.Widget.CustomerMobile)
}

func TestPlaceOrder_HomeDeliveryOnFileAddress(t *testing.T) {
	api := &fakeOrderAPI{}
	uc := NewPlaceOrder(api, shippingCharge)
	sess := sessionWith(item(3, 2, 500, "12 Oak St"))

	order, err := uc.Execute(context.Background(), sess, PlaceOrderInput{Shipping: domain.ShippingHome, Address: "12 Oak St"})
	require.NoError(t, err)

	req := api.created[0]
	assert.Equal(t, "12 Oak St", req.DeliveryAddress)
	assert.False(t, req.IsAddressEdited)
	assert.True(t, decimal.NewFromInt(1500).Equal(order.Total), order.Total.String())
}

func TestPlaceOrder_HomeDeliveryEditedAddress(t *testing.T) {
	api := &fakeOrderAPI{}
	uc := NewPlaceOrder(api, shippingCharge)

	_, err := uc.Execute(context.Background(), sessionWith(item(3, 2, 500, "12 Oak St")), PlaceOrderInput{
		Shipping: domain.ShippingHome,
		Address:  "4 Elm Rd",
	})
	require.NoError(t, err)
	assert.True(t, api.created[0].IsAddressEdited)
}

func TestPlaceOrder_CreateFailure(t *testing.T) {
	api := &fakeOrderAPI{createErr: errBackend}
	uc := NewPlaceOrder(api, shippingCharge)
	sess := sessionWith(item(7, 1, 1200, ""))

	_, err := uc.Execute(context.Background(), sess, PlaceOrderInput{Shipping: domain.ShippingSchool})

	var creation *OrderCreationError
	require.True(t, errors.As(err, &creation))
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, domain.MsgTryAgainLater, err.Error())
	assert.Equal(t, "", sess.OrderID())
}

func TestPlaceOrder_DuplicatePassesThrough(t *testing.T) {
	uc := NewPlaceOrder(&fakeOrderAPI{createErr: ErrDuplicate}, shippingCharge)
	_, err := uc.Execute(context.Background(), sessionWith(item(7, 1, 1200, "")), PlaceOrderInput{Shipping: domain.ShippingSchool})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPlaceOrder_SessionConfigFailureKeepsOrder(t *testing.T) {
	api := &fakeOrderAPI{configErr: errBackend}
	uc := NewPlaceOrder(api, shippingCharge)
	sess := sessionWith(item(7, 1, 1200, ""))

	order, err := uc.Execute(context.Background(), sess, PlaceOrderInput{Shipping: domain.ShippingSchool})

	var sessErr *PaymentSessionError
	require.True(t, errors.As(err, &sessErr))
	assert.Equal(t, "order-1", sessErr.OrderID)
	assert.Equal(t, "order-1", order.OrderID)

	view := sess.View()
	assert.Nil(t, view.Widget)
	assert.Equal(t, StateCart, view.State)
	require.Len(t, view.Notices, 1)
	assert.Equal(t, domain.MsgTryAgainLater, view.Notices[0].Message)
}

func TestPlaceOrder_SessionBindsOnce(t *testing.T) {
	api := &fakeOrderAPI{}
	uc := NewPlaceOrder(api, shippingCharge)
	sess := sessionWith(item(7, 1, 1200, ""))

	_, err := uc.Execute(context.Background(), sess, PlaceOrderInput{Shipping: domain.ShippingSchool})
	require.NoError(t, err)

	_, err = uc.Execute(context.Background(), sess, PlaceOrderInput{Shipping: domain.ShippingSchool})
	assert.ErrorIs(t, err, ErrSessionBound)
	created, _, _, _ := api.counts()
	assert.Equal(t, 1, created)
}
