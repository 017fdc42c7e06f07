package http

import (
	"sync"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the checkout tags to gin's validator engine.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("shipping", func(fl validator.FieldLevel) bool {
			return domain.ShippingMethod(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("eventkind", func(fl validator.FieldLevel) bool {
			return domain.PaymentEventKind(fl.Field().String()).Valid()
		})
	})
}
