package http

import (
	"errors"
	"net/http"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	"github.com/gin-gonic/gin"
)

// statusOf maps use case errors onto HTTP status codes.
func statusOf(err error) int {
	var creation *usecase.OrderCreationError
	var session *usecase.PaymentSessionError
	switch {
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrQuantityPositive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidShipping),
		errors.Is(err, domain.ErrAddressRequired):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrDuplicate),
		errors.Is(err, usecase.ErrSessionBound),
		errors.Is(err, usecase.ErrAlreadySubscribed):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrOrderNotFound),
		errors.Is(err, usecase.ErrNoSubscriber):
		return http.StatusNotFound
	case errors.As(err, &creation), errors.As(err, &session):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = domain.MsgTryAgainLater
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": err.Error()})
}
