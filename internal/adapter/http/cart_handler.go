package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	carts   usecase.CartStore
	timeout time.Duration
}

func NewCartHandler(carts usecase.CartStore, timeout time.Duration) *CartHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &CartHandler{carts: carts, timeout: timeout}
}

type addBundleReq struct {
	ParentID  string `json:"parentId" binding:"required"`
	BundleID  int64  `json:"bundleId" binding:"required,gt=0"`
	StudentID int64  `json:"studentId" binding:"required,gt=0"`
	Quantity  int    `json:"quantity" binding:"required,gt=0,lte=50"`
}

type cartResp struct {
	domain.CartSnapshot
	Subtotal      string `json:"subtotal"`
	TotalQuantity int    `json:"totalQuantity"`
}

func toCartResp(s domain.CartSnapshot) cartResp {
	if s.Items == nil {
		s.Items = []domain.CartItem{}
	}
	return cartResp{CartSnapshot: s, Subtotal: s.Subtotal().StringFixed(2), TotalQuantity: s.TotalQuantity()}
}

func (h *CartHandler) AddBundle(c *gin.Context) {
	var req addBundleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(logging.Ctx(c), h.timeout)
	defer cancel()

	snap, err := h.carts.AddBundle(ctx, req.ParentID, domain.CartItem{
		BundleID:  req.BundleID,
		StudentID: req.StudentID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResp(snap))
}

func (h *CartHandler) GetCart(c *gin.Context) {
	ctx, cancel := context.WithTimeout(logging.Ctx(c), h.timeout)
	defer cancel()

	snap, err := h.carts.Snapshot(ctx, c.Param("parentId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResp(snap))
}

func (h *CartHandler) RemoveBundle(c *gin.Context) {
	bundleID, err := strconv.ParseInt(c.Param("bundleId"), 10, 64)
	if err != nil || bundleID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": "invalid bundle id"})
		return
	}
	ctx, cancel := context.WithTimeout(logging.Ctx(c), h.timeout)
	defer cancel()

	snap, err := h.carts.RemoveBundle(ctx, c.Param("parentId"), bundleID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResp(snap))
}
