package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"openmates/payhub/internal/service"
	"openmates/payhub/pkg/response"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type CreateOrderRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
	Description string `json:"description"`
}

// Create submits a new order to the payment provider and starts watching it.
// The response carries the initial state; clients fetch the order until it
// reaches a terminal state.
func (h *PaymentHandler) Create(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	order, err := h.paymentService.CreateOrder(c.Request.Context(), userID, req.AmountCents, req.Currency, req.Description)
	if err != nil {
		response.InternalError(c, "failed to create payment order")
		return
	}

	response.Success(c, order)
}

func (h *PaymentHandler) Get(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	order, err := h.paymentService.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			response.NotFound(c, "order not found")
		case errors.Is(err, service.ErrOrderNotOwned):
			response.Forbidden(c, "order does not belong to this user")
		default:
			response.InternalError(c, "failed to load order")
		}
		return
	}

	response.Success(c, order)
}

func (h *PaymentHandler) List(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	orders, err := h.paymentService.ListOrders(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "failed to list orders")
		return
	}

	response.Success(c, orders)
}

// Cancel stops observing the order's status. The provider-side order itself
// is not cancelled.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	if err := h.paymentService.CancelPolling(c.Request.Context(), userID, orderID); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			response.NotFound(c, "order not found")
		case errors.Is(err, service.ErrOrderNotOwned):
			response.Forbidden(c, "order does not belong to this user")
		default:
			response.InternalError(c, "failed to cancel polling")
		}
		return
	}

	response.Success(c, nil)
}
