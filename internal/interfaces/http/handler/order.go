package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/buffalo/orderpipe/internal/domain/order"
	"github.com/buffalo/orderpipe/internal/interfaces/http/dto"
)

// OrderHandler serves transformed orders for downstream queries
type OrderHandler struct {
	BaseHandler
	orders order.TransformedOrderRepository
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders order.TransformedOrderRepository) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// ListOrders returns a page of transformed orders ordered by id
//
//	@Summary	List transformed orders
//	@Tags		orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		page		query		int	false	"Page number"	minimum(1)
//	@Param		page_size	query		int	false	"Page size"		minimum(1)	maximum(100)
//	@Success	200			{object}	dto.Response{data=[]dto.OrderResponse,meta=dto.Meta}
//	@Failure	400			{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure	401			{object}	dto.Response{error=dto.ErrorInfo}
//	@Router		/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	filter := req.Filter()
	orders, total, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.InternalError(c, "failed to list orders")
		return
	}
	h.SuccessWithMeta(c, dto.NewOrderResponses(orders), total, filter.Page, filter.PageSize)
}

// GetOrder returns one transformed order
//
//	@Summary	Get a transformed order
//	@Tags		orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Order ID"
//	@Success	200	{object}	dto.Response{data=dto.OrderResponse}
//	@Failure	400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure	404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router		/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	var req dto.OrderIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BindError(c, err)
		return
	}

	o, err := h.orders.FindByID(c.Request.Context(), req.ID)
	if errors.Is(err, order.ErrOrderNotFound) {
		h.NotFound(c, "order not found")
		return
	}
	if err != nil {
		h.InternalError(c, "failed to load order")
		return
	}
	h.Success(c, dto.NewOrderResponse(*o))
}
