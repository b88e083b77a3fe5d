package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/buffalo/orderpipe/internal/domain/order"
)

// ListOrdersRequest holds the query parameters of the order listing
type ListOrdersRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Filter converts the request into a normalized domain filter
func (r ListOrdersRequest) Filter() order.ListFilter {
	f := order.ListFilter{Page: r.Page, PageSize: r.PageSize}
	f.Normalize()
	return f
}

// OrderIDRequest binds the :id path parameter
type OrderIDRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// OrderResponse is the JSON form of a transformed order.
// Numeric columns are rendered as decimal strings.
type OrderResponse struct {
	OrderID                int64      `json:"order_id"`
	ExpressNumber          *string    `json:"express_number"`
	ThirdNumber            *string    `json:"third_number"`
	PayStatusName          *string    `json:"pay_status_name"`
	TaxPayStatusName       *string    `json:"tax_pay_status_name"`
	StatusName             *string    `json:"status_name"`
	ReceiveAddress         *string    `json:"receive_address"`
	AscertainedWeight      *string    `json:"ascertained_weight"`
	AscertainedVolumWeight *string    `json:"ascertained_volum_weight"`
	AscertainedCost        *string    `json:"ascertained_cost"`
	FinalWeight            *string    `json:"final_weight"`
	CreateTime             *time.Time `json:"create_time"`
	DeclaredNumber         *string    `json:"declared_number"`
	DeclaredValue          *string    `json:"declared_value"`
}

// NewOrderResponse converts a domain order
func NewOrderResponse(o order.TransformedOrder) OrderResponse {
	return OrderResponse{
		OrderID:                o.OrderID,
		ExpressNumber:          o.ExpressNumber,
		ThirdNumber:            o.ThirdNumber,
		PayStatusName:          o.PayStatusName,
		TaxPayStatusName:       o.TaxPayStatusName,
		StatusName:             o.StatusName,
		ReceiveAddress:         o.ReceiveAddress,
		AscertainedWeight:      decimalString(o.AscertainedWeight),
		AscertainedVolumWeight: decimalString(o.AscertainedVolumWeight),
		AscertainedCost:        decimalString(o.AscertainedCost),
		FinalWeight:            decimalString(o.FinalWeight),
		CreateTime:             o.CreateTime,
		DeclaredNumber:         decimalString(o.DeclaredNumber),
		DeclaredValue:          decimalString(o.DeclaredValue),
	}
}

// NewOrderResponses converts a page of domain orders
func NewOrderResponses(orders []order.TransformedOrder) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderResponse(o))
	}
	return out
}

func decimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
