package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buffalo/orderpipe/internal/domain/order"
)

// RawOrderModel maps to orders_raw
type RawOrderModel struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Data string `gorm:"column:data;type:jsonb;not null"`
}

// TableName returns the table name for the model
func (RawOrderModel) TableName() string {
	return "orders_raw"
}

// ToDomain converts the model to a domain RawOrder
func (m *RawOrderModel) ToDomain() order.RawOrder {
	return order.RawOrder{ID: m.ID, Data: json.RawMessage(m.Data)}
}

// RawOrderModelFromDomain creates a model from a domain RawOrder
func RawOrderModelFromDomain(r *order.RawOrder) *RawOrderModel {
	return &RawOrderModel{ID: r.ID, Data: string(r.Data)}
}

// TransformedOrderModel maps to orders_transformed
type TransformedOrderModel struct {
	OrderID                int64               `gorm:"column:order_id;primaryKey;autoIncrement:false"`
	ExpressNumber          *string             `gorm:"column:express_number;type:text"`
	ThirdNumber            *string             `gorm:"column:third_number;type:text"`
	PayStatusName          *string             `gorm:"column:pay_status_name;type:text"`
	TaxPayStatusName       *string             `gorm:"column:tax_pay_status_name;type:text"`
	StatusName             *string             `gorm:"column:status_name;type:text"`
	ReceiveAddress         *string             `gorm:"column:receive_address;type:text"`
	AscertainedWeight      decimal.NullDecimal `gorm:"column:ascertained_weight;type:numeric"`
	AscertainedVolumWeight decimal.NullDecimal `gorm:"column:ascertained_volum_weight;type:numeric"`
	AscertainedCost        decimal.NullDecimal `gorm:"column:ascertained_cost;type:numeric"`
	FinalWeight            decimal.NullDecimal `gorm:"column:final_weight;type:numeric"`
	CreateTime             *time.Time          `gorm:"column:create_time;type:timestamp"`
	DeclaredNumber         decimal.NullDecimal `gorm:"column:declared_number;type:numeric"`
	DeclaredValue          decimal.NullDecimal `gorm:"column:declared_value;type:numeric"`
}

// TableName returns the table name for the model
func (TransformedOrderModel) TableName() string {
	return "orders_transformed"
}

// ToDomain converts the model to a domain TransformedOrder
func (m *TransformedOrderModel) ToDomain() order.TransformedOrder {
	o := order.TransformedOrder{
		OrderID:                m.OrderID,
		ExpressNumber:          m.ExpressNumber,
		ThirdNumber:            m.ThirdNumber,
		PayStatusName:          m.PayStatusName,
		TaxPayStatusName:       m.TaxPayStatusName,
		StatusName:             m.StatusName,
		ReceiveAddress:         m.ReceiveAddress,
		AscertainedWeight:      m.AscertainedWeight,
		AscertainedVolumWeight: m.AscertainedVolumWeight,
		AscertainedCost:        m.AscertainedCost,
		FinalWeight:            m.FinalWeight,
		DeclaredNumber:         m.DeclaredNumber,
		DeclaredValue:          m.DeclaredValue,
	}
	if m.CreateTime != nil {
		// The column is timezone-naive; values are written as UTC.
		t := time.Date(m.CreateTime.Year(), m.CreateTime.Month(), m.CreateTime.Day(),
			m.CreateTime.Hour(), m.CreateTime.Minute(), m.CreateTime.Second(),
			m.CreateTime.Nanosecond(), time.UTC)
		o.CreateTime = &t
	}
	return o
}

// TransformedOrderModelFromDomain creates a model from a domain TransformedOrder
func TransformedOrderModelFromDomain(o *order.TransformedOrder) *TransformedOrderModel {
	m := &TransformedOrderModel{
		OrderID:                o.OrderID,
		ExpressNumber:          o.ExpressNumber,
		ThirdNumber:            o.ThirdNumber,
		PayStatusName:          o.PayStatusName,
		TaxPayStatusName:       o.TaxPayStatusName,
		StatusName:             o.StatusName,
		ReceiveAddress:         o.ReceiveAddress,
		AscertainedWeight:      o.AscertainedWeight,
		AscertainedVolumWeight: o.AscertainedVolumWeight,
		AscertainedCost:        o.AscertainedCost,
		FinalWeight:            o.FinalWeight,
		DeclaredNumber:         o.DeclaredNumber,
		DeclaredValue:          o.DeclaredValue,
	}
	if o.CreateTime != nil {
		t := o.CreateTime.UTC()
		m.CreateTime = &t
	}
	return m
}
