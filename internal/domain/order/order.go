package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IDField is the key injected into every stored detail document
const IDField = "_id"

// Document is a decoded portal JSON object. Numbers are kept as json.Number.
type Document map[string]any

// DecodeDocument parses data as a JSON object, preserving number precision
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil, ErrInvalidDocument
	}
	return doc, nil
}

// RawOrder is one verbatim detail document as stored in orders_raw.
// It is written once and never updated.
type RawOrder struct {
	ID   int64
	Data json.RawMessage
}

// NewRawOrder tags doc with its order id and serialises it
func NewRawOrder(id int64, doc Document) (*RawOrder, error) {
	if doc == nil {
		return nil, ErrInvalidDocument
	}
	doc[IDField] = id

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode order %d: %w", id, err)
	}
	return &RawOrder{ID: id, Data: data}, nil
}

// Document decodes the stored JSON
func (r RawOrder) Document() (Document, error) {
	return DecodeDocument(r.Data)
}

// TransformedOrder is the flattened projection of a RawOrder.
// OrderID always equals the source RawOrder.ID.
type TransformedOrder struct {
	OrderID                int64
	ExpressNumber          *string
	ThirdNumber            *string
	PayStatusName          *string
	TaxPayStatusName       *string
	StatusName             *string
	ReceiveAddress         *string
	AscertainedWeight      decimal.NullDecimal
	AscertainedVolumWeight decimal.NullDecimal
	AscertainedCost        decimal.NullDecimal
	FinalWeight            decimal.NullDecimal
	CreateTime             *time.Time
	DeclaredNumber         decimal.NullDecimal
	DeclaredValue          decimal.NullDecimal
}

// ListFilter selects a page of transformed orders, ordered by order id
type ListFilter struct {
	Page     int
	PageSize int
}

// Normalize clamps the filter to usable values
func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// Offset returns the row offset of the page
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
