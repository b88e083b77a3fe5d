package order

import (
	"fmt"
)

// DroppedRecord is a raw row the flattener could not project
type DroppedRecord struct {
	RawID int64
	Err   error
}

// FlattenResult is the outcome of flattening one batch
type FlattenResult struct {
	Orders  []TransformedOrder
	Dropped []DroppedRecord
}

// Flattener maps raw documents to transformed orders. It holds no state
// beyond its rules and is safe for concurrent use.
type Flattener struct {
	rules []FieldRule
}

// NewFlattener creates a Flattener. With no rules, DefaultRules is used.
func NewFlattener(rules ...FieldRule) *Flattener {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Flattener{rules: rules}
}

// Flatten projects a single document. The order id comes from its _id field.
func (f *Flattener) Flatten(doc Document) (TransformedOrder, error) {
	id, err := ResolveID(doc[IDField])
	if err != nil {
		return TransformedOrder{}, err
	}
	return f.project(id, doc), nil
}

// FlattenRaw decodes and projects one stored row. The row id is the order id.
// A resolvable _id that disagrees with the row is rejected; an absent or
// unresolvable _id is ignored.
func (f *Flattener) FlattenRaw(raw RawOrder) (TransformedOrder, error) {
	doc, err := raw.Document()
	if err != nil {
		return TransformedOrder{}, err
	}
	if docID, err := ResolveID(doc[IDField]); err == nil && docID != raw.ID {
		return TransformedOrder{}, fmt.Errorf("%w: row %d, document %d", ErrIDMismatch, raw.ID, docID)
	}
	return f.project(raw.ID, doc), nil
}

func (f *Flattener) project(id int64, doc Document) TransformedOrder {
	out := TransformedOrder{OrderID: id}
	for _, rule := range f.rules {
		assign(&out, rule.Column, rule.Resolve(doc))
	}
	return out
}

// FlattenBatch projects every row it can. Rows that fail are reported in
// Dropped and never abort the batch.
func (f *Flattener) FlattenBatch(raws []RawOrder) FlattenResult {
	result := FlattenResult{Orders: make([]TransformedOrder, 0, len(raws))}
	for _, raw := range raws {
		out, err := f.FlattenRaw(raw)
		if err != nil {
			result.Dropped = append(result.Dropped, DroppedRecord{RawID: raw.ID, Err: err})
			continue
		}
		result.Orders = append(result.Orders, out)
	}
	return result
}

func assign(o *TransformedOrder, column string, v any) {
	switch column {
	case ColumnExpressNumber:
		o.ExpressNumber = AsText(v)
	case ColumnThirdNumber:
		o.ThirdNumber = AsText(v)
	case ColumnPayStatusName:
		o.PayStatusName = AsText(v)
	case ColumnTaxPayStatusName:
		o.TaxPayStatusName = AsText(v)
	case ColumnStatusName:
		o.StatusName = AsText(v)
	case ColumnReceiveAddress:
		o.ReceiveAddress = AsText(v)
	case ColumnAscertainedWeight:
		o.AscertainedWeight = AsDecimal(v)
	case ColumnAscertainedVolumWeight:
		o.AscertainedVolumWeight = AsDecimal(v)
	case ColumnAscertainedCost:
		o.AscertainedCost = AsDecimal(v)
	case ColumnFinalWeight:
		o.FinalWeight = AsDecimal(v)
	case ColumnCreateTime:
		o.CreateTime = AsTimestamp(v)
	case ColumnDeclaredNumber:
		o.DeclaredNumber = AsDecimal(v)
	case ColumnDeclaredValue:
		o.DeclaredValue = AsDecimal(v)
	}
}
