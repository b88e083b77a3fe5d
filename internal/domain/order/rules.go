package order

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column names of orders_transformed
const (
	ColumnOrderID                = "order_id"
	ColumnExpressNumber          = "express_number"
	ColumnThirdNumber            = "third_number"
	ColumnPayStatusName          = "pay_status_name"
	ColumnTaxPayStatusName       = "tax_pay_status_name"
	ColumnStatusName             = "status_name"
	ColumnReceiveAddress         = "receive_address"
	ColumnAscertainedWeight      = "ascertained_weight"
	ColumnAscertainedVolumWeight = "ascertained_volum_weight"
	ColumnAscertainedCost        = "ascertained_cost"
	ColumnFinalWeight            = "final_weight"
	ColumnCreateTime             = "create_time"
	ColumnDeclaredNumber         = "declared_number"
	ColumnDeclaredValue          = "declared_value"
)

// CreateTimeLayout is the layout of the portal's createtimeStr field
const CreateTimeLayout = "2006-01-02 15:04:05"

// createTimeLooseLayout accepts fields without zero padding, e.g. 2025-1-2 3:4:5
const createTimeLooseLayout = "2006-1-2 15:4:5"

// Extractor is one strategy for reading a value out of a document.
// ok is false when the strategy does not apply and the next one should run.
type Extractor func(doc Document) (value any, ok bool)

// FieldRule resolves one column through an ordered list of strategies.
// The first strategy that applies wins; no strategy applying yields nil.
type FieldRule struct {
	Column     string
	Strategies []Extractor
}

// Resolve runs the strategies in order
func (r FieldRule) Resolve(doc Document) any {
	for _, extract := range r.Strategies {
		if v, ok := extract(doc); ok {
			return v
		}
	}
	return nil
}

// Key reads a top-level field. A present null still applies.
func Key(name string) Extractor {
	return func(doc Document) (any, bool) {
		v, ok := doc[name]
		return v, ok
	}
}

// FirstDeclaredItem reads a field of boxList[0].detaillist[0].
// Any missing level means the strategy does not apply.
func FirstDeclaredItem(name string) Extractor {
	return func(doc Document) (any, bool) {
		box, ok := firstElement(doc["boxList"])
		if !ok {
			return nil, false
		}
		item, ok := firstElement(box["detaillist"])
		if !ok {
			return nil, false
		}
		v, ok := item[name]
		return v, ok
	}
}

// Truthy applies only when the wrapped strategy yields a truthy value
func Truthy(e Extractor) Extractor {
	return func(doc Document) (any, bool) {
		v, ok := e(doc)
		if !ok || !IsTruthy(v) {
			return nil, false
		}
		return v, true
	}
}

func firstElement(v any) (map[string]any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	switch m := list[0].(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

// IsTruthy reports whether v is truthy in the loose sense used by the portal's
// declared-value fallback: null, false, zero, empty strings and empty
// collections are falsy.
func IsTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return err != nil || !d.IsZero()
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// AsText renders a scalar as text. Strings pass through, numbers use their
// canonical form, anything else is null.
func AsText(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	return &s
}

// AsDecimal reads a JSON number or numeric string. Anything else is null.
func AsDecimal(v any) decimal.NullDecimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	default:
		return decimal.NullDecimal{}
	}
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// AsTimestamp parses a createtimeStr value as UTC. Absent, empty or
// malformed values are null.
func AsTimestamp(v any) *time.Time {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{CreateTimeLayout, createTimeLooseLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// DefaultRules returns the column rules for orders_transformed
func DefaultRules() []FieldRule {
	return []FieldRule{
		{Column: ColumnExpressNumber, Strategies: []Extractor{Key("expressnumber")}},
		{Column: ColumnThirdNumber, Strategies: []Extractor{Key("thirdnumber")}},
		{Column: ColumnPayStatusName, Strategies: []Extractor{Key("paystatusname")}},
		{Column: ColumnTaxPayStatusName, Strategies: []Extractor{Key("taxpaystatusname")}},
		{Column: ColumnStatusName, Strategies: []Extractor{Key("statusname")}},
		{Column: ColumnReceiveAddress, Strategies: []Extractor{Key("receiveaddress")}},
		{Column: ColumnAscertainedWeight, Strategies: []Extractor{Key("ascertainedweight")}},
		{Column: ColumnAscertainedVolumWeight, Strategies: []Extractor{Key("ascertainedvolumweight")}},
		{Column: ColumnAscertainedCost, Strategies: []Extractor{Key("ascertainedcost")}},
		{Column: ColumnFinalWeight, Strategies: []Extractor{Key("finalweight")}},
		{Column: ColumnCreateTime, Strategies: []Extractor{Key("createtimeStr")}},
		{Column: ColumnDeclaredNumber, Strategies: []Extractor{FirstDeclaredItem("number")}},
		{Column: ColumnDeclaredValue, Strategies: []Extractor{
			Truthy(FirstDeclaredItem("declaredvalue")),
			FirstDeclaredItem("actualdeclaredvalue"),
		}},
	}
}
