package order

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const numberLongKey = "$numberLong"

// ResolveID reads an order id from a decoded JSON value.
// Integers, integral json numbers, numeric strings and the
// {"$numberLong": "..."} wrapper are accepted.
func ResolveID(v any) (int64, error) {
	switch id := v.(type) {
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case int32:
		return int64(id), nil
	case float64:
		if id != math.Trunc(id) || math.IsInf(id, 0) || math.IsNaN(id) {
			return 0, fmt.Errorf("%w: %v", ErrUnresolvableID, id)
		}
		return int64(id), nil
	case json.Number:
		return parseIntString(id.String())
	case string:
		return parseIntString(id)
	case map[string]any:
		if wrapped, ok := id[numberLongKey]; ok {
			return ResolveID(wrapped)
		}
	case Document:
		return ResolveID(map[string]any(id))
	}
	return 0, fmt.Errorf("%w: %v", ErrUnresolvableID, v)
}

func parseIntString(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnresolvableID, s)
	}
	return n, nil
}
