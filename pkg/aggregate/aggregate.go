// Package aggregate reduces a field of a record set to a single number.
package aggregate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/hdsoft/unisearch/pkg/payload"
)

type Kind string

const (
	None    Kind = "none"
	Count   Kind = "count"
	Sum     Kind = "sum"
	Average Kind = "average"
	Min     Kind = "min"
	Max     Kind = "max"
)

// Kinds is the full catalog in display order.
var Kinds = []Kind{None, Count, Sum, Average, Min, Max}

// NumericOnly reports whether k needs a numeric measure.
func (k Kind) NumericOnly() bool {
	switch k {
	case Sum, Average, Min, Max:
		return true
	}
	return false
}

// ParseKind maps a name to a Kind. Unknown names report false.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none":
		return None, true
	case "count":
		return Count, true
	case "sum":
		return Sum, true
	case "average", "avg":
		return Average, true
	case "min":
		return Min, true
	case "max":
		return Max, true
	}
	return Count, false
}

// Aggregate reduces field over records. An empty set yields 0 for every
// kind and an unknown kind behaves as count.
func Aggregate(records []payload.Record, field string, kind Kind) float64 {
	if len(records) == 0 {
		return 0
	}

	switch kind {
	case Count:
		return float64(len(records))
	case None:
		v, _ := ToNumber(records[0].Value(field))
		return v
	case Sum, Average, Min, Max:
	default:
		return float64(len(records))
	}

	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := ToNumber(r.Value(field)); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0
	}

	switch kind {
	case Sum:
		return sum(values)
	case Average:
		return sum(values) / float64(len(values))
	case Min:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Min(m, v)
		}
		return m
	default:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Max(m, v)
		}
		return m
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// ToNumber coerces a field value. Numbers pass through, arrays use their
// first element and strings are parsed from their leading number, so
// "12.5kg" is 12.5. Anything else fails.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		return parseLeading(t.String())
	case string:
		return parseLeading(t)
	case []any:
		if len(t) == 0 {
			return 0, false
		}
		return ToNumber(t[0])
	case []float64:
		if len(t) == 0 {
			return 0, false
		}
		return finite(t[0])
	case []int:
		if len(t) == 0 {
			return 0, false
		}
		return float64(t[0]), true
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseLeading parses the longest numeric prefix of s after leading space.
func parseLeading(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	seenDigit, seenDot, seenExp := false, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
			end = i + 1
		case (c == '+' || c == '-') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			i = len(s)
		}
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}
