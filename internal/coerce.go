package internal

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
)

var decimalStringPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// CoerceMeasure converts a driver-produced value to a native number when the
// projected column is a measure. Dimensions are never passed through here,
// so driver types for labels, dates and booleans stay untouched.
//
// Accepted inputs: native numerics, numeric strings (including scientific
// notation), big integers, and arbitrary-precision decimal wrappers exposing
// a plain-decimal String(). NULL is preserved.
func CoerceMeasure(v any) (any, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return float64(1), nil
		}
		return float64(0), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	case big.Int:
		f, _ := new(big.Float).SetInt(&n).Float64()
		return f, nil
	case []byte:
		return parseNumericString(string(n))
	case string:
		return parseNumericString(n)
	}

	// Decimal wrappers (pgtype.Numeric and friends) stringify to a plain
	// decimal; probe that before giving up.
	if s, ok := v.(fmt.Stringer); ok {
		if str := s.String(); decimalStringPattern.MatchString(str) {
			return parseNumericString(str)
		}
	}
	return nil, fmt.Errorf("cannot coerce %T to a number", v)
}

func parseNumericString(s string) (any, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot coerce %q to a number: %w", s, err)
	}
	return f, nil
}
