package ndb

import (
	"cmp"
	"math"
	"strings"
	"time"
)

// compareValues orders two field values. nil sorts before everything and
// equals only nil. Integers and floats compare numerically; strings, bools
// (false < true) and times compare within their own family. ok is false
// when the values cannot be ordered: mixed families, or NaN.
func compareValues(a, b any) (c int, ok bool) {
	a, b = normalize(a), normalize(b)
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y), true
		case float64:
			return compareFloats(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return compareFloats(x, y)
		case int64:
			return compareFloats(x, float64(y))
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp.Compare(boolRank(x), boolRank(y)), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

func compareFloats(x, y float64) (int, bool) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	return cmp.Compare(x, y), true
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// normalize maps raw entity values, which are not validated until written,
// onto the canonical types the comparisons understand.
func normalize(v any) any {
	if n, ok := toInt64(v); ok {
		return n
	}
	if f, ok := toFloat64(v); ok {
		return f
	}
	return v
}
