package ndb

import (
	"encoding/json"
	"math"
	"time"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// timeNow is the clock used for auto-populated timestamps.
var timeNow = time.Now

// valueCodec is the per-type half of a Property: it decides which Go values
// are accepted and how they are written to and read from a payload.
type valueCodec interface {
	valueType() string
	// coerce returns v in its canonical Go type, or false when v has the
	// wrong type for this property.
	coerce(v any) (any, bool)
	// prepare applies write-time substitution before defaulting.
	prepare(v any) any
	// portable converts a non-nil canonical value to its JSON form.
	portable(v any) any
	decode(raw json.RawMessage) (any, error)
}

type stringCodec struct{}

func (stringCodec) valueType() string { return types.ValueTypeString }

func (stringCodec) coerce(v any) (any, bool) {
	s, ok := v.(string)
	return s, ok
}

func (stringCodec) prepare(v any) any  { return v }
func (stringCodec) portable(v any) any { return v }

func (stringCodec) decode(raw json.RawMessage) (any, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return nil, err
	}
	return *s, nil
}

type integerCodec struct{}

func (integerCodec) valueType() string { return types.ValueTypeInteger }

func (integerCodec) coerce(v any) (any, bool) {
	return toInt64(v)
}

func (integerCodec) prepare(v any) any  { return v }
func (integerCodec) portable(v any) any { return v }

func (integerCodec) decode(raw json.RawMessage) (any, error) {
	var n *int64
	if err := json.Unmarshal(raw, &n); err != nil || n == nil {
		return nil, err
	}
	return *n, nil
}

type booleanCodec struct{}

func (booleanCodec) valueType() string { return types.ValueTypeBoolean }

func (booleanCodec) coerce(v any) (any, bool) {
	b, ok := v.(bool)
	return b, ok
}

func (booleanCodec) prepare(v any) any  { return v }
func (booleanCodec) portable(v any) any { return v }

func (booleanCodec) decode(raw json.RawMessage) (any, error) {
	var b *bool
	if err := json.Unmarshal(raw, &b); err != nil || b == nil {
		return nil, err
	}
	return *b, nil
}

type floatCodec struct{}

func (floatCodec) valueType() string { return types.ValueTypeFloat }

func (floatCodec) coerce(v any) (any, bool) {
	return toFloat64(v)
}

func (floatCodec) prepare(v any) any  { return v }
func (floatCodec) portable(v any) any { return v }

func (floatCodec) decode(raw json.RawMessage) (any, error) {
	var f *float64
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil, err
	}
	return *f, nil
}

// timestampCodec stores time.Time as float seconds since the Unix epoch in
// UTC with microsecond precision. autoNow wins over autoNowAdd.
type timestampCodec struct {
	autoNowAdd bool
	autoNow    bool
}

func (timestampCodec) valueType() string { return types.ValueTypeTimestamp }

// coerce keeps only what is stored: the instant in UTC, to the microsecond.
func (timestampCodec) coerce(v any) (any, bool) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, false
	}
	return t.UTC().Truncate(time.Microsecond), true
}

func (c timestampCodec) prepare(v any) any {
	if c.autoNow || (c.autoNowAdd && v == nil) {
		return timeNow().UTC().Truncate(time.Microsecond)
	}
	return v
}

func (timestampCodec) portable(v any) any {
	t := v.(time.Time)
	return float64(t.Unix()) + float64(t.Nanosecond()/1000)/1e6
}

func (timestampCodec) decode(raw json.RawMessage) (any, error) {
	var f *float64
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil, err
	}
	return secondsToTime(*f), nil
}

func secondsToTime(f float64) time.Time {
	sec := math.Floor(f)
	usec := math.Round((f - sec) * 1e6)
	if usec >= 1e6 {
		sec++
		usec -= 1e6
	}
	return time.Unix(int64(sec), int64(usec)*int64(time.Microsecond)).UTC()
}

func toInt64(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt64(n)
	}
	return nil, false
}

func uintToInt64(n uint64) (any, bool) {
	if n > math.MaxInt64 {
		return nil, false
	}
	return int64(n), true
}

func toFloat64(v any) (any, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	return nil, false
}
