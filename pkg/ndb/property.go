package ndb

import (
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Property describes one named field of a Model: its value type, default,
// whether it is required, the allowed choices and an optional validator.
// A Property is declared once and shared by every entity of its Model.
type Property struct {
	name      string
	codec     valueCodec
	def       any
	required  bool
	choices   []any
	validator func(any) error

	// kind is set on placeholders returned by Model.Field for names the
	// model does not declare; such properties have no codec.
	kind string
}

// PropertyOption configures a Property at declaration time.
type PropertyOption func(*propertyOptions)

type propertyOptions struct {
	def        any
	required   bool
	choices    []any
	validator  func(any) error
	autoNowAdd bool
	autoNow    bool
}

// Default sets the value substituted when a field is unset.
func Default(v any) PropertyOption {
	return func(o *propertyOptions) { o.def = v }
}

// Required makes validation fail when a field is unset and has no default.
func Required() PropertyOption {
	return func(o *propertyOptions) { o.required = true }
}

// Choices restricts the property to the given values.
func Choices(values ...any) PropertyOption {
	return func(o *propertyOptions) { o.choices = append([]any{}, values...) }
}

// Validator adds a custom check run after the built-in ones. A non-nil
// error rejects the value. The validator also sees nil for unset fields.
func Validator(fn func(value any) error) PropertyOption {
	return func(o *propertyOptions) { o.validator = fn }
}

// AutoNowAdd stamps a Timestamp property with the current time when it is
// written while unset. Other property types ignore it.
func AutoNowAdd() PropertyOption {
	return func(o *propertyOptions) { o.autoNowAdd = true }
}

// AutoNow stamps a Timestamp property with the current time on every
// write. Other property types ignore it.
func AutoNow() PropertyOption {
	return func(o *propertyOptions) { o.autoNow = true }
}

// String declares a string property.
func String(name string, opts ...PropertyOption) *Property {
	return newProperty(name, stringCodec{}, opts)
}

// Integer declares an integer property. Any Go integer is accepted and
// stored as int64.
func Integer(name string, opts ...PropertyOption) *Property {
	return newProperty(name, integerCodec{}, opts)
}

// Boolean declares a bool property.
func Boolean(name string, opts ...PropertyOption) *Property {
	return newProperty(name, booleanCodec{}, opts)
}

// Float declares a float64 property. Integers are rejected.
func Float(name string, opts ...PropertyOption) *Property {
	return newProperty(name, floatCodec{}, opts)
}

// Timestamp declares a time.Time property. See AutoNowAdd and AutoNow.
func Timestamp(name string, opts ...PropertyOption) *Property {
	var o propertyOptions
	for _, opt := range opts {
		opt(&o)
	}
	return newProperty(name, timestampCodec{autoNowAdd: o.autoNowAdd, autoNow: o.autoNow}, opts)
}

// newProperty panics on declarations that can never validate: an empty
// name, or a default or choice of the wrong type.
func newProperty(name string, codec valueCodec, opts []PropertyOption) *Property {
	if name == "" {
		panic("ndb: property name must not be empty")
	}
	if !types.IsValidValueType(codec.valueType()) {
		panic(fmt.Sprintf("ndb: property %q has unknown value type %q", name, codec.valueType()))
	}
	var o propertyOptions
	for _, opt := range opts {
		opt(&o)
	}
	p := &Property{
		name:      name,
		codec:     codec,
		required:  o.required,
		validator: o.validator,
	}
	if o.def != nil {
		v, ok := codec.coerce(o.def)
		if !ok {
			panic(fmt.Sprintf("ndb: default %v (%T) of property %q is not a %s", o.def, o.def, name, codec.valueType()))
		}
		p.def = v
	}
	if o.choices != nil {
		p.choices = make([]any, 0, len(o.choices))
		for _, c := range o.choices {
			if c != nil {
				v, ok := codec.coerce(c)
				if !ok {
					panic(fmt.Sprintf("ndb: choice %v (%T) of property %q is not a %s", c, c, name, codec.valueType()))
				}
				c = v
			}
			p.choices = append(p.choices, c)
		}
	}
	return p
}

// Name returns the field name.
func (p *Property) Name() string { return p.name }

// Type returns one of the types.ValueType constants, or "" for a
// placeholder of an undeclared field.
func (p *Property) Type() string {
	if p.codec == nil {
		return ""
	}
	return p.codec.valueType()
}

// IsRequired reports whether the property was declared Required.
func (p *Property) IsRequired() bool { return p.required }

// DefaultValue returns the declared default, or nil.
func (p *Property) DefaultValue() any { return p.def }

// Validate checks value against the declaration and returns it, replaced
// by the default when value is nil. Checks run in order: defaulting,
// required, type, choices, validator.
func (p *Property) Validate(value any) (any, error) {
	if p.codec == nil {
		return nil, types.NewUnknownPropertyError(p.kind, p.name)
	}
	if value == nil && p.def != nil {
		value = p.def
	}
	if value == nil {
		if p.required {
			return nil, types.NewValidationError(p.name, nil, "missing value for required property")
		}
	} else {
		v, ok := p.codec.coerce(value)
		if !ok {
			return nil, types.NewValidationError(p.name, value,
				fmt.Sprintf("expected %s value, got %T", p.codec.valueType(), value))
		}
		value = v
	}
	if p.choices != nil && !p.isChoice(value) {
		return nil, types.NewValidationError(p.name, value, fmt.Sprintf("value %v is not one of %v", value, p.choices))
	}
	if p.validator != nil {
		if err := p.validator(value); err != nil {
			return nil, &types.ValidationError{Property: p.name, Value: value, Reason: "rejected by validator", Err: err}
		}
	}
	return value, nil
}

func (p *Property) isChoice(value any) bool {
	for _, c := range p.choices {
		if cmp, ok := compareValues(value, c); ok && cmp == 0 {
			return true
		}
	}
	return false
}

// resolve applies write-time substitution and defaulting to a validated
// value, giving the value that is actually stored.
func (p *Property) resolve(value any) any {
	value = p.codec.prepare(value)
	if value == nil {
		value = p.def
	}
	return value
}

// autoPopulates reports whether writes may replace the field value.
func (p *Property) autoPopulates() bool {
	tc, ok := p.codec.(timestampCodec)
	return ok && (tc.autoNow || tc.autoNowAdd)
}

// Encode converts value to its payload form. Timestamps are stamped first
// when declared AutoNow or AutoNowAdd, then nil is replaced by the default.
// Encode does not validate; Model.Put validates before encoding.
func (p *Property) Encode(value any) (json.RawMessage, error) {
	if p.codec == nil {
		return nil, types.NewUnknownPropertyError(p.kind, p.name)
	}
	return p.encodeResolved(p.resolve(value))
}

func (p *Property) encodeResolved(value any) (json.RawMessage, error) {
	if value == nil {
		return json.RawMessage("null"), nil
	}
	if v, ok := p.codec.coerce(value); ok {
		value = v
	} else {
		return nil, types.NewValidationError(p.name, value,
			fmt.Sprintf("expected %s value, got %T", p.codec.valueType(), value))
	}
	b, err := json.Marshal(p.codec.portable(value))
	if err != nil {
		return nil, fmt.Errorf("encoding property %q: %w", p.name, err)
	}
	return b, nil
}

// Decode is the inverse of Encode. The decoded value is validated, so a
// stored null picks up the current default.
func (p *Property) Decode(raw json.RawMessage) (any, error) {
	if p.codec == nil {
		return nil, types.NewUnknownPropertyError(p.kind, p.name)
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	v, err := p.codec.decode(raw)
	if err != nil {
		return nil, &types.ValidationError{Property: p.name, Reason: "undecodable stored value", Err: err}
	}
	return p.Validate(v)
}

// Equals returns a Filter matching entities whose field equals v.
func (p *Property) Equals(v any) Filter { return p.filter(OpEqual, v) }

// NotEquals returns a Filter matching entities whose field is strictly less
// or strictly greater than v. Values that are equal, or that cannot be
// ordered against v, never match.
func (p *Property) NotEquals(v any) Filter { return p.filter(OpNotEqual, v) }

func (p *Property) LessThan(v any) Filter       { return p.filter(OpLess, v) }
func (p *Property) LessOrEqual(v any) Filter    { return p.filter(OpLessOrEqual, v) }
func (p *Property) GreaterThan(v any) Filter    { return p.filter(OpGreater, v) }
func (p *Property) GreaterOrEqual(v any) Filter { return p.filter(OpGreaterOrEqual, v) }

// In returns a Filter matching entities whose field equals any of values.
func (p *Property) In(values ...any) Filter {
	f := Filter{property: p, op: OpIn}
	f.values = make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			var err error
			if v, err = p.Validate(v); err != nil {
				f.err = err
				return f
			}
		}
		f.values = append(f.values, v)
	}
	return f
}

// Ascending orders query results by this field, smallest first.
func (p *Property) Ascending() SortOrder { return SortOrder{property: p} }

// Descending orders query results by this field, largest first.
func (p *Property) Descending() SortOrder { return SortOrder{property: p, descending: true} }

func (p *Property) filter(op Operator, v any) Filter {
	f := Filter{property: p, op: op}
	if v != nil {
		v, f.err = p.Validate(v)
	}
	f.value = v
	return f
}

func (p *Property) String() string {
	if p.codec == nil {
		return p.name
	}
	return p.name + ":" + p.codec.valueType()
}
