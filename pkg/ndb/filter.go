package ndb

import (
	"fmt"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Operator is a Filter comparison.
type Operator string

// Filter operators.
const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpIn             Operator = "in"
)

// Filter is a single (property, operator, value) predicate. Filters are
// built with the Property comparison methods or Model.Where, and are
// checked against the target Model when added to a Query.
type Filter struct {
	property *Property
	op       Operator
	value    any
	values   []any // OpIn only
	err      error
}

// Property returns the property the filter reads.
func (f Filter) Property() *Property { return f.property }

// Operator returns the comparison operator.
func (f Filter) Operator() Operator { return f.op }

// Value returns the validated comparison value. For OpIn it returns the
// value list as []any.
func (f Filter) Value() any {
	if f.op == OpIn {
		return f.values
	}
	return f.value
}

// Err returns the error recorded while building the filter, if any.
func (f Filter) Err() error { return f.err }

// Apply reports whether e passes the filter. The entity's raw field value
// is compared without validation.
//
// OpNotEqual is (v < value) || (v > value), not a plain inequality: two
// values that cannot be ordered against each other, such as NaN or values
// of different types, fail both halves and so never match.
func (f Filter) Apply(e *Entity) bool {
	if f.property == nil {
		return false
	}
	v := e.Get(f.property.name)
	if f.op == OpIn {
		for _, want := range f.values {
			if c, ok := compareValues(v, want); ok && c == 0 {
				return true
			}
		}
		return false
	}
	c, ok := compareValues(v, f.value)
	if !ok {
		return false
	}
	switch f.op {
	case OpEqual:
		return c == 0
	case OpNotEqual:
		return c < 0 || c > 0
	case OpLess:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	}
	return false
}

func (f Filter) String() string {
	name := "<nil>"
	if f.property != nil {
		name = f.property.name
	}
	return fmt.Sprintf("%s %s %v", name, f.op, f.Value())
}

// validOperator reports whether op is one of the Filter operators.
func validOperator(op Operator) bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual, OpIn:
		return true
	}
	return false
}

// NewFilter builds a Filter from an operator value, for callers that
// choose the operator at run time. For OpIn, value must be a []any.
func NewFilter(p *Property, op Operator, value any) Filter {
	if p == nil {
		return Filter{op: op, err: types.NewUnknownPropertyError("", "")}
	}
	if !validOperator(op) {
		return Filter{property: p, op: op, err: fmt.Errorf("%w: unsupported filter operator %q", types.ErrValidation, op)}
	}
	if op == OpIn {
		values, ok := value.([]any)
		if !ok && value != nil {
			return Filter{property: p, op: op, err: types.NewValidationError(p.name, value, "in filter needs a []any value")}
		}
		return p.In(values...)
	}
	return p.filter(op, value)
}

// SortOrder orders query results by one property.
type SortOrder struct {
	property   *Property
	descending bool
}

// Property returns the property the sort order reads.
func (s SortOrder) Property() *Property { return s.property }

// IsDescending reports whether larger values come first.
func (s SortOrder) IsDescending() bool { return s.descending }

func (s SortOrder) String() string {
	name := "<nil>"
	if s.property != nil {
		name = s.property.name
	}
	if s.descending {
		return "-" + name
	}
	return name
}
