package types

// Property value types determine which Go values a property accepts and
// how they are encoded in a record payload.
const (
	ValueTypeString    = "string"
	ValueTypeInteger   = "integer"
	ValueTypeBoolean   = "boolean"
	ValueTypeFloat     = "float"
	ValueTypeTimestamp = "timestamp"
)

// validValueTypes is the set of recognized property value types.
var validValueTypes = map[string]bool{
	ValueTypeString:    true,
	ValueTypeInteger:   true,
	ValueTypeBoolean:   true,
	ValueTypeFloat:     true,
	ValueTypeTimestamp: true,
}

// IsValidValueType reports whether the given string is a recognized value type.
func IsValidValueType(vt string) bool {
	return validValueTypes[vt]
}
