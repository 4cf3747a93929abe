package ndb

import (
	"time"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Entity is one record of a Model. It holds a value for exactly the
// properties its Model declares; unset fields are nil until validated.
type Entity struct {
	model  *Model
	key    string
	values map[string]any
}

func newEntity(m *Model, key string) *Entity {
	e := &Entity{
		model:  m,
		key:    key,
		values: make(map[string]any, len(m.props)),
	}
	for _, p := range m.props {
		e.values[p.name] = nil
	}
	return e
}

// Key returns the record key, or "" before the first Put.
func (e *Entity) Key() string { return e.key }

// Model returns the entity's model.
func (e *Entity) Model() *Model { return e.model }

// Kind returns the model kind.
func (e *Entity) Kind() string { return e.model.kind }

// Get returns the raw field value. It returns nil for unset fields and for
// names the model does not declare.
func (e *Entity) Get(name string) any {
	return e.values[name]
}

// Set assigns a raw field value. The value is validated on Put, not here.
func (e *Entity) Set(name string, value any) error {
	if _, ok := e.values[name]; !ok {
		return types.NewUnknownPropertyError(e.model.kind, name)
	}
	e.values[name] = value
	return nil
}

// MustSet is Set for field names known to be declared. It panics otherwise.
func (e *Entity) MustSet(name string, value any) *Entity {
	if err := e.Set(name, value); err != nil {
		panic(err)
	}
	return e
}

// Typed accessors. Each returns the zero value when the field is unset or
// holds another type.

func (e *Entity) String(name string) string {
	s, _ := e.values[name].(string)
	return s
}

func (e *Entity) Int(name string) int64 {
	n, _ := toInt64(e.values[name])
	i, _ := n.(int64)
	return i
}

func (e *Entity) Float(name string) float64 {
	f, _ := toFloat64(e.values[name])
	x, _ := f.(float64)
	return x
}

func (e *Entity) Bool(name string) bool {
	b, _ := e.values[name].(bool)
	return b
}

func (e *Entity) Time(name string) time.Time {
	t, _ := e.values[name].(time.Time)
	return t
}

// Values returns a copy of the raw field values.
func (e *Entity) Values() map[string]any {
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}
