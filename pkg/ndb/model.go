package ndb

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// ErrKindMismatch is returned when an entity is written or deleted through
// a model other than its own.
var ErrKindMismatch = errors.New("entity belongs to a different model")

// Model is an entity type. Its kind groups records in the datastore the way
// a table name does, and its properties are fixed at declaration.
type Model struct {
	kind   string
	props  []*Property
	byName map[string]*Property
}

// NewModel declares a model. It panics on an empty kind, a nil property or
// two properties with the same name.
func NewModel(kind string, props ...*Property) *Model {
	if kind == "" {
		panic("ndb: model kind must not be empty")
	}
	m := &Model{
		kind:   kind,
		props:  make([]*Property, 0, len(props)),
		byName: make(map[string]*Property, len(props)),
	}
	for _, p := range props {
		if p == nil || p.codec == nil {
			panic(fmt.Sprintf("ndb: model %s: invalid property", kind))
		}
		if _, dup := m.byName[p.name]; dup {
			panic(fmt.Sprintf("ndb: model %s: duplicate property %q", kind, p.name))
		}
		m.props = append(m.props, p)
		m.byName[p.name] = p
	}
	return m
}

// Kind returns the model name.
func (m *Model) Kind() string { return m.kind }

// Properties returns the declared properties in declaration order.
func (m *Model) Properties() []*Property { return slices.Clone(m.props) }

// Property returns the declared property with the given name.
func (m *Model) Property(name string) (*Property, bool) {
	p, ok := m.byName[name]
	return p, ok
}

// Field returns the declared property with the given name. For an
// undeclared name it returns a placeholder whose filters and sort orders
// fail with UnknownPropertyError when added to a query.
func (m *Model) Field(name string) *Property {
	if p, ok := m.byName[name]; ok {
		return p
	}
	return &Property{name: name, kind: m.kind}
}

// Where builds a filter on the named field.
func (m *Model) Where(name string, op Operator, value any) Filter {
	return NewFilter(m.Field(name), op, value)
}

// owns reports whether p is one of the model's declared properties.
func (m *Model) owns(p *Property) bool {
	return p != nil && m.byName[p.name] == p
}

// New returns a fresh, unsaved entity. fields must name declared
// properties only.
func (m *Model) New(key string, fields map[string]any) (*Entity, error) {
	e := newEntity(m, key)
	for name, v := range fields {
		if err := e.Set(name, v); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// GetByID fetches and decodes the entity stored under key. It returns a
// NotFoundError when no record exists.
func (m *Model) GetByID(db *DB, key string) (*Entity, error) {
	if key == "" {
		return nil, types.NewNotFoundError(m.kind, key)
	}
	store, err := db.Datastore()
	if err != nil {
		return nil, err
	}
	payload, found, err := store.Get(m.kind, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, types.NewNotFoundError(m.kind, key)
	}
	return m.decode(key, payload)
}

func (m *Model) decode(key, payload string) (*Entity, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, types.NewBackendError("ndb", "decode", m.kind, key, err)
	}
	e := newEntity(m, key)
	for _, p := range m.props {
		v, err := p.Decode(fields[p.name])
		if err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", m.kind, key, err)
		}
		e.values[p.name] = v
	}
	return e, nil
}

// GetOrInsert returns the entity stored under key. When there is none it
// stores a new one built from initial, ignoring undeclared names, and
// returns it as read back from the datastore. An empty key is a
// ValidationError.
//
// GetOrInsert is a read followed by a write, not an atomic operation:
// concurrent callers may both insert, and the last write wins.
func (m *Model) GetOrInsert(db *DB, key string, initial map[string]any) (*Entity, error) {
	if key == "" {
		return nil, types.NewValidationError("key", key, "get-or-insert needs a key")
	}
	e, err := m.GetByID(db, key)
	if err == nil || !types.IsNotFound(err) {
		return e, err
	}
	e = newEntity(m, key)
	for name, v := range initial {
		if _, ok := m.byName[name]; ok {
			e.values[name] = v
		}
	}
	key, err = m.Put(db, e)
	if err != nil {
		return nil, err
	}
	return m.GetByID(db, key)
}

// Put validates and stores e, generating a key if it has none, and returns
// the key. Timestamps stamped during the write are copied back into e.
func (m *Model) Put(db *DB, e *Entity) (string, error) {
	if e.model != m {
		return "", fmt.Errorf("put %s entity as %s: %w", e.model.kind, m.kind, ErrKindMismatch)
	}
	store, err := db.Datastore()
	if err != nil {
		return "", err
	}

	fields := make(map[string]json.RawMessage, len(m.props))
	stamped := make(map[string]any)
	for _, p := range m.props {
		v, err := p.Validate(e.values[p.name])
		if err != nil {
			db.logger.Debug("validation failed",
				zap.String("kind", m.kind), zap.String("property", p.name),
				zap.Any("value", e.values[p.name]), zap.Error(err))
			return "", err
		}
		v = p.resolve(v)
		raw, err := p.encodeResolved(v)
		if err != nil {
			return "", err
		}
		fields[p.name] = raw
		if p.autoPopulates() {
			stamped[p.name] = v
		}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", m.kind, err)
	}

	if e.key == "" {
		e.key = NewKey()
	}
	if err := store.Set(m.kind, e.key, string(payload)); err != nil {
		return "", err
	}
	for name, v := range stamped {
		e.values[name] = v
	}
	db.logger.Debug("put", zap.String("kind", m.kind), zap.String("key", e.key))
	return e.key, nil
}

// Delete removes e from the datastore and returns its key. An entity
// without a key fails with NotFoundError; an already deleted record does
// not.
func (m *Model) Delete(db *DB, e *Entity) (string, error) {
	if e.model != m {
		return "", fmt.Errorf("delete %s entity as %s: %w", e.model.kind, m.kind, ErrKindMismatch)
	}
	if e.key == "" {
		return "", types.NewNotFoundError(m.kind, "")
	}
	store, err := db.Datastore()
	if err != nil {
		return "", err
	}
	if err := store.Delete(m.kind, e.key); err != nil {
		return "", err
	}
	db.logger.Debug("delete", zap.String("kind", m.kind), zap.String("key", e.key))
	return e.key, nil
}

// ToDict returns the validated, defaulted field values of e. A non-nil
// include keeps only the named fields; exclude then drops names from the
// result.
func (m *Model) ToDict(e *Entity, include, exclude []string) (map[string]any, error) {
	out := make(map[string]any, len(m.props))
	for _, p := range m.props {
		if include != nil && !slices.Contains(include, p.name) {
			continue
		}
		if slices.Contains(exclude, p.name) {
			continue
		}
		v, err := p.Validate(e.values[p.name])
		if err != nil {
			return nil, err
		}
		out[p.name] = v
	}
	return out, nil
}

// Query starts a query over this model's entities.
func (m *Model) Query(db *DB, filters ...Filter) *Query {
	q := &Query{db: db, model: m}
	return q.Filter(filters...)
}

// NewKey returns a new record key: a version 7 UUID, which is the current
// time followed by random bits, hex encoded without separators.
func NewKey() string {
	id := uuid.Must(uuid.NewV7())
	return hex.EncodeToString(id[:])
}
