package ndb

import (
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Query selects entities of one model. Filters are combined with AND;
// sort orders apply in the order given, the first being the primary key.
//
// Builder errors (a filter on a property the model does not declare, an
// invalid comparison value) are kept and returned when the query runs.
type Query struct {
	db      *DB
	model   *Model
	filters []Filter
	orders  []SortOrder
	err     error
}

// Filter adds filters to the query and returns it.
func (q *Query) Filter(filters ...Filter) *Query {
	for _, f := range filters {
		if q.err != nil {
			break
		}
		switch {
		case f.err != nil:
			q.err = f.err
		case !q.model.owns(f.property):
			q.err = types.NewUnknownPropertyError(q.model.kind, propertyName(f.property))
		default:
			q.filters = append(q.filters, f)
		}
	}
	return q
}

// Order adds sort orders to the query and returns it.
func (q *Query) Order(orders ...SortOrder) *Query {
	for _, o := range orders {
		if q.err != nil {
			break
		}
		if !q.model.owns(o.property) {
			q.err = types.NewUnknownPropertyError(q.model.kind, propertyName(o.property))
			break
		}
		q.orders = append(q.orders, o)
	}
	return q
}

func propertyName(p *Property) string {
	if p == nil {
		return ""
	}
	return p.name
}

// Err returns the first error recorded while building the query.
func (q *Query) Err() error { return q.err }

// Model returns the queried model.
func (q *Query) Model() *Model { return q.model }

// Filters returns the query filters in the order they were added.
func (q *Query) Filters() []Filter { return slices.Clone(q.filters) }

// Orders returns the query sort orders in the order they were added.
func (q *Query) Orders() []SortOrder { return slices.Clone(q.orders) }

// Iter runs the query. Each call is a new pass over the datastore.
//
// Without sort orders, keys are read from the datastore one at a time and
// each matching entity is yielded as soon as it is loaded, in the
// backend's key order. With sort orders, every matching entity is loaded
// into memory and sorted before the first one is yielded.
//
// An error is yielded once, with a nil entity, and ends the sequence.
func (q *Query) Iter() iter.Seq2[*Entity, error] {
	if q.err != nil {
		err := q.err
		return func(yield func(*Entity, error) bool) { yield(nil, err) }
	}
	if len(q.orders) == 0 {
		return q.stream()
	}
	return q.sorted()
}

// stream is the unordered path: a single forward pass that buffers nothing.
func (q *Query) stream() iter.Seq2[*Entity, error] {
	return func(yield func(*Entity, error) bool) {
		store, err := q.db.Datastore()
		if err != nil {
			yield(nil, err)
			return
		}
		for key, err := range store.ScanKeys(q.model.kind) {
			if err != nil {
				yield(nil, err)
				return
			}
			e, err := q.model.GetByID(q.db, key)
			if types.IsNotFound(err) {
				// Deleted between the scan and the read.
				continue
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if q.matches(e) && !yield(e, nil) {
				return
			}
		}
	}
}

// sorted is the ordered path. It materializes every match, then runs one
// stable sort per order from last to first, so the first order is the
// primary key and later ones break ties.
func (q *Query) sorted() iter.Seq2[*Entity, error] {
	return func(yield func(*Entity, error) bool) {
		var buf []*Entity
		for e, err := range q.stream() {
			if err != nil {
				yield(nil, err)
				return
			}
			buf = append(buf, e)
		}
		for i := len(q.orders) - 1; i >= 0; i-- {
			sortEntities(buf, q.orders[i])
		}
		for _, e := range buf {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func sortEntities(buf []*Entity, o SortOrder) {
	name := o.property.name
	sort.SliceStable(buf, func(i, j int) bool {
		c, ok := compareValues(buf[i].values[name], buf[j].values[name])
		if !ok {
			return false
		}
		if o.descending {
			return c > 0
		}
		return c < 0
	})
}

func (q *Query) matches(e *Entity) bool {
	for _, f := range q.filters {
		if !f.Apply(e) {
			return false
		}
	}
	return true
}

// All runs the query and collects every result.
func (q *Query) All() ([]*Entity, error) {
	var out []*Entity
	for e, err := range q.Iter() {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Count runs the query and returns the number of matches. Sort orders are
// ignored.
func (q *Query) Count() (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	n := 0
	for _, err := range q.stream() {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// First returns the first result. When nothing matches the error matches
// types.ErrNotFound.
func (q *Query) First() (*Entity, error) {
	for e, err := range q.Iter() {
		return e, err
	}
	return nil, fmt.Errorf("%w: no %s entity matches the query", types.ErrNotFound, q.model.kind)
}
