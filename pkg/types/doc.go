// Package types defines the Datastore contract, backend configuration,
// property value types, and the error taxonomy shared by the ndb entity
// layer and every storage backend.
//
// Backends implement Datastore and nothing more; the entity layer in
// pkg/ndb is written against this package only, so any engine can be
// plugged in without touching model or query code.
package types
