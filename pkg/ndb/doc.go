// Package ndb maps typed, schema-validated entities onto any Datastore.
//
// A Model names a kind and declares its Properties once:
//
//	email := ndb.String("email", ndb.Required())
//	clicks := ndb.Integer("clicks", ndb.Default(1))
//	created := ndb.Timestamp("created", ndb.AutoNowAdd())
//	User := ndb.NewModel("User", email, clicks, created)
//
// Entities are read and written through an explicit DB handle. Only one DB
// may be open in a process at a time:
//
//	db, err := ndb.Open(store)
//	defer db.Close()
//	u, err := User.GetOrInsert(db, "a@x.com", map[string]any{"email": "a@x.com"})
//
// Queries filter and sort in process. Without sort orders results stream
// one key at a time; with sort orders every match is buffered in memory
// before the first result is returned, so ordered queries over very large
// kinds are bounded by available memory:
//
//	q := User.Query(db, clicks.GreaterThan(10)).Order(email.Ascending(), created.Descending())
//	for u, err := range q.Iter() {
//	    ...
//	}
package ndb
