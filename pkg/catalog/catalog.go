// Package catalog defines the metadata catalog contract §4.2 of the
// specification describes: one logical table of object rows, CRUD plus
// conditional compare-and-set update, prefix listing, and full-text
// search. Concrete backends (duckdb, memory) implement Catalog; the
// engine never issues SQL directly.
package catalog

import (
	"context"

	"github.com/tai-kun/omnio-sub001/pkg/object"
)

// Order selects ascending or descending iteration for List.
type Order string

const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)

// OrderKey names the column List orders by.
type OrderKey string

const (
	OrderByPath      OrderKey = "object_path"
	OrderByCreatedAt OrderKey = "created_at"
	OrderByModified  OrderKey = "last_modified_at"
	OrderBySize      OrderKey = "size"
)

// ListOptions configures Catalog.List.
type ListOptions struct {
	Recursive bool
	OrderBy   OrderKey
	Order     Order
	Limit     int // 0 means unbounded
}

// SearchOptions configures Catalog.Search.
type SearchOptions struct {
	Recursive bool
	Limit     int
}

// Select projects a subset of columns for Catalog.Read, matching §4.2's
// "project a subset of columns" contract. A zero-value Select loads only
// the base columns, leaving tags, description and user metadata empty;
// use LoadAll for every column.
type Select struct {
	ObjectTags   bool
	Description  bool
	UserMetadata bool
}

// LoadAll returns a Select that projects every optional column.
func LoadAll() Select {
	return Select{ObjectTags: true, Description: true, UserMetadata: true}
}

// Expect is the compare-and-set precondition for UpdateExclusive.
type Expect struct {
	Checksum string
}

// SearchResult pairs a row with its relevance score.
type SearchResult struct {
	Object object.Object
	Score  float64
}

// Catalog is the metadata store contract §4.2 specifies. All operations
// are scoped to a single bucket; the engine constructs one Catalog
// binding per open bucket.
type Catalog interface {
	// Create upserts by object_path: if a live row exists, it replaces
	// the entity binding and content columns in place; otherwise it
	// inserts a new row with a freshly assigned object_id. Fails with
	// object.KindInvariantViolation if entity_id collides with another
	// bucket row.
	Create(ctx context.Context, row object.Object) error

	// CreateExclusive inserts only, failing with object.KindObjectExists
	// if a live row already exists for row.ObjectPath.
	CreateExclusive(ctx context.Context, row object.Object) error

	// UpdateExclusive updates the live row for row.ObjectPath only if its
	// current checksum equals expect.Checksum, in a single atomic
	// statement; otherwise fails with object.KindPreconditionFailed.
	UpdateExclusive(ctx context.Context, row object.Object, expect Expect) error

	// Read projects sel's columns for the live row at path, optionally
	// narrowed by objectID (pass "" to match by path alone). Returns
	// object.KindObjectNotFound if no live row matches.
	Read(ctx context.Context, path string, objectID string, sel Select) (object.Object, error)

	// Exists reports whether a live row exists for path without
	// materializing it. Never errors for "not found" — only for
	// underlying adapter failures.
	Exists(ctx context.Context, path string) (bool, error)

	// List iterates live rows under prefix in the order opts selects
	// (object_path ascending by default), yielding via fn. Returning a non-nil error from fn stops iteration
	// and propagates that error.
	List(ctx context.Context, prefix string, opts ListOptions, fn func(object.Object) error) error

	// Search iterates live rows under prefix matching query against
	// desc_fts (and path_seg, weighted as a smaller boost), most relevant
	// first.
	Search(ctx context.Context, prefix, query string, opts SearchOptions, fn func(SearchResult) error) error

	// Delete marks the row at path deleted: clears path_key and sets
	// rec_type to DELETE. Idempotent — deleting an already-deleted path
	// is a no-op that reports changed=false.
	Delete(ctx context.Context, path string) (changed bool, err error)

	// Migrate applies the ordered migration list for this bucket,
	// idempotently.
	Migrate(ctx context.Context) error

	// Close releases any resources (connections, prepared statements)
	// this Catalog holds open.
	Close() error
}
