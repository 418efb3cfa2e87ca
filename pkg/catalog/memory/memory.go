// Package memory implements catalog.Catalog as an in-process map,
// grounded on the teacher's pkg/metadata/store/memory package: a
// mutex-guarded map standing in for the real backend, used for tests and
// an ephemeral/local mode that never touches a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
)

// Catalog is an in-memory catalog.Catalog. The zero value is not usable;
// construct with New.
//
// rows holds every row ever written, live or deleted, keyed by object_id
// — the same shape as duckdb's table, which never drops a row on delete,
// only clears its path_key. livePaths is the path_key-equivalent: it
// indexes only rows currently reachable by path, and Delete removes a
// path from it without touching rows itself.
type Catalog struct {
	mu        sync.RWMutex
	rows      map[string]object.Object // object_id -> row, live and deleted
	livePaths map[string]string        // object_path -> object_id, live rows only
	entityIDs map[string]string        // entity_id -> object_path, live rows only
	migrated  bool
}

// New creates an empty in-memory catalog.
func New() *Catalog {
	return &Catalog{
		rows:      make(map[string]object.Object),
		livePaths: make(map[string]string),
		entityIDs: make(map[string]string),
	}
}

func (c *Catalog) Migrate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.migrated = true
	return nil
}

func (c *Catalog) Close() error { return nil }

func (c *Catalog) Create(_ context.Context, row object.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existingID, hadLive := c.livePaths[row.ObjectPath]
	var existing object.Object
	if hadLive {
		existing = c.rows[existingID]
	}
	if owner, ok := c.entityIDs[row.EntityID]; ok && owner != row.ObjectPath {
		return object.NewInvariantViolation("entity_id collides with another live row")
	}

	if hadLive && existing.EntityID != row.EntityID {
		delete(c.entityIDs, existing.EntityID)
	}
	if row.ObjectID == "" {
		if hadLive {
			row.ObjectID = existing.ObjectID
		} else {
			row.ObjectID = uuid.Must(uuid.NewV7()).String()
		}
	}
	row.RecordType = object.RecordCreate
	c.rows[row.ObjectID] = row
	c.livePaths[row.ObjectPath] = row.ObjectID
	c.entityIDs[row.EntityID] = row.ObjectPath
	return nil
}

func (c *Catalog) CreateExclusive(_ context.Context, row object.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.livePaths[row.ObjectPath]; exists {
		return object.NewExists(row.ObjectPath)
	}
	if row.ObjectID == "" {
		row.ObjectID = uuid.Must(uuid.NewV7()).String()
	}
	row.RecordType = object.RecordCreate
	c.rows[row.ObjectID] = row
	c.livePaths[row.ObjectPath] = row.ObjectID
	c.entityIDs[row.EntityID] = row.ObjectPath
	return nil
}

func (c *Catalog) UpdateExclusive(_ context.Context, row object.Object, expect catalog.Expect) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existingID, ok := c.livePaths[row.ObjectPath]
	if !ok {
		return object.NewNotFound(row.ObjectPath)
	}
	existing := c.rows[existingID]
	if existing.Checksum != expect.Checksum {
		return object.NewPreconditionFailed(row.ObjectPath)
	}

	if existing.EntityID != row.EntityID {
		delete(c.entityIDs, existing.EntityID)
	}
	row.ObjectID = existing.ObjectID
	row.RecordType = object.RecordCreate
	c.rows[row.ObjectID] = row
	c.livePaths[row.ObjectPath] = row.ObjectID
	c.entityIDs[row.EntityID] = row.ObjectPath
	return nil
}

func (c *Catalog) Read(_ context.Context, path string, objectID string, sel catalog.Select) (object.Object, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.livePaths[path]
	if !ok {
		return object.Object{}, object.NewNotFound(path)
	}
	row := c.rows[id]
	if objectID != "" && row.ObjectID != objectID {
		return object.Object{}, object.NewNotFound(path)
	}
	if !sel.ObjectTags {
		row.ObjectTags = nil
	}
	if !sel.Description {
		row.Description = ""
	}
	if !sel.UserMetadata {
		row.UserMetadata = nil
	}
	return row, nil
}

func (c *Catalog) Exists(_ context.Context, path string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.livePaths[path]
	return ok, nil
}

func (c *Catalog) List(_ context.Context, prefix string, opts catalog.ListOptions, fn func(object.Object) error) error {
	c.mu.RLock()
	matches := c.matchPrefix(prefix, opts.Recursive)
	c.mu.RUnlock()

	sortRows(matches, opts.OrderBy, opts.Order)
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	for _, row := range matches {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) Search(_ context.Context, prefix, query string, opts catalog.SearchOptions, fn func(catalog.SearchResult) error) error {
	c.mu.RLock()
	matches := c.matchPrefix(prefix, opts.Recursive)
	c.mu.RUnlock()

	q := strings.ToLower(query)
	results := make([]catalog.SearchResult, 0, len(matches))
	for _, row := range matches {
		score := scoreMatch(row, q)
		if score > 0 {
			results = append(results, catalog.SearchResult{Object: row, Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	for _, r := range results {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Delete clears path's live binding without discarding the row itself,
// mirroring duckdb's UPDATE ... SET path_key = NULL: the row stays in
// rows under its object_id, just unreachable by path from here on.
func (c *Catalog) Delete(_ context.Context, path string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.livePaths[path]
	if !ok {
		return false, nil
	}
	row := c.rows[id]
	row.RecordType = object.RecordDelete
	c.rows[id] = row
	delete(c.livePaths, path)
	delete(c.entityIDs, row.EntityID)
	return true, nil
}

func (c *Catalog) matchPrefix(prefix string, recursive bool) []object.Object {
	var prefixSegs []string
	if prefix != "" {
		prefixSegs = object.PathSegments(prefix)
	}

	matches := make([]object.Object, 0)
	for path, id := range c.livePaths {
		segs := object.PathSegments(path)
		if !hasPrefixSegs(segs, prefixSegs) {
			continue
		}
		if !recursive && len(segs) != len(prefixSegs)+1 {
			continue
		}
		matches = append(matches, c.rows[id])
	}
	return matches
}

func hasPrefixSegs(segs, prefix []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i, p := range prefix {
		if segs[i] != p {
			return false
		}
	}
	return true
}

func scoreMatch(row object.Object, q string) float64 {
	var score float64
	if q == "" {
		return 1
	}
	if strings.Contains(strings.ToLower(row.Description), q) {
		score += 1.0
	}
	if strings.Contains(strings.ToLower(row.ObjectPath), q) {
		score += 0.25
	}
	return score
}

func sortRows(rows []object.Object, key catalog.OrderKey, order catalog.Order) {
	less := func(i, j int) bool {
		var a, b any
		switch key {
		case catalog.OrderByCreatedAt:
			a, b = rows[i].CreatedAt, rows[j].CreatedAt
		case catalog.OrderByModified:
			a, b = rows[i].LastModifiedAt, rows[j].LastModifiedAt
		case catalog.OrderBySize:
			a, b = rows[i].Size, rows[j].Size
		default:
			a, b = rows[i].ObjectPath, rows[j].ObjectPath
		}
		switch av := a.(type) {
		case string:
			return av < b.(string)
		case int64:
			return av < b.(int64)
		default:
			return false
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if order == catalog.OrderDesc {
			return less(j, i)
		}
		return less(i, j)
	})
}

var _ catalog.Catalog = (*Catalog)(nil)
