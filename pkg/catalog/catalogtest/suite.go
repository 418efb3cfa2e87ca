// Package catalogtest holds a backend-agnostic conformance suite for
// catalog.Catalog implementations, grounded on the teacher's
// pkg/metadata/storetest package: a factory function producing a fresh
// store per test, and a RunConformanceSuite entry point organized into
// t.Run subtests by concern.
package catalogtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
)

// Factory creates a fresh, already-migrated catalog.Catalog for one test.
// The factory receives *testing.T so implementations needing a temp file
// (DuckDB) can use t.TempDir, and registers teardown via t.Cleanup.
type Factory func(t *testing.T) catalog.Catalog

// RunConformanceSuite runs the full conformance suite against factory.
// Each subtest gets its own catalog instance for isolation.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("CRUD", func(t *testing.T) { runCRUD(t, factory) })
	t.Run("ConditionalUpdate", func(t *testing.T) { runConditionalUpdate(t, factory) })
	t.Run("ListAndSearch", func(t *testing.T) { runListAndSearch(t, factory) })
	t.Run("Delete", func(t *testing.T) { runDelete(t, factory) })
}

func testRow(path, entityID, checksum string) object.Object {
	return object.Object{
		ObjectPath: path,
		EntityID:   entityID,
		Checksum:   checksum,
		MimeType:   "text/plain",
		Size:       3,
		NumParts:   1,
		PartSize:   5 * 1024 * 1024,
		ObjectTags: object.Tags{},
	}
}

func runCRUD(t *testing.T, factory Factory) {
	ctx := context.Background()
	c := factory(t)

	require.NoError(t, c.CreateExclusive(ctx, testRow("a.txt", "e1", "c1")))

	err := c.CreateExclusive(ctx, testRow("a.txt", "e2", "c2"))
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindObjectExists))

	got, err := c.Read(ctx, "a.txt", "", catalog.LoadAll())
	require.NoError(t, err)
	assert.Equal(t, "e1", got.EntityID)
	assert.Equal(t, "c1", got.Checksum)

	exists, err := c.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.Exists(ctx, "missing.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = c.Read(ctx, "missing.txt", "", catalog.Select{})
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindObjectNotFound))

	// Create() upserts: a second Create with a new entity rotates it.
	firstID := got.ObjectID
	require.NoError(t, c.Create(ctx, testRow("a.txt", "e3", "c3")))
	got, err = c.Read(ctx, "a.txt", "", catalog.Select{})
	require.NoError(t, err)
	assert.Equal(t, "e3", got.EntityID)
	assert.Equal(t, firstID, got.ObjectID) // object_id stable across rewrites
}

func runConditionalUpdate(t *testing.T, factory Factory) {
	ctx := context.Background()
	c := factory(t)

	require.NoError(t, c.CreateExclusive(ctx, testRow("a.txt", "e1", "c1")))

	err := c.UpdateExclusive(ctx, testRow("a.txt", "e2", "c2"), catalog.Expect{Checksum: "stale"})
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindPreconditionFailed))

	require.NoError(t, c.UpdateExclusive(ctx, testRow("a.txt", "e2", "c2"), catalog.Expect{Checksum: "c1"}))
	got, err := c.Read(ctx, "a.txt", "", catalog.Select{})
	require.NoError(t, err)
	assert.Equal(t, "e2", got.EntityID)
	assert.Equal(t, "c2", got.Checksum)

	err = c.UpdateExclusive(ctx, testRow("missing.txt", "e9", "c9"), catalog.Expect{Checksum: "c1"})
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindObjectNotFound))
}

func runListAndSearch(t *testing.T, factory Factory) {
	ctx := context.Background()
	c := factory(t)

	r1 := testRow("dir/report.txt", "e1", "c1")
	r1.Description = "quarterly report"
	r2 := testRow("dir/notes.txt", "e2", "c2")
	r2.Description = "misc notes"
	r3 := testRow("dir/sub/deep.txt", "e3", "c3")

	require.NoError(t, c.CreateExclusive(ctx, r1))
	require.NoError(t, c.CreateExclusive(ctx, r2))
	require.NoError(t, c.CreateExclusive(ctx, r3))

	var nonRecursive []string
	require.NoError(t, c.List(ctx, "dir", catalog.ListOptions{}, func(o object.Object) error {
		nonRecursive = append(nonRecursive, o.ObjectPath)
		return nil
	}))
	assert.ElementsMatch(t, []string{"dir/report.txt", "dir/notes.txt"}, nonRecursive)

	var recursive []string
	require.NoError(t, c.List(ctx, "dir", catalog.ListOptions{Recursive: true}, func(o object.Object) error {
		recursive = append(recursive, o.ObjectPath)
		return nil
	}))
	assert.ElementsMatch(t, []string{"dir/report.txt", "dir/notes.txt", "dir/sub/deep.txt"}, recursive)

	var results []catalog.SearchResult
	require.NoError(t, c.Search(ctx, "dir", "report", catalog.SearchOptions{Recursive: true}, func(r catalog.SearchResult) error {
		results = append(results, r)
		return nil
	}))
	require.NotEmpty(t, results)
	assert.Equal(t, "dir/report.txt", results[0].Object.ObjectPath)
}

func runDelete(t *testing.T, factory Factory) {
	ctx := context.Background()
	c := factory(t)

	require.NoError(t, c.CreateExclusive(ctx, testRow("a.txt", "e1", "c1")))

	changed, err := c.Delete(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Delete(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, changed, "delete must be idempotent")

	exists, err := c.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleted path is free for wx again.
	require.NoError(t, c.CreateExclusive(ctx, testRow("a.txt", "e2", "c2")))
}
