package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
)

// ============================================================================
// Listing and search
// ============================================================================

func (c *Catalog) List(ctx context.Context, prefix string, opts catalog.ListOptions, fn func(object.Object) error) error {
	seg := pathSeg(prefix)

	q := fmt.Sprintf(`SELECT object_id, object_path, size, mime_type, checksum, num_parts, part_size,
			created_at, last_modified_at, record_type, entity_id
		FROM %s WHERE path_key IS NOT NULL AND path_seg LIKE ?`, c.table)
	args := []any{seg + "%"}

	q += " ORDER BY " + orderColumn(opts.OrderBy) + " " + orderDirection(opts.Order)
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return object.NewDatabaseError(err)
	}
	defer rows.Close()

	prefixDepth := len(object.PathSegments(prefix))
	if prefix == "" {
		prefixDepth = 0
	}

	for rows.Next() {
		var row object.Object
		if err := rows.Scan(&row.ObjectID, &row.ObjectPath, &row.Size, &row.MimeType, &row.Checksum,
			&row.NumParts, &row.PartSize, &row.CreatedAt, &row.LastModifiedAt, &row.RecordType, &row.EntityID); err != nil {
			return object.NewDatabaseError(err)
		}
		if !opts.Recursive {
			depth := len(object.PathSegments(row.ObjectPath))
			if depth != prefixDepth+1 {
				continue
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func orderColumn(key catalog.OrderKey) string {
	switch key {
	case catalog.OrderByCreatedAt:
		return "created_at"
	case catalog.OrderByModified:
		return "last_modified_at"
	case catalog.OrderBySize:
		return "size"
	default:
		return "object_path"
	}
}

func orderDirection(o catalog.Order) string {
	if o == catalog.OrderDesc {
		return "DESC"
	}
	return "ASC"
}

// Search weighs both desc_fts (full-text match on description) and
// path_seg (path segment containment), with the path match contributing
// a smaller boost — an open design decision recorded in DESIGN.md, since
// the specification leaves the weighting unspecified.
func (c *Catalog) Search(ctx context.Context, prefix, query string, opts catalog.SearchOptions, fn func(catalog.SearchResult) error) error {
	seg := pathSeg(prefix)
	lowerQuery := strings.ToLower(query)

	q := fmt.Sprintf(`SELECT object_id, object_path, size, mime_type, checksum, num_parts, part_size,
			created_at, last_modified_at, record_type, entity_id, description,
			fts_main_%[1]s.match_bm25(object_id, ?) AS fts_score
		FROM %[1]s
		WHERE path_key IS NOT NULL AND path_seg LIKE ?`, c.table)
	args := []any{query, seg + "%"}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return object.NewDatabaseError(err)
	}
	defer rows.Close()

	var results []catalog.SearchResult
	for rows.Next() {
		var row object.Object
		var ftsScore sql.NullFloat64
		if err := rows.Scan(&row.ObjectID, &row.ObjectPath, &row.Size, &row.MimeType, &row.Checksum,
			&row.NumParts, &row.PartSize, &row.CreatedAt, &row.LastModifiedAt, &row.RecordType, &row.EntityID,
			&row.Description, &ftsScore); err != nil {
			return object.NewDatabaseError(err)
		}
		if !opts.Recursive {
			prefixDepth := 0
			if prefix != "" {
				prefixDepth = len(object.PathSegments(prefix))
			}
			if len(object.PathSegments(row.ObjectPath)) != prefixDepth+1 {
				continue
			}
		}

		score := ftsScore.Float64
		if lowerQuery != "" && strings.Contains(strings.ToLower(row.ObjectPath), lowerQuery) {
			score += 0.25
		}
		if score <= 0 {
			continue
		}
		results = append(results, catalog.SearchResult{Object: row, Score: score})
	}
	if err := rows.Err(); err != nil {
		return object.NewDatabaseError(err)
	}

	sortSearchResults(results)
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

func sortSearchResults(results []catalog.SearchResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
