package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
)

// ============================================================================
// CRUD Operations
// ============================================================================
//
// Thin wrappers around DuckDB SQL. No business logic beyond the catalog
// contract §4.2 itself (entity-id collision checks, compare-and-set).

func pathSeg(path string) string {
	if path == "" {
		return "/"
	}
	return "/" + strings.Join(object.PathSegments(path), "/") + "/"
}

func encodeTags(tags object.Tags) (string, error) {
	if tags == nil {
		tags = object.Tags{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func decodeTags(raw string) (object.Tags, error) {
	var tags object.Tags
	if raw == "" {
		return tags, nil
	}
	err := json.Unmarshal([]byte(raw), &tags)
	return tags, err
}

func (c *Catalog) Create(ctx context.Context, row object.Object) error {
	tags, err := encodeTags(row.ObjectTags)
	if err != nil {
		return object.NewInvalidInput(row.ObjectPath, "object tags not JSON-encodable")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return object.NewDatabaseError(err)
	}
	defer tx.Rollback()

	var existingEntity, existingObjectID string
	q := fmt.Sprintf(`SELECT entity_id, object_id FROM %s WHERE path_key = ?`, c.table)
	err = tx.QueryRowContext(ctx, q, row.ObjectPath).Scan(&existingEntity, &existingObjectID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if row.ObjectID == "" {
			row.ObjectID = uuid.Must(uuid.NewV7()).String()
		}
		if err := c.insert(ctx, tx, row, tags); err != nil {
			return err
		}
	case err != nil:
		return object.NewDatabaseError(err)
	default:
		row.ObjectID = existingObjectID
		if existingEntity != row.EntityID {
			var collidingPath string
			cq := fmt.Sprintf(`SELECT object_path FROM %s WHERE entity_id = ? AND path_key IS NOT NULL`, c.table)
			if scanErr := tx.QueryRowContext(ctx, cq, row.EntityID).Scan(&collidingPath); scanErr == nil && collidingPath != row.ObjectPath {
				return object.NewInvariantViolation("entity_id collides with another live row")
			}
		}
		if err := c.replace(ctx, tx, row, tags); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return object.NewDatabaseError(err)
	}
	return nil
}

func (c *Catalog) CreateExclusive(ctx context.Context, row object.Object) error {
	exists, err := c.Exists(ctx, row.ObjectPath)
	if err != nil {
		return err
	}
	if exists {
		return object.NewExists(row.ObjectPath)
	}
	if row.ObjectID == "" {
		row.ObjectID = uuid.Must(uuid.NewV7()).String()
	}

	tags, err := encodeTags(row.ObjectTags)
	if err != nil {
		return object.NewInvalidInput(row.ObjectPath, "object tags not JSON-encodable")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return object.NewDatabaseError(err)
	}
	defer tx.Rollback()

	var count int
	cq := fmt.Sprintf(`SELECT count(*) FROM %s WHERE path_key = ?`, c.table)
	if err := tx.QueryRowContext(ctx, cq, row.ObjectPath).Scan(&count); err != nil {
		return object.NewDatabaseError(err)
	}
	if count > 0 {
		return object.NewExists(row.ObjectPath)
	}
	if err := c.insert(ctx, tx, row, tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return object.NewDatabaseError(err)
	}
	return nil
}

// UpdateExclusive performs the compare-and-set update in a single
// statement with the precondition in the WHERE clause, per §4.2's
// requirement that two racing appends see exactly one succeed.
func (c *Catalog) UpdateExclusive(ctx context.Context, row object.Object, expect catalog.Expect) error {
	tags, err := encodeTags(row.ObjectTags)
	if err != nil {
		return object.NewInvalidInput(row.ObjectPath, "object tags not JSON-encodable")
	}

	q := fmt.Sprintf(`UPDATE %s SET
			size = ?, mime_type = ?, checksum = ?, num_parts = ?, part_size = ?,
			last_modified_at = ?, record_type = ?, object_tags = ?, description = ?,
			desc_fts = ?, user_metadata = ?, entity_id = ?, md5_state = ?, rec_time = ?
		WHERE path_key = ? AND checksum = ?`, c.table)

	now := time.Now().UnixMilli()
	res, err := c.db.ExecContext(ctx, q,
		row.Size, row.MimeType, row.Checksum, row.NumParts, row.PartSize,
		row.LastModifiedAt, string(object.RecordCreate), tags, row.Description,
		strings.ToLower(row.Description), []byte(row.UserMetadata), row.EntityID, row.MD5State, now,
		row.ObjectPath, expect.Checksum,
	)
	if err != nil {
		return object.NewDatabaseError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return object.NewDatabaseError(err)
	}
	if n == 0 {
		exists, existsErr := c.Exists(ctx, row.ObjectPath)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return object.NewNotFound(row.ObjectPath)
		}
		return object.NewPreconditionFailed(row.ObjectPath)
	}
	return nil
}

func (c *Catalog) insert(ctx context.Context, tx *sql.Tx, row object.Object, tags string) error {
	now := time.Now().UnixMilli()
	if row.CreatedAt == 0 {
		row.CreatedAt = now
	}
	if row.LastModifiedAt == 0 {
		row.LastModifiedAt = now
	}

	q := fmt.Sprintf(`INSERT INTO %s (
			object_id, object_path, path_key, path_seg, size, mime_type, checksum,
			num_parts, part_size, created_at, last_modified_at, record_type,
			object_tags, description, desc_fts, user_metadata, entity_id, md5_state, rec_time
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, c.table)

	_, err := tx.ExecContext(ctx, q,
		row.ObjectID, row.ObjectPath, row.ObjectPath, pathSeg(row.ObjectPath), row.Size, row.MimeType, row.Checksum,
		row.NumParts, row.PartSize, row.CreatedAt, row.LastModifiedAt, string(object.RecordCreate),
		tags, row.Description, strings.ToLower(row.Description), []byte(row.UserMetadata), row.EntityID, row.MD5State, now,
	)
	if err != nil {
		return object.NewDatabaseError(err)
	}
	return nil
}

func (c *Catalog) replace(ctx context.Context, tx *sql.Tx, row object.Object, tags string) error {
	now := time.Now().UnixMilli()
	if row.LastModifiedAt == 0 {
		row.LastModifiedAt = now
	}

	q := fmt.Sprintf(`UPDATE %s SET
			size = ?, mime_type = ?, checksum = ?, num_parts = ?, part_size = ?,
			last_modified_at = ?, record_type = ?, object_tags = ?, description = ?,
			desc_fts = ?, user_metadata = ?, entity_id = ?, md5_state = ?, rec_time = ?
		WHERE path_key = ?`, c.table)

	_, err := tx.ExecContext(ctx, q,
		row.Size, row.MimeType, row.Checksum, row.NumParts, row.PartSize,
		row.LastModifiedAt, string(object.RecordCreate), tags, row.Description,
		strings.ToLower(row.Description), []byte(row.UserMetadata), row.EntityID, row.MD5State, now,
		row.ObjectPath,
	)
	if err != nil {
		return object.NewDatabaseError(err)
	}
	return nil
}

func (c *Catalog) Read(ctx context.Context, path string, objectID string, sel catalog.Select) (object.Object, error) {
	q := fmt.Sprintf(`SELECT object_id, object_path, size, mime_type, checksum, num_parts, part_size,
			created_at, last_modified_at, record_type, object_tags, description, user_metadata,
			entity_id, md5_state
		FROM %s WHERE path_key = ?`, c.table)
	args := []any{path}
	if objectID != "" {
		q += ` AND object_id = ?`
		args = append(args, objectID)
	}

	var row object.Object
	var tagsRaw, userMeta string
	err := c.db.QueryRowContext(ctx, q, args...).Scan(
		&row.ObjectID, &row.ObjectPath, &row.Size, &row.MimeType, &row.Checksum, &row.NumParts, &row.PartSize,
		&row.CreatedAt, &row.LastModifiedAt, &row.RecordType, &tagsRaw, &row.Description, &userMeta,
		&row.EntityID, &row.MD5State,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return object.Object{}, object.NewNotFound(path)
	}
	if err != nil {
		return object.Object{}, object.NewDatabaseError(err)
	}

	if sel.ObjectTags {
		tags, terr := decodeTags(tagsRaw)
		if terr != nil {
			return object.Object{}, object.NewDatabaseError(terr)
		}
		row.ObjectTags = tags
	}
	if !sel.Description {
		row.Description = ""
	}
	if sel.UserMetadata {
		row.UserMetadata = object.UserMetadata(userMeta)
	}
	return row, nil
}

func (c *Catalog) Exists(ctx context.Context, path string) (bool, error) {
	q := fmt.Sprintf(`SELECT count(*) FROM %s WHERE path_key = ?`, c.table)
	var n int
	if err := c.db.QueryRowContext(ctx, q, path).Scan(&n); err != nil {
		return false, object.NewDatabaseError(err)
	}
	return n > 0, nil
}

func (c *Catalog) Delete(ctx context.Context, path string) (bool, error) {
	q := fmt.Sprintf(`UPDATE %s SET path_key = NULL, record_type = ? WHERE path_key = ?`, c.table)
	res, err := c.db.ExecContext(ctx, q, string(object.RecordDelete), path)
	if err != nil {
		return false, object.NewDatabaseError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, object.NewDatabaseError(err)
	}
	return n > 0, nil
}
