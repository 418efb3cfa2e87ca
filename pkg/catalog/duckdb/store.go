// Package duckdb implements catalog.Catalog against an embedded DuckDB
// database, using database/sql with the marcboeker/go-duckdb/v2 driver.
// DuckDB was not used anywhere in the example pack; it is named here, not
// grounded, per the project's allowance for out-of-pack dependencies —
// chosen because its embedded, single-file, SQL-with-FTS-extension shape
// matches §4.2's relational-catalog-plus-full-text-search contract
// without standing up a separate database process. Query style (raw SQL
// constants, section-banner comments) follows the teacher's
// pkg/metadata/store/postgres package.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
)

// Config configures a DuckDB-backed Catalog.
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral
	// in-process database.
	Path string
	// TableSuffix distinguishes the catalog table per bucket, since one
	// DuckDB file may back multiple buckets (table name becomes
	// metadata_v1_<TableSuffix>).
	TableSuffix string
}

// Catalog is a DuckDB-backed catalog.Catalog.
type Catalog struct {
	db     *sql.DB
	table  string
	ftsSet string
	logger *slog.Logger
}

// Open creates (or attaches to) the DuckDB database at cfg.Path and
// returns an unmigrated Catalog. Callers must call Migrate before use.
func Open(cfg Config, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, object.NewDatabaseError(err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, object.NewDatabaseError(err)
	}

	table := "metadata_v1"
	if cfg.TableSuffix != "" {
		table = "metadata_v1_" + cfg.TableSuffix
	}

	logger.Info("opened duckdb catalog", "path", cfg.Path, "table", table)
	return &Catalog{db: db, table: table, ftsSet: "fts_main_" + table, logger: logger}, nil
}

// OpenDB wraps an already-open *sql.DB, letting a host process share one
// DuckDB connection across several bucket catalogs.
func OpenDB(db *sql.DB, cfg Config, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	table := "metadata_v1"
	if cfg.TableSuffix != "" {
		table = "metadata_v1_" + cfg.TableSuffix
	}
	return &Catalog{db: db, table: table, ftsSet: "fts_main_" + table, logger: logger}
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Migrate applies the ordered, idempotent migration list for this
// bucket's table: base schema, indexes, then the FTS index build. Every
// statement uses IF NOT EXISTS or is safe to rerun, per §4.2.
func (c *Catalog) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			object_id TEXT NOT NULL,
			object_path TEXT NOT NULL,
			path_key TEXT,
			path_seg TEXT NOT NULL,
			size BIGINT NOT NULL,
			mime_type TEXT NOT NULL,
			checksum TEXT NOT NULL,
			num_parts INTEGER NOT NULL,
			part_size BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			last_modified_at BIGINT NOT NULL,
			record_type TEXT NOT NULL,
			object_tags TEXT NOT NULL DEFAULT '[]',
			description TEXT NOT NULL DEFAULT '',
			desc_fts TEXT NOT NULL DEFAULT '',
			user_metadata TEXT NOT NULL DEFAULT 'null',
			entity_id TEXT NOT NULL,
			md5_state BLOB,
			rec_time BIGINT NOT NULL
		)`, c.table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_path_key_uq ON %s (path_key)`, c.table, c.table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_entity_id_uq ON %s (entity_id)`, c.table, c.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_path_seg_idx ON %s (path_seg)`, c.table, c.table),
		`INSTALL fts`,
		`LOAD fts`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return object.NewDatabaseError(fmt.Errorf("migrate: %s: %w", stmt, err))
		}
	}

	// PRAGMA create_fts_index rebuilds the FTS index over desc_fts;
	// overwrite=1 makes this safe to rerun on every migrate call.
	ftsStmt := fmt.Sprintf(`PRAGMA create_fts_index('%s', 'object_id', 'desc_fts', overwrite=1)`, c.table)
	if _, err := c.db.ExecContext(ctx, ftsStmt); err != nil {
		return object.NewDatabaseError(fmt.Errorf("migrate: fts index: %w", err))
	}
	return nil
}

var _ catalog.Catalog = (*Catalog)(nil)
