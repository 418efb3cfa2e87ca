// Package cmdutil provides shared utilities for omnio subcommands: the
// global flag set, engine construction from config, and small
// presentation helpers.
//
// Grounded on the teacher's cmd/dittofsctl/cmdutil package (a package-
// level Flags value populated by persistent flags, plus a
// GetAuthenticatedClient-style builder), adapted from "authenticate
// against a remote API" to "construct the embedded engine.Engine
// directly" since omnio has no server process to talk to (§2: "an
// engine.Config struct, not a global file, is the primary construction
// path; the CLI config is a thin wrapper around it").
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tai-kun/omnio-sub001/internal/logger"
	"github.com/tai-kun/omnio-sub001/internal/telemetry"
	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	catmemory "github.com/tai-kun/omnio-sub001/pkg/catalog/memory"
	"github.com/tai-kun/omnio-sub001/pkg/catalog/duckdb"
	"github.com/tai-kun/omnio-sub001/pkg/engine"
	"github.com/tai-kun/omnio-sub001/pkg/object"
	"github.com/tai-kun/omnio-sub001/pkg/partcache"
	"github.com/tai-kun/omnio-sub001/pkg/storage/localfs"
)

// Flags stores global flag values populated by the root command,
// accessible by every subcommand.
var Flags = &GlobalFlags{}

// GlobalFlags holds the process-wide configuration every subcommand
// reads to build its engine.Engine.
type GlobalFlags struct {
	DataDir         string // where localfs roots its buckets and, by default, the duckdb file lives
	Bucket          string
	CatalogKind     string // "duckdb" (default) or "memory"
	LogLevel        string
	LogFormat       string
	JSON            bool
	TraceEnabled    bool
	TraceSampleRate float64
}

// tracingShutdown is set by InitTracing and drained by ShutdownTracing,
// mirroring the teacher's Init/shutdown-func pairing for telemetry.
var tracingShutdown func(context.Context) error

// InitTracing installs a TracerProvider per the current global flags.
// Called once from the root command's PersistentPreRunE, before any
// subcommand builds its engine, so every span an operation opens is
// exported from the start.
func InitTracing() error {
	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		Enabled:     Flags.TraceEnabled,
		ServiceName: "omnio",
		SampleRate:  Flags.TraceSampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	tracingShutdown = shutdown
	return nil
}

// ShutdownTracing flushes and releases the TracerProvider InitTracing
// installed, if any. main.go defers this once, after Root.Execute.
func ShutdownTracing() {
	if tracingShutdown != nil {
		_ = tracingShutdown(context.Background())
	}
}

// BuildEngine constructs and opens an Engine from the current global
// flags. Callers must Close it (typically via defer) when done.
func BuildEngine() (*engine.Engine, error) {
	if Flags.Bucket == "" {
		return nil, fmt.Errorf("--bucket is required")
	}

	log := logger.New(logger.Config{Level: Flags.LogLevel, Format: Flags.LogFormat, Output: os.Stderr})

	storageAdapter, err := localfs.New(localfs.Config{BasePath: Flags.DataDir})
	if err != nil {
		return nil, fmt.Errorf("opening storage root: %w", err)
	}

	cat, err := buildCatalog(Flags.CatalogKind, Flags.DataDir, Flags.Bucket, log.Logger)
	if err != nil {
		return nil, err
	}

	cache, err := partcache.New(partcache.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("constructing part cache: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Bucket:  Flags.Bucket,
		Storage: storageAdapter,
		Catalog: cat,
		Cache:   cache,
		Logger:  log,
		Metrics: telemetry.NewMetrics(nil),
	})
	if err != nil {
		return nil, err
	}

	if err := eng.Open(context.Background()); err != nil {
		return nil, err
	}
	return eng, nil
}

func buildCatalog(kind, dataDir, bucket string, log *slog.Logger) (catalog.Catalog, error) {
	switch kind {
	case "", "duckdb":
		dbPath := filepath.Join(dataDir, bucket+".duckdb")
		return duckdb.Open(duckdb.Config{Path: dbPath, TableSuffix: bucket}, log)
	case "memory":
		return catmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown catalog kind %q (want duckdb or memory)", kind)
	}
}

// ExitForError maps an engine error to a process exit code and a
// human-readable message, the way §7's taxonomy is meant to be
// consumed at a process boundary: precondition/exists/not-found are
// ordinary user-facing outcomes (exit 1), while an InvariantViolation
// is a bug worth calling out distinctly (exit 2).
func ExitForError(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	if object.Is(err, object.KindInvariantViolation) {
		return 2, "internal error: " + err.Error()
	}
	return 1, err.Error()
}
