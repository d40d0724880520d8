// Package cachedb owns the cache's embedded SQLite connection pool,
// pragmas, and schema migrations. The cache is a projection: it can
// always be rebuilt from the files themselves, so this package favors
// simplicity (idempotent migrations, no write-ahead log of its own beyond
// what SQLite's WAL mode provides) over durability machinery.
package cachedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// maxOpenConnections bounds the pool for an on-disk database.
const maxOpenConnections = 5

// DB wraps a *sql.DB configured with the cache's pragmas and schema.
type DB struct {
	*sql.DB
	// inMemory records whether this database is the single-connection
	// in-memory mode used by tests.
	inMemory bool
}

// dsnPragmas are applied to every connection via modernc.org/sqlite's
// "_pragma" DSN parameter, since database/sql may open more than one
// underlying connection and SQLite pragmas are per-connection.
var dsnPragmas = []string{
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
	"_pragma=synchronous(NORMAL)",
	"_pragma=busy_timeout(1500)",
	"_pragma=temp_store(MEMORY)",
	"_pragma=mmap_size(268435456)", // 256 MiB
	"_pragma=wal_autocheckpoint(1000)",
}

// Open opens (or creates) the cache database at path, applying the
// standard pragmas and running schema migrations. If path is empty, an
// in-memory database limited to a single connection is opened instead,
// for use in tests.
func Open(path string) (*DB, error) {
	if path == "" {
		return openDSN("file::memory:?cache=shared&"+joinPragmas(), true)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "cachedb: create database directory")
	}
	dsn := fmt.Sprintf("file:%s?%s", filepath.ToSlash(path), joinPragmas())
	return openDSN(dsn, false)
}

func joinPragmas() string {
	joined := ""
	for i, p := range dsnPragmas {
		if i > 0 {
			joined += "&"
		}
		joined += p
	}
	return joined
}

func openDSN(dsn string, inMemory bool) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "cachedb: open")
	}

	if inMemory {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(maxOpenConnections)
	}

	db := &DB{DB: sqlDB, inMemory: inMemory}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "cachedb: migrate")
	}
	return db, nil
}

// Close runs PRAGMA optimize before closing the underlying pool.
func (db *DB) Close() error {
	_, _ = db.Exec("PRAGMA optimize")
	return db.DB.Close()
}
