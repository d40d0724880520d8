package cachedb

import "context"

// schemaStatements creates the cache's two tables if they do not already
// exist. Migrations are intentionally additive and idempotent: the cache
// is a disposable projection over the library's files, so there is no
// need for a versioned migration log.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS versions (
		content_hash     TEXT PRIMARY KEY,
		content_crc32    INTEGER NOT NULL,
		work_id          TEXT NOT NULL,
		content_size     INTEGER NOT NULL,
		title            TEXT NOT NULL,
		authors          TEXT NOT NULL,
		fandoms          TEXT NOT NULL,
		series           TEXT NOT NULL,
		chapters_written INTEGER NOT NULL,
		chapters_total   INTEGER,
		words            INTEGER NOT NULL,
		summary          TEXT,
		rating           TEXT,
		warnings         TEXT NOT NULL,
		lang             TEXT NOT NULL,
		published_on     INTEGER,
		last_modified    INTEGER,
		tags             TEXT NOT NULL,
		extracted_at     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS versions_work_id_idx ON versions (work_id)`,
	`CREATE TABLE IF NOT EXISTS files (
		target        TEXT NOT NULL,
		path          TEXT NOT NULL,
		compression   TEXT NOT NULL,
		file_size     INTEGER NOT NULL,
		file_hash     TEXT NOT NULL,
		content_hash  TEXT NOT NULL REFERENCES versions (content_hash) ON DELETE CASCADE,
		discovered_at INTEGER NOT NULL,
		PRIMARY KEY (target, path)
	)`,
	`CREATE INDEX IF NOT EXISTS files_content_hash_idx ON files (content_hash)`,
	`CREATE INDEX IF NOT EXISTS files_file_hash_idx ON files (file_hash)`,
}

func (db *DB) migrate(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
