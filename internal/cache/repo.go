package cache

import (
	"context"
	"database/sql"

	"github.com/ao3vault/vault/internal/cachedb"
	"github.com/ao3vault/vault/internal/version"
)

// Repository is the cache's public API, implemented over a cachedb.DB.
// All mutating methods honor DryRun by short-circuiting to a success
// result without touching the database.
type Repository struct {
	db     *cachedb.DB
	DryRun bool
}

// New wraps db in a Repository.
func New(db *cachedb.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts version (if its content_hash is not already present) and
// upserts the file row keyed by (target, path). It rejects mismatched
// hashes between file and version up front.
func (r *Repository) Upsert(ctx context.Context, file File, v version.Version) error {
	if file.ContentHash != v.Hash {
		return invalidData("content_hash", "file.ContentHash does not match version.Hash")
	}
	if r.DryRun {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDB("begin upsert transaction", err)
	}
	defer tx.Rollback()

	authors, err := marshalList(v.Authors)
	if err != nil {
		return invalidData("authors", err.Error())
	}
	fandoms, err := marshalList(v.Fandoms)
	if err != nil {
		return invalidData("fandoms", err.Error())
	}
	series, err := marshalList(v.Series)
	if err != nil {
		return invalidData("series", err.Error())
	}
	warnings, err := marshalList(v.Warnings)
	if err != nil {
		return invalidData("warnings", err.Error())
	}
	tags, err := marshalList(v.Tags)
	if err != nil {
		return invalidData("tags", err.Error())
	}

	var chaptersTotal sql.NullInt64
	if v.Chapters.Total != nil {
		chaptersTotal = sql.NullInt64{Int64: int64(*v.Chapters.Total), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO versions (
			content_hash, content_crc32, work_id, content_size, title,
			authors, fandoms, series, chapters_written, chapters_total,
			words, summary, rating, warnings, lang, published_on,
			last_modified, tags, extracted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_hash) DO NOTHING`,
		v.Hash, int64(v.CRC32), v.WorkID, v.Length, v.Title,
		authors, fandoms, series, v.Chapters.Written, chaptersTotal,
		v.Words, nullString(v.Summary), nullString(string(v.Rating)), warnings, v.Language,
		nullableUnixTime(v.Published), nullableUnixTime(v.LastModified), tags, v.ExtractedAt.Unix(),
	)
	if err != nil {
		return wrapDB("insert version", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (target, path, compression, file_size, file_hash, content_hash, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (target, path) DO UPDATE SET
			compression = excluded.compression,
			file_size = excluded.file_size,
			file_hash = excluded.file_hash,
			content_hash = excluded.content_hash,
			discovered_at = excluded.discovered_at`,
		file.Target, file.Path, file.Compression.String(), file.FileSize, file.FileHash,
		file.ContentHash, file.DiscoveredAt.Unix(),
	)
	if err != nil {
		return wrapDB("upsert file", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapDB("commit upsert transaction", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// UpdateTargetPath renames a file's path within target, returning whether
// a row was affected.
func (r *Repository) UpdateTargetPath(ctx context.Context, target, oldPath, newPath string) (bool, error) {
	if r.DryRun {
		return true, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE files SET path = ? WHERE target = ? AND path = ?`, newPath, target, oldPath)
	if err != nil {
		return false, wrapDB("update target path", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDB("rows affected", err)
	}
	return n > 0, nil
}

// DeleteByTargetPath removes the file row at (target, path). It never
// removes the referenced version.
func (r *Repository) DeleteByTargetPath(ctx context.Context, target, path string) (int64, error) {
	if r.DryRun {
		return r.countMatching(ctx, `SELECT COUNT(*) FROM files WHERE target = ? AND path = ?`, target, path)
	}
	return r.execAffected(ctx, `DELETE FROM files WHERE target = ? AND path = ?`, target, path)
}

// DeleteByTargetFileHash removes all file rows in target with the given
// file_hash.
func (r *Repository) DeleteByTargetFileHash(ctx context.Context, target, fileHash string) (int64, error) {
	if r.DryRun {
		return r.countMatching(ctx, `SELECT COUNT(*) FROM files WHERE target = ? AND file_hash = ?`, target, fileHash)
	}
	return r.execAffected(ctx, `DELETE FROM files WHERE target = ? AND file_hash = ?`, target, fileHash)
}

// DeleteByFileHashAcrossTargets removes all file rows with the given
// file_hash, regardless of target.
func (r *Repository) DeleteByFileHashAcrossTargets(ctx context.Context, fileHash string) (int64, error) {
	if r.DryRun {
		return r.countMatching(ctx, `SELECT COUNT(*) FROM files WHERE file_hash = ?`, fileHash)
	}
	return r.execAffected(ctx, `DELETE FROM files WHERE file_hash = ?`, fileHash)
}

// DeleteByContentHash removes the version with the given content hash,
// cascading to any referencing file rows.
func (r *Repository) DeleteByContentHash(ctx context.Context, contentHash string) (int64, error) {
	if r.DryRun {
		return r.countMatching(ctx, `SELECT COUNT(*) FROM versions WHERE content_hash = ?`, contentHash)
	}
	return r.execAffected(ctx, `DELETE FROM versions WHERE content_hash = ?`, contentHash)
}

// DeleteByWorkID removes every version for work_id, cascading to their
// referencing file rows.
func (r *Repository) DeleteByWorkID(ctx context.Context, workID string) (int64, error) {
	if r.DryRun {
		return r.countMatching(ctx, `SELECT COUNT(*) FROM versions WHERE work_id = ?`, workID)
	}
	return r.execAffected(ctx, `DELETE FROM versions WHERE work_id = ?`, workID)
}

// DeleteOrphanedVersions removes versions with no referencing file rows,
// returning the number deleted (or, in dry-run, the number that would be).
func (r *Repository) DeleteOrphanedVersions(ctx context.Context) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM versions v
		WHERE NOT EXISTS (SELECT 1 FROM files f WHERE f.content_hash = v.content_hash)`
	if r.DryRun {
		return r.countMatching(ctx, query)
	}
	return r.execAffected(ctx, `
		DELETE FROM versions WHERE content_hash IN (
			SELECT v.content_hash FROM versions v
			WHERE NOT EXISTS (SELECT 1 FROM files f WHERE f.content_hash = v.content_hash)
		)`)
}

func (r *Repository) execAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapDB("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDB("rows affected", err)
	}
	return n, nil
}

func (r *Repository) countMatching(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrapDB("count matching", err)
	}
	return n, nil
}
