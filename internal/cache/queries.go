package cache

import (
	"context"
	"database/sql"

	"github.com/ao3vault/vault/internal/version"
)

// Record pairs a file row with the version it references.
type Record struct {
	File    File
	Version version.Version
}

// VersionWithFiles groups a version with every file row referencing it.
// Files is empty for a version with no remaining file rows.
type VersionWithFiles struct {
	Version version.Version
	Files   []File
}

// ExistsOutcome is the result of an existence probe at a given
// (target, path, file_hash) triple.
type ExistsOutcome int

const (
	// NotFound means no record at that path, and no file anywhere shares
	// the given hash.
	NotFound ExistsOutcome = iota
	// ExactMatch means a record exists at that path and its file hash
	// matches.
	ExactMatch
	// HashMismatch means a record exists at that path but its file hash
	// differs.
	HashMismatch
	// LocatedElsewhere means no record exists at that path, but some
	// other path shares the given hash.
	LocatedElsewhere
)

func (o ExistsOutcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case ExactMatch:
		return "exact_match"
	case HashMismatch:
		return "hash_mismatch"
	case LocatedElsewhere:
		return "located_elsewhere"
	default:
		return "unknown"
	}
}

const recordSelect = `
	SELECT f.target, f.path, f.compression, f.file_size, f.file_hash, f.content_hash, f.discovered_at,
	       v.content_hash, v.content_crc32, v.work_id, v.content_size, v.title,
	       v.authors, v.fandoms, v.series, v.chapters_written, v.chapters_total, v.words,
	       v.summary, v.rating, v.warnings, v.lang, v.published_on, v.last_modified, v.tags, v.extracted_at
	FROM files f
	JOIN versions v ON v.content_hash = f.content_hash`

func scanRecord(rows *sql.Rows) (Record, error) {
	var f File
	var comp string
	var discoveredAt int64
	var vr versionRow

	err := rows.Scan(
		&f.Target, &f.Path, &comp, &f.FileSize, &f.FileHash, &f.ContentHash, &discoveredAt,
		&vr.contentHash, &vr.contentCRC32, &vr.workID, &vr.contentSize, &vr.title,
		&vr.authors, &vr.fandoms, &vr.series, &vr.chaptersWritten, &vr.chaptersTotal, &vr.words,
		&vr.summary, &vr.rating, &vr.warnings, &vr.lang, &vr.publishedOn, &vr.lastModified, &vr.tags, &vr.extractedAt,
	)
	if err != nil {
		return Record{}, err
	}
	f.Compression = formatByName[comp]
	f.DiscoveredAt = timeFromNullable(sql.NullInt64{Int64: discoveredAt, Valid: true})

	v, err := vr.toVersion()
	if err != nil {
		return Record{}, err
	}
	return Record{File: f, Version: v}, nil
}

// GetByTargetPath returns the record at (target, path), or nil if none
// exists.
func (r *Repository) GetByTargetPath(ctx context.Context, target, path string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, recordSelect+` WHERE f.target = ? AND f.path = ?`, target, path)
	rec, err := scanSingleRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDB("get by target path", err)
	}
	return &rec, nil
}

// GetByPathAcrossTargets returns every record sharing path, across all
// targets.
func (r *Repository) GetByPathAcrossTargets(ctx context.Context, path string) ([]Record, error) {
	return r.queryRecords(ctx, recordSelect+` WHERE f.path = ?`, path)
}

// GetByFileHashInTarget returns every record in target sharing fileHash.
func (r *Repository) GetByFileHashInTarget(ctx context.Context, target, fileHash string) ([]Record, error) {
	return r.queryRecords(ctx, recordSelect+` WHERE f.target = ? AND f.file_hash = ?`, target, fileHash)
}

// GetByFileHashAcrossTargets returns every record sharing fileHash,
// regardless of target.
func (r *Repository) GetByFileHashAcrossTargets(ctx context.Context, fileHash string) ([]Record, error) {
	return r.queryRecords(ctx, recordSelect+` WHERE f.file_hash = ?`, fileHash)
}

// GetByContentHash returns the version for contentHash together with
// every file row referencing it. Files is empty (not an error) for a
// version with no remaining file rows. Returns nil if the version does
// not exist.
func (r *Repository) GetByContentHash(ctx context.Context, contentHash string) (*VersionWithFiles, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT content_hash, content_crc32, work_id, content_size, title,
		       authors, fandoms, series, chapters_written, chapters_total, words,
		       summary, rating, warnings, lang, published_on, last_modified, tags, extracted_at
		FROM versions WHERE content_hash = ?`, contentHash)
	vr, err := scanVersionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDB("get by content hash", err)
	}
	v, err := vr.toVersion()
	if err != nil {
		return nil, err
	}
	files, err := r.filesForContentHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	return &VersionWithFiles{Version: v, Files: files}, nil
}

// GetByWorkID returns every version for workID, each with its files.
func (r *Repository) GetByWorkID(ctx context.Context, workID string) ([]VersionWithFiles, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT content_hash, content_crc32, work_id, content_size, title,
		       authors, fandoms, series, chapters_written, chapters_total, words,
		       summary, rating, warnings, lang, published_on, last_modified, tags, extracted_at
		FROM versions WHERE work_id = ?`, workID)
	if err != nil {
		return nil, wrapDB("get by work id", err)
	}
	defer rows.Close()

	var versions []version.Version
	for rows.Next() {
		vr, err := scanVersionRow(rows)
		if err != nil {
			return nil, wrapDB("scan version row", err)
		}
		v, err := vr.toVersion()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the cursor before the per-version file lookups: the
	// in-memory pool holds a single connection.
	rows.Close()

	var out []VersionWithFiles
	for _, v := range versions {
		files, err := r.filesForContentHash(ctx, v.Hash)
		if err != nil {
			return nil, err
		}
		out = append(out, VersionWithFiles{Version: v, Files: files})
	}
	return out, nil
}

// GetBestForWorkID returns the highest-ranked version (per version.Best)
// for workID, together with its files. Returns nil if no version exists
// for workID.
func (r *Repository) GetBestForWorkID(ctx context.Context, workID string) (*VersionWithFiles, error) {
	all, err := r.GetByWorkID(ctx, workID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	best := all[0]
	for _, candidate := range all[1:] {
		if version.Compare(candidate.Version, best.Version) > 0 {
			best = candidate
		}
	}
	return &best, nil
}

// Exists probes whether a file matching (target, path, file_hash) is
// already known to the cache.
func (r *Repository) Exists(ctx context.Context, target, path, fileHash string) (ExistsOutcome, error) {
	var existingHash sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT file_hash FROM files WHERE target = ? AND path = ?`, target, path).Scan(&existingHash)
	switch {
	case err == nil:
		if existingHash.String == fileHash {
			return ExactMatch, nil
		}
		return HashMismatch, nil
	case err != sql.ErrNoRows:
		return NotFound, wrapDB("exists lookup", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE file_hash = ?`, fileHash).Scan(&count); err != nil {
		return NotFound, wrapDB("exists elsewhere lookup", err)
	}
	if count > 0 {
		return LocatedElsewhere, nil
	}
	return NotFound, nil
}

func (r *Repository) filesForContentHash(ctx context.Context, contentHash string) ([]File, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT target, path, compression, file_size, file_hash, content_hash, discovered_at
		FROM files WHERE content_hash = ?`, contentHash)
	if err != nil {
		return nil, wrapDB("files for content hash", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFileRow(rows)
		if err != nil {
			return nil, wrapDB("scan file row", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDB("query records", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrapDB("scan record", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanSingleRecord(row *sql.Row) (Record, error) {
	var f File
	var comp string
	var discoveredAt int64
	var vr versionRow

	err := row.Scan(
		&f.Target, &f.Path, &comp, &f.FileSize, &f.FileHash, &f.ContentHash, &discoveredAt,
		&vr.contentHash, &vr.contentCRC32, &vr.workID, &vr.contentSize, &vr.title,
		&vr.authors, &vr.fandoms, &vr.series, &vr.chaptersWritten, &vr.chaptersTotal, &vr.words,
		&vr.summary, &vr.rating, &vr.warnings, &vr.lang, &vr.publishedOn, &vr.lastModified, &vr.tags, &vr.extractedAt,
	)
	if err != nil {
		return Record{}, err
	}
	f.Compression = formatByName[comp]
	f.DiscoveredAt = timeFromNullable(sql.NullInt64{Int64: discoveredAt, Valid: true})

	v, err := vr.toVersion()
	if err != nil {
		return Record{}, err
	}
	return Record{File: f, Version: v}, nil
}
