package cache

import (
	"context"
)

// ListTargets returns every distinct target with at least one file row.
func (r *Repository) ListTargets(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT target FROM files ORDER BY target`)
}

// ListVersionsForTarget returns every version referenced by at least one
// file row in target, each with its files restricted to that target.
func (r *Repository) ListVersionsForTarget(ctx context.Context, target string) ([]VersionWithFiles, error) {
	records, err := r.queryRecords(ctx, recordSelect+` WHERE f.target = ?`, target)
	if err != nil {
		return nil, err
	}
	grouped := map[string]*VersionWithFiles{}
	var order []string
	for _, rec := range records {
		g, ok := grouped[rec.Version.Hash]
		if !ok {
			g = &VersionWithFiles{Version: rec.Version}
			grouped[rec.Version.Hash] = g
			order = append(order, rec.Version.Hash)
		}
		g.Files = append(g.Files, rec.File)
	}
	out := make([]VersionWithFiles, 0, len(order))
	for _, hash := range order {
		out = append(out, *grouped[hash])
	}
	return out, nil
}

// ListFilesForTarget returns every file row in target.
func (r *Repository) ListFilesForTarget(ctx context.Context, target string) ([]File, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT target, path, compression, file_size, file_hash, content_hash, discovered_at
		FROM files WHERE target = ? ORDER BY path`, target)
	if err != nil {
		return nil, wrapDB("list files for target", err)
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

// ListPathsForTarget returns only the path column for every file row in
// target, avoiding the cost of hydrating full file/version records.
func (r *Repository) ListPathsForTarget(ctx context.Context, target string) ([]string, error) {
	return r.queryStrings(ctx, `SELECT path FROM files WHERE target = ? ORDER BY path`, target)
}

// ListRecentFiles returns the limit most recently discovered file rows
// across all targets, newest first.
func (r *Repository) ListRecentFiles(ctx context.Context, limit int) ([]File, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT target, path, compression, file_size, file_hash, content_hash, discovered_at
		FROM files ORDER BY discovered_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrapDB("list recent files", err)
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

// ListWorkIDs returns every distinct work id with at least one version,
// restricted to target when non-empty.
func (r *Repository) ListWorkIDs(ctx context.Context, target string) ([]string, error) {
	if target == "" {
		return r.queryStrings(ctx, `SELECT DISTINCT work_id FROM versions ORDER BY work_id`)
	}
	return r.queryStrings(ctx, `
		SELECT DISTINCT v.work_id FROM versions v
		JOIN files f ON f.content_hash = v.content_hash
		WHERE f.target = ? ORDER BY v.work_id`, target)
}

// CountFiles returns the total number of file rows.
func (r *Repository) CountFiles(ctx context.Context) (int64, error) {
	return r.countMatching(ctx, `SELECT COUNT(*) FROM files`)
}

// CountVersions returns the total number of version rows.
func (r *Repository) CountVersions(ctx context.Context) (int64, error) {
	return r.countMatching(ctx, `SELECT COUNT(*) FROM versions`)
}

// CountWorks returns the number of distinct work ids.
func (r *Repository) CountWorks(ctx context.Context) (int64, error) {
	return r.countMatching(ctx, `SELECT COUNT(DISTINCT work_id) FROM versions`)
}

// DuplicateGroup is one content hash or work id with more than one
// referencing row, ordered by count descending by the caller's query.
type DuplicateGroup struct {
	Key   string
	Count int
}

// DuplicateContentHashesInTarget returns content hashes referenced by more
// than one file row within target, most-duplicated first.
func (r *Repository) DuplicateContentHashesInTarget(ctx context.Context, target string) ([]DuplicateGroup, error) {
	return r.queryDuplicateGroups(ctx, `
		SELECT content_hash, COUNT(*) c FROM files WHERE target = ?
		GROUP BY content_hash HAVING c > 1 ORDER BY c DESC`, target)
}

// DuplicateContentHashesAcrossTargets returns content hashes referenced by
// more than one file row across all targets, most-duplicated first.
func (r *Repository) DuplicateContentHashesAcrossTargets(ctx context.Context) ([]DuplicateGroup, error) {
	return r.queryDuplicateGroups(ctx, `
		SELECT content_hash, COUNT(*) c FROM files
		GROUP BY content_hash HAVING c > 1 ORDER BY c DESC`)
}

// DuplicateWorkIDs returns work ids with more than one version, most
// duplicated first.
func (r *Repository) DuplicateWorkIDs(ctx context.Context) ([]DuplicateGroup, error) {
	return r.queryDuplicateGroups(ctx, `
		SELECT work_id, COUNT(*) c FROM versions
		GROUP BY work_id HAVING c > 1 ORDER BY c DESC`)
}

// Stats is the aggregate summary backing the stats subcommand.
type Stats struct {
	Files       int64
	Versions    int64
	Works       int64
	BytesOnDisk int64
}

// Stats computes the cache's aggregate summary with one aggregate query
// over files and two over versions (version count, distinct work count).
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM files`).
		Scan(&s.Files, &s.BytesOnDisk); err != nil {
		return Stats{}, wrapDB("stats files", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions`).Scan(&s.Versions); err != nil {
		return Stats{}, wrapDB("stats versions", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT work_id) FROM versions`).Scan(&s.Works); err != nil {
		return Stats{}, wrapDB("stats works", err)
	}
	return s, nil
}

func (r *Repository) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDB("query strings", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, wrapDB("scan string", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) queryDuplicateGroups(ctx context.Context, query string, args ...interface{}) ([]DuplicateGroup, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDB("query duplicate groups", err)
	}
	defer rows.Close()

	var out []DuplicateGroup
	for rows.Next() {
		var g DuplicateGroup
		if err := rows.Scan(&g.Key, &g.Count); err != nil {
			return nil, wrapDB("scan duplicate group", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
