package cache

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/version"
)

// File is a single cached file row: the physical, path-addressed half of
// the cache's two-table schema.
type File struct {
	Target       string
	Path         string
	Compression  compression.Format
	FileSize     int64
	FileHash     string
	ContentHash  string
	DiscoveredAt time.Time
}

func marshalList(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalList(raw string, field string, v interface{}) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return invalidData(field, err.Error())
	}
	return nil
}

func nullableUnixTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeFromNullable(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0).UTC()
}

// versionRow mirrors the versions table's columns in scan order.
type versionRow struct {
	contentHash     string
	contentCRC32    int64
	workID          string
	contentSize     int64
	title           string
	authors         string
	fandoms         string
	series          string
	chaptersWritten int64
	chaptersTotal   sql.NullInt64
	words           int64
	summary         sql.NullString
	rating          sql.NullString
	warnings        string
	lang            string
	publishedOn     sql.NullInt64
	lastModified    sql.NullInt64
	tags            string
	extractedAt     int64
}

func scanVersionRow(scanner interface {
	Scan(dest ...interface{}) error
}) (versionRow, error) {
	var r versionRow
	err := scanner.Scan(
		&r.contentHash, &r.contentCRC32, &r.workID, &r.contentSize,
		&r.title, &r.authors, &r.fandoms, &r.series,
		&r.chaptersWritten, &r.chaptersTotal, &r.words,
		&r.summary, &r.rating, &r.warnings, &r.lang,
		&r.publishedOn, &r.lastModified, &r.tags, &r.extractedAt,
	)
	return r, err
}

func (r versionRow) toVersion() (version.Version, error) {
	var authors []version.Author
	if err := unmarshalList(r.authors, "authors", &authors); err != nil {
		return version.Version{}, err
	}
	var fandoms []version.Fandom
	if err := unmarshalList(r.fandoms, "fandoms", &fandoms); err != nil {
		return version.Version{}, err
	}
	var series []version.SeriesPosition
	if err := unmarshalList(r.series, "series", &series); err != nil {
		return version.Version{}, err
	}
	var warnings []version.Warning
	if err := unmarshalList(r.warnings, "warnings", &warnings); err != nil {
		return version.Version{}, err
	}
	var tags []version.Tag
	if err := unmarshalList(r.tags, "tags", &tags); err != nil {
		return version.Version{}, err
	}

	var chaptersTotal *int
	if r.chaptersTotal.Valid {
		n := int(r.chaptersTotal.Int64)
		chaptersTotal = &n
	}

	return version.Version{
		Hash:        r.contentHash,
		Length:      r.contentSize,
		CRC32:       uint32(r.contentCRC32),
		ExtractedAt: time.Unix(r.extractedAt, 0).UTC(),
		Metadata: version.Metadata{
			WorkID:       r.workID,
			Title:        r.title,
			Authors:      authors,
			Fandoms:      fandoms,
			Series:       series,
			Chapters:     version.Chapters{Written: int(r.chaptersWritten), Total: chaptersTotal},
			Words:        int(r.words),
			Rating:       version.Rating(r.rating.String),
			Warnings:     warnings,
			Tags:         tags,
			Language:     r.lang,
			Summary:      r.summary.String,
			Published:    timeFromNullable(r.publishedOn),
			LastModified: timeFromNullable(r.lastModified),
		},
	}, nil
}

// formatByName maps a compression format's canonical name back to its
// value, for decoding the files.compression column.
var formatByName = map[string]compression.Format{
	compression.None.String():  compression.None,
	compression.Gzip.String():  compression.Gzip,
	compression.Bzip2.String(): compression.Bzip2,
	compression.Zstd.String():  compression.Zstd,
	compression.Xz.String():    compression.Xz,
}

func scanFileRow(scanner interface {
	Scan(dest ...interface{}) error
}) (File, error) {
	var f File
	var comp string
	var discoveredAt int64
	if err := scanner.Scan(&f.Target, &f.Path, &comp, &f.FileSize, &f.FileHash, &f.ContentHash, &discoveredAt); err != nil {
		return File{}, err
	}
	f.Compression = formatByName[comp]
	f.DiscoveredAt = time.Unix(discoveredAt, 0).UTC()
	return f, nil
}
