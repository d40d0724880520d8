package scan

import (
	"context"
	"encoding/hex"
	"hash/crc32"
	"time"

	"github.com/zeebo/blake3"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/extract"
	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/storage"
	"github.com/ao3vault/vault/internal/version"
)

// Effort names how much work a single-file scan actually performed.
type Effort int

const (
	// Cached means no extraction ran: either the cache already held a
	// same-size row at this path (no bytes were read), or the file's
	// bytes matched a file cached at another path and that file's
	// version was adopted.
	Cached Effort = iota
	// Recalculated means a stale cache row was found at this path (a
	// hash/size mismatch) and the file was re-extracted.
	Recalculated
	// Processed means no cache row existed at this path and the file was
	// extracted for the first time.
	Processed
)

func (e Effort) String() string {
	switch e {
	case Cached:
		return "cached"
	case Recalculated:
		return "recalculated"
	case Processed:
		return "processed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single-file scan.
type Result struct {
	File   fileinfo.Processed
	Effort Effort
}

// hashHex returns the lowercase hex BLAKE3 digest of b.
func hashHex(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// File scans a single file against backend and cache. file may carry
// hashes from a prior stage; they are discarded on entry since the point
// of a scan is to recompute them against current bytes.
func File(ctx context.Context, backend storage.Backend, repo *cache.Repository, file fileinfo.Discovered) (Result, error) {
	target := backend.Name()

	if cached, err := repo.GetByTargetPath(ctx, target, file.Path); err != nil {
		return Result{}, wrapCache(file.Path, err)
	} else if cached != nil && cached.File.FileSize == file.Size {
		return Result{
			File:   fileinfo.Processed{Meta: file.Meta, FileHash: cached.File.FileHash, ContentHash: cached.File.ContentHash},
			Effort: Cached,
		}, nil
	}

	data, err := backend.Read(ctx, file.Path)
	if err != nil {
		return Result{}, wrapStorage(file.Path, err)
	}
	fileHash := hashHex(data)

	outcome, err := repo.Exists(ctx, target, file.Path, fileHash)
	if err != nil {
		return Result{}, wrapCache(file.Path, err)
	}

	switch outcome {
	case cache.LocatedElsewhere:
		return adoptElsewhere(ctx, repo, file, fileHash)
	case cache.ExactMatch, cache.HashMismatch:
		if _, err := repo.DeleteByTargetPath(ctx, target, file.Path); err != nil {
			return Result{}, wrapCache(file.Path, err)
		}
		return extractAndUpsert(ctx, repo, file, data, fileHash, Recalculated)
	default: // cache.NotFound
		return extractAndUpsert(ctx, repo, file, data, fileHash, Processed)
	}
}

// adoptElsewhere handles the LocatedElsewhere outcome: some other path
// already holds a file with this exact (compressed) byte content, so its
// content_hash is adopted for this path without re-extracting.
func adoptElsewhere(ctx context.Context, repo *cache.Repository, file fileinfo.Discovered, fileHash string) (Result, error) {
	elsewhere, err := repo.GetByFileHashAcrossTargets(ctx, fileHash)
	if err != nil {
		return Result{}, wrapCache(file.Path, err)
	}
	if len(elsewhere) == 0 {
		// The probe raced with a concurrent delete; report an error
		// rather than adopting a content hash with no backing version.
		return Result{}, wrapCache(file.Path, errNoElsewhereRecord)
	}
	other := elsewhere[0]

	cacheFile := cache.File{
		Target:       file.Target,
		Path:         file.Path,
		Compression:  file.Compression,
		FileSize:     file.Size,
		FileHash:     fileHash,
		ContentHash:  other.File.ContentHash,
		DiscoveredAt: file.DiscoveredAt,
	}
	if err := repo.Upsert(ctx, cacheFile, other.Version); err != nil {
		return Result{}, wrapCache(file.Path, err)
	}

	return Result{
		File:   fileinfo.Processed{Meta: file.Meta, FileHash: fileHash, ContentHash: other.File.ContentHash},
		Effort: Cached,
	}, nil
}

type scanError string

func (e scanError) Error() string { return string(e) }

var errNoElsewhereRecord = scanError("cache reported a file hash located elsewhere but no record was found")

// extractAndUpsert decompresses data under file's compression format,
// extracts its metadata, builds and upserts the (file, version) pair, and
// returns the Processed result at the given effort.
func extractAndUpsert(ctx context.Context, repo *cache.Repository, file fileinfo.Discovered, data []byte, fileHash string, effort Effort) (Result, error) {
	decompressed, err := compression.Decompress(file.Compression, data)
	if err != nil {
		return Result{}, wrapCompression(file.Path, err)
	}

	metadata, err := extract.Extract(decompressed)
	if err != nil {
		return Result{}, wrapExtract(file.Path, err)
	}

	contentHash := hashHex(decompressed)
	v := version.Version{
		Hash:        contentHash,
		Length:      int64(len(decompressed)),
		CRC32:       crc32.ChecksumIEEE(decompressed),
		ExtractedAt: time.Now().UTC(),
		Metadata:    metadata,
	}

	cacheFile := cache.File{
		Target:       file.Target,
		Path:         file.Path,
		Compression:  file.Compression,
		FileSize:     file.Size,
		FileHash:     fileHash,
		ContentHash:  contentHash,
		DiscoveredAt: file.DiscoveredAt,
	}
	if err := repo.Upsert(ctx, cacheFile, v); err != nil {
		return Result{}, wrapCache(file.Path, err)
	}

	return Result{
		File:   fileinfo.Processed{Meta: file.Meta, FileHash: fileHash, ContentHash: contentHash},
		Effort: effort,
	}, nil
}
