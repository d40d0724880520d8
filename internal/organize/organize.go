package organize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/extract"
	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/scan"
	"github.com/ao3vault/vault/internal/storage"
	"github.com/ao3vault/vault/internal/template"
	"github.com/ao3vault/vault/internal/version"
)

// maxConflictDepth bounds the recursive conflict-resolution chain.
const maxConflictDepth = 5

// ActionKind names the terminal outcome of a single-file organize call.
type ActionKind int

const (
	// Renamed means the file was relocated (with or without transcoding)
	// to its correct path.
	Renamed ActionKind = iota
	// AlreadyCorrect means the file was already at its correct path;
	// nothing on the backend was moved, rewritten or deleted.
	AlreadyCorrect
	// CleanedUp means the file (or a stale cache row for it) was removed
	// rather than relocated: it no longer existed on the backend, was
	// not a valid document, or was a redundant duplicate of a version
	// already correctly placed elsewhere.
	CleanedUp
)

func (k ActionKind) String() string {
	switch k {
	case Renamed:
		return "renamed"
	case AlreadyCorrect:
		return "already_correct"
	case CleanedUp:
		return "cleaned_up"
	default:
		return "unknown"
	}
}

// Action is the result of a successful single-file organize call.
type Action struct {
	Kind ActionKind
	Path string
}

// Context bundles the configuration a call to File needs: the path
// template, an optional target compression, and an optional trash
// backend for irreconcilable duplicates.
type Context struct {
	// Template renders a Version into its correct relative path.
	Template *template.Generator
	// Compression is the target compression for every relocated file.
	// nil means "keep each file's existing format" — distinct from a
	// non-nil pointer to compression.None, which strips compression.
	Compression *compression.Format
	// Trash is an optional backend where irreconcilable duplicates are
	// written before being deleted from the primary backend.
	Trash storage.Backend
}

func (c *Context) effectiveCompression(current compression.Format) compression.Format {
	if c.Compression == nil {
		return current
	}
	return *c.Compression
}

// File relocates a single cached file to its template-derived correct
// location. meta need only carry Target and Path; File looks up (or
// populates) the rest from the cache and, if necessary, the scan
// pipeline.
func File(ctx context.Context, backend storage.Backend, repo *cache.Repository, octx *Context, meta fileinfo.Meta) (Action, error) {
	return organizeFile(ctx, backend, repo, octx, meta, nil)
}

func organizeFile(ctx context.Context, backend storage.Backend, repo *cache.Repository, octx *Context, meta fileinfo.Meta, depthStack []string) (Action, error) {
	if meta.Target != backend.Name() {
		return Action{}, wrapStorage(meta.Path, errTargetMismatch)
	}

	exists, err := backend.Exists(ctx, meta.Path)
	if err != nil {
		return Action{}, wrapStorage(meta.Path, err)
	}
	if !exists {
		if _, err := repo.DeleteByTargetPath(ctx, meta.Target, meta.Path); err != nil {
			return Action{}, wrapCache(meta.Path, err)
		}
		return Action{Kind: CleanedUp, Path: meta.Path}, nil
	}

	file, v, err := currentRecord(ctx, backend, repo, meta)
	if err != nil {
		if invalid, cleanupErr := cleanUpIfInvalidDocument(ctx, backend, repo, meta, err); invalid {
			return Action{Kind: CleanedUp, Path: meta.Path}, cleanupErr
		}
		return Action{}, err
	}

	effective := octx.effectiveCompression(file.Compression)
	targetPath, err := octx.Template.GenerateWithExt(v, "html", effective)
	if err != nil {
		return Action{}, wrapTemplate(meta.Path, err)
	}

	if targetPath == file.Path {
		return Action{Kind: AlreadyCorrect, Path: targetPath}, nil
	}

	occupied, err := backend.Exists(ctx, targetPath)
	if err != nil {
		return Action{}, wrapStorage(targetPath, err)
	}
	if occupied {
		freed, terminal, err := resolveConflict(ctx, backend, repo, octx, file, targetPath, depthStack)
		if err != nil {
			return Action{}, err
		}
		if !freed {
			return terminal, nil
		}
	}

	if err := relocate(ctx, backend, file, targetPath, effective); err != nil {
		return Action{}, err
	}

	// Best-effort: a failure here is reconciled by the next scan.
	_, _ = repo.UpdateTargetPath(ctx, meta.Target, file.Path, targetPath)

	return Action{Kind: Renamed, Path: targetPath}, nil
}

// currentRecord returns the Processed file descriptor and Version for
// meta, populating the cache via the scan pipeline if no record exists
// yet.
func currentRecord(ctx context.Context, backend storage.Backend, repo *cache.Repository, meta fileinfo.Meta) (fileinfo.Processed, version.Version, error) {
	record, err := repo.GetByTargetPath(ctx, meta.Target, meta.Path)
	if err != nil {
		return fileinfo.Processed{}, version.Version{}, wrapCache(meta.Path, err)
	}
	if record != nil {
		processed := fileinfo.Processed{Meta: meta, FileHash: record.File.FileHash, ContentHash: record.File.ContentHash}
		processed.Compression = record.File.Compression
		processed.Size = record.File.FileSize
		return processed, record.Version, nil
	}

	stat, err := backend.Stat(ctx, meta.Path)
	if err != nil {
		return fileinfo.Processed{}, version.Version{}, wrapStorage(meta.Path, err)
	}

	result, err := scan.File(ctx, backend, repo, fileinfo.Discovered{Meta: stat.Meta})
	if err != nil {
		return fileinfo.Processed{}, version.Version{}, wrapScan(meta.Path, err)
	}

	withFiles, err := repo.GetByContentHash(ctx, result.File.ContentHash)
	if err != nil {
		return fileinfo.Processed{}, version.Version{}, wrapCache(meta.Path, err)
	}
	if withFiles == nil {
		return fileinfo.Processed{}, version.Version{}, wrapCache(meta.Path, fmt.Errorf("version %s vanished immediately after upsert", result.File.ContentHash))
	}
	return result.File, withFiles.Version, nil
}

// cleanUpIfInvalidDocument reports whether cause's root scan failure
// indicates the document at meta could not be extracted at all (as
// opposed to a storage or cache failure), and if so deletes the file from
// the backend and its stale cache row.
func cleanUpIfInvalidDocument(ctx context.Context, backend storage.Backend, repo *cache.Repository, meta fileinfo.Meta, cause error) (bool, error) {
	var extractErr *extract.Error
	if !errors.As(cause, &extractErr) {
		return false, nil
	}
	if err := backend.Delete(ctx, meta.Path); err != nil {
		return true, wrapStorage(meta.Path, err)
	}
	if _, err := repo.DeleteByTargetPath(ctx, meta.Target, meta.Path); err != nil {
		return true, wrapCache(meta.Path, err)
	}
	return true, nil
}

// relocate moves file to targetPath, transcoding when the effective
// compression differs from the file's current format.
func relocate(ctx context.Context, backend storage.Backend, file fileinfo.Processed, targetPath string, effective compression.Format) error {
	if effective == file.Compression {
		if err := backend.Rename(ctx, file.Path, targetPath); err != nil {
			return wrapStorage(file.Path, err)
		}
		return nil
	}

	data, err := backend.Read(ctx, file.Path)
	if err != nil {
		return wrapStorage(file.Path, err)
	}
	decompressed, err := compression.Decompress(file.Compression, data)
	if err != nil {
		return wrapCompression(file.Path, err)
	}
	recompressed, err := compression.Compress(effective, decompressed)
	if err != nil {
		return wrapCompression(targetPath, err)
	}
	if err := backend.Write(ctx, targetPath, recompressed); err != nil {
		return wrapStorage(targetPath, err)
	}
	if err := backend.Delete(ctx, file.Path); err != nil {
		return wrapStorage(file.Path, err)
	}
	return nil
}

// trashName composes the disambiguated filename an irreconcilable
// duplicate is parked under in the trash backend.
func trashName(file fileinfo.Processed) string {
	return fmt.Sprintf("%s-%d.html%s", file.FileHash, time.Now().Unix(), file.Compression.Extension())
}

// trashNameFor is trashName with a fallback: on the rare occasion that two
// duplicates of the same file land in the trash within the same second,
// the file_hash-timestamp name collides, so a random UUID is inserted
// before the compression extension to keep both copies.
func trashNameFor(ctx context.Context, trash storage.Backend, file fileinfo.Processed) string {
	name := trashName(file)
	if occupied, err := trash.Exists(ctx, name); err != nil || !occupied {
		return name
	}
	ext := file.Compression.Extension()
	base := name[:len(name)-len(ext)]
	return fmt.Sprintf("%s-%s%s", base, uuid.NewString(), ext)
}
