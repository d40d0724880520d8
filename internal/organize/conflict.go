package organize

import (
	"context"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/storage"
)

// resolveConflict handles an incoming Processed file whose correct path
// (targetPath) is already occupied. It reports whether the slot is now
// free for the caller to proceed (freed), or — when not freed — a
// terminal Action the caller should return directly (the incoming file
// was itself cleaned up as a redundant duplicate). A non-nil error means
// the conflict could not be reconciled at all.
func resolveConflict(
	ctx context.Context,
	backend storage.Backend,
	repo *cache.Repository,
	octx *Context,
	incoming fileinfo.Processed,
	targetPath string,
	depthStack []string,
) (freed bool, terminal Action, err error) {
	existingMeta := fileinfo.Meta{Target: backend.Name(), Path: targetPath}
	existing, _, err := currentRecord(ctx, backend, repo, existingMeta)
	if err != nil {
		if invalid, cleanupErr := cleanUpIfInvalidDocument(ctx, backend, repo, existingMeta, err); invalid {
			if cleanupErr != nil {
				return false, Action{}, cleanupErr
			}
			// The occupant was never a valid document and has been
			// removed; the slot is free.
			return true, Action{}, nil
		}
		return false, Action{}, err
	}

	if incoming.ContentHash == existing.ContentHash {
		// The occupant is already the correct version for this exact
		// location (target paths are deterministic functions of
		// content), so the incoming file is a redundant duplicate.
		if err := backend.Delete(ctx, incoming.Path); err != nil {
			return false, Action{}, wrapStorage(incoming.Path, err)
		}
		if _, err := repo.DeleteByTargetPath(ctx, incoming.Target, incoming.Path); err != nil {
			return false, Action{}, wrapCache(incoming.Path, err)
		}
		return false, Action{Kind: CleanedUp, Path: incoming.Path}, nil
	}

	for _, visited := range depthStack {
		if visited == targetPath {
			return false, Action{}, conflictError(targetPath, errCycle)
		}
	}
	if len(depthStack) >= maxConflictDepth {
		return false, Action{}, conflictError(targetPath, errTooDeep)
	}

	nextStack := append(append([]string{}, depthStack...), targetPath)
	recResult, err := organizeFile(ctx, backend, repo, octx, existing.Meta, nextStack)
	if err != nil {
		return false, Action{}, err
	}

	if recResult.Kind == AlreadyCorrect {
		// The occupant claims this exact location and the incoming file
		// cannot be placed here or anywhere the chain has already tried.
		if octx.Trash != nil {
			data, readErr := backend.Read(ctx, incoming.Path)
			if readErr == nil {
				_ = octx.Trash.Write(ctx, trashNameFor(ctx, octx.Trash, incoming), data)
			}
		}
		if err := backend.Delete(ctx, incoming.Path); err != nil {
			return false, Action{}, wrapStorage(incoming.Path, err)
		}
		_, _ = repo.DeleteByTargetPath(ctx, incoming.Target, incoming.Path)
		return false, Action{}, conflictError(targetPath, errSlotClaimed)
	}

	// The occupant relocated or was cleaned up: the slot is free.
	return true, Action{}, nil
}
