package organize

import (
	"context"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/storage"
)

// MaxProcessConcurrency bounds the number of per-file organize operations
// in flight at once inside a single Stream call.
const MaxProcessConcurrency = 100

// EventKind enumerates the organize event stream's emitter-ordered shape.
type EventKind int

const (
	// Started opens the stream.
	Started EventKind = iota
	// DiscoveryComplete reports that the full list of cached files for
	// the backend has been fetched (a single cache query) and names the
	// total.
	DiscoveryComplete
	// Organized reports the outcome (possibly an error) of one file's
	// organize call.
	Organized
	// Complete closes the stream. It is withheld if the initial cache
	// discovery query itself failed.
	Complete
)

// Event is one item yielded by Stream.
type Event struct {
	Kind EventKind
	// Total is set for DiscoveryComplete.
	Total int
	// Path, Action, and Err are set for Organized: exactly one of Action
	// being non-zero or Err being non-nil describes the outcome.
	Path   string
	Action Action
	Err    error
}

// Stream organizes every file the cache knows about for backend,
// emitting events as described by EventKind. Discovery is a single
// upfront query (needed to know the total count before any per-file work
// starts); the resulting files are then organized concurrently, bounded
// at MaxProcessConcurrency. A discovery failure is fatal and closes the
// stream without a Complete event; individual organize failures are
// surfaced as error items and do not stop the stream.
func Stream(ctx context.Context, backend storage.Backend, repo *cache.Repository, octx *Context) <-chan Event {
	out := make(chan Event)
	go runStream(ctx, backend, repo, octx, out)
	return out
}

func runStream(ctx context.Context, backend storage.Backend, repo *cache.Repository, octx *Context, out chan<- Event) {
	defer close(out)

	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Kind: Started}) {
		return
	}

	files, err := repo.ListFilesForTarget(ctx, backend.Name())
	if err != nil {
		// Fatal: the stream closes without Complete.
		return
	}
	if !emit(Event{Kind: DiscoveryComplete, Total: len(files)}) {
		return
	}
	if len(files) == 0 {
		emit(Event{Kind: Complete})
		return
	}

	workerCount := MaxProcessConcurrency
	if workerCount > len(files) {
		workerCount = len(files)
	}

	jobs := make(chan cache.File)
	results := make(chan Event)

	for i := 0; i < workerCount; i++ {
		go func() {
			for f := range jobs {
				meta := fileinfo.Meta{
					Target:       f.Target,
					Path:         f.Path,
					Compression:  f.Compression,
					Size:         f.FileSize,
					DiscoveredAt: f.DiscoveredAt,
				}
				action, err := File(ctx, backend, repo, octx, meta)
				ev := Event{Kind: Organized, Path: f.Path, Action: action, Err: err}
				select {
				case results <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for range files {
		select {
		case ev := <-results:
			if !emit(ev) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
	emit(Event{Kind: Complete})
}
