package scan

import (
	"context"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/storage"
)

// MaxProcessConcurrency bounds the number of per-file scans in flight at
// once inside a single Stream call.
const MaxProcessConcurrency = 100

// EventKind enumerates the event stream's emitter-ordered shape: Started
// precedes everything; DiscoveryComplete is emitted exactly once before
// any Complete; Complete is emitted at most once.
type EventKind int

const (
	// Started opens the stream.
	Started EventKind = iota
	// FileDiscovered reports one file found by the backend's listing.
	FileDiscovered
	// DiscoveryComplete reports that the backend listing has finished and
	// names the total number of files discovered.
	DiscoveryComplete
	// Scanned reports the outcome (possibly an error) of one per-file
	// scan, including listing errors surfaced for a single entry.
	Scanned
	// Complete closes the stream. It is withheld only when ctx is
	// canceled; listing failures are reported as Scanned events and do
	// not withhold it.
	Complete
)

// Event is one item yielded by Stream.
type Event struct {
	Kind EventKind
	// Path is set for FileDiscovered and Scanned.
	Path string
	// Total is set for DiscoveryComplete.
	Total int
	// Result and Err are set for Scanned: exactly one of Result.File
	// being non-zero or Err being non-nil describes the outcome.
	Result Result
	Err    error
}

// Stream discovers files under prefix on backend and concurrently scans
// each against repo, emitting events as described by EventKind.
// Discovery and processing run side by side: discovery is polled with
// priority over processing completions so DiscoveryComplete's total
// becomes known as early as possible. In-flight processing is bounded at
// MaxProcessConcurrency; surplus discoveries queue in memory and are
// promoted as slots free up — up to as many as are free in a single tick,
// not strictly one per completion, which is more robust to bursty
// completions than promoting a single waiter (see DESIGN.md).
//
// The stream is driven entirely by ctx: there is no separate cancellation
// handle. Canceling ctx stops discovery and closes the channel at once,
// without a Complete event; in-flight scans are not waited for and stop
// at their next suspension point.
func Stream(ctx context.Context, backend storage.Backend, repo *cache.Repository, prefix string) <-chan Event {
	out := make(chan Event)
	go runStream(ctx, backend, repo, prefix, out)
	return out
}

type scanOutcome struct {
	result Result
	path   string
	err    error
}

func runStream(ctx context.Context, backend storage.Backend, repo *cache.Repository, prefix string, out chan<- Event) {
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

	discoverCh := backend.ListStream(ctx, prefix)
	completions := make(chan scanOutcome)

	var (
		queue         []fileinfo.Discovered
		inFlight      int
		discovered    int
		discoveryDone bool
	)

	startScan := func(file fileinfo.Discovered) {
		inFlight++
		go func() {
			res, err := File(ctx, backend, repo, file)
			select {
			case completions <- scanOutcome{result: res, path: file.Path, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	promote := func() {
		for inFlight < MaxProcessConcurrency && len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			startScan(next)
		}
	}

	handleEntry := func(entry storage.Entry, ok bool) bool {
		if !ok {
			discoverCh = nil
			discoveryDone = true
			return emit(Event{Kind: DiscoveryComplete, Total: discovered})
		}
		if entry.Err != nil {
			return emit(Event{Kind: Scanned, Err: wrapStorage("", entry.Err)})
		}

		discovered++
		if !emit(Event{Kind: FileDiscovered, Path: entry.Info.Path}) {
			return false
		}
		if inFlight < MaxProcessConcurrency {
			startScan(entry.Info)
		} else {
			queue = append(queue, entry.Info)
		}
		return true
	}

	handleCompletion := func(outcome scanOutcome) bool {
		inFlight--
		ev := Event{Kind: Scanned, Path: outcome.path, Result: outcome.result, Err: outcome.err}
		if !emit(ev) {
			return false
		}
		promote()
		return true
	}

	for {
		if discoveryDone && inFlight == 0 && len(queue) == 0 {
			emit(Event{Kind: Complete})
			return
		}

		// Biased select: a discovery item ready right now is handled
		// before falling through to a blocking select that also watches
		// completions, so the total count becomes known as early as
		// possible relative to processing.
		if !discoveryDone {
			select {
			case entry, ok := <-discoverCh:
				if !handleEntry(entry, ok) {
					return
				}
				continue
			default:
			}
		}

		select {
		case <-ctx.Done():
			return
		case entry, ok := <-discoverCh:
			if !handleEntry(entry, ok) {
				return
			}
		case outcome := <-completions:
			if !handleCompletion(outcome) {
				return
			}
		}
	}
}
