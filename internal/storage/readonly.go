package storage

import (
	"context"
	"io"

	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/logging"
)

// ReadOnly wraps a Backend and short-circuits Write, Delete, and Rename to
// success with a log event; reads pass through unchanged.
type ReadOnly struct {
	inner  Backend
	logger *logging.Logger
}

// NewReadOnly wraps backend as read-only.
func NewReadOnly(backend Backend, logger *logging.Logger) *ReadOnly {
	return &ReadOnly{inner: backend, logger: logger}
}

func (r *ReadOnly) Name() string { return r.inner.Name() }

func (r *ReadOnly) ListStream(ctx context.Context, prefix string) <-chan Entry {
	return r.inner.ListStream(ctx, prefix)
}

func (r *ReadOnly) List(ctx context.Context, prefix string) ([]fileinfo.Discovered, error) {
	return r.inner.List(ctx, prefix)
}

func (r *ReadOnly) Exists(ctx context.Context, path string) (bool, error) {
	return r.inner.Exists(ctx, path)
}

func (r *ReadOnly) Read(ctx context.Context, path string) ([]byte, error) {
	return r.inner.Read(ctx, path)
}

func (r *ReadOnly) ReadHead(ctx context.Context, path string, n int) ([]byte, error) {
	return r.inner.ReadHead(ctx, path, n)
}

func (r *ReadOnly) Reader(ctx context.Context, path string) (io.ReadCloser, error) {
	return r.inner.Reader(ctx, path)
}

func (r *ReadOnly) Stat(ctx context.Context, path string) (fileinfo.Discovered, error) {
	return r.inner.Stat(ctx, path)
}

// Write is short-circuited to success.
func (r *ReadOnly) Write(ctx context.Context, path string, data []byte) error {
	r.logger.Warnf("read-only backend %s: ignored write to %s", r.Name(), path)
	return nil
}

// Writer returns a writer that discards everything written to it and
// succeeds on Close, logging the attempted write.
func (r *ReadOnly) Writer(ctx context.Context, path string) (io.WriteCloser, error) {
	r.logger.Warnf("read-only backend %s: ignored writer open for %s", r.Name(), path)
	return discardWriteCloser{}, nil
}

// Delete is short-circuited to success.
func (r *ReadOnly) Delete(ctx context.Context, path string) error {
	r.logger.Warnf("read-only backend %s: ignored delete of %s", r.Name(), path)
	return nil
}

// Rename is short-circuited to success.
func (r *ReadOnly) Rename(ctx context.Context, from, to string) error {
	r.logger.Warnf("read-only backend %s: ignored rename %s -> %s", r.Name(), from, to)
	return nil
}

type discardWriteCloser struct{}

func (discardWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriteCloser) Close() error                { return nil }

var _ Backend = (*ReadOnly)(nil)
