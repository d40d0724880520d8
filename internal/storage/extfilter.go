package storage

import (
	"context"
	"io"
	"strings"

	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/fileinfo"
)

// ExtensionFilter wraps a Backend and rejects any path whose base
// extension (after stripping a known compression suffix) is not in a
// configured allow-list. list_stream filters results silently; mutating
// calls with disallowed paths fail fast with ErrorKindFilteredPath.
type ExtensionFilter struct {
	inner   Backend
	allowed map[string]bool
}

// NewExtensionFilter wraps backend, allowing only the given base
// extensions (each including its leading dot, e.g. ".html").
func NewExtensionFilter(backend Backend, allowedExtensions ...string) *ExtensionFilter {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[ext] = true
	}
	return &ExtensionFilter{inner: backend, allowed: allowed}
}

func (f *ExtensionFilter) Name() string { return f.inner.Name() }

// permits reports whether path's base extension, after stripping any
// recognized compression suffix, is in the allow-list.
func (f *ExtensionFilter) permits(path string) bool {
	_, base, _ := compression.DetectFromPath(path)
	ext := "." + lastExtension(base)
	return f.allowed[ext]
}

func lastExtension(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx == -1 || idx == len(path)-1 {
		return ""
	}
	return path[idx+1:]
}

func (f *ExtensionFilter) reject(path string) error {
	return &Error{Kind: ErrorKindFilteredPath, Target: f.Name(), Path: path}
}

func (f *ExtensionFilter) ListStream(ctx context.Context, prefix string) <-chan Entry {
	out := make(chan Entry)
	go func() {
		defer close(out)
		for entry := range f.inner.ListStream(ctx, prefix) {
			if entry.Err == nil && !f.permits(entry.Info.Path) {
				continue
			}
			select {
			case out <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *ExtensionFilter) List(ctx context.Context, prefix string) ([]fileinfo.Discovered, error) {
	var results []fileinfo.Discovered
	for entry := range f.ListStream(ctx, prefix) {
		if entry.Err != nil {
			return nil, entry.Err
		}
		results = append(results, entry.Info)
	}
	return results, nil
}

func (f *ExtensionFilter) Exists(ctx context.Context, path string) (bool, error) {
	if !f.permits(path) {
		return false, f.reject(path)
	}
	return f.inner.Exists(ctx, path)
}

func (f *ExtensionFilter) Read(ctx context.Context, path string) ([]byte, error) {
	if !f.permits(path) {
		return nil, f.reject(path)
	}
	return f.inner.Read(ctx, path)
}

func (f *ExtensionFilter) ReadHead(ctx context.Context, path string, n int) ([]byte, error) {
	if !f.permits(path) {
		return nil, f.reject(path)
	}
	return f.inner.ReadHead(ctx, path, n)
}

func (f *ExtensionFilter) Reader(ctx context.Context, path string) (io.ReadCloser, error) {
	if !f.permits(path) {
		return nil, f.reject(path)
	}
	return f.inner.Reader(ctx, path)
}

func (f *ExtensionFilter) Stat(ctx context.Context, path string) (fileinfo.Discovered, error) {
	if !f.permits(path) {
		return fileinfo.Discovered{}, f.reject(path)
	}
	return f.inner.Stat(ctx, path)
}

func (f *ExtensionFilter) Write(ctx context.Context, path string, data []byte) error {
	if !f.permits(path) {
		return f.reject(path)
	}
	return f.inner.Write(ctx, path, data)
}

func (f *ExtensionFilter) Writer(ctx context.Context, path string) (io.WriteCloser, error) {
	if !f.permits(path) {
		return nil, f.reject(path)
	}
	return f.inner.Writer(ctx, path)
}

func (f *ExtensionFilter) Delete(ctx context.Context, path string) error {
	if !f.permits(path) {
		return f.reject(path)
	}
	return f.inner.Delete(ctx, path)
}

func (f *ExtensionFilter) Rename(ctx context.Context, from, to string) error {
	if !f.permits(from) || !f.permits(to) {
		return f.reject(to)
	}
	return f.inner.Rename(ctx, from, to)
}

var _ Backend = (*ExtensionFilter)(nil)
