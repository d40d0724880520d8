package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/pathutil"
)

// LocalBackend is a storage backend rooted at an absolute directory on the
// local filesystem. Every relative path is resolved inside the root and
// escapes are rejected by pathutil before the root is ever touched.
type LocalBackend struct {
	name string
	root string
}

// NewLocalBackend constructs a LocalBackend rooted at root, creating root
// if it does not already exist.
func NewLocalBackend(name, root string) (*LocalBackend, error) {
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: name, Cause: breadcrumb(err)}
	}
	if err := os.MkdirAll(absolute, 0o755); err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: name, Cause: breadcrumb(err)}
	}
	return &LocalBackend{name: name, root: absolute}, nil
}

// Name implements Backend.Name.
func (b *LocalBackend) Name() string { return b.name }

// resolve validates path and joins it onto the backend's root.
func (b *LocalBackend) resolve(path string) (string, error) {
	validated, err := pathutil.Validate(path)
	if err != nil {
		return "", &Error{Kind: ErrorKindInvalidPath, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	return filepath.Join(b.root, filepath.FromSlash(validated)), nil
}

// ListStream implements Backend.ListStream by walking the directory tree
// iteratively with an explicit stack of pending directories. A missing
// prefix directory yields an empty, successfully closed stream, matching
// object-store semantics.
func (b *LocalBackend) ListStream(ctx context.Context, prefix string) <-chan Entry {
	out := make(chan Entry)
	go func() {
		defer close(out)

		root := b.root
		if prefix != "" {
			resolved, err := b.resolve(prefix)
			if err != nil {
				select {
				case out <- Entry{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			root = resolved
		}

		if _, err := os.Stat(root); os.IsNotExist(err) {
			return
		}

		pending := []string{root}
		for len(pending) > 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}

			dir := pending[len(pending)-1]
			pending = pending[:len(pending)-1]

			entries, err := os.ReadDir(dir)
			if err != nil {
				select {
				case out <- Entry{Err: &Error{Kind: ErrorKindIO, Target: b.name, Path: dir, Cause: breadcrumb(err)}}:
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, entry := range entries {
				full := filepath.Join(dir, entry.Name())
				if entry.IsDir() {
					pending = append(pending, full)
					continue
				}
				if !entry.Type().IsRegular() {
					// Silently skip broken symlinks and other non-file,
					// non-directory entries.
					continue
				}
				info, err := entry.Info()
				if err != nil {
					select {
					case out <- Entry{Err: &Error{Kind: ErrorKindIO, Target: b.name, Path: full, Cause: breadcrumb(err)}}:
					case <-ctx.Done():
						return
					}
					continue
				}
				relative, err := filepath.Rel(b.root, full)
				if err != nil {
					continue
				}
				meta, err := fileinfo.NewMeta(
					b.name,
					filepath.ToSlash(relative),
					detectCompression(relative),
					info.Size(),
					info.ModTime().UTC(),
				)
				if err != nil {
					select {
					case out <- Entry{Err: err}:
					case <-ctx.Done():
						return
					}
					continue
				}
				select {
				case out <- Entry{Info: fileinfo.Discovered{Meta: meta}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// List implements Backend.List.
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]fileinfo.Discovered, error) {
	var results []fileinfo.Discovered
	for entry := range b.ListStream(ctx, prefix) {
		if entry.Err != nil {
			return nil, entry.Err
		}
		results = append(results, entry.Info)
	}
	return results, nil
}

// Exists implements Backend.Exists.
func (b *LocalBackend) Exists(ctx context.Context, path string) (bool, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(resolved)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	return true, nil
}

// Read implements Backend.Read.
func (b *LocalBackend) Read(ctx context.Context, path string) ([]byte, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, b.translate(path, err)
	}
	return data, nil
}

// ReadHead implements Backend.ReadHead.
func (b *LocalBackend) ReadHead(ctx context.Context, path string, n int) ([]byte, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, b.translate(path, err)
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	return buf[:read], nil
}

// Reader implements Backend.Reader.
func (b *LocalBackend) Reader(ctx context.Context, path string) (io.ReadCloser, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, b.translate(path, err)
	}
	return f, nil
}

// Write implements Backend.Write, creating parent directories as needed.
func (b *LocalBackend) Write(ctx context.Context, path string, data []byte) error {
	resolved, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	return nil
}

// Writer implements Backend.Writer, creating parent directories as needed.
func (b *LocalBackend) Writer(ctx context.Context, path string) (io.WriteCloser, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	f, err := os.Create(resolved)
	if err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	return f, nil
}

// Delete implements Backend.Delete.
func (b *LocalBackend) Delete(ctx context.Context, path string) error {
	resolved, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil {
		return b.translate(path, err)
	}
	return nil
}

// Rename implements Backend.Rename.
func (b *LocalBackend) Rename(ctx context.Context, from, to string) error {
	resolvedFrom, err := b.resolve(from)
	if err != nil {
		return err
	}
	resolvedTo, err := b.resolve(to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolvedTo), 0o755); err != nil {
		return &Error{Kind: ErrorKindIO, Target: b.name, Path: to, Cause: breadcrumb(err)}
	}
	if err := os.Rename(resolvedFrom, resolvedTo); err != nil {
		return &Error{Kind: ErrorKindIO, Target: b.name, Path: from, Cause: breadcrumb(err)}
	}
	return nil
}

// Stat implements Backend.Stat.
func (b *LocalBackend) Stat(ctx context.Context, path string) (fileinfo.Discovered, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return fileinfo.Discovered{}, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return fileinfo.Discovered{}, b.translate(path, err)
	}
	meta, err := fileinfo.NewMeta(b.name, path, detectCompression(path), info.Size(), info.ModTime().UTC())
	if err != nil {
		return fileinfo.Discovered{}, err
	}
	return fileinfo.Discovered{Meta: meta}, nil
}

// translate maps a raw os error into the canonical storage taxonomy.
func (b *LocalBackend) translate(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return &Error{Kind: ErrorKindNotFound, Target: b.name, Path: path, Cause: breadcrumb(err)}
	case os.IsPermission(err):
		return &Error{Kind: ErrorKindPermissionDenied, Target: b.name, Path: path, Cause: breadcrumb(err)}
	default:
		return &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
}
