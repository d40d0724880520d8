package compression

import (
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/pkg/errors"

	kgzip "github.com/klauspost/compress/gzip"
	kzstd "github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// WrapReader wraps source in a decompressing reader for the given format.
// For None it returns source unchanged. The caller is responsible for
// closing source; WrapReader's return value does not need to be closed
// except where it implements io.Closer and the caller wants to release
// codec-internal resources early (zstd).
func WrapReader(format Format, source io.Reader) (io.Reader, error) {
	switch format {
	case None:
		return source, nil
	case Gzip:
		r, err := kgzip.NewReader(source)
		if err != nil {
			return nil, &Error{Kind: ErrorKindInvalidData, Format: format, Cause: errors.WithStack(err)}
		}
		return r, nil
	case Bzip2:
		return bzip2.NewReader(source), nil
	case Zstd:
		r, err := kzstd.NewReader(source)
		if err != nil {
			return nil, &Error{Kind: ErrorKindEncoderInit, Format: format, Cause: errors.WithStack(err)}
		}
		return &zstdReadCloser{Decoder: r}, nil
	case Xz:
		r, err := xz.NewReader(source)
		if err != nil {
			return nil, &Error{Kind: ErrorKindInvalidData, Format: format, Cause: errors.WithStack(err)}
		}
		return r, nil
	default:
		return nil, &Error{Kind: ErrorKindUnsupportedFormat, Format: format}
	}
}

// zstdReadCloser adapts *zstd.Decoder's Close (which has no error return)
// to io.Closer; Close releases the decoder's internal goroutines and
// should be called by long-lived callers, but is not required for
// correctness of a single Read-to-EOF pass.
type zstdReadCloser struct {
	*kzstd.Decoder
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// WrapWriter wraps destination in a compressing writer for the given
// format. For None it returns a no-op-Close wrapper around destination.
// The caller must Close the returned writer to flush and finalize the
// stream; some formats (Zstd, Xz) only emit their trailer on Close.
func WrapWriter(format Format, destination io.Writer) (io.WriteCloser, error) {
	switch format {
	case None:
		return nopWriteCloser{destination}, nil
	case Gzip:
		return kgzip.NewWriter(destination), nil
	case Bzip2:
		return nil, &Error{Kind: ErrorKindDisabledFormat, Format: format,
			Cause: errNoBzip2Encoder}
	case Zstd:
		w, err := kzstd.NewWriter(destination)
		if err != nil {
			return nil, &Error{Kind: ErrorKindEncoderInit, Format: format, Cause: errors.WithStack(err)}
		}
		return w, nil
	case Xz:
		w, err := xz.NewWriter(destination)
		if err != nil {
			return nil, &Error{Kind: ErrorKindEncoderInit, Format: format, Cause: errors.WithStack(err)}
		}
		return w, nil
	default:
		return nil, &Error{Kind: ErrorKindUnsupportedFormat, Format: format}
	}
}

var errNoBzip2Encoder = errBzip2Disabled("no bzip2 encoder is wired into this build")

type errBzip2Disabled string

func (e errBzip2Disabled) Error() string { return string(e) }

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Compress compresses b in full under the given format, returning the
// compressed bytes.
func Compress(format Format, b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := WrapWriter(format, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, &Error{Kind: ErrorKindIO, Format: format, Cause: errors.WithStack(err)}
	}
	if err := w.Close(); err != nil {
		return nil, &Error{Kind: ErrorKindIO, Format: format, Cause: errors.WithStack(err)}
	}
	return buf.Bytes(), nil
}

// Decompress decompresses b in full under the given format, returning the
// decompressed bytes.
func Decompress(format Format, b []byte) ([]byte, error) {
	r, err := WrapReader(format, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: ErrorKindInvalidData, Format: format, Cause: errors.WithStack(err)}
	}
	return out, nil
}
