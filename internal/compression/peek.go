package compression

import (
	"bufio"
	"io"
)

// PeekReader supports a decide-then-stream workflow over a decompressing
// reader: the caller peeks up to n decompressed bytes (for example to run
// an extractor's truncation/sniffing logic) and then either consumes the
// rest of the stream from the beginning, or discards it entirely.
type PeekReader struct {
	buffered *bufio.Reader
	closer   io.Closer
}

// NewPeekReader wraps source in a decompressing reader for format and
// returns a PeekReader over it. If the underlying decompressor implements
// io.Closer, Close/Discard will call it.
func NewPeekReader(format Format, source io.Reader, peekSize int) (*PeekReader, error) {
	decompressed, err := WrapReader(format, source)
	if err != nil {
		return nil, err
	}
	var closer io.Closer
	if c, ok := decompressed.(io.Closer); ok {
		closer = c
	}
	return &PeekReader{
		buffered: bufio.NewReaderSize(decompressed, peekSize+bufio.MaxScanTokenSize),
		closer:   closer,
	}, nil
}

// Peek returns up to n decompressed bytes without consuming them. The
// returned slice is only valid until the next call to Peek, Consume, or
// Discard.
func (p *PeekReader) Peek(n int) ([]byte, error) {
	b, err := p.buffered.Peek(n)
	if err != nil && err != io.EOF {
		return b, err
	}
	return b, nil
}

// Consume returns an io.Reader yielding the full decompressed stream,
// starting from the beginning (including any bytes already peeked). The
// PeekReader must not be used again after calling Consume.
func (p *PeekReader) Consume() io.Reader {
	return p.buffered
}

// Discard releases any resources held by the underlying decompressor
// without reading the remainder of the stream. The PeekReader must not be
// used again after calling Discard.
func (p *PeekReader) Discard() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
