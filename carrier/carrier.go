// Package carrier defines the stream carriers that move file bytes between
// pipeline steps. A carrier couples a byte stream with file metadata; the
// Seekable capability adds random access for steps that need it.
package carrier

import (
	"context"
	"io"
	"sync"

	"github.com/kbukum/filepipe/errors"
)

// ChunkSize is the preferred read granularity for sequential streaming.
const ChunkSize = 64 * 1024

// Metadata describes the file a carrier transports.
type Metadata struct {
	// FileName is the name the file should be served under.
	FileName string
	// MediaType is the MIME type, without parameters.
	MediaType string
	// Charset is the text encoding, when known.
	Charset string
	// Mode is the image color mode, such as RGB or RGBA.
	Mode string
	// Width and Height are image dimensions in pixels; zero when unknown.
	Width  int
	Height int
	// Headers are extra HTTP headers to attach when the file is served.
	Headers map[string]string
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Headers != nil {
		out.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// Carrier is a sequential byte stream with attached file metadata.
type Carrier interface {
	// Read fills p with the next bytes of the stream. It returns io.EOF
	// when the stream is exhausted.
	Read(ctx context.Context, p []byte) (int, error)
	// Metadata returns the file metadata for this stream.
	Metadata() Metadata
	// Close releases resources held by the carrier.
	Close() error
}

// Seekable is a carrier that supports random access.
type Seekable interface {
	Carrier
	// Seek moves the read position, with io.Seeker whence semantics.
	Seek(ctx context.Context, offset int64, whence int) (int64, error)
	// Tell returns the current read position.
	Tell() int64
	// Size returns the total stream length in bytes.
	Size(ctx context.Context) (int64, error)
}

// AsSeekable reports whether c supports random access.
func AsSeekable(c Carrier) (Seekable, bool) {
	s, ok := c.(Seekable)
	return s, ok
}

// ReadAll reads the remainder of c into memory. When limit is positive and
// the stream exceeds it, a RESOURCE_LIMIT error is returned.
func ReadAll(ctx context.Context, c Carrier, limit int64) ([]byte, error) {
	var out []byte
	buf := make([]byte, ChunkSize)
	for {
		n, err := c.Read(ctx, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			if limit > 0 && int64(len(out)) > limit {
				return nil, errors.ResourceLimit(limit)
			}
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Reader adapts a carrier to io.Reader using a fixed context. Useful for
// handing carriers to archive/zip, image decoders, and io.Copy.
func Reader(ctx context.Context, c Carrier) io.Reader {
	return &ctxReader{ctx: ctx, c: c}
}

type ctxReader struct {
	ctx context.Context
	c   Carrier
}

func (r *ctxReader) Read(p []byte) (int, error) {
	return r.c.Read(r.ctx, p)
}

// NewReaderAt adapts a seekable carrier to io.ReaderAt. Calls are
// serialised, so the adapter is safe for concurrent use.
func NewReaderAt(ctx context.Context, s Seekable) io.ReaderAt {
	return &readerAt{ctx: ctx, s: s}
}

type readerAt struct {
	ctx context.Context
	s   Seekable
	mu  sync.Mutex
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.s.Seek(r.ctx, off, io.SeekStart); err != nil {
		return 0, err
	}
	total := 0
	for total < len(p) {
		n, err := r.s.Read(r.ctx, p[total:])
		total += n
		if err == io.EOF {
			if total < len(p) {
				return total, io.EOF
			}
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
