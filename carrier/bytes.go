package carrier

import (
	"bytes"
	"context"
	"io"
)

// Bytes is a fully buffered, seekable carrier backed by a byte slice.
type Bytes struct {
	r    *bytes.Reader
	meta Metadata
}

var _ Seekable = (*Bytes)(nil)

// NewBytes creates a seekable carrier over data.
func NewBytes(data []byte, meta Metadata) *Bytes {
	return &Bytes{r: bytes.NewReader(data), meta: meta}
}

func (b *Bytes) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.r.Read(p)
}

func (b *Bytes) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.r.Seek(offset, whence)
}

func (b *Bytes) Tell() int64 {
	pos, _ := b.r.Seek(0, io.SeekCurrent)
	return pos
}

func (b *Bytes) Size(context.Context) (int64, error) {
	return b.r.Size(), nil
}

// ReadAt implements io.ReaderAt without moving the read position.
func (b *Bytes) ReadAt(p []byte, off int64) (int, error) {
	return b.r.ReadAt(p, off)
}

func (b *Bytes) Metadata() Metadata { return b.meta }

// SetMetadata replaces the carrier's metadata.
func (b *Bytes) SetMetadata(meta Metadata) { b.meta = meta }

func (b *Bytes) Close() error { return nil }
