package carrier

import (
	"context"
	"io"

	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/httpclient"
)

// URL is a seekable carrier backed by a remote file fetched over HTTP
// range requests. Seeking moves a local cursor; bytes are only
// transferred when read.
type URL struct {
	client *httpclient.Client
	url    string
	meta   Metadata
	size   int64
	pos    int64
}

var _ Seekable = (*URL)(nil)

// NewURL probes the remote file and returns a carrier over it. Metadata
// gaps are filled from the server's response.
func NewURL(ctx context.Context, client *httpclient.Client, url string, meta Metadata) (*URL, error) {
	info, err := client.Probe(ctx, url)
	if err != nil {
		return nil, err
	}
	if info.Size < 0 {
		return nil, errors.Network("probe", nil).WithDetail("url", url).WithDetail("reason", "source size unknown")
	}
	if meta.MediaType == "" {
		meta.MediaType = info.ContentType
	}
	return &URL{client: client, url: url, meta: meta, size: info.Size}, nil
}

func (u *URL) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if u.pos >= u.size {
		return 0, io.EOF
	}
	if remaining := u.size - u.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := u.client.ReadRange(ctx, u.url, u.pos, p)
	u.pos += int64(n)
	return n, err
}

func (u *URL) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = u.pos + offset
	case io.SeekEnd:
		abs = u.size + offset
	default:
		return 0, errors.InvalidArguments("invalid seek whence")
	}
	// Positions are clamped to [0, size].
	if abs < 0 {
		abs = 0
	}
	if abs > u.size {
		abs = u.size
	}
	u.pos = abs
	return abs, nil
}

func (u *URL) Tell() int64 { return u.pos }

func (u *URL) Size(context.Context) (int64, error) { return u.size, nil }

func (u *URL) Metadata() Metadata { return u.meta }

// SetMetadata replaces the carrier's metadata.
func (u *URL) SetMetadata(meta Metadata) { u.meta = meta }

// SourceURL returns the remote location backing this carrier.
func (u *URL) SourceURL() string { return u.url }

func (u *URL) Close() error { return nil }
