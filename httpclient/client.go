// Package httpclient provides an HTTP client specialised for reading
// remote source files by byte range.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/resilience"
)

// Client reads remote files over HTTP using range requests.
type Client struct {
	httpClient *http.Client
	config     Config
}

// SourceInfo describes a remote source file.
type SourceInfo struct {
	// Size is the total size in bytes, or -1 when unknown.
	Size int64
	// ContentType is the media type reported by the server.
	ContentType string
	// AcceptsRanges reports whether the server honours Range requests.
	AcceptsRanges bool
}

// New creates a new range-request client with the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}, nil
}

// Unwrap returns the underlying *http.Client.
func (c *Client) Unwrap() *http.Client {
	return c.httpClient
}

// Probe determines the size and media type of a remote file. It tries a
// HEAD request first and falls back to a one-byte range GET for servers
// that do not answer HEAD.
func (c *Client) Probe(ctx context.Context, url string) (SourceInfo, error) {
	if c.config.Retry != nil {
		return resilience.Retry(ctx, *c.config.Retry, func() (SourceInfo, error) {
			return c.probeOnce(ctx, url)
		})
	}
	return c.probeOnce(ctx, url)
}

func (c *Client) probeOnce(ctx context.Context, url string) (SourceInfo, error) {
	info, err := c.probeHead(ctx, url)
	if err == nil && info.Size >= 0 {
		return info, nil
	}
	return c.probeRange(ctx, url)
}

func (c *Client) probeHead(ctx context.Context, url string) (SourceInfo, error) {
	req, err := c.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return SourceInfo{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SourceInfo{}, errors.Network("probe", err).WithDetail("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SourceInfo{}, statusError("probe", url, resp.StatusCode)
	}
	return SourceInfo{
		Size:          resp.ContentLength,
		ContentType:   contentType(resp),
		AcceptsRanges: strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes"),
	}, nil
}

func (c *Client) probeRange(ctx context.Context, url string) (SourceInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return SourceInfo{}, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SourceInfo{}, errors.Network("probe", err).WithDetail("url", url)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		size, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		if err != nil {
			return SourceInfo{}, errors.Network("probe", err).WithDetail("url", url)
		}
		return SourceInfo{Size: size, ContentType: contentType(resp), AcceptsRanges: true}, nil
	case http.StatusOK:
		// Server ignores Range; size comes from Content-Length if present.
		return SourceInfo{Size: resp.ContentLength, ContentType: contentType(resp)}, nil
	default:
		return SourceInfo{}, statusError("probe", url, resp.StatusCode)
	}
}

// ReadRange reads up to len(p) bytes starting at offset off into p.
// It returns io.EOF when off is at or past the end of the file.
func (c *Client) ReadRange(ctx context.Context, url string, off int64, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.config.Retry != nil {
		return resilience.Retry(ctx, *c.config.Retry, func() (int, error) {
			return c.readRangeOnce(ctx, url, off, p)
		})
	}
	return c.readRangeOnce(ctx, url, off, p)
}

func (c *Client) readRangeOnce(ctx context.Context, url string, off int64, p []byte) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Network("read", err).WithDetail("url", url)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return readBody(resp.Body, p)
	case http.StatusOK:
		// Server ignored the Range header and sent the whole file.
		if _, err := io.CopyN(io.Discard, resp.Body, off); err != nil {
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, errors.Network("read", err).WithDetail("url", url)
		}
		return readBody(resp.Body, p)
	case http.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	default:
		return 0, statusError("read", url, resp.StatusCode)
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, errors.InvalidArguments(fmt.Sprintf("invalid source URL %q", url)).WithCause(err)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// readBody fills p from body. Short reads at end of file are returned as
// successes; io.EOF is reported only when no bytes were read at all.
func readBody(body io.Reader, p []byte) (int, error) {
	n, err := io.ReadFull(body, p)
	switch {
	case err == nil:
		return n, nil
	case err == io.ErrUnexpectedEOF:
		return n, nil
	case err == io.EOF:
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	default:
		return n, errors.Network("read", err)
	}
}

func contentType(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}

// parseContentRangeTotal extracts the total size from a Content-Range
// header such as "bytes 0-0/12345". A total of "*" yields -1.
func parseContentRangeTotal(header string) (int64, error) {
	idx := strings.LastIndex(header, "/")
	if idx == -1 {
		return 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return -1, nil
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	return size, nil
}
