package carrier

import (
	"context"
)

// DefaultBufferLimit caps in-memory materialisation of non-seekable
// streams at 100 MiB unless configured otherwise.
const DefaultBufferLimit = 100 << 20

// EnsureSeekable returns a random-access view of c. Carriers that already
// support seeking are returned as-is; anything else is drained into a
// Bytes carrier, subject to limit (0 means DefaultBufferLimit).
func EnsureSeekable(ctx context.Context, c Carrier, limit int64) (Seekable, error) {
	if s, ok := AsSeekable(c); ok {
		return s, nil
	}
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	data, err := ReadAll(ctx, c, limit)
	if err != nil {
		return nil, err
	}
	if err := c.Close(); err != nil {
		return nil, err
	}
	return NewBytes(data, c.Metadata().Clone()), nil
}
