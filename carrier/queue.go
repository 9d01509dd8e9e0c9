package carrier

import (
	"context"
	"io"
	"sync"

	"github.com/kbukum/filepipe/errors"
)

// queueDepth bounds how many chunks a producer may run ahead of the
// consumer before Write blocks.
const queueDepth = 8

type queueItem struct {
	chunk []byte
	err   error
}

// Queue is a non-seekable carrier fed by a concurrent producer through a
// QueueWriter. Reads block until the producer supplies data, applying
// backpressure in both directions.
type Queue struct {
	ch       chan queueItem
	closed   chan struct{}
	once     sync.Once
	meta     Metadata
	leftover []byte
	err      error
	done     bool
}

var _ Carrier = (*Queue)(nil)

// QueueWriter is the producer side of a Queue.
type QueueWriter struct {
	ch     chan queueItem
	closed chan struct{}
	once   sync.Once
}

// NewQueue creates a bounded queue carrier and its producer handle.
func NewQueue(meta Metadata) (*Queue, *QueueWriter) {
	ch := make(chan queueItem, queueDepth)
	closed := make(chan struct{})
	q := &Queue{ch: ch, closed: closed, meta: meta}
	w := &QueueWriter{ch: ch, closed: closed}
	return q, w
}

func (q *Queue) Read(ctx context.Context, p []byte) (int, error) {
	if len(q.leftover) > 0 {
		n := copy(p, q.leftover)
		q.leftover = q.leftover[n:]
		return n, nil
	}
	if q.err != nil {
		return 0, q.err
	}
	if q.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	select {
	case <-ctx.Done():
		return 0, errors.Cancelled(ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			q.done = true
			return 0, io.EOF
		}
		if item.err != nil {
			q.err = item.err
			return 0, q.err
		}
		n := copy(p, item.chunk)
		q.leftover = item.chunk[n:]
		return n, nil
	}
}

func (q *Queue) Metadata() Metadata { return q.meta }

// SetMetadata replaces the carrier's metadata.
func (q *Queue) SetMetadata(meta Metadata) { q.meta = meta }

// Close abandons the stream. A blocked producer is released with
// io.ErrClosedPipe.
func (q *Queue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}

// Seek always fails: queue streams are forward-only.
func (q *Queue) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	return 0, errors.UnsupportedOperation("seek")
}

// Tell always fails: queue streams are forward-only.
func (q *Queue) Tell() (int64, error) {
	return 0, errors.UnsupportedOperation("tell")
}

// Write delivers a copy of p to the consumer, blocking while the queue is
// full. It fails with io.ErrClosedPipe once the consumer has closed.
func (w *QueueWriter) Write(ctx context.Context, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)

	select {
	case <-w.closed:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return errors.Cancelled(ctx.Err())
	case w.ch <- queueItem{chunk: chunk}:
		return nil
	}
}

// Close marks the end of the stream. Safe to call more than once.
func (w *QueueWriter) Close() error {
	w.once.Do(func() { close(w.ch) })
	return nil
}

// CloseWithError delivers err to the consumer and ends the stream.
func (w *QueueWriter) CloseWithError(err error) error {
	if err == nil {
		return w.Close()
	}
	w.once.Do(func() {
		select {
		case w.ch <- queueItem{err: err}:
		case <-w.closed:
		}
		close(w.ch)
	})
	return nil
}
