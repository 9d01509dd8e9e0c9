package step

import (
	"context"

	"github.com/kbukum/filepipe/carrier"
)

// Single wraps one carrier as a Stream.
func Single(c carrier.Carrier) Stream {
	return &sliceStream{items: []carrier.Carrier{c}}
}

// FromSlice wraps carriers as a Stream yielding them in order.
func FromSlice(items []carrier.Carrier) Stream {
	return &sliceStream{items: items}
}

type sliceStream struct {
	items []carrier.Carrier
	pos   int
}

func (s *sliceStream) Next(ctx context.Context) (carrier.Carrier, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.pos >= len(s.items) {
		return nil, false, nil
	}
	c := s.items[s.pos]
	s.pos++
	return c, true, nil
}

func (s *sliceStream) Close() error {
	var firstErr error
	for ; s.pos < len(s.items); s.pos++ {
		if err := s.items[s.pos].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// streamResult carries a carrier or error through a channel.
type streamResult struct {
	c   carrier.Carrier
	err error
}

// Generate runs produce in its own goroutine and returns a Stream over
// the carriers it emits. The producer stops when its context is
// cancelled, which happens when the stream is closed.
func Generate(ctx context.Context, produce func(ctx context.Context, emit func(carrier.Carrier) error) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan streamResult)

	go func() {
		defer close(ch)
		emit := func(c carrier.Carrier) error {
			select {
			case ch <- streamResult{c: c}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := produce(ctx, emit); err != nil {
			select {
			case ch <- streamResult{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return &chanStream{ch: ch, cancel: cancel}
}

type chanStream struct {
	ch     <-chan streamResult
	cancel context.CancelFunc
	err    error
}

func (s *chanStream) Next(ctx context.Context) (carrier.Carrier, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	select {
	case r, open := <-s.ch:
		if !open {
			return nil, false, nil
		}
		if r.err != nil {
			s.err = r.err
			return nil, false, r.err
		}
		return r.c, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (s *chanStream) Close() error {
	s.cancel()
	// Drain so the producer goroutine can exit.
	for r := range s.ch {
		if r.c != nil {
			r.c.Close()
		}
	}
	return nil
}
