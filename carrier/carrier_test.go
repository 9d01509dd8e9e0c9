package carrier

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/kbukum/filepipe/errors"
)

func TestBytes_ReadSeekTell(t *testing.T) {
	ctx := context.Background()
	b := NewBytes([]byte("hello world"), Metadata{FileName: "hello.txt"})

	buf := make([]byte, 5)
	n, err := b.Read(ctx, buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("read = %q, %v", buf[:n], err)
	}
	if got := b.Tell(); got != 5 {
		t.Errorf("tell = %d, want 5", got)
	}

	if _, err := b.Seek(ctx, 6, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	n, _ = b.Read(ctx, buf)
	if string(buf[:n]) != "world" {
		t.Errorf("got %q", buf[:n])
	}

	size, err := b.Size(ctx)
	if err != nil || size != 11 {
		t.Errorf("size = %d, %v", size, err)
	}
}

func TestBytes_ReadAtDoesNotMoveCursor(t *testing.T) {
	b := NewBytes([]byte("abcdef"), Metadata{})
	buf := make([]byte, 2)
	if _, err := b.ReadAt(buf, 2); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "cd" {
		t.Errorf("got %q", buf)
	}
	if b.Tell() != 0 {
		t.Errorf("cursor moved to %d", b.Tell())
	}
}

func TestQueue_RoundTrip(t *testing.T) {
	ctx := context.Background()
	q, w := NewQueue(Metadata{FileName: "stream.bin"})

	go func() {
		w.Write(ctx, []byte("first-"))
		w.Write(ctx, []byte("second"))
		w.Close()
	}()

	data, err := ReadAll(ctx, q, 0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "first-second" {
		t.Errorf("got %q", data)
	}
	// EOF is sticky.
	if _, err := q.Read(ctx, make([]byte, 1)); err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
}

func TestQueue_PartialReadsKeepLeftover(t *testing.T) {
	ctx := context.Background()
	q, w := NewQueue(Metadata{})

	go func() {
		w.Write(ctx, []byte("abcdef"))
		w.Close()
	}()

	buf := make([]byte, 2)
	var got []byte
	for {
		n, err := q.Read(ctx, buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if string(got) != "abcdef" {
		t.Errorf("got %q", got)
	}
}

func TestZeroLengthReadDoesNotAdvance(t *testing.T) {
	ctx := context.Background()

	b := NewBytes([]byte("hello"), Metadata{})
	if n, err := b.Read(ctx, nil); n != 0 || err != nil {
		t.Fatalf("bytes zero read = %d, %v", n, err)
	}
	if b.Tell() != 0 {
		t.Errorf("bytes cursor moved to %d", b.Tell())
	}

	q, w := NewQueue(Metadata{})
	if err := w.Write(ctx, []byte("data")); err != nil {
		t.Fatal(err)
	}
	w.Close()
	if n, err := q.Read(ctx, nil); n != 0 || err != nil {
		t.Fatalf("queue zero read = %d, %v", n, err)
	}
	data, err := ReadAll(ctx, q, 0)
	if err != nil || string(data) != "data" {
		t.Errorf("queue payload after zero read = %q, %v", data, err)
	}
}

func TestQueue_ErrorPropagates(t *testing.T) {
	ctx := context.Background()
	q, w := NewQueue(Metadata{})

	go func() {
		w.Write(ctx, []byte("data"))
		w.CloseWithError(errors.Format("truncated stream"))
	}()

	if _, err := ReadAll(ctx, q, 0); !errors.IsCode(err, errors.ErrCodeFormat) {
		t.Errorf("got %v, want FORMAT_ERROR", err)
	}
	// The error is sticky.
	if _, err := q.Read(ctx, make([]byte, 1)); !errors.IsCode(err, errors.ErrCodeFormat) {
		t.Errorf("second read: got %v", err)
	}
}

func TestQueue_ConsumerCloseReleasesWriter(t *testing.T) {
	ctx := context.Background()
	q, w := NewQueue(Metadata{})

	// Fill the queue so the next write must block on the closed signal.
	for i := 0; i < queueDepth; i++ {
		if err := w.Write(ctx, []byte{0}); err != nil {
			t.Fatal(err)
		}
	}
	q.Close()

	if err := w.Write(ctx, []byte{0}); err != io.ErrClosedPipe {
		t.Errorf("got %v, want io.ErrClosedPipe", err)
	}
}

func TestQueue_ReadCancelled(t *testing.T) {
	q, _ := NewQueue(Metadata{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Read(ctx, make([]byte, 1))
	if !errors.IsCode(err, errors.ErrCodeCancelled) {
		t.Errorf("got %v, want CANCELLED", err)
	}
}

func TestQueue_SeekUnsupported(t *testing.T) {
	q, _ := NewQueue(Metadata{})
	if _, err := q.Seek(context.Background(), 0, io.SeekStart); !errors.IsCode(err, errors.ErrCodeUnsupportedOperation) {
		t.Errorf("got %v", err)
	}
	if _, ok := AsSeekable(q); ok {
		t.Error("queue must not satisfy Seekable")
	}
}

func TestReadAll_Limit(t *testing.T) {
	ctx := context.Background()
	b := NewBytes(bytes.Repeat([]byte{1}, 1000), Metadata{})
	if _, err := ReadAll(ctx, b, 100); !errors.IsCode(err, errors.ErrCodeResourceLimit) {
		t.Errorf("got %v, want RESOURCE_LIMIT", err)
	}
}

func TestEnsureSeekable_PassThrough(t *testing.T) {
	b := NewBytes([]byte("x"), Metadata{})
	s, err := EnsureSeekable(context.Background(), b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s != Seekable(b) {
		t.Error("expected the same carrier back")
	}
}

func TestEnsureSeekable_MaterialisesQueue(t *testing.T) {
	ctx := context.Background()
	q, w := NewQueue(Metadata{FileName: "q.bin", MediaType: "application/octet-stream"})
	go func() {
		w.Write(ctx, []byte("queued data"))
		w.Close()
	}()

	s, err := EnsureSeekable(ctx, q, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Metadata().FileName; got != "q.bin" {
		t.Errorf("metadata lost: %q", got)
	}
	size, _ := s.Size(ctx)
	if size != int64(len("queued data")) {
		t.Errorf("size = %d", size)
	}
	data, _ := ReadAll(ctx, s, 0)
	if string(data) != "queued data" {
		t.Errorf("got %q", data)
	}
}

func TestEnsureSeekable_LimitExceeded(t *testing.T) {
	ctx := context.Background()
	q, w := NewQueue(Metadata{})
	go func() {
		w.Write(ctx, bytes.Repeat([]byte{1}, 200))
		w.Close()
	}()

	if _, err := EnsureSeekable(ctx, q, 100); !errors.IsCode(err, errors.ErrCodeResourceLimit) {
		t.Errorf("got %v, want RESOURCE_LIMIT", err)
	}
}

func TestNewReaderAt(t *testing.T) {
	b := NewBytes([]byte("0123456789"), Metadata{})
	ra := NewReaderAt(context.Background(), b)

	buf := make([]byte, 4)
	n, err := ra.ReadAt(buf, 3)
	if err != nil || n != 4 || string(buf) != "3456" {
		t.Fatalf("got %q, %v", buf[:n], err)
	}

	// Read past the end returns io.EOF with the partial data.
	n, err = ra.ReadAt(buf, 8)
	if err != io.EOF || n != 2 || string(buf[:n]) != "89" {
		t.Errorf("got %q, n=%d, err=%v", buf[:n], n, err)
	}
}

func TestMetadataClone(t *testing.T) {
	m := Metadata{FileName: "a", Headers: map[string]string{"X": "1"}}
	c := m.Clone()
	c.Headers["X"] = "2"
	if m.Headers["X"] != "1" {
		t.Error("clone shares header map")
	}
}
