package step

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/logger"
)

func testDeps() *Deps {
	return &Deps{Log: logger.NewDefault("test")}
}

// zipFixture describes one member of a test archive.
type zipFixture struct {
	name     string
	body     string
	modified time.Time
}

func makeZip(t *testing.T, members ...zipFixture) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		modified := m.modified
		if modified.IsZero() {
			modified = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     m.name,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(m.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func inputStream(data []byte, meta carrier.Metadata) Stream {
	return Single(carrier.NewBytes(data, meta))
}

// collect drains a stream, returning each carrier's body and metadata.
func collect(t *testing.T, ctx context.Context, out Stream) (bodies [][]byte, metas []carrier.Metadata) {
	t.Helper()
	defer out.Close()
	for {
		c, ok, err := out.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return bodies, metas
		}
		body, err := carrier.ReadAll(ctx, c, 0)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		metas = append(metas, c.Metadata())
		bodies = append(bodies, body)
		c.Close()
	}
}

func runStep(t *testing.T, s Step, in Stream, args Args) ([][]byte, []carrier.Metadata) {
	t.Helper()
	ctx := context.Background()
	out, err := s.Process(ctx, in, args)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	bodies, metas := collect(t, ctx, out)
	return bodies, metas
}

func TestRegistry_KnownAndUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.New(TypePreviewZip, testDeps()); err != nil {
		t.Errorf("preview_zip: %v", err)
	}
	_, err := r.New("transmogrify", testDeps())
	if !errors.IsCode(err, errors.ErrCodeUnknownStep) {
		t.Errorf("got %v, want UNKNOWN_STEP", err)
	}
}

func TestArgs_Int(t *testing.T) {
	args := Args{"w": float64(100), "frac": 1.5, "neg": float64(-1), "str": "x"}
	if n, err := args.Int("w"); err != nil || n != 100 {
		t.Errorf("w: %d, %v", n, err)
	}
	for _, key := range []string{"frac", "neg", "str", "missing"} {
		if _, err := args.Int(key); !errors.IsCode(err, errors.ErrCodeInvalidArguments) {
			t.Errorf("%s: got %v", key, err)
		}
	}
}
