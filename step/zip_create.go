package step

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
)

// CreateZip packs every input carrier into a streamed ZIP archive.
// Entries are stored uncompressed: typical inputs are already compressed
// or encrypted.
type CreateZip struct {
	deps *Deps
}

func (s *CreateZip) ProducesMultipleOutputs() bool { return false }

func (s *CreateZip) Process(ctx context.Context, in Stream, args Args) (Stream, error) {
	if in == nil {
		return nil, errors.PipelineShape("create_zip requires upstream inputs")
	}

	meta := carrier.Metadata{
		FileName:  "created.zip",
		MediaType: "application/zip",
		Headers: map[string]string{
			"Content-Disposition": `attachment; filename="created.zip"`,
		},
	}
	out, w := carrier.NewQueue(meta)

	go func() {
		defer in.Close()
		zw := zip.NewWriter(&queueIOWriter{ctx: ctx, w: w})
		used := make(map[string]bool)

		for {
			c, ok, err := in.Next(ctx)
			if err != nil {
				w.CloseWithError(err)
				return
			}
			if !ok {
				break
			}
			if err := s.addEntry(ctx, zw, c, used); err != nil {
				c.Close()
				w.CloseWithError(err)
				return
			}
			c.Close()
		}
		if err := zw.Close(); err != nil {
			w.CloseWithError(errors.Internal(err))
			return
		}
		w.Close()
	}()

	return Single(out), nil
}

func (s *CreateZip) addEntry(ctx context.Context, zw *zip.Writer, c carrier.Carrier, used map[string]bool) error {
	name := c.Metadata().FileName
	if name == "" {
		name = "file"
	}
	name = dedupeName(name, used)
	used[name] = true

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: time.Now(),
	})
	if err != nil {
		return errors.Internal(err)
	}
	if _, err := io.Copy(entry, carrier.Reader(ctx, c)); err != nil {
		return err
	}
	return nil
}

// dedupeName suffixes -1, -2, ... before the extension until the name is
// unused.
func dedupeName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	base, ext := name, ""
	if idx := strings.LastIndex(name, "."); idx > 0 {
		base, ext = name[:idx], name[idx:]
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if !used[candidate] {
			return candidate
		}
	}
}

// queueIOWriter adapts a QueueWriter to io.Writer with a fixed context.
type queueIOWriter struct {
	ctx context.Context
	w   *carrier.QueueWriter
}

func (q *queueIOWriter) Write(p []byte) (int, error) {
	if err := q.w.Write(q.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
