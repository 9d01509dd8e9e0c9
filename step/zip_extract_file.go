package step

import (
	"archive/zip"
	"context"
	stderrors "errors"
	"io"
	"path"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/logger"
)

// ExtractFileZip streams one decompressed archive member.
type ExtractFileZip struct {
	deps *Deps
}

func (s *ExtractFileZip) ProducesMultipleOutputs() bool { return false }

func (s *ExtractFileZip) Process(ctx context.Context, in Stream, args Args) (Stream, error) {
	fileName, err := args.String("file_name")
	if err != nil {
		return nil, err
	}
	src, err := seekableInput(ctx, s.deps, in, args)
	if err != nil {
		return nil, err
	}
	zr, err := openZip(ctx, src)
	if err != nil {
		src.Close()
		return nil, err
	}

	member, err := findMember(zr.File, fileName)
	if err != nil {
		src.Close()
		return nil, err
	}

	meta := carrier.Metadata{
		FileName:  path.Base(fileName),
		MediaType: mediaTypeOrDefault(fileName),
	}
	out, w := carrier.NewQueue(meta)

	go func() {
		defer src.Close()
		rc, err := member.Open()
		if err != nil {
			w.CloseWithError(errors.Format("malformed ZIP member").WithCause(err))
			return
		}
		defer rc.Close()
		if err := copyToQueue(ctx, w, rc); err != nil {
			s.deps.Log.WithError(err).Debug("zip member stream aborted",
				map[string]interface{}{logger.FieldFileName: fileName})
		}
	}()

	return Single(out), nil
}

func findMember(files []*zip.File, name string) (*zip.File, error) {
	for _, f := range files {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, errors.NotFound("ZIP member", name)
}

// copyToQueue streams r into w chunk by chunk and closes w with the
// outcome. Read errors that are not already classified are reported as
// format errors.
func copyToQueue(ctx context.Context, w *carrier.QueueWriter, r io.Reader) error {
	buf := make([]byte, carrier.ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := w.Write(ctx, buf[:n]); werr != nil {
				w.CloseWithError(werr)
				return werr
			}
		}
		if err == io.EOF {
			return w.Close()
		}
		if err != nil {
			var appErr *errors.AppError
			if !stderrors.As(err, &appErr) {
				err = errors.Format("stream read failed").WithCause(err)
			}
			w.CloseWithError(err)
			return err
		}
	}
}
