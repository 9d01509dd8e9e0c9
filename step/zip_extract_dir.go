package step

import (
	"archive/zip"
	"context"
	"strings"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
)

// ExtractDirectoryZip streams every member under a directory as a
// separate carrier, named relative to the directory.
type ExtractDirectoryZip struct {
	deps *Deps
}

func (s *ExtractDirectoryZip) ProducesMultipleOutputs() bool { return true }

func (s *ExtractDirectoryZip) Process(ctx context.Context, in Stream, args Args) (Stream, error) {
	directory, err := args.String("directory_name")
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

	prefix := strings.TrimSuffix(directory, "/") + "/"
	var members []*zip.File
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		members = append(members, f)
	}

	return Generate(ctx, func(ctx context.Context, emit func(carrier.Carrier) error) error {
		defer src.Close()
		for _, member := range members {
			// Names are kept relative to the requested directory so a
			// later create_zip preserves the layout.
			relative := strings.TrimPrefix(member.Name, prefix)
			meta := carrier.Metadata{
				FileName:  relative,
				MediaType: mediaTypeOrDefault(relative),
			}
			out, w := carrier.NewQueue(meta)
			if err := emit(out); err != nil {
				return err
			}
			rc, err := member.Open()
			if err != nil {
				werr := errors.Format("malformed ZIP member").WithCause(err)
				w.CloseWithError(werr)
				return werr
			}
			err = copyToQueue(ctx, w, rc)
			rc.Close()
			if err != nil {
				return err
			}
		}
		return nil
	}), nil
}
