package step

import (
	"archive/zip"
	"context"
	"encoding/json"
	"strings"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
)

// zipEntry is the preview record for one archive member.
type zipEntry struct {
	IsDir          bool   `json:"is_dir"`
	FileSize       uint64 `json:"file_size"`
	ModifiedTime   string `json:"modified_time"`
	CompressedSize uint64 `json:"compressed_size"`
	CompressType   uint16 `json:"compress_type"`
	MediaType      string `json:"media_type"`
}

const zipTimeLayout = "2006-01-02 15:04:05"

// PreviewZip lists an archive's central directory as a JSON document.
type PreviewZip struct {
	deps *Deps
}

func (s *PreviewZip) ProducesMultipleOutputs() bool { return false }

func (s *PreviewZip) Process(ctx context.Context, in Stream, args Args) (Stream, error) {
	src, err := seekableInput(ctx, s.deps, in, args)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	zr, err := openZip(ctx, src)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]zipEntry, len(zr.File))
	for _, f := range zr.File {
		isDir := strings.HasSuffix(f.Name, "/")
		mediaType := ""
		if !isDir {
			mediaType = guessMediaType(f.Name)
		}
		entries[f.Name] = zipEntry{
			IsDir:          isDir,
			FileSize:       f.UncompressedSize64,
			ModifiedTime:   f.Modified.Format(zipTimeLayout),
			CompressedSize: f.CompressedSize64,
			CompressType:   f.Method,
			MediaType:      mediaType,
		}
	}

	body, err := json.Marshal(entries)
	if err != nil {
		return nil, errors.Internal(err)
	}
	out := carrier.NewBytes(body, carrier.Metadata{MediaType: "application/json"})
	return Single(out), nil
}

// openZip opens the central directory of a seekable carrier.
func openZip(ctx context.Context, src carrier.Seekable) (*zip.Reader, error) {
	size, err := src.Size(ctx)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(carrier.NewReaderAt(ctx, src), size)
	if err != nil {
		return nil, errors.Format("malformed ZIP archive").WithCause(err)
	}
	return zr, nil
}
