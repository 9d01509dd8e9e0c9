package step

import (
	"context"
	"strings"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/crypt4gh"
	"github.com/kbukum/filepipe/keyprovider"
)

// DecryptCrypt4GH streams the decrypted payload of a Crypt4GH container.
type DecryptCrypt4GH struct {
	deps *Deps
}

func (s *DecryptCrypt4GH) ProducesMultipleOutputs() bool { return false }

func (s *DecryptCrypt4GH) Process(ctx context.Context, in Stream, args Args) (Stream, error) {
	key, err := recipientSecretKey(ctx, s.deps, args)
	if err != nil {
		return nil, err
	}
	src, err := resolveInput(ctx, s.deps, in, args)
	if err != nil {
		return nil, err
	}

	// Header parse and packet opening happen up front, so key and format
	// failures surface before any output is produced.
	reader, err := crypt4gh.NewReader(carrier.Reader(ctx, src), key)
	if err != nil {
		src.Close()
		return nil, err
	}

	meta := decryptedMetadata(src.Metadata())
	out, w := carrier.NewQueue(meta)
	go func() {
		defer src.Close()
		copyToQueue(ctx, w, reader)
	}()
	return Single(out), nil
}

// recipientSecretKey loads the Crypt4GH private key named by the
// recipient_sec argument: an inline armored key, an env: reference, a
// file path, or an HTTP location. Without the argument, the server's
// own key is used when one is configured.
func recipientSecretKey(ctx context.Context, deps *Deps, args Args) ([crypt4gh.KeySize]byte, error) {
	var key [crypt4gh.KeySize]byte
	source, err := args.String("recipient_sec")
	if err != nil {
		if deps.ServerKey != nil {
			return deps.ServerKey.PrivateKey(ctx)
		}
		return key, err
	}
	var passphrase []byte
	if p := args.OptionalString("recipient_sec_passphrase"); p != "" {
		passphrase = []byte(p)
	}
	return keyprovider.New(source, passphrase, deps.KeyHTTP).PrivateKey(ctx)
}

// decryptedMetadata derives output metadata from the container's,
// dropping the .c4gh suffix and re-guessing the media type.
func decryptedMetadata(in carrier.Metadata) carrier.Metadata {
	meta := in.Clone()
	if strings.HasSuffix(meta.FileName, ".c4gh") {
		meta.FileName = strings.TrimSuffix(meta.FileName, ".c4gh")
	}
	if meta.FileName != "" {
		meta.MediaType = mediaTypeOrDefault(meta.FileName)
	} else {
		meta.MediaType = "application/octet-stream"
	}
	return meta
}
