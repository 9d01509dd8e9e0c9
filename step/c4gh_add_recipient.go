package step

import (
	"context"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/crypt4gh"
)

// AddRecipientCrypt4GH grants an additional public key access to a
// container. The header is rewritten; the encrypted payload is copied
// verbatim without decryption.
type AddRecipientCrypt4GH struct {
	deps *Deps
}

func (s *AddRecipientCrypt4GH) ProducesMultipleOutputs() bool { return false }

func (s *AddRecipientCrypt4GH) Process(ctx context.Context, in Stream, args Args) (Stream, error) {
	recipientRaw, err := args.String("recipient_pub")
	if err != nil {
		return nil, err
	}
	recipientPub, err := crypt4gh.ParsePublicKey([]byte(recipientRaw))
	if err != nil {
		return nil, err
	}
	key, err := recipientSecretKey(ctx, s.deps, args)
	if err != nil {
		return nil, err
	}
	src, err := resolveInput(ctx, s.deps, in, args)
	if err != nil {
		return nil, err
	}

	reader := carrier.Reader(ctx, src)
	hdr, err := crypt4gh.ParseHeader(reader)
	if err != nil {
		src.Close()
		return nil, err
	}
	if err := hdr.AddRecipient(key, recipientPub); err != nil {
		src.Close()
		return nil, err
	}

	meta := src.Metadata().Clone()
	if meta.FileName == "" {
		meta.FileName = "output.c4gh"
	}
	if meta.MediaType == "" {
		meta.MediaType = "application/octet-stream"
	}
	out, w := carrier.NewQueue(meta)
	go func() {
		defer src.Close()
		if err := w.Write(ctx, hdr.Encode()); err != nil {
			w.CloseWithError(err)
			return
		}
		// reader is already positioned at the first data segment.
		copyToQueue(ctx, w, reader)
	}()
	return Single(out), nil
}
