package crypt4gh

import (
	"crypto/cipher"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/kbukum/filepipe/errors"
)

// Writer produces a Crypt4GH container readable by every listed recipient.
// A fresh data key and ephemeral writer key pair are generated per
// container.
type Writer struct {
	dst    io.Writer
	aead   cipher.AEAD
	buf    []byte
	closed bool
}

// NewWriter writes a container header for the recipients to dst and
// returns a Writer for the payload. Close must be called to flush the
// final segment.
func NewWriter(dst io.Writer, recipients ...[KeySize]byte) (*Writer, error) {
	if len(recipients) == 0 {
		return nil, errors.InvalidArguments("at least one recipient public key is required")
	}

	var dataKey [KeySize]byte
	if _, err := rand.Read(dataKey[:]); err != nil {
		return nil, errors.Internal(err)
	}
	_, writerPrivate, err := GenerateKeyPair()
	if err != nil {
		return nil, errors.Internal(err)
	}

	hdr := &Header{}
	for _, recipient := range recipients {
		pkt, err := sealPacket(writerPrivate, recipient, dataKey)
		if err != nil {
			return nil, err
		}
		hdr.Packets = append(hdr.Packets, pkt)
	}
	if _, err := dst.Write(hdr.Encode()); err != nil {
		return nil, errors.Network("write", err)
	}

	aead, err := chacha20poly1305.New(dataKey[:])
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &Writer{
		dst:  dst,
		aead: aead,
		buf:  make([]byte, 0, SegmentSize),
	}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	total := len(p)
	for len(p) > 0 {
		room := SegmentSize - len(w.buf)
		if room > len(p) {
			room = len(p)
		}
		w.buf = append(w.buf, p[:room]...)
		p = p[room:]
		if len(w.buf) == SegmentSize {
			if err := w.flushSegment(); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

// Close flushes the final partial segment. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if len(w.buf) == 0 {
		return nil
	}
	return w.flushSegment()
}

func (w *Writer) flushSegment() error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Internal(err)
	}
	segment := w.aead.Seal(nonce[:], nonce[:], w.buf, nil)
	w.buf = w.buf[:0]
	if _, err := w.dst.Write(segment); err != nil {
		return errors.Network("write", err)
	}
	return nil
}
