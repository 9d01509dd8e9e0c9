package crypt4gh

import (
	"crypto/cipher"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/kbukum/filepipe/errors"
)

// SegmentSize is the plaintext size of a full data segment.
const SegmentSize = 65536

// encryptedSegmentSize is a full segment on the wire: nonce, ciphertext
// and Poly1305 tag.
const encryptedSegmentSize = nonceSize + SegmentSize + chacha20poly1305.Overhead

// Reader decrypts a Crypt4GH container on the fly.
type Reader struct {
	src    io.Reader
	aeads  []cipher.AEAD
	buf    []byte
	frame  []byte
	eof    bool
	header *Header
}

// NewReader parses the container header from src using readerPrivate and
// returns a Reader that yields the decrypted payload.
func NewReader(src io.Reader, readerPrivate [KeySize]byte) (*Reader, error) {
	hdr, err := ParseHeader(src)
	if err != nil {
		return nil, err
	}
	keys, err := hdr.DataKeys(readerPrivate)
	if err != nil {
		return nil, err
	}
	aeads := make([]cipher.AEAD, 0, len(keys))
	for _, key := range keys {
		aead, err := chacha20poly1305.New(key[:])
		if err != nil {
			return nil, errors.Internal(err)
		}
		aeads = append(aeads, aead)
	}
	return &Reader{
		src:    src,
		aeads:  aeads,
		frame:  make([]byte, encryptedSegmentSize),
		header: hdr,
	}, nil
}

// Header exposes the parsed container header.
func (r *Reader) Header() *Header { return r.header }

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.nextSegment(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *Reader) nextSegment() error {
	n, err := io.ReadFull(r.src, r.frame)
	switch err {
	case nil:
	case io.ErrUnexpectedEOF:
		// Final short segment.
		r.eof = true
	case io.EOF:
		r.eof = true
		return nil
	default:
		return errors.Network("read", err)
	}
	if n < encryptedSegmentSize {
		r.eof = true
	}
	if n < nonceSize+chacha20poly1305.Overhead {
		return errors.Format("truncated Crypt4GH data segment")
	}

	nonce := r.frame[:nonceSize]
	ciphertext := r.frame[nonceSize:n]
	for _, aead := range r.aeads {
		plain, err := aead.Open(nil, nonce, ciphertext, nil)
		if err == nil {
			r.buf = plain
			return nil
		}
	}
	return errors.CryptoAuth("Crypt4GH data segment did not authenticate")
}
