// Package crypt4gh implements the Crypt4GH encrypted container format:
// key handling, header packet encryption, and segment-wise payload
// encryption with ChaCha20-Poly1305.
package crypt4gh

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/scrypt"

	"github.com/kbukum/filepipe/errors"
)

// KeySize is the size of X25519 keys and data keys.
const KeySize = 32

const (
	privateKeyMagic = "c4gh-v1"
	pemPrivateBegin = "-----BEGIN CRYPT4GH PRIVATE KEY-----"
	pemPrivateEnd   = "-----END CRYPT4GH PRIVATE KEY-----"
	pemPublicBegin  = "-----BEGIN CRYPT4GH PUBLIC KEY-----"
	pemPublicEnd    = "-----END CRYPT4GH PUBLIC KEY-----"
)

// GenerateKeyPair creates a new X25519 key pair.
func GenerateKeyPair() (publicKey, privateKey [KeySize]byte, err error) {
	if _, err = rand.Read(privateKey[:]); err != nil {
		return publicKey, privateKey, fmt.Errorf("generate private key: %w", err)
	}
	publicKey, err = DerivePublicKey(privateKey)
	return publicKey, privateKey, err
}

// DerivePublicKey computes the X25519 public key for a private key.
func DerivePublicKey(privateKey [KeySize]byte) ([KeySize]byte, error) {
	var publicKey [KeySize]byte
	pub, err := curve25519.X25519(privateKey[:], curve25519.Basepoint)
	if err != nil {
		return publicKey, fmt.Errorf("derive public key: %w", err)
	}
	copy(publicKey[:], pub)
	return publicKey, nil
}

// ParsePublicKey reads a Crypt4GH public key, accepting the armored form
// or raw base64.
func ParsePublicKey(data []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	raw, err := unarmor(data, pemPublicBegin, pemPublicEnd)
	if err != nil {
		return key, err
	}
	if len(raw) != KeySize {
		return key, errors.Format(fmt.Sprintf("public key must be %d bytes, got %d", KeySize, len(raw)))
	}
	copy(key[:], raw)
	return key, nil
}

// ParsePrivateKey reads a Crypt4GH private key container, decrypting it
// with passphrase when the container is locked.
func ParsePrivateKey(data, passphrase []byte) ([KeySize]byte, error) {
	var key [KeySize]byte

	raw, err := unarmor(data, pemPrivateBegin, pemPrivateEnd)
	if err != nil {
		return key, err
	}
	if !bytes.HasPrefix(raw, []byte(privateKeyMagic)) {
		return key, errors.Format("not a Crypt4GH private key")
	}
	rest := raw[len(privateKeyMagic):]

	kdfName, rest, err := readLenPrefixed(rest)
	if err != nil {
		return key, err
	}

	var rounds uint32
	var salt []byte
	if string(kdfName) != "none" {
		opts, r, err := readLenPrefixed(rest)
		if err != nil {
			return key, err
		}
		rest = r
		if len(opts) < 4 {
			return key, errors.Format("malformed KDF options")
		}
		rounds = binary.BigEndian.Uint32(opts[:4])
		salt = opts[4:]
	}

	cipherName, rest, err := readLenPrefixed(rest)
	if err != nil {
		return key, err
	}
	blob, _, err := readLenPrefixed(rest)
	if err != nil {
		return key, err
	}

	switch string(cipherName) {
	case "none":
		if len(blob) != KeySize {
			return key, errors.Format("malformed private key blob")
		}
		copy(key[:], blob)
		return key, nil
	case "chacha20_poly1305":
		if len(passphrase) == 0 {
			return key, errors.InvalidArguments("private key is locked and no passphrase was given")
		}
		symKey, err := deriveKeyEncryptionKey(string(kdfName), passphrase, salt, rounds)
		if err != nil {
			return key, err
		}
		if len(blob) < chacha20poly1305.NonceSize {
			return key, errors.Format("malformed private key blob")
		}
		aead, err := chacha20poly1305.New(symKey)
		if err != nil {
			return key, errors.Internal(err)
		}
		nonce, ct := blob[:chacha20poly1305.NonceSize], blob[chacha20poly1305.NonceSize:]
		plain, err := aead.Open(nil, nonce, ct, nil)
		if err != nil {
			return key, errors.CryptoAuth("private key passphrase is incorrect")
		}
		if len(plain) != KeySize {
			return key, errors.Format("malformed private key blob")
		}
		copy(key[:], plain)
		return key, nil
	default:
		return key, errors.Format(fmt.Sprintf("unsupported private key cipher %q", cipherName))
	}
}

func deriveKeyEncryptionKey(kdf string, passphrase, salt []byte, rounds uint32) ([]byte, error) {
	switch kdf {
	case "scrypt":
		// Crypt4GH fixes scrypt parameters; rounds is ignored.
		key, err := scrypt.Key(passphrase, salt, 1<<14, 8, 1, KeySize)
		if err != nil {
			return nil, errors.Internal(err)
		}
		return key, nil
	default:
		return nil, errors.Format(fmt.Sprintf("unsupported private key KDF %q", kdf))
	}
}

// EncodePrivateKey serialises an unencrypted private key container in
// armored form. Used for provisioning test and development keys.
func EncodePrivateKey(privateKey [KeySize]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(privateKeyMagic)
	writeLenPrefixed(&buf, []byte("none"))
	writeLenPrefixed(&buf, []byte("none"))
	writeLenPrefixed(&buf, privateKey[:])
	return armor(buf.Bytes(), pemPrivateBegin, pemPrivateEnd)
}

// EncodePublicKey serialises a public key in armored form.
func EncodePublicKey(publicKey [KeySize]byte) []byte {
	return armor(publicKey[:], pemPublicBegin, pemPublicEnd)
}

// writerSharedKey derives the symmetric key protecting a header packet,
// from the writer's side of the exchange.
func writerSharedKey(writerPrivate, readerPublic [KeySize]byte) ([]byte, error) {
	writerPublic, err := DerivePublicKey(writerPrivate)
	if err != nil {
		return nil, err
	}
	q, err := curve25519.X25519(writerPrivate[:], readerPublic[:])
	if err != nil {
		return nil, errors.CryptoAuth("key agreement failed")
	}
	return kxSessionKey(q, writerPublic, readerPublic)
}

// readerSharedKey derives the same key from the reader's side, using the
// writer's ephemeral public key carried in the packet.
func readerSharedKey(readerPrivate, writerPublic [KeySize]byte) ([]byte, error) {
	readerPublic, err := DerivePublicKey(readerPrivate)
	if err != nil {
		return nil, err
	}
	q, err := curve25519.X25519(readerPrivate[:], writerPublic[:])
	if err != nil {
		return nil, errors.CryptoAuth("key agreement failed")
	}
	return kxSessionKey(q, writerPublic, readerPublic)
}

// kxSessionKey matches libsodium crypto_kx: the writer's tx key and the
// reader's rx key are both the second half of the BLAKE2b-512 digest.
func kxSessionKey(q []byte, writerPublic, readerPublic [KeySize]byte) ([]byte, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, errors.Internal(err)
	}
	h.Write(q)
	h.Write(writerPublic[:])
	h.Write(readerPublic[:])
	digest := h.Sum(nil)
	return digest[KeySize : 2*KeySize], nil
}

func readLenPrefixed(data []byte) (value, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, errors.Format("truncated private key container")
	}
	n := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+n {
		return nil, nil, errors.Format("truncated private key container")
	}
	return data[2 : 2+n], data[2+n:], nil
}

func writeLenPrefixed(buf *bytes.Buffer, value []byte) {
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(value)))
	buf.Write(length[:])
	buf.Write(value)
}

func unarmor(data []byte, begin, end string) ([]byte, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, begin) {
		text = strings.TrimPrefix(text, begin)
		idx := strings.Index(text, end)
		if idx == -1 {
			return nil, errors.Format("missing armor end marker")
		}
		text = text[:idx]
	}
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, text)
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, errors.Format("malformed key encoding").WithCause(err)
	}
	return raw, nil
}

func armor(raw []byte, begin, end string) []byte {
	var buf bytes.Buffer
	buf.WriteString(begin)
	buf.WriteByte('\n')
	buf.WriteString(base64.StdEncoding.EncodeToString(raw))
	buf.WriteByte('\n')
	buf.WriteString(end)
	buf.WriteByte('\n')
	return buf.Bytes()
}
