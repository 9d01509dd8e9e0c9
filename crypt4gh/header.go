package crypt4gh

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/kbukum/filepipe/errors"
)

// Magic identifies a Crypt4GH container.
const Magic = "crypt4gh"

// Version is the only container version in use.
const Version = 1

const (
	// packetEncryptionX25519 is the only defined header packet encryption.
	packetEncryptionX25519 = 0

	// packetTypeDataKey carries data encryption parameters.
	packetTypeDataKey = 0
	// packetTypeEditList carries an edit list.
	packetTypeEditList = 1

	// dataEncryptionChaCha20 is the only defined payload encryption.
	dataEncryptionChaCha20 = 0

	// maxPacketLength guards against absurd allocations from corrupt input.
	maxPacketLength = 1 << 20

	nonceSize = chacha20poly1305.NonceSize
)

// Packet is one encrypted header packet, kept in wire form so packets for
// other recipients survive re-encoding untouched.
type Packet struct {
	// EncryptionMethod is the header packet encryption scheme.
	EncryptionMethod uint32
	// WriterPublicKey is the ephemeral key the packet was sealed with.
	WriterPublicKey [KeySize]byte
	// Nonce is the AEAD nonce.
	Nonce [nonceSize]byte
	// Sealed is the AEAD-sealed packet payload.
	Sealed []byte
}

// Header is the parsed container header.
type Header struct {
	Packets []Packet
}

// ParseHeader reads a container header from r, leaving r positioned at the
// first data segment.
func ParseHeader(r io.Reader) (*Header, error) {
	var preamble [len(Magic) + 8]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, errors.Format("not a Crypt4GH container: truncated preamble")
	}
	if string(preamble[:len(Magic)]) != Magic {
		return nil, errors.Format("not a Crypt4GH container: bad magic bytes")
	}
	version := binary.LittleEndian.Uint32(preamble[len(Magic):])
	if version != Version {
		return nil, errors.Format(fmt.Sprintf("unsupported Crypt4GH version %d", version))
	}
	packetCount := binary.LittleEndian.Uint32(preamble[len(Magic)+4:])
	if packetCount == 0 {
		return nil, errors.Format("Crypt4GH header has no packets")
	}

	hdr := &Header{Packets: make([]Packet, 0, packetCount)}
	for i := uint32(0); i < packetCount; i++ {
		pkt, err := parsePacket(r)
		if err != nil {
			return nil, err
		}
		hdr.Packets = append(hdr.Packets, pkt)
	}
	return hdr, nil
}

func parsePacket(r io.Reader) (Packet, error) {
	var pkt Packet

	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return pkt, errors.Format("truncated Crypt4GH header packet")
	}
	length := binary.LittleEndian.Uint32(lengthBuf[:])
	// Length covers the whole packet including the length field itself.
	const fixed = 4 + 4 + KeySize + nonceSize
	if length < fixed || length > maxPacketLength {
		return pkt, errors.Format(fmt.Sprintf("implausible Crypt4GH packet length %d", length))
	}

	body := make([]byte, length-4)
	if _, err := io.ReadFull(r, body); err != nil {
		return pkt, errors.Format("truncated Crypt4GH header packet")
	}

	pkt.EncryptionMethod = binary.LittleEndian.Uint32(body[:4])
	copy(pkt.WriterPublicKey[:], body[4:4+KeySize])
	copy(pkt.Nonce[:], body[4+KeySize:4+KeySize+nonceSize])
	pkt.Sealed = body[4+KeySize+nonceSize:]
	return pkt, nil
}

// DataKeys opens every packet it can with readerPrivate and returns the
// data keys found. A CRYPTO_AUTH error is returned when no packet opens.
func (h *Header) DataKeys(readerPrivate [KeySize]byte) ([][KeySize]byte, error) {
	var keys [][KeySize]byte
	opened := false
	for _, pkt := range h.Packets {
		payload, err := pkt.open(readerPrivate)
		if err != nil {
			continue
		}
		opened = true
		if key, ok := parseDataKeyPayload(payload); ok {
			keys = append(keys, key)
		}
	}
	if !opened {
		return nil, errors.CryptoAuth("no header packet could be decrypted with the provided key")
	}
	if len(keys) == 0 {
		return nil, errors.Format("no data encryption packet in Crypt4GH header")
	}
	return keys, nil
}

func (pkt Packet) open(readerPrivate [KeySize]byte) ([]byte, error) {
	if pkt.EncryptionMethod != packetEncryptionX25519 {
		return nil, errors.Format("unsupported header packet encryption")
	}
	key, err := readerSharedKey(readerPrivate, pkt.WriterPublicKey)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Internal(err)
	}
	payload, err := aead.Open(nil, pkt.Nonce[:], pkt.Sealed, nil)
	if err != nil {
		return nil, errors.CryptoAuth("header packet did not authenticate")
	}
	return payload, nil
}

func parseDataKeyPayload(payload []byte) ([KeySize]byte, bool) {
	var key [KeySize]byte
	if len(payload) != 4+4+KeySize {
		return key, false
	}
	if binary.LittleEndian.Uint32(payload[:4]) != packetTypeDataKey {
		return key, false
	}
	if binary.LittleEndian.Uint32(payload[4:8]) != dataEncryptionChaCha20 {
		return key, false
	}
	copy(key[:], payload[8:])
	return key, true
}

// sealPacket encrypts a data-key payload for one recipient using a writer
// key pair.
func sealPacket(writerPrivate, recipientPublic, dataKey [KeySize]byte) (Packet, error) {
	var pkt Packet

	payload := make([]byte, 4+4+KeySize)
	binary.LittleEndian.PutUint32(payload[:4], packetTypeDataKey)
	binary.LittleEndian.PutUint32(payload[4:8], dataEncryptionChaCha20)
	copy(payload[8:], dataKey[:])

	key, err := writerSharedKey(writerPrivate, recipientPublic)
	if err != nil {
		return pkt, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return pkt, errors.Internal(err)
	}
	if _, err := rand.Read(pkt.Nonce[:]); err != nil {
		return pkt, errors.Internal(err)
	}
	pkt.EncryptionMethod = packetEncryptionX25519
	pkt.WriterPublicKey, err = DerivePublicKey(writerPrivate)
	if err != nil {
		return pkt, err
	}
	pkt.Sealed = aead.Seal(nil, pkt.Nonce[:], payload, nil)
	return pkt, nil
}

// Encode serialises the header back to wire form.
func (h *Header) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)

	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], Version)
	buf.Write(word[:])
	binary.LittleEndian.PutUint32(word[:], uint32(len(h.Packets)))
	buf.Write(word[:])

	for _, pkt := range h.Packets {
		length := uint32(4 + 4 + KeySize + nonceSize + len(pkt.Sealed))
		binary.LittleEndian.PutUint32(word[:], length)
		buf.Write(word[:])
		binary.LittleEndian.PutUint32(word[:], pkt.EncryptionMethod)
		buf.Write(word[:])
		buf.Write(pkt.WriterPublicKey[:])
		buf.Write(pkt.Nonce[:])
		buf.Write(pkt.Sealed)
	}
	return buf.Bytes()
}

// AddRecipient grants recipientPublic access to the container: every data
// key that ownPrivate can recover is re-sealed for the recipient under a
// fresh ephemeral writer key and appended. Existing packets are preserved
// byte for byte.
func (h *Header) AddRecipient(ownPrivate, recipientPublic [KeySize]byte) error {
	keys, err := h.DataKeys(ownPrivate)
	if err != nil {
		return err
	}
	for _, dataKey := range keys {
		_, ephemeralPrivate, err := GenerateKeyPair()
		if err != nil {
			return errors.Internal(err)
		}
		pkt, err := sealPacket(ephemeralPrivate, recipientPublic, dataKey)
		if err != nil {
			return err
		}
		h.Packets = append(h.Packets, pkt)
	}
	return nil
}
