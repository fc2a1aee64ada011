// Package chunk implements the raw big-endian chunk framing shared by every
// PNG chunk: a length, a four-byte type, the payload, and a trailing CRC-32.
package chunk

import (
	"encoding/binary"
	"fmt"

	"github.com/snksoft/crc"
)

// Signature is the eight-byte magic every PNG datastream begins with.
var Signature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	lenSize = 4
	typSize = 4
	crcSize = 4
)

// Type is a four-character PNG chunk type code (e.g. "IHDR").
type Type string

const (
	IHDR Type = "IHDR"
	IDAT Type = "IDAT"
	IEND Type = "IEND"
)

// Raw is an unparsed chunk as it appears on the wire: length, type, the raw
// payload, and the trailing CRC. Data is owned by this Raw chunk alone; once
// a higher-level parse step has copied out what it needs, the Raw chunk is
// disposable.
type Raw struct {
	Length uint32
	Type   Type
	Data   []byte
	Crc    uint32
}

// crcTable is the 256-entry CRC-32 lookup table, built once per process and
// only read afterwards, so concurrent callers of CRC share it safely.
var crcTable = crc.NewTable(crc.CRC32)

// CRC computes the IEEE CRC-32 (polynomial 0xEDB88320) over type||data, the
// same quantity the PNG spec protects with the chunk's trailing CRC field.
func CRC(typ Type, data []byte) uint32 {
	buf := make([]byte, 0, len(typ)+len(data))
	buf = append(buf, []byte(typ)...)
	buf = append(buf, data...)
	return uint32(crcTable.CalculateCRC(buf))
}

// Load reads one raw chunk from buf starting at offset. It returns the chunk
// and the offset immediately following it. CRC mismatches are reported via
// the returned error but are non-fatal: the parsed chunk is still returned so
// callers can choose to continue (strips sometimes travel over lossy paths).
func Load(buf []byte, offset int) (Raw, int, error) {
	if offset+lenSize+typSize > len(buf) {
		return Raw{}, offset, &WrongChunkError{Reason: "buffer too small for chunk header"}
	}

	length := binary.BigEndian.Uint32(buf[offset : offset+lenSize])
	typ := Type(buf[offset+lenSize : offset+lenSize+typSize])

	dataStart := offset + lenSize + typSize
	dataEnd := dataStart + int(length)
	if dataEnd+crcSize > len(buf) {
		return Raw{}, offset, &WrongChunkError{Reason: "buffer too small for chunk data and CRC"}
	}

	data := make([]byte, length)
	copy(data, buf[dataStart:dataEnd])

	storedCRC := binary.BigEndian.Uint32(buf[dataEnd : dataEnd+crcSize])

	raw := Raw{Length: length, Type: typ, Data: data, Crc: storedCRC}

	next := dataEnd + crcSize
	if computed := CRC(typ, data); computed != storedCRC {
		return raw, next, &CrcMismatchError{Type: typ, Computed: computed, Stored: storedCRC}
	}
	return raw, next, nil
}

// Write serializes a raw chunk (length, type, data, freshly-computed CRC) in
// PNG wire order and appends it to dst.
func Write(dst []byte, typ Type, data []byte) []byte {
	var lenBuf [lenSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, []byte(typ)...)
	dst = append(dst, data...)

	var crcBuf [crcSize]byte
	binary.BigEndian.PutUint32(crcBuf[:], CRC(typ, data))
	dst = append(dst, crcBuf[:]...)
	return dst
}

// WrongChunkError signals that the chunk header or framing could not be
// interpreted (too few bytes available, or an unexpected chunk type).
type WrongChunkError struct {
	Reason string
}

func (e *WrongChunkError) Error() string {
	return fmt.Sprintf("wrong chunk: %s", e.Reason)
}

// CrcMismatchError reports a CRC-32 mismatch. It is intentionally not fatal
// to callers that prefer to surface corruption as noise rather than abort.
type CrcMismatchError struct {
	Type     Type
	Computed uint32
	Stored   uint32
}

func (e *CrcMismatchError) Error() string {
	return fmt.Sprintf("%s chunk CRC mismatch: computed %08X, stored %08X", e.Type, e.Computed, e.Stored)
}
