package codec

import (
	"encoding/binary"

	"github.com/ece252-project/stripassemble/internal/chunk"
)

// ihdrPayloadSize is the fixed 13-byte IHDR payload: two big-endian u32s
// (width, height) followed by five single-byte fields.
const ihdrPayloadSize = 13

// IHDR is the parsed image header chunk.
type IHDR struct {
	Width             uint32
	Height            uint32
	BitDepth          uint8
	ColorType         uint8
	CompressionMethod uint8
	FilterMethod      uint8
	InterlaceMethod   uint8
}

var validBitDepths = map[uint8]bool{1: true, 2: true, 4: true, 8: true, 16: true}
var validColorTypes = map[uint8]bool{0: true, 2: true, 3: true, 4: true, 6: true}

func parseIHDR(raw chunk.Raw) (IHDR, error) {
	if raw.Type != chunk.IHDR {
		return IHDR{}, NewError(WrongChunk, "expected IHDR chunk, got %s", raw.Type)
	}
	if len(raw.Data) != ihdrPayloadSize {
		return IHDR{}, NewError(WrongChunk, "IHDR payload must be %d bytes, got %d", ihdrPayloadSize, len(raw.Data))
	}
	d := raw.Data
	return IHDR{
		Width:             binary.BigEndian.Uint32(d[0:4]),
		Height:            binary.BigEndian.Uint32(d[4:8]),
		BitDepth:          d[8],
		ColorType:         d[9],
		CompressionMethod: d[10],
		FilterMethod:      d[11],
		InterlaceMethod:   d[12],
	}, nil
}

func (h IHDR) bytes() []byte {
	buf := make([]byte, ihdrPayloadSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Width)
	binary.BigEndian.PutUint32(buf[4:8], h.Height)
	buf[8] = h.BitDepth
	buf[9] = h.ColorType
	buf[10] = h.CompressionMethod
	buf[11] = h.FilterMethod
	buf[12] = h.InterlaceMethod
	return buf
}
