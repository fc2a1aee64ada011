package codec

import (
	"bytes"

	"github.com/ece252-project/stripassemble/internal/chunk"
)

// ColorType values recognized by IHDR.ColorType.
const (
	ColorGrayscale      uint8 = 0
	ColorTruecolor      uint8 = 2
	ColorIndexed        uint8 = 3
	ColorGrayscaleAlpha uint8 = 4
	ColorTruecolorAlpha uint8 = 6
)

// PNG is the "simple PNG" domain object: exactly IHDR, IDAT, and IEND.
// A single IDAT chunk suffices; multi-IDAT streams are out of scope.
type PNG struct {
	IHDR *IHDR
	IDAT []byte // raw (still-compressed) IDAT payload
}

// New builds an empty PNG with the given header fields. Compression, filter,
// and interlace are always 0, the only values this codec understands.
func New(width, height uint32, bitDepth, colorType uint8) *PNG {
	return &PNG{
		IHDR: &IHDR{
			Width:     width,
			Height:    height,
			BitDepth:  bitDepth,
			ColorType: colorType,
		},
	}
}

// Parse reads a PNG buffer that must contain exactly three chunks, in order:
// IHDR, IDAT, IEND. Any other ordering or chunk type is a WrongChunk error.
//
// A CRC mismatch on any chunk is reported but non-fatal: Parse keeps going
// and returns the partially (or fully) parsed PNG alongside the error, so
// callers can choose to treat a corrupt strip as noise rather than abort.
func Parse(buf []byte) (*PNG, error) {
	if len(buf) < len(chunk.Signature) || !bytes.Equal(buf[:len(chunk.Signature)], chunk.Signature[:]) {
		return nil, NewError(NotPng, "missing PNG signature")
	}

	offset := len(chunk.Signature)
	png := &PNG{}
	var firstErr error

	rawIHDR, offset, err := chunk.Load(buf, offset)
	if err != nil {
		if _, ok := err.(*chunk.CrcMismatchError); !ok {
			return nil, NewError(WrongChunk, "%v", err)
		}
		firstErr = NewError(CrcMismatch, "%v", err)
	}
	ihdr, err := parseIHDR(rawIHDR)
	if err != nil {
		return nil, err
	}
	png.IHDR = &ihdr

	rawIDAT, offset, err := chunk.Load(buf, offset)
	if err != nil {
		if _, ok := err.(*chunk.CrcMismatchError); !ok {
			return png, NewError(WrongChunk, "%v", err)
		}
		if firstErr == nil {
			firstErr = NewError(CrcMismatch, "%v", err)
		}
	}
	if rawIDAT.Type != chunk.IDAT {
		return png, NewError(WrongChunk, "expected IDAT chunk, got %s", rawIDAT.Type)
	}
	png.IDAT = rawIDAT.Data

	rawIEND, offset, err := chunk.Load(buf, offset)
	if err != nil {
		if _, ok := err.(*chunk.CrcMismatchError); !ok {
			return png, NewError(WrongChunk, "%v", err)
		}
		if firstErr == nil {
			firstErr = NewError(CrcMismatch, "%v", err)
		}
	}
	if rawIEND.Type != chunk.IEND {
		return png, NewError(WrongChunk, "expected IEND chunk, got %s", rawIEND.Type)
	}
	if offset != len(buf) {
		return png, NewError(WrongChunk, "%d trailing byte(s) after IEND", len(buf)-offset)
	}

	return png, firstErr
}

// Validate reports whether the PNG's header fields are self-consistent. It
// does not re-verify CRCs or cross-check payload lengths.
func (p *PNG) Validate() bool {
	if p == nil || p.IHDR == nil || p.IDAT == nil {
		return false
	}
	if p.IHDR.Width == 0 || p.IHDR.Height == 0 {
		return false
	}
	if !validBitDepths[p.IHDR.BitDepth] {
		return false
	}
	if !validColorTypes[p.IHDR.ColorType] {
		return false
	}
	return true
}

// Write serializes signature || IHDR || IDAT || IEND, computing each
// chunk's CRC at emit time.
func (p *PNG) Write() []byte {
	buf := make([]byte, 0, len(chunk.Signature)+64+len(p.IDAT))
	buf = append(buf, chunk.Signature[:]...)
	buf = chunk.Write(buf, chunk.IHDR, p.IHDR.bytes())
	buf = chunk.Write(buf, chunk.IDAT, p.IDAT)
	buf = chunk.Write(buf, chunk.IEND, nil)
	return buf
}
