package font

import (
	"encoding/binary"

	"github.com/davidlandreman/corekernel/kernel"
)

var (
	// ErrBadMagic indicates the data does not start with a "VFNT0002" header.
	ErrBadMagic = &kernel.Error{Module: "gfx/font", Message: "not a VFNT0002 file"}

	// ErrTruncated indicates the file is too short to hold the bitmap data
	// its own header claims to contain.
	ErrTruncated = &kernel.Error{Module: "gfx/font", Message: "truncated VFNT bitmap data"}
)

const (
	vfntBitmapOffset    = 0x40
	vfntCharRangeOffset = 0x1918
)

// VFNTFace is a fixed-width bitmap font loaded from a FreeBSD-style VFNT0002
// console font file.
type VFNTFace struct {
	width, height int
	firstChar     rune
	numChars      int
	bitmapData    []byte
}

// LoadVFNT parses a VFNT0002 font image. The format stores the glyph
// dimensions at offset 8, the packed glyph bitmaps starting at a fixed
// offset, and the covered character range near the end of the file.
func LoadVFNT(data []byte) (*VFNTFace, *kernel.Error) {
	if len(data) < 12 || string(data[0:4]) != "VFNT" || string(data[4:8]) != "0002" {
		return nil, ErrBadMagic
	}

	width := int(data[8])
	height := int(data[9])

	firstChar, numChars := 32, 94
	if len(data) >= vfntCharRangeOffset+8 {
		fc := binary.BigEndian.Uint32(data[vfntCharRangeOffset:])
		nc := binary.BigEndian.Uint32(data[vfntCharRangeOffset+4:])
		if fc != 0 || nc != 0 {
			firstChar, numChars = int(uint8(fc)), int(uint8(nc))
		}
	}

	bytesPerChar := bytesPerRow(width) * height
	bitmapSize := numChars * bytesPerChar
	if len(data) < vfntBitmapOffset+bitmapSize {
		return nil, ErrTruncated
	}

	return &VFNTFace{
		width:      width,
		height:     height,
		firstChar:  rune(firstChar),
		numChars:   numChars,
		bitmapData: data[vfntBitmapOffset : vfntBitmapOffset+bitmapSize],
	}, nil
}

// Glyph returns the packed bitmap rows for ch.
func (v *VFNTFace) Glyph(ch rune) ([]byte, bool) {
	if ch < v.firstChar || int(ch-v.firstChar) >= v.numChars {
		return nil, false
	}

	charIndex := int(ch - v.firstChar)
	bytesPerChar := v.BytesPerRow() * v.height
	offset := charIndex * bytesPerChar
	if offset+bytesPerChar > len(v.bitmapData) {
		return nil, false
	}

	return v.bitmapData[offset : offset+bytesPerChar], true
}

// CharWidth returns the glyph width in pixels.
func (v *VFNTFace) CharWidth() int { return v.width }

// CharHeight returns the glyph height in pixels.
func (v *VFNTFace) CharHeight() int { return v.height }

// BytesPerRow returns the number of bytes used to encode one scanline.
func (v *VFNTFace) BytesPerRow() int { return bytesPerRow(v.width) }
