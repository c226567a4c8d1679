package font

import (
	"image"
	"sync"

	"github.com/davidlandreman/corekernel/kernel"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/math/fixed"
)

// ErrInvalidTrueType indicates the supplied bytes could not be parsed as a
// TrueType/OpenType font.
var ErrInvalidTrueType = &kernel.Error{Module: "gfx/font", Message: "invalid TrueType font data"}

const ttDPI = 72

// TrueTypeFace rasterizes glyphs from an embedded TrueType font at a fixed
// point size, caching each glyph's 1bpp bitmap the first time it is drawn.
type TrueTypeFace struct {
	font      *truetype.Font
	pointSize float64
	width     int
	height    int

	mu    sync.Mutex
	cache map[rune][]byte
}

// LoadTrueType parses TrueType font data and prepares it for rasterization
// at the given point size.
func LoadTrueType(data []byte, pointSize float64) (*TrueTypeFace, *kernel.Error) {
	parsed, err := freetype.ParseFont(data)
	if err != nil {
		return nil, ErrInvalidTrueType
	}

	return &TrueTypeFace{
		font:      parsed,
		pointSize: pointSize,
		width:     int(pointSize*2/3) + 1,
		height:    int(pointSize) + 1,
		cache:     make(map[rune][]byte),
	}, nil
}

// Glyph rasterizes (or returns the cached rasterization of) ch as a 1bpp
// bitmap, thresholding the font's antialiased coverage at its midpoint.
func (tt *TrueTypeFace) Glyph(ch rune) ([]byte, bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if cached, ok := tt.cache[ch]; ok {
		return cached, cached != nil
	}

	bitmap := tt.rasterize(ch)
	tt.cache[ch] = bitmap
	return bitmap, bitmap != nil
}

func (tt *TrueTypeFace) rasterize(ch rune) []byte {
	dst := image.NewAlpha(image.Rect(0, 0, tt.width, tt.height))

	ctx := freetype.NewContext()
	ctx.SetDPI(ttDPI)
	ctx.SetFont(tt.font)
	ctx.SetFontSize(tt.pointSize)
	ctx.SetClip(dst.Bounds())
	ctx.SetDst(dst)
	ctx.SetSrc(image.White)

	baseline := fixed.Point26_6{X: 0, Y: fixed.I(tt.height - 1)}
	if _, err := ctx.DrawString(string(ch), baseline); err != nil {
		return nil
	}

	bpr := bytesPerRow(tt.width)
	packed := make([]byte, bpr*tt.height)
	for y := 0; y < tt.height; y++ {
		for x := 0; x < tt.width; x++ {
			if dst.AlphaAt(x, y).A > 127 {
				packed[y*bpr+x/8] |= 1 << uint(7-x%8)
			}
		}
	}
	return packed
}

// CharWidth returns the rasterization cell width in pixels.
func (tt *TrueTypeFace) CharWidth() int { return tt.width }

// CharHeight returns the rasterization cell height in pixels.
func (tt *TrueTypeFace) CharHeight() int { return tt.height }

// BytesPerRow returns the number of bytes used to encode one scanline.
func (tt *TrueTypeFace) BytesPerRow() int { return bytesPerRow(tt.width) }
