package gfx

import (
	"image/color"

	"github.com/davidlandreman/corekernel/device/video/console"
)

// Blit copies the canvas contents into a console's pixel framebuffer,
// clipping to whichever of the two is smaller. This is the double-buffering
// path: callers draw into a Canvas and only touch real video memory once
// per frame via Blit.
func Blit(c *Canvas, dst console.PixelBuffer) {
	dstW, dstH := dst.PixelDimensions()

	w, h := c.width, c.height
	if int(dstW) < w {
		w = int(dstW)
	}
	if int(dstH) < h {
		h = int(dstH)
	}

	for y := 0; y < h; y++ {
		rowOff := c.img.PixOffset(0, y)
		for x := 0; x < w; x++ {
			off := rowOff + x*4
			px := c.img.Pix[off : off+4 : off+4]
			dst.SetPixel(uint32(x), uint32(y), color.RGBA{R: px[0], G: px[1], B: px[2], A: px[3]})
		}
	}
}

// BlitRect is like Blit but restricted to the given rectangle of the
// canvas, used by the window manager to repaint only the dirty region of a
// window rather than the whole screen.
func BlitRect(c *Canvas, dst console.PixelBuffer, x, y, w, h int) {
	dstW, dstH := dst.PixelDimensions()

	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > c.width {
		w = c.width - x
	}
	if y+h > c.height {
		h = c.height - y
	}
	if x+w > int(dstW) {
		w = int(dstW) - x
	}
	if y+h > int(dstH) {
		h = int(dstH) - y
	}
	if w <= 0 || h <= 0 {
		return
	}

	for dy := 0; dy < h; dy++ {
		rowOff := c.img.PixOffset(x, y+dy)
		for dx := 0; dx < w; dx++ {
			off := rowOff + dx*4
			px := c.img.Pix[off : off+4 : off+4]
			dst.SetPixel(uint32(x+dx), uint32(y+dy), color.RGBA{R: px[0], G: px[1], B: px[2], A: px[3]})
		}
	}
}
