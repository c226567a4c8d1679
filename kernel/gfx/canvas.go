// Package gfx provides 2D drawing primitives over an off-screen pixel
// buffer that can be blitted to a console.PixelBuffer framebuffer.
package gfx

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// Canvas is a drawable off-screen pixel buffer. All drawing operations use
// a top-left origin with integer pixel coordinates, matching the
// console's own coordinate system.
type Canvas struct {
	ctx    *gg.Context
	img    *image.RGBA
	width  int
	height int
}

// NewCanvas allocates a canvas of the given pixel dimensions, cleared to
// transparent black.
func NewCanvas(width, height uint32) *Canvas {
	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	return &Canvas{
		ctx:    gg.NewContextForRGBA(img),
		img:    img,
		width:  int(width),
		height: int(height),
	}
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.width }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.height }

// Clear fills the entire canvas with the given color.
func (c *Canvas) Clear(col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.Clear()
}

// DrawPixel sets a single pixel. Out-of-bounds coordinates are ignored.
func (c *Canvas) DrawPixel(x, y int, col color.Color) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return
	}
	c.img.Set(x, y, col)
}

// FillRect fills the rectangle [x,y,x+w,y+h) with col.
func (c *Canvas) FillRect(x, y, w, h int, col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.ctx.Fill()
}

// DrawRect strokes the outline of the rectangle [x,y,x+w,y+h).
func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.ctx.Stroke()
}

// DrawLine draws a straight line between the two endpoints, running
// through the centers of the endpoint pixels.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int, col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.DrawLine(float64(x0)+0.5, float64(y0)+0.5, float64(x1)+0.5, float64(y1)+0.5)
	c.ctx.Stroke()
}

// DrawCircle strokes a circle of the given radius centered at (cx,cy).
func (c *Canvas) DrawCircle(cx, cy, radius int, col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.DrawCircle(float64(cx), float64(cy), float64(radius))
	c.ctx.Stroke()
}

// FillCircle fills a circle of the given radius centered at (cx,cy).
func (c *Canvas) FillCircle(cx, cy, radius int, col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.DrawCircle(float64(cx), float64(cy), float64(radius))
	c.ctx.Fill()
}

// DrawEllipse strokes an ellipse centered at (cx,cy) with semi-axes rx,ry.
func (c *Canvas) DrawEllipse(cx, cy, rx, ry int, col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.DrawEllipse(float64(cx), float64(cy), float64(rx), float64(ry))
	c.ctx.Stroke()
}

// FillEllipse fills an ellipse centered at (cx,cy) with semi-axes rx,ry.
func (c *Canvas) FillEllipse(cx, cy, rx, ry int, col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.DrawEllipse(float64(cx), float64(cy), float64(rx), float64(ry))
	c.ctx.Fill()
}

// DrawTriangle strokes the three edges of a triangle.
func (c *Canvas) DrawTriangle(x0, y0, x1, y1, x2, y2 int, col color.Color) {
	c.DrawLine(x0, y0, x1, y1, col)
	c.DrawLine(x1, y1, x2, y2, col)
	c.DrawLine(x2, y2, x0, y0, col)
}

// FillTriangle fills a triangle using gg's path fill.
func (c *Canvas) FillTriangle(x0, y0, x1, y1, x2, y2 int, col color.Color) {
	c.ctx.SetColor(col)
	c.ctx.MoveTo(float64(x0), float64(y0))
	c.ctx.LineTo(float64(x1), float64(y1))
	c.ctx.LineTo(float64(x2), float64(y2))
	c.ctx.ClosePath()
	c.ctx.Fill()
}

// Point is a 2D integer coordinate, used by the polygon primitives.
type Point struct {
	X, Y int
}

// DrawPolygon strokes the edges connecting consecutive points, closing the
// path back to the first point. gg has no native polygon primitive, so the
// edges are drawn one segment at a time.
func (c *Canvas) DrawPolygon(points []Point, col color.Color) {
	if len(points) < 2 {
		return
	}
	for i := range points {
		next := (i + 1) % len(points)
		c.DrawLine(points[i].X, points[i].Y, points[next].X, points[next].Y, col)
	}
}

// FillPolygon fills an arbitrary (possibly concave) polygon using an
// even-odd scanline fill, since gg has no polygon fill primitive either.
func (c *Canvas) FillPolygon(points []Point, col color.Color) {
	if len(points) < 3 {
		return
	}

	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	if minY < 0 {
		minY = 0
	}
	if maxY >= c.height {
		maxY = c.height - 1
	}

	n := len(points)
	for y := minY; y <= maxY; y++ {
		var xs []int
		fy := float64(y) + 0.5
		for i := 0; i < n; i++ {
			a, b := points[i], points[(i+1)%n]
			if (float64(a.Y) <= fy && float64(b.Y) > fy) || (float64(b.Y) <= fy && float64(a.Y) > fy) {
				t := (fy - float64(a.Y)) / float64(b.Y-a.Y)
				xs = append(xs, a.X+int(math.Round(t*float64(b.X-a.X))))
			}
		}
		sortInts(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			for x := xs[i]; x <= xs[i+1]; x++ {
				c.DrawPixel(x, y, col)
			}
		}
	}
}

// sortInts sorts a small slice of intersection x coordinates; insertion
// sort is fine here since scanline intersection counts are tiny.
func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}

// RGBA returns the canvas's backing image for direct pixel inspection
// (used by tests and by Blit).
func (c *Canvas) RGBA() *image.RGBA {
	return c.img
}
