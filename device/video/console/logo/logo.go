// Package logo contains logos that can be used with a framebuffer console.
package logo

import "image/color"

// ConsoleLogo defines the logo used by framebuffer consoles. If set to nil
// then no logo will be displayed.
var ConsoleLogo *Image

// availableLogos holds the list of built-in logos that BestFit selects from.
var availableLogos []*Image

// logoHeightDivisor bounds the logo to at most 1/10th of the console height.
const logoHeightDivisor = 10

// BestFit returns the largest available logo whose height does not exceed
// 1/10th of the console height, falling back to the smallest available logo
// if none of them fit.
func BestFit(consoleWidth, consoleHeight uint32) *Image {
	if len(availableLogos) == 0 {
		return nil
	}

	maxHeight := consoleHeight / logoHeightDivisor

	smallest := availableLogos[0]
	var best *Image
	for _, l := range availableLogos {
		if l.Height < smallest.Height {
			smallest = l
		}

		if l.Height <= maxHeight && (best == nil || l.Height > best.Height) {
			best = l
		}
	}

	if best == nil {
		return smallest
	}

	return best
}

// Alignment defines the supported horizontal alignments for a console logo.
type Alignment uint8

const (
	// AlignLeft aligns the logo to the left side of the console.
	AlignLeft Alignment = iota

	// AlignCenter aligns the logo to the center of the console.
	AlignCenter

	// AlignRight aligns the logo to the right side of the console.
	AlignRight
)

// Image describes an 8bpp image with
type Image struct {
	// The width and height of the logo in pixels.
	Width  uint32
	Height uint32

	// Align specifies the horizontal alignment for the logo.
	Align Alignment

	// TransparentIndex defines a color index that will be treated as
	// transparent when drawing the logo.
	TransparentIndex uint8

	// The palette for the logo. The console remaps the palette
	// entries to the end of its own palette.
	Palette []color.RGBA

	// The logo data comprises of Width*Height bytes where each byte
	// represents an index in the logo palette.
	Data []uint8
}
