// SPDX-License-Identifier: GPL-2.0-or-later

// Package palette expands 8 bit indexed texture data to RGBA.
package palette

import (
	"fmt"
	"image"
)

const (
	Size = 256 * 3
	// Transparent is the palette index that is see-through in masked textures.
	Transparent = 255
)

// Expand converts width*height palette indices into an image. pal holds 256
// RGB triples. In masked mode index 255 becomes fully transparent.
func Expand(pixels, pal []byte, width, height int, masked bool) (*image.NRGBA, error) {
	if width < 0 || height < 0 || len(pixels) < width*height {
		return nil, fmt.Errorf("Texture has wrong size: %v for %vx%v", len(pixels), width, height)
	}
	if len(pal) < Size {
		return nil, fmt.Errorf("Palette has wrong size: %v", len(pal))
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	pi := 0
	for _, c := range pixels[:width*height] {
		if masked && c == Transparent {
			// stays 0,0,0,0
			pi += 4
			continue
		}
		img.Pix[pi] = pal[int(c)*3]
		img.Pix[pi+1] = pal[int(c)*3+1]
		img.Pix[pi+2] = pal[int(c)*3+2]
		img.Pix[pi+3] = 255
		pi += 4
	}
	if masked {
		AlphaEdgeFix(img)
	}
	return img, nil
}
