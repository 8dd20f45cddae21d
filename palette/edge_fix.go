// SPDX-License-Identifier: GPL-2.0-or-later

package palette

import (
	"image"
	"image/color"
)

// AlphaEdgeFix colors every transparent pixel with the mean of its opaque
// neighbours. Neighbours wrap around the borders and alpha stays 0.
func AlphaEdgeFix(img *image.NRGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	at := func(x, y int) color.NRGBA {
		return img.NRGBAAt(b.Min.X+(x+w)%w, b.Min.Y+(y+h)%h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if at(x, y).A != 0 {
				continue
			}
			var r, g, bl, n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					c := at(x+dx, y+dy)
					if c.A == 0 {
						continue
					}
					r += int(c.R)
					g += int(c.G)
					bl += int(c.B)
					n++
				}
			}
			if n > 0 {
				img.SetNRGBA(b.Min.X+x, b.Min.Y+y, color.NRGBA{uint8(r / n), uint8(g / n), uint8(bl / n), 0})
			}
		}
	}
}
