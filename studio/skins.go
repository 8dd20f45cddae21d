// SPDX-License-Identifier: GPL-2.0-or-later

package studio

import (
	"encoding/binary"
	"image"

	"github.com/pkg/errors"

	"modelguy/palette"
)

// textureModel returns the model holding the textures and skin table, the
// companion texture model if one was loaded.
func (m *Model) textureModel() *Model {
	if m.tex != nil {
		return m.tex
	}
	return m
}

func (m *Model) NumTextures() int {
	return int(m.textureModel().hdr().NumTextures)
}

func (m *Model) Texture(i int) (Texture, error) {
	t := m.textureModel()
	h := t.hdr()
	return element[Texture](t.s.Bytes(), "texture", i, h.NumTextures, h.TextureIndex)
}

// TexturePixels returns the palette indices and the RGB palette of texture i.
func (m *Model) TexturePixels(i int) (Texture, []byte, []byte, error) {
	tex, err := m.Texture(i)
	if err != nil {
		return tex, nil, nil, err
	}
	buf := m.textureModel().s.Bytes()
	n := int64(tex.Width) * int64(tex.Height)
	off := int64(tex.Index)
	if tex.Width < 0 || tex.Height < 0 || off < 0 || off+n+palette.Size > int64(len(buf)) {
		return tex, nil, nil, errors.Wrapf(ErrOutOfBounds, "texture %d data at %d (%dx%d, size %d)", i, off, tex.Width, tex.Height, len(buf))
	}
	return tex, buf[off : off+n], buf[off+n : off+n+palette.Size], nil
}

// TextureImage expands texture i to RGBA. Masked textures get a transparent
// index 255.
func (m *Model) TextureImage(i int) (*image.NRGBA, error) {
	tex, pix, pal, err := m.TexturePixels(i)
	if err != nil {
		return nil, err
	}
	return palette.Expand(pix, pal, int(tex.Width), int(tex.Height), tex.Flags&NFMasked != 0)
}

// SkinTexture maps a mesh skin reference to a texture index through the skin
// family table. The family is clamped to the available families. Entries
// that do not name a texture fall back to the skin reference itself.
func (m *Model) SkinTexture(family, skinref int) (int, error) {
	t := m.textureModel()
	h := t.hdr()
	if skinref < 0 || skinref >= int(h.NumSkinRef) {
		return 0, errors.Wrapf(ErrInvalidCrossReference, "skin reference %d of %d", skinref, h.NumSkinRef)
	}
	family = max(0, min(family, int(h.NumSkinFamilies)-1))
	off := int64(h.SkinIndex) + int64(family*int(h.NumSkinRef)+skinref)*2
	buf := t.s.Bytes()
	if off < 0 || off+2 > int64(len(buf)) {
		return 0, errors.Wrapf(ErrOutOfBounds, "skin family %d reference %d at %d", family, skinref, off)
	}
	ti := int(int16(binary.LittleEndian.Uint16(buf[off:])))
	if ti < 0 || ti >= int(h.NumTextures) {
		ti = skinref
	}
	return ti, nil
}

// SelectModels decodes a body value into the active sub-model of every body
// part. Parts without sub-models select -1.
func (m *Model) SelectModels(body int) ([]int, error) {
	body = max(0, min(body, 255))
	sel := make([]int, m.NumBodyParts())
	for b := range sel {
		bp, err := m.BodyPart(b)
		if err != nil {
			return nil, err
		}
		if bp.NumModels <= 0 {
			sel[b] = -1
			continue
		}
		base := max(int(bp.Base), 1)
		sel[b] = (body / base) % int(bp.NumModels)
		body -= sel[b] * base
	}
	return sel, nil
}
