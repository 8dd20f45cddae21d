// SPDX-License-Identifier: GPL-2.0-or-later

package studio

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MeshVertex is one corner of a decoded triangle.
type MeshVertex struct {
	Vert       int // index into the sub-model vertices
	Norm       int // index into the sub-model normals
	UV         [2]float32
	FullBright bool
}

// Triangles is a decoded mesh. Verts holds three entries per triangle.
type Triangles struct {
	Verts   []MeshVertex
	MaxVert int // -1 if the mesh has no vertices
	MaxNorm int
}

func (t *Triangles) Count() int {
	return len(t.Verts) / 3
}

type triRun struct {
	fan   bool
	verts []TriVert
}

// readCommands splits the command stream at off into runs. It returns the
// runs and the stream size in bytes including the terminating 0.
func readCommands(buf []byte, off int64) ([]triRun, int64, error) {
	var runs []triRun
	p := off
	read := func() (int16, error) {
		if p < 0 || p+2 > int64(len(buf)) {
			return 0, errors.Wrapf(ErrOutOfBounds, "triangle command at %d (size %d)", p, len(buf))
		}
		v := int16(binary.LittleEndian.Uint16(buf[p:]))
		p += 2
		return v, nil
	}
	for {
		cmd, err := read()
		if err != nil {
			return nil, 0, err
		}
		if cmd == 0 {
			return runs, p - off, nil
		}
		r := triRun{fan: cmd < 0}
		n := int(cmd)
		if r.fan {
			n = -n
		}
		if n < 3 {
			return nil, 0, errors.Wrapf(ErrMalformedStream, "run of %d vertices at %d", n, p-2)
		}
		if end := p + int64(n)*TriVertSize; end > int64(len(buf)) {
			return nil, 0, errors.Wrapf(ErrOutOfBounds, "run of %d vertices at %d (size %d)", n, p-2, len(buf))
		}
		r.verts = make([]TriVert, n)
		for i := range r.verts {
			q := buf[p+int64(i)*TriVertSize:]
			r.verts[i] = TriVert{
				Vert: int16(binary.LittleEndian.Uint16(q[0:])),
				Norm: int16(binary.LittleEndian.Uint16(q[2:])),
				S:    int16(binary.LittleEndian.Uint16(q[4:])),
				T:    int16(binary.LittleEndian.Uint16(q[6:])),
			}
		}
		p += int64(n) * TriVertSize
		runs = append(runs, r)
	}
}

// ScanTriangles walks the command stream at off without expanding it.
func ScanTriangles(buf []byte, off int64) (size int64, maxVert, maxNorm int, err error) {
	runs, size, err := readCommands(buf, off)
	if err != nil {
		return 0, -1, -1, err
	}
	maxVert, maxNorm = -1, -1
	for _, r := range runs {
		for _, v := range r.verts {
			if v.Vert < 0 || v.Norm < 0 {
				return 0, -1, -1, errors.Wrapf(ErrInvalidCrossReference, "negative index vert %d norm %d", v.Vert, v.Norm)
			}
			maxVert = max(maxVert, int(v.Vert))
			maxNorm = max(maxNorm, int(v.Norm))
		}
	}
	return size, maxVert, maxNorm, nil
}

// DecodeTriangles expands the strip and fan runs at off into a triangle list
// textured with tex.
func DecodeTriangles(buf []byte, off int64, tex *Texture) (*Triangles, error) {
	runs, _, err := readCommands(buf, off)
	if err != nil {
		return nil, err
	}
	var su, tv float32
	if tex.Width > 0 {
		su = 1 / float32(tex.Width)
	}
	if tex.Height > 0 {
		tv = 1 / float32(tex.Height)
	}
	out := &Triangles{MaxVert: -1, MaxNorm: -1}
	for _, r := range runs {
		start := len(out.Verts)
		for j, tv8 := range r.verts {
			if j >= 3 {
				// every vertex after the first triangle opens a new one
				n := len(out.Verts)
				if r.fan {
					out.Verts = append(out.Verts, out.Verts[start], out.Verts[n-1])
				} else {
					out.Verts = append(out.Verts, out.Verts[n-2], out.Verts[n-1])
				}
			}
			v := MeshVertex{
				Vert:       int(tv8.Vert),
				Norm:       int(tv8.Norm),
				FullBright: tex.Flags&NFAdditive != 0,
			}
			if tex.Flags&NFChrome != 0 {
				v.UV = [2]float32{0.5, 0.5}
			} else {
				v.UV = [2]float32{float32(tv8.S) * su, float32(tv8.T) * tv}
			}
			out.MaxVert = max(out.MaxVert, v.Vert)
			out.MaxNorm = max(out.MaxNorm, v.Norm)
			out.Verts = append(out.Verts, v)
		}
		if !r.fan {
			// odd strip triangles have reversed winding
			polies := len(r.verts) - 2
			for p := 1; p < polies; p += 2 {
				i := start + p*3 + 1
				out.Verts[i], out.Verts[i+1] = out.Verts[i+1], out.Verts[i]
			}
		}
	}
	return out, nil
}

// MeshTriangles decodes one mesh using the texture of the default skin
// family. Meshes without a resolvable texture decode with zero UVs.
func (m *Model) MeshTriangles(part, model, mesh int) (*Triangles, error) {
	me, err := m.Mesh(part, model, mesh)
	if err != nil {
		return nil, err
	}
	var tex Texture
	if ti, err := m.SkinTexture(0, int(me.SkinRef)); err == nil {
		if t, err := m.Texture(ti); err == nil {
			tex = t
		}
	}
	t, err := DecodeTriangles(m.s.Bytes(), int64(me.TriIndex), &tex)
	if err != nil {
		return nil, errors.Wrapf(err, "body part %d model %d mesh %d", part, model, mesh)
	}
	return t, nil
}
