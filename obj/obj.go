// SPDX-License-Identifier: GPL-2.0-or-later

// Package obj exports posed studio meshes as Wavefront OBJ text.
package obj

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"modelguy/pose"
	"modelguy/studio"
)

// Write emits the sub-models selected by body in pose p. Every mesh becomes
// a group named after its body part, sub-model and texture.
func Write(w io.Writer, m *studio.Model, s *pose.Solver, p *pose.Pose, body int) error {
	sel, err := m.SelectModels(body)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n", m.Name())
	// obj indices are 1 based and global
	vbase, tbase := 1, 1
	for part, model := range sel {
		if model < 0 {
			continue
		}
		sm, err := m.SubModel(part, model)
		if err != nil {
			return err
		}
		verts, err := s.TransformVertices(p, part, model)
		if err != nil {
			return errors.Wrapf(err, "body part %d", part)
		}
		for _, v := range verts {
			fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z)
		}
		for i := 0; i < int(sm.NumMesh); i++ {
			tris, err := m.MeshTriangles(part, model, i)
			if err != nil {
				return err
			}
			fmt.Fprintf(bw, "g %s_%d\n", sm.ModelName(), i)
			if me, err := m.Mesh(part, model, i); err == nil {
				if ti, err := m.SkinTexture(0, int(me.SkinRef)); err == nil {
					if t, err := m.Texture(ti); err == nil {
						fmt.Fprintf(bw, "usemtl %s\n", t.TextureName())
					}
				}
			}
			for _, c := range tris.Verts {
				fmt.Fprintf(bw, "vt %g %g\n", c.UV[0], 1-c.UV[1])
			}
			for k := 0; k < tris.Count(); k++ {
				fmt.Fprint(bw, "f")
				for j := 0; j < 3; j++ {
					c := tris.Verts[k*3+j]
					fmt.Fprintf(bw, " %d/%d", vbase+c.Vert, tbase+k*3+j)
				}
				fmt.Fprintln(bw)
			}
			tbase += len(tris.Verts)
		}
		vbase += len(verts)
	}
	return bw.Flush()
}
