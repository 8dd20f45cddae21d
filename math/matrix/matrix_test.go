// SPDX-License-Identifier: GPL-2.0-or-later

package matrix

import (
	"testing"

	"github.com/chewxy/math32"

	"modelguy/math/quat"
	"modelguy/math/vec"
)

const (
	e = 1.e-6
)

func eq(a, b Matrix3x4) bool {
	for i := range a {
		for j := range a[i] {
			if math32.Abs(a[i][j]-b[i][j]) > e {
				return false
			}
		}
	}
	return true
}

func TestFromQuatIdentity(t *testing.T) {
	m := FromQuat(quat.Identity())
	if !eq(m, Identity()) {
		t.Errorf("FromQuat(identity) = %v", m)
	}
}

func TestFromQuatRotateZ(t *testing.T) {
	m := FromQuat(quat.FromAngles(vec.Vec3{Z: math32.Pi / 2}))
	if !eq(m, Matrix3x4{
		{0, -1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 1, 0},
	}) {
		t.Errorf("FromQuat(yaw 90) = %v", m)
	}
}

func TestFromQuatRotateX(t *testing.T) {
	m := FromQuat(quat.FromAngles(vec.Vec3{X: math32.Pi / 2}))
	if !eq(m, Matrix3x4{
		{1, 0, 0, 0},
		{0, 0, -1, 0},
		{0, 1, 0, 0},
	}) {
		t.Errorf("FromQuat(roll 90) = %v", m)
	}
}

func TestConcatOrder(t *testing.T) {
	// parent rotates 90 degrees around z and sits at (10,0,0), child is
	// offset by (1,0,0) in parent space
	parent := FromQuat(quat.FromAngles(vec.Vec3{Z: math32.Pi / 2}))
	parent.SetOrigin(vec.Vec3{10, 0, 0})
	child := Identity()
	child.SetOrigin(vec.Vec3{1, 0, 0})

	w := Concat(parent, child)
	got := w.Origin()
	if !vec.Near(got, vec.Vec3{10, 1, 0}, e) {
		t.Errorf("Concat origin = %v want (10,1,0)", got)
	}
	p := w.Transform(vec.Vec3{1, 0, 0})
	if !vec.Near(p, vec.Vec3{10, 2, 0}, e) {
		t.Errorf("Transform = %v want (10,2,0)", p)
	}
}

func TestIRotate(t *testing.T) {
	m := FromQuat(quat.FromAngles(vec.Vec3{X: 0.4, Y: 1, Z: -0.3}))
	v := vec.Vec3{1, 2, 3}
	got := m.IRotate(m.Rotate(v))
	if !vec.Near(got, v, 1e-5) {
		t.Errorf("IRotate(Rotate(v)) = %v want %v", got, v)
	}
}
