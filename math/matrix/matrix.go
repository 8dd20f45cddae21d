// SPDX-License-Identifier: GPL-2.0-or-later

package matrix

import (
	"fmt"

	"modelguy/math/quat"
	"modelguy/math/vec"
)

// Matrix3x4 is a row major affine transform. Column 3 holds the translation.
type Matrix3x4 [3][4]float32

func (m *Matrix3x4) String() string {
	return fmt.Sprintf("%v %v %v %v\n%v %v %v %v\n%v %v %v %v",
		m[0][0], m[0][1], m[0][2], m[0][3],
		m[1][0], m[1][1], m[1][2], m[1][3],
		m[2][0], m[2][1], m[2][2], m[2][3],
	)
}

func Identity() Matrix3x4 {
	return Matrix3x4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

// FromQuat returns the rotation described by q without translation.
func FromQuat(q quat.Quat) Matrix3x4 {
	var m Matrix3x4
	m[0][0] = 1 - 2*q.Y*q.Y - 2*q.Z*q.Z
	m[1][0] = 2*q.X*q.Y + 2*q.W*q.Z
	m[2][0] = 2*q.X*q.Z - 2*q.W*q.Y

	m[0][1] = 2*q.X*q.Y - 2*q.W*q.Z
	m[1][1] = 1 - 2*q.X*q.X - 2*q.Z*q.Z
	m[2][1] = 2*q.Y*q.Z + 2*q.W*q.X

	m[0][2] = 2*q.X*q.Z + 2*q.W*q.Y
	m[1][2] = 2*q.Y*q.Z - 2*q.W*q.X
	m[2][2] = 1 - 2*q.X*q.X - 2*q.Y*q.Y
	return m
}

func (m *Matrix3x4) SetOrigin(v vec.Vec3) {
	m[0][3] = v.X
	m[1][3] = v.Y
	m[2][3] = v.Z
}

func (m *Matrix3x4) Origin() vec.Vec3 {
	return vec.Vec3{m[0][3], m[1][3], m[2][3]}
}

// Concat returns a*b, i.e. b is applied first.
func Concat(a, b Matrix3x4) Matrix3x4 {
	var o Matrix3x4
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			o[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
		o[i][3] += a[i][3]
	}
	return o
}

func (m *Matrix3x4) row(i int) vec.Vec3 {
	return vec.Vec3{m[i][0], m[i][1], m[i][2]}
}

// Transform applies rotation and translation to v.
func (m *Matrix3x4) Transform(v vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		vec.Dot(v, m.row(0)) + m[0][3],
		vec.Dot(v, m.row(1)) + m[1][3],
		vec.Dot(v, m.row(2)) + m[2][3],
	}
}

// Rotate applies only the rotation part to v.
func (m *Matrix3x4) Rotate(v vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		vec.Dot(v, m.row(0)),
		vec.Dot(v, m.row(1)),
		vec.Dot(v, m.row(2)),
	}
}

// IRotate applies the inverse (transposed) rotation to v.
func (m *Matrix3x4) IRotate(v vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		v.X*m[0][0] + v.Y*m[1][0] + v.Z*m[2][0],
		v.X*m[0][1] + v.Y*m[1][1] + v.Z*m[2][1],
		v.X*m[0][2] + v.Y*m[1][2] + v.Z*m[2][2],
	}
}
