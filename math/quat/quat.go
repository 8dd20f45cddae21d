// SPDX-License-Identifier: GPL-2.0-or-later

// Package quat holds the rotation quaternions used by the pose solver.
package quat

import (
	"github.com/chewxy/math32"

	"modelguy/math/vec"
)

const epsilon = 0.00000001

type Quat struct {
	X, Y, Z, W float32
}

func Identity() Quat {
	return Quat{W: 1}
}

// FromAngles converts euler angles in radians (X roll, Y pitch, Z yaw) with
// the half angle product formula.
func FromAngles(a vec.Vec3) Quat {
	sy, cy := math32.Sincos(a.Z * 0.5)
	sp, cp := math32.Sincos(a.Y * 0.5)
	sr, cr := math32.Sincos(a.X * 0.5)

	return Quat{
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}

func Dot(p, q Quat) float32 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z + p.W*q.W
}

func (q Quat) Neg() Quat {
	return Quat{-q.X, -q.Y, -q.Z, -q.W}
}

func (q Quat) Scale(s float32) Quat {
	return Quat{q.X * s, q.Y * s, q.Z * s, q.W * s}
}

func add(p, q Quat) Quat {
	return Quat{p.X + q.X, p.Y + q.Y, p.Z + q.Z, p.W + q.W}
}

// Slerp interpolates from p to q. Neither argument is modified.
func Slerp(p, q Quat, t float32) Quat {
	// decide if one of the quaternions is backwards
	var a, b float32
	d := add(p, q.Neg())
	s := add(p, q)
	a = Dot(d, d)
	b = Dot(s, s)
	if a > b {
		q = q.Neg()
	}

	cosom := Dot(p, q)
	if 1+cosom > epsilon {
		var sclp, sclq float32
		if 1-cosom > epsilon {
			omega := math32.Acos(cosom)
			sinom := math32.Sin(omega)
			sclp = math32.Sin((1-t)*omega) / sinom
			sclq = math32.Sin(t*omega) / sinom
		} else {
			sclp = 1 - t
			sclq = t
		}
		return add(p.Scale(sclp), q.Scale(sclq))
	}

	// p and q point in opposite directions, rotate through a perpendicular
	qt := Quat{-p.Y, p.X, -p.W, p.Z}
	sclp := math32.Sin((1 - t) * 0.5 * math32.Pi)
	sclq := math32.Sin(t * 0.5 * math32.Pi)
	return Quat{
		X: sclp*p.X + sclq*qt.X,
		Y: sclp*p.Y + sclq*qt.Y,
		Z: sclp*p.Z + sclq*qt.Z,
		W: qt.W,
	}
}
