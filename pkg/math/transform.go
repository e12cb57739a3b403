// Package math provides the rigid transform type shared by the rig, codec and
// wire layers.
package math

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ComponentCount is the number of floats in a serialized transform:
// 3 position components followed by the 3x3 rotation matrix in row order.
const ComponentCount = 12

// degenerateEpsilon is the squared column length below which a rotation
// column is considered unusable.
const degenerateEpsilon = 1e-12

// Canonical rotation axes.
var (
	AxisX = r3.Vec{X: 1}
	AxisY = r3.Vec{Y: 1}
	AxisZ = r3.Vec{Z: 1}
)

// Transform is a rigid transform: a position and three orthonormal rotation
// columns (right, up, back).
type Transform struct {
	Pos r3.Vec
	X   r3.Vec
	Y   r3.Vec
	Z   r3.Vec
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{X: AxisX, Y: AxisY, Z: AxisZ}
}

// Translation returns a transform with only a position offset.
func Translation(x, y, z float64) Transform {
	t := Identity()
	t.Pos = r3.Vec{X: x, Y: y, Z: z}
	return t
}

// RotationZ returns a rotation of angle radians about the Z axis.
func RotationZ(angle float64) Transform {
	c, s := math.Cos(angle), math.Sin(angle)
	return Transform{
		X: r3.Vec{X: c, Y: s},
		Y: r3.Vec{X: -s, Y: c},
		Z: AxisZ,
	}
}

// RotationY returns a rotation of angle radians about the Y axis.
func RotationY(angle float64) Transform {
	c, s := math.Cos(angle), math.Sin(angle)
	return Transform{
		X: r3.Vec{X: c, Z: -s},
		Y: AxisY,
		Z: r3.Vec{X: s, Z: c},
	}
}

// FromComponents builds a transform from 12 components in the order
// x, y, z, R00, R01, R02, R10, R11, R12, R20, R21, R22.
// Columns are not sanitized; see Sanitize.
func FromComponents(c []float64) (Transform, error) {
	if len(c) < ComponentCount {
		return Transform{}, fmt.Errorf("transform needs %d components, got %d", ComponentCount, len(c))
	}
	return Transform{
		Pos: r3.Vec{X: c[0], Y: c[1], Z: c[2]},
		X:   r3.Vec{X: c[3], Y: c[6], Z: c[9]},
		Y:   r3.Vec{X: c[4], Y: c[7], Z: c[10]},
		Z:   r3.Vec{X: c[5], Y: c[8], Z: c[11]},
	}, nil
}

// Components returns the 12 serialized components.
func (t Transform) Components() [ComponentCount]float64 {
	return [ComponentCount]float64{
		t.Pos.X, t.Pos.Y, t.Pos.Z,
		t.X.X, t.Y.X, t.Z.X,
		t.X.Y, t.Y.Y, t.Z.Y,
		t.X.Z, t.Y.Z, t.Z.Z,
	}
}

// Rounded returns the components rounded half-up to 1e-4.
func (t Transform) Rounded() []float64 {
	c := t.Components()
	out := make([]float64, ComponentCount)
	for i, v := range c {
		out[i] = Round4(v)
	}
	return out
}

// Round4 rounds v half-up to four decimal places.
func Round4(v float64) float64 {
	return math.Floor(v*1e4+0.5) / 1e4
}

// rotate applies the rotation part to v.
func (t Transform) rotate(v r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(v.X, t.X), r3.Scale(v.Y, t.Y)), r3.Scale(v.Z, t.Z))
}

// Mul returns t * o (o expressed in t's space).
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Pos: r3.Add(t.Pos, t.rotate(o.Pos)),
		X:   t.rotate(o.X),
		Y:   t.rotate(o.Y),
		Z:   t.rotate(o.Z),
	}
}

// Inverse returns the inverse of a rigid transform.
func (t Transform) Inverse() Transform {
	inv := Transform{
		X: r3.Vec{X: t.X.X, Y: t.Y.X, Z: t.Z.X},
		Y: r3.Vec{X: t.X.Y, Y: t.Y.Y, Z: t.Z.Y},
		Z: r3.Vec{X: t.X.Z, Y: t.Y.Z, Z: t.Z.Z},
	}
	inv.Pos = r3.Scale(-1, inv.rotate(t.Pos))
	return inv
}

// PointToWorld transforms a local point into t's parent space.
func (t Transform) PointToWorld(p r3.Vec) r3.Vec {
	return r3.Add(t.Pos, t.rotate(p))
}

// Lerp interpolates position and rotation columns linearly by alpha and
// renormalizes the columns.
func (t Transform) Lerp(o Transform, alpha float64) Transform {
	mix := func(a, b r3.Vec) r3.Vec {
		return r3.Add(a, r3.Scale(alpha, r3.Sub(b, a)))
	}
	out := Transform{
		Pos: mix(t.Pos, o.Pos),
		X:   mix(t.X, o.X),
		Y:   mix(t.Y, o.Y),
		Z:   mix(t.Z, o.Z),
	}
	out, _ = out.Sanitize()
	return out
}

// Sanitize normalizes each rotation column and replaces degenerate columns
// (zero length or non-finite) with the canonical axis. It reports how many
// columns were replaced.
func (t Transform) Sanitize() (Transform, int) {
	replaced := 0
	fix := func(v, axis r3.Vec) r3.Vec {
		n2 := r3.Norm2(v)
		if n2 < degenerateEpsilon || math.IsNaN(n2) || math.IsInf(n2, 0) {
			replaced++
			return axis
		}
		return r3.Unit(v)
	}
	t.X = fix(t.X, AxisX)
	t.Y = fix(t.Y, AxisY)
	t.Z = fix(t.Z, AxisZ)
	return t, replaced
}

// ApproxEqual reports whether all components differ by at most tol.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	a, b := t.Components(), o.Components()
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// String formats the components.
func (t Transform) String() string {
	return fmt.Sprintf("%v", t.Components())
}
