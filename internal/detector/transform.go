package detector

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Transform is a 4x4 head transform in camera space, stored column-major
// the way the face landmarker emits facialTransformationMatrixes.
type Transform [16]float64

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a transform that moves by (x, y, z).
func Translation(x, y, z float64) Transform {
	t := Identity()
	t[12], t[13], t[14] = x, y, z
	return t
}

// Scale returns a transform that scales each axis.
func Scale(x, y, z float64) Transform {
	t := Identity()
	t[0], t[5], t[10] = x, y, z
	return t
}

// FromSlice copies up to 16 values into a Transform.
// It returns false if data does not hold exactly 16 values.
func FromSlice(data []float64) (Transform, bool) {
	var t Transform
	if len(data) != len(t) {
		return t, false
	}
	copy(t[:], data)
	return t, true
}

// At returns the element at row r, column c.
func (t Transform) At(r, c int) float64 {
	return t[c*4+r]
}

// Position returns the translation component.
func (t Transform) Position() r3.Vector {
	return r3.Vector{X: t[12], Y: t[13], Z: t[14]}
}

// Mul returns t × o.
func (t Transform) Mul(o Transform) Transform {
	var out mat.Dense
	out.Mul(t.dense(), o.dense())

	var res Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			res[c*4+r] = out.At(r, c)
		}
	}
	return res
}

func (t Transform) dense() *mat.Dense {
	d := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			d.Set(r, c, t.At(r, c))
		}
	}
	return d
}
