/*
 * cell.go, part of gocte.
 * 
 * Copyright 2025 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 * 
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as 
 * published by the Free Software Foundation; either version 2.1 of the 
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General 
 * Public License along with this program.  If not, see 
 * <http://www.gnu.org/licenses/>.
 * 
 * Gocte is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.  
 * 
 */

package cte

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Cell is a crystal lattice. Each row is one lattice vector, in Angstrom.
type Cell [3][3]float64

// Dense returns the cell as a 3x3 gonum matrix.
func (C Cell) Dense() *mat.Dense {
	return Mat3(C)
}

// Mat3 returns a as a 3x3 gonum matrix.
func Mat3(a [3][3]float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		a[0][0], a[0][1], a[0][2],
		a[1][0], a[1][1], a[1][2],
		a[2][0], a[2][1], a[2][2],
	})
}

// Array3 returns the 3x3 matrix m as an array.
func Array3(m mat.Matrix) [3][3]float64 {
	var ret [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ret[i][j] = m.At(i, j)
		}
	}
	return ret
}

// Volume returns the (unsigned) volume of the cell.
func (C Cell) Volume() float64 {
	return math.Abs(Det3(C))
}

// Det3 returns the determinant of a 3x3 matrix.
func Det3(a [3][3]float64) float64 {
	return a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
}

// Inverse returns the inverse of the cell matrix.
func (C Cell) Inverse() ([3][3]float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(C.Dense()); err != nil {
		return [3][3]float64{}, NewError("singular cell", "", true, err, "Cell.Inverse")
	}
	return Array3(&inv), nil
}

// Metric returns the metric tensor G = L L^T, where L has the lattice vectors as rows.
func (C Cell) Metric() [3][3]float64 {
	var g [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g[i][j] = Dot(C[i], C[j])
		}
	}
	return g
}

// LengthsAngles returns a, b, c (Angstrom) and alpha, beta, gamma (degrees).
func (C Cell) LengthsAngles() [6]float64 {
	var ret [6]float64
	for i := 0; i < 3; i++ {
		ret[i] = Norm(C[i])
	}
	angle := func(i, j int) float64 {
		c := Dot(C[i], C[j]) / (ret[i] * ret[j])
		c = math.Max(-1, math.Min(1, c))
		return math.Acos(c) * 180 / math.Pi
	}
	ret[3] = angle(1, 2)
	ret[4] = angle(0, 2)
	ret[5] = angle(0, 1)
	return ret
}

// Dot is the scalar product of two 3-vectors
func Dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Norm is the euclidean norm of a 3-vector
func Norm(a [3]float64) float64 {
	return math.Sqrt(Dot(a, a))
}

// MulVec3 returns v*M, with v a row vector.
func MulVec3(v [3]float64, m [3][3]float64) [3]float64 {
	var ret [3]float64
	for j := 0; j < 3; j++ {
		ret[j] = v[0]*m[0][j] + v[1]*m[1][j] + v[2]*m[2][j]
	}
	return ret
}

// MatMul3 returns a*b
func MatMul3(a, b [3][3]float64) [3][3]float64 {
	var ret [3][3]float64
	for i := 0; i < 3; i++ {
		ret[i] = MulVec3(a[i], b)
	}
	return ret
}

// Transpose3 returns the transpose of a
func Transpose3(a [3][3]float64) [3][3]float64 {
	var ret [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ret[i][j] = a[j][i]
		}
	}
	return ret
}

// Identity3 returns the 3x3 identity matrix.
func Identity3() [3][3]float64 {
	return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}
