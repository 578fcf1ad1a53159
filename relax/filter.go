/*
 * filter.go, part of gocte.
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

package relax

import (
	"math"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/calc"
	"github.com/rmera/gocte/symmetry"
	"gonum.org/v1/gonum/mat"
)

// system is what the optimizers move around: a set of generalized positions,
// with their energy and generalized forces.
type system interface {
	Positions() [][3]float64
	SetPositions([][3]float64) error
	Forces() ([][3]float64, error)
	Energy() (float64, error)
}

// atoms evaluates a structure with a calculator, symmetrizing forces and
// stress if a symmetrizer is given.
type atoms struct {
	s    *cte.Structure
	calc calc.Calculator
	sym  *symmetry.Symmetrizer
}

func (A *atoms) forces() ([][3]float64, error) {
	f, err := A.calc.Forces(A.s)
	if err != nil {
		return nil, err
	}
	if A.sym != nil {
		return A.sym.Forces(A.s, f)
	}
	return f, nil
}

func (A *atoms) stress() ([3][3]float64, error) {
	v, err := A.calc.Stress(A.s)
	if err != nil {
		return [3][3]float64{}, err
	}
	if A.sym != nil {
		v, err = A.sym.Stress(A.s, v)
		if err != nil {
			return [3][3]float64{}, err
		}
	}
	return calc.FromVoigt(v), nil
}

func (A *atoms) energy() (float64, error) {
	return A.calc.PotentialEnergy(A.s, false)
}

// fixedCell relaxes only the atomic positions.
type fixedCell struct {
	*atoms
}

func (F fixedCell) Positions() [][3]float64 {
	return append([][3]float64(nil), F.s.Positions...)
}

func (F fixedCell) SetPositions(p [][3]float64) error {
	copy(F.s.Positions, p)
	return nil
}

func (F fixedCell) Forces() ([][3]float64, error) { return F.forces() }
func (F fixedCell) Energy() (float64, error)     { return F.energy() }

// unitCell relaxes positions and cell together. The cell degrees of freedom are
// the deformation gradient with respect to the starting cell, times a factor
// (the number of atoms) that puts them on a similar scale to the positions.
type unitCell struct {
	*atoms
	orig        cte.Cell
	factor      float64
	mask        [3][3]float64
	constVolume bool
	frechet     bool //use the logarithm of the deformation gradient instead
}

func newUnitCell(a *atoms, mask []float64, constVolume, frechet bool) *unitCell {
	return &unitCell{
		atoms:       a,
		orig:        a.s.Cell,
		factor:      float64(a.s.Len()),
		mask:        mask3(mask),
		constVolume: constVolume,
		frechet:     frechet,
	}
}

// deformGrad returns F such that cell = orig F^T.
func (U *unitCell) deformGrad() ([3][3]float64, error) {
	inv, err := U.orig.Inverse()
	if err != nil {
		return [3][3]float64{}, err
	}
	return cte.Transpose3(cte.MatMul3(inv, U.s.Cell)), nil
}

func (U *unitCell) Positions() [][3]float64 {
	F, err := U.deformGrad()
	if err != nil {
		F = cte.Identity3()
	}
	n := U.s.Len()
	ret := make([][3]float64, n+3)
	finv, err := inverse3(F)
	if err != nil {
		finv = cte.Identity3()
	}
	finvT := cte.Transpose3(finv)
	for i, r := range U.s.Positions {
		ret[i] = cte.MulVec3(r, finvT)
	}
	cellDOF := F
	if U.frechet {
		cellDOF = logm3(F)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ret[n+i][j] = U.factor * cellDOF[i][j]
		}
	}
	return ret
}

func (U *unitCell) SetPositions(p [][3]float64) error {
	n := U.s.Len()
	var F [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			F[i][j] = p[n+i][j] / U.factor
		}
	}
	if U.frechet {
		F = expm3(F)
	}
	U.s.Cell = cte.MatMul3(U.orig, cte.Transpose3(F))
	FT := cte.Transpose3(F)
	for i := 0; i < n; i++ {
		U.s.Positions[i] = cte.MulVec3(p[i], FT)
	}
	return nil
}

func (U *unitCell) Energy() (float64, error) { return U.energy() }

func (U *unitCell) Forces() ([][3]float64, error) {
	f, err := U.forces()
	if err != nil {
		return nil, err
	}
	sigma, err := U.stress()
	if err != nil {
		return nil, err
	}
	F, err := U.deformGrad()
	if err != nil {
		return nil, err
	}
	vol := U.s.Volume()
	var virial [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			virial[i][j] = -vol * sigma[i][j]
		}
	}
	var cellForce [3][3]float64
	if U.frechet {
		cellForce = frechetForce(virial, logm3(F))
	} else {
		finv, err := inverse3(F)
		if err != nil {
			return nil, err
		}
		cellForce = cte.MatMul3(virial, cte.Transpose3(finv))
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cellForce[i][j] *= U.mask[i][j]
		}
	}
	if U.constVolume {
		tr := (cellForce[0][0] + cellForce[1][1] + cellForce[2][2]) / 3
		for i := 0; i < 3; i++ {
			cellForce[i][i] -= tr
		}
	}
	n := U.s.Len()
	ret := make([][3]float64, n+3)
	for i := range f {
		ret[i] = cte.MulVec3(f[i], F)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ret[n+i][j] = cellForce[i][j] / U.factor
		}
	}
	return ret, nil
}

// frechetForce returns the force on the logarithm of the deformation gradient.
// The exact expression uses the Frechet derivative of the matrix exponential.
// When it points roughly along the virial, the virial itself is used, which
// keeps the optimizer steps well behaved.
func frechetForce(virial, logF [3][3]float64) [3][3]float64 {
	Y := mat.NewDense(6, 6, nil)
	em := expm3(scale3(logF, -1))
	block := cte.MatMul3(scale3(virial, -1), em)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			Y.Set(i, j, logF[i][j])
			Y.Set(i+3, j+3, logF[i][j])
			Y.Set(i, j+3, block[i][j])
		}
	}
	var expY mat.Dense
	expY.Exp(Y)
	var exact [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			exact[i][j] = -expY.At(i, j+3)
		}
	}
	for _, p := range [][2]int{{0, 1}, {0, 2}, {1, 2}} {
		v := 0.5 * (exact[p[0]][p[1]] + exact[p[1]][p[0]])
		exact[p[0]][p[1]] = v
		exact[p[1]][p[0]] = v
	}
	var dot, ne, nv float64
	equal := true
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot += exact[i][j] * virial[i][j]
			ne += exact[i][j] * exact[i][j]
			nv += virial[i][j] * virial[i][j]
			if math.Abs(exact[i][j]-virial[i][j]) > 1e-8+1e-5*math.Abs(virial[i][j]) {
				equal = false
			}
		}
	}
	if equal || dot/math.Sqrt(ne*nv) > 0.8 {
		return virial
	}
	return exact
}

func scale3(a [3][3]float64, f float64) [3][3]float64 {
	for i := range a {
		for j := range a[i] {
			a[i][j] *= f
		}
	}
	return a
}

func inverse3(a [3][3]float64) ([3][3]float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(cte.Mat3(a)); err != nil {
		return [3][3]float64{}, err
	}
	return cte.Array3(&inv), nil
}

func expm3(a [3][3]float64) [3][3]float64 {
	var e mat.Dense
	e.Exp(cte.Mat3(a))
	return cte.Array3(&e)
}

// logm3 returns the principal logarithm of a, which must be close to the
// identity (as deformation gradients are). Square roots are taken until the
// matrix is close enough to the identity for the Mercator series to converge fast.
func logm3(a [3][3]float64) [3][3]float64 {
	k := 0
	for dist3(a) > 0.1 && k < 20 {
		s, ok := sqrtm3(a)
		if !ok {
			break
		}
		a = s
		k++
	}
	id := cte.Identity3()
	var x [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			x[i][j] = a[i][j] - id[i][j]
		}
	}
	var ret [3][3]float64
	term := x
	for n := 1; n <= 60; n++ {
		c := 1 / float64(n)
		if n%2 == 0 {
			c = -c
		}
		var maxv float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				ret[i][j] += c * term[i][j]
				maxv = math.Max(maxv, math.Abs(c*term[i][j]))
			}
		}
		if maxv < 1e-17 {
			break
		}
		term = cte.MatMul3(term, x)
	}
	return scale3(ret, math.Pow(2, float64(k)))
}

// sqrtm3 is the Denman-Beavers iteration for the matrix square root.
func sqrtm3(a [3][3]float64) ([3][3]float64, bool) {
	y := a
	z := cte.Identity3()
	for it := 0; it < 50; it++ {
		yinv, err := inverse3(y)
		if err != nil {
			return a, false
		}
		zinv, err := inverse3(z)
		if err != nil {
			return a, false
		}
		var ny, nz [3][3]float64
		var change float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				ny[i][j] = 0.5 * (y[i][j] + zinv[i][j])
				nz[i][j] = 0.5 * (z[i][j] + yinv[i][j])
				change = math.Max(change, math.Abs(ny[i][j]-y[i][j]))
			}
		}
		y, z = ny, nz
		if change < 1e-15 {
			break
		}
	}
	return y, true
}

func dist3(a [3][3]float64) float64 {
	var d float64
	id := cte.Identity3()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d = math.Max(d, math.Abs(a[i][j]-id[i][j]))
		}
	}
	return d
}

// maxRowNorm returns the largest euclidean norm among the rows of f.
func maxRowNorm(f [][3]float64) float64 {
	var m float64
	for _, v := range f {
		m = math.Max(m, cte.Norm(v))
	}
	return m
}
