/*
 * symmetrize.go, part of gocte.
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

package symmetry

import (
	cte "github.com/rmera/gocte"
)

// Symmetrizer projects forces and stresses onto the symmetric subspace of a
// structure, so a relaxation driven by them can't break the symmetry.
type Symmetrizer struct {
	data  *Dataset
	perms [][]int
}

// NewSymmetrizer finds the symmetry of s with f and returns a Symmetrizer for it.
func NewSymmetrizer(s *cte.Structure, f Finder, symprec float64) (*Symmetrizer, error) {
	if symprec <= 0 {
		symprec = DefaultSymprec
	}
	D, err := f.Find(s, symprec)
	if err != nil {
		return nil, cte.ErrDecorate(err, "NewSymmetrizer")
	}
	//spglib may give operations with a somewhat looser tolerance than the one asked
	perms, err := D.Permutations(s, 10*symprec)
	if err != nil {
		return nil, cte.ErrDecorate(err, "NewSymmetrizer")
	}
	return &Symmetrizer{data: D, perms: perms}, nil
}

// Dataset returns the symmetry operations used.
func (S *Symmetrizer) Dataset() *Dataset {
	return S.data
}

func (S *Symmetrizer) rotations(cell cte.Cell) ([][3][3]float64, error) {
	ret := make([][3][3]float64, S.data.Len())
	var err error
	for k, w := range S.data.Rotations {
		ret[k], err = CartesianRotation(w, cell)
		if err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Forces returns the symmetrized forces for the structure s, which must have
// the same atoms, in the same order, as the structure the Symmetrizer was built for.
func (S *Symmetrizer) Forces(s *cte.Structure, f [][3]float64) ([][3]float64, error) {
	rots, err := S.rotations(s.Cell)
	if err != nil {
		return nil, cte.ErrDecorate(err, "Symmetrizer.Forces")
	}
	ret := make([][3]float64, len(f))
	for k, r := range rots {
		perm := S.perms[k]
		for i, fi := range f {
			rf := cte.MulVec3(fi, cte.Transpose3(r)) //R f, as a row vector
			j := perm[i]
			for a := 0; a < 3; a++ {
				ret[j][a] += rf[a]
			}
		}
	}
	n := float64(len(rots))
	for i := range ret {
		for a := 0; a < 3; a++ {
			ret[i][a] /= n
		}
	}
	return ret, nil
}

// Stress returns the symmetrized stress (Voigt order).
func (S *Symmetrizer) Stress(s *cte.Structure, v [6]float64) ([6]float64, error) {
	rots, err := S.rotations(s.Cell)
	if err != nil {
		return v, cte.ErrDecorate(err, "Symmetrizer.Stress")
	}
	sigma := [3][3]float64{
		{v[0], v[5], v[4]},
		{v[5], v[1], v[3]},
		{v[4], v[3], v[2]},
	}
	var acc [3][3]float64
	for _, r := range rots {
		t := cte.MatMul3(cte.MatMul3(r, sigma), cte.Transpose3(r))
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				acc[a][b] += t[a][b]
			}
		}
	}
	n := float64(len(rots))
	return [6]float64{acc[0][0] / n, acc[1][1] / n, acc[2][2] / n, acc[1][2] / n, acc[0][2] / n, acc[0][1] / n}, nil
}
