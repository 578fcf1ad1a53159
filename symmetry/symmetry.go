/*
 * symmetry.go, part of gocte.
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

// Package symmetry finds the space-group operations of crystal structures, and
// uses them to symmetrize forces and stresses.
//
// Operations act on fractional coordinates as column vectors: x' = W x + t.
package symmetry

import (
	"fmt"
	"math"
	"strings"

	cte "github.com/rmera/gocte"
)

// DefaultSymprec is the tolerance, in Angstrom, used when none is given.
const DefaultSymprec = 1e-5

// Dataset is the result of a symmetry search.
type Dataset struct {
	//Number is the space group number (1-230). It's only meaningful when
	//ITA is true, that is, when the finder could identify the group.
	Number       int
	ITA          bool
	Rotations    [][3][3]int
	Translations [][3]float64
}

// Len returns the number of operations
func (D *Dataset) Len() int {
	return len(D.Rotations)
}

// Finder finds the symmetry of a structure.
type Finder interface {
	Find(s *cte.Structure, symprec float64) (*Dataset, error)
}

// NewFinder returns the finder for the given name: "internal" (or empty) for the
// pure-Go search, "spglib" for the external spglib handle. The command is only
// used by spglib, and defaults to python3.
func NewFinder(name, command string) (Finder, error) {
	switch strings.ToLower(name) {
	case "", "internal", "search":
		return Search{}, nil
	case "spglib":
		return NewSpglib(command), nil
	}
	return nil, fmt.Errorf("%w: unknown symmetry finder %q", cte.ErrConfig, name)
}

// PointGroup returns the distinct rotations of the dataset.
func (D *Dataset) PointGroup() [][3][3]int {
	var ret [][3][3]int
	for _, r := range D.Rotations {
		found := false
		for _, v := range ret {
			if v == r {
				found = true
				break
			}
		}
		if !found {
			ret = append(ret, r)
		}
	}
	return ret
}

// Permutations returns, for each operation, the atom each atom is sent to.
// The structure must be the one the dataset was found for.
func (D *Dataset) Permutations(s *cte.Structure, symprec float64) ([][]int, error) {
	frac, err := s.Scaled()
	if err != nil {
		return nil, cte.ErrDecorate(err, "Dataset.Permutations")
	}
	ret := make([][]int, D.Len())
	for k := range D.Rotations {
		perm, ok := mapAtoms(s, frac, D.Rotations[k], D.Translations[k], symprec)
		if !ok {
			return nil, cte.NewError(fmt.Sprintf("operation %d doesn't map the structure onto itself", k), "", true, nil, "Dataset.Permutations")
		}
		ret[k] = perm
	}
	return ret, nil
}

// CartesianRotation returns the rotation W in Cartesian coordinates for the
// given cell (rows are lattice vectors): R = L^T W L^-T.
func CartesianRotation(w [3][3]int, cell cte.Cell) ([3][3]float64, error) {
	inv, err := cell.Inverse()
	if err != nil {
		return [3][3]float64{}, cte.ErrDecorate(err, "CartesianRotation")
	}
	var wf [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			wf[i][j] = float64(w[i][j])
		}
	}
	lt := cte.Transpose3(cell)
	return cte.MatMul3(cte.MatMul3(lt, wf), cte.Transpose3(inv)), nil
}

// Apply returns W x + t.
func Apply(w [3][3]int, t [3]float64, x [3]float64) [3]float64 {
	var ret [3]float64
	for i := 0; i < 3; i++ {
		ret[i] = float64(w[i][0])*x[0] + float64(w[i][1])*x[1] + float64(w[i][2])*x[2] + t[i]
	}
	return ret
}

// mapAtoms returns the permutation induced by (w, t), and false if the operation
// doesn't map the structure onto itself.
func mapAtoms(s *cte.Structure, frac [][3]float64, w [3][3]int, t [3]float64, symprec float64) ([]int, bool) {
	perm := make([]int, len(frac))
	used := make([]bool, len(frac))
	for i, x := range frac {
		y := Apply(w, t, x)
		found := -1
		for j, z := range frac {
			if used[j] || s.Symbols[j] != s.Symbols[i] {
				continue
			}
			if fracDistance(y, z, s.Cell) < symprec {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, false
		}
		perm[i] = found
		used[found] = true
	}
	return perm, true
}

// fracDistance returns the Cartesian length of the shortest lattice-equivalent of a-b.
func fracDistance(a, b [3]float64, cell cte.Cell) float64 {
	var d [3]float64
	for k := 0; k < 3; k++ {
		d[k] = a[k] - b[k]
		d[k] -= math.Round(d[k])
	}
	best := math.Inf(1)
	//the rounded vector is not always the shortest one for skewed cells
	for n0 := -1; n0 <= 1; n0++ {
		for n1 := -1; n1 <= 1; n1++ {
			for n2 := -1; n2 <= 1; n2++ {
				v := cte.MulVec3([3]float64{d[0] + float64(n0), d[1] + float64(n1), d[2] + float64(n2)}, cell)
				best = math.Min(best, cte.Norm(v))
			}
		}
	}
	return best
}
