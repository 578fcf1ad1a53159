/*
 * supercell.go, part of gocte.
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

// Package phonon computes second-order force constants by finite displacements
// and the harmonic phonon properties derived from them: frequencies on q-point
// meshes, thermal properties, density of states and band structures.
//
// Units follow phonopy: frequencies in THz, thermal energies in kJ/mol and
// entropies and heat capacities in J/K/mol, all per unit cell.
package phonon

import (
	"fmt"
	"math"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/symmetry"
)

// Supercell builds the diagonal supercell of unit. Atom p of the unit cell in
// lattice cell c ends up at index p*Ncells + c, where c = (i*dim[1] + j)*dim[2] + k
// for the translation i a1 + j a2 + k a3.
func Supercell(unit *cte.Structure, dim [3]int) (*cte.Structure, error) {
	for _, d := range dim {
		if d < 1 {
			return nil, cte.NewError(fmt.Sprintf("invalid supercell %v", dim), "", true, cte.ErrConfig, "Supercell")
		}
	}
	nc := dim[0] * dim[1] * dim[2]
	n := unit.Len() * nc
	symbols := make([]string, 0, n)
	pos := make([][3]float64, 0, n)
	for p, r := range unit.Positions {
		for c := 0; c < nc; c++ {
			t := cte.MulVec3(cellTranslation(c, dim), unit.Cell)
			symbols = append(symbols, unit.Symbols[p])
			pos = append(pos, [3]float64{r[0] + t[0], r[1] + t[1], r[2] + t[2]})
		}
	}
	var cell [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cell[i][j] = unit.Cell[i][j] * float64(dim[i])
		}
	}
	S, err := cte.NewStructure(symbols, cell, pos)
	if err != nil {
		return nil, cte.ErrDecorate(err, "Supercell")
	}
	S.PBC = unit.PBC
	return S, nil
}

// cellTranslation returns the lattice translation (in unit-cell fractional
// coordinates) of cell c.
func cellTranslation(c int, dim [3]int) [3]float64 {
	i := c / (dim[1] * dim[2])
	j := (c / dim[2]) % dim[1]
	k := c % dim[2]
	return [3]float64{float64(i), float64(j), float64(k)}
}

// cellIndex returns the cell index for the translation n, wrapped into the supercell.
func cellIndex(n [3]int, dim [3]int) int {
	for k := 0; k < 3; k++ {
		n[k] = ((n[k] % dim[k]) + dim[k]) % dim[k]
	}
	return (n[0]*dim[1]+n[1])*dim[2] + n[2]
}

// unitOp is a space-group operation of the unit cell, with the atom
// permutation it induces and the lattice vectors that bring each image back
// to the original cell: W x_q + t = x_perm[q] + shift[q].
type unitOp struct {
	w     [3][3]int
	t     [3]float64
	cart  [3][3]float64
	perm  []int
	shift [][3]int
}

func unitOps(unit *cte.Structure, ds *symmetry.Dataset, symprec float64) ([]unitOp, error) {
	if ds == nil {
		ds = &symmetry.Dataset{
			Rotations:    [][3][3]int{{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}},
			Translations: [][3]float64{{}},
		}
	}
	perms, err := ds.Permutations(unit, symprec)
	if err != nil {
		return nil, cte.ErrDecorate(err, "unitOps")
	}
	frac, err := unit.Scaled()
	if err != nil {
		return nil, cte.ErrDecorate(err, "unitOps")
	}
	ret := make([]unitOp, ds.Len())
	for k, w := range ds.Rotations {
		cart, err := symmetry.CartesianRotation(w, unit.Cell)
		if err != nil {
			return nil, cte.ErrDecorate(err, "unitOps")
		}
		op := unitOp{w: w, t: ds.Translations[k], cart: cart, perm: perms[k], shift: make([][3]int, unit.Len())}
		for q, x := range frac {
			y := symmetry.Apply(w, op.t, x)
			for a := 0; a < 3; a++ {
				op.shift[q][a] = int(math.Round(y[a] - frac[op.perm[q]][a]))
			}
		}
		ret[k] = op
	}
	return ret, nil
}

// keepsSupercell tells whether the rotation maps the supercell lattice onto itself,
// that is, whether D^-1 W D is an integer matrix.
func keepsSupercell(w [3][3]int, dim [3]int) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if (w[i][j]*dim[j])%dim[i] != 0 {
				return false
			}
		}
	}
	return true
}

// siteOp is a symmetry operation of the supercell that keeps one atom in place.
type siteOp struct {
	cart [3][3]float64
	perm []int //supercell atom permutation
}

// siteOps returns the operations of the supercell that leave the atom p of
// cell 0 in place.
func siteOps(ops []unitOp, p int, nunit int, dim [3]int) []siteOp {
	var ret []siteOp
	for _, op := range ops {
		if op.perm[p] != p || !keepsSupercell(op.w, dim) {
			continue
		}
		ret = append(ret, siteOp{cart: op.cart, perm: supercellPerm(op, op.shift[p], nunit, dim)})
	}
	return ret
}

// supercellPerm returns the permutation of the supercell atoms induced by op,
// followed by the lattice translation -lp.
func supercellPerm(op unitOp, lp [3]int, nunit int, dim [3]int) []int {
	nc := dim[0] * dim[1] * dim[2]
	perm := make([]int, nunit*nc)
	for q := 0; q < nunit; q++ {
		for c := 0; c < nc; c++ {
			t := cellTranslation(c, dim)
			var n [3]int
			for a := 0; a < 3; a++ {
				wn := 0
				for b := 0; b < 3; b++ {
					wn += op.w[a][b] * int(t[b])
				}
				n[a] = op.shift[q][a] + wn - lp[a]
			}
			perm[q*nc+c] = op.perm[q]*nc + cellIndex(n, dim)
		}
	}
	return perm
}

// orbits returns, for each atom of the unit cell, the first atom of its orbit
// under the operations that keep the supercell, and the index of an operation
// that maps the first atom onto it (-1 for the first atoms themselves).
func orbits(ops []unitOp, nunit int, dim [3]int) (reps, via []int) {
	reps = make([]int, nunit)
	via = make([]int, nunit)
	for p := range reps {
		reps[p], via[p] = -1, -1
	}
	for p := 0; p < nunit; p++ {
		if reps[p] >= 0 {
			continue
		}
		reps[p] = p
		for k, op := range ops {
			if !keepsSupercell(op.w, dim) {
				continue
			}
			if q := op.perm[p]; reps[q] < 0 {
				reps[q], via[q] = p, k
			}
		}
	}
	return reps, via
}
