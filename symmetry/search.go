/*
 * search.go, part of gocte.
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
	"math"

	cte "github.com/rmera/gocte"
)

// Search is a pure-Go symmetry finder. It first finds the rotations that keep
// the lattice metric, among the integer matrices with entries -1, 0 and 1, and
// then the translations that map the atoms onto themselves for each of them.
// This covers every lattice symmetry of Minkowski/Niggli-reduced cells, which
// is what structure databases provide. The space-group type is then found with
// SpaceGroup.
type Search struct{}

var candidates = func() [][3][3]int {
	var ret [][3][3]int
	var w [3][3]int
	vals := [3]int{-1, 0, 1}
	for n := 0; n < 19683; n++ {
		m := n
		for i := 0; i < 9; i++ {
			w[i/3][i%3] = vals[m%3]
			m /= 3
		}
		d := w[0][0]*(w[1][1]*w[2][2]-w[1][2]*w[2][1]) -
			w[0][1]*(w[1][0]*w[2][2]-w[1][2]*w[2][0]) +
			w[0][2]*(w[1][0]*w[2][1]-w[1][1]*w[2][0])
		if d == 1 || d == -1 {
			ret = append(ret, w)
		}
	}
	return ret
}()

// LatticeRotations returns the rotations (in fractional coordinates) that
// keep the metric of the cell, within symprec.
func LatticeRotations(cell cte.Cell, symprec float64) [][3][3]int {
	g := cell.Metric()
	var lengths [3]float64
	for i := 0; i < 3; i++ {
		lengths[i] = math.Sqrt(g[i][i])
	}
	var ret [][3][3]int
	for _, w := range candidates {
		if keepsMetric(w, g, lengths, symprec) {
			ret = append(ret, w)
		}
	}
	return ret
}

// keepsMetric checks W^T G W = G. The tolerance follows from allowing each
// lattice vector to move by symprec.
func keepsMetric(w [3][3]int, g [3][3]float64, lengths [3]float64, symprec float64) bool {
	for j := 0; j < 3; j++ {
		for k := j; k < 3; k++ {
			var v float64
			for a := 0; a < 3; a++ {
				if w[a][j] == 0 {
					continue
				}
				for b := 0; b < 3; b++ {
					v += float64(w[a][j]*w[b][k]) * g[a][b]
				}
			}
			if math.Abs(v-g[j][k]) > 2*symprec*(lengths[j]+lengths[k]) {
				return false
			}
		}
	}
	return true
}

// Find returns the symmetry operations of s, and its space group number when
// it can be identified. The identity is always the first operation.
func (Search) Find(s *cte.Structure, symprec float64) (*Dataset, error) {
	if symprec <= 0 {
		symprec = DefaultSymprec
	}
	if s.Len() == 0 {
		return nil, cte.NewError("empty structure", "", true, cte.ErrShape, "Search.Find")
	}
	frac, err := s.Scaled()
	if err != nil {
		return nil, cte.ErrDecorate(err, "Search.Find")
	}
	//the translations are tried by sending the first atom of the least
	//abundant species onto each atom of that species.
	count := make(map[string]int)
	for _, v := range s.Symbols {
		count[v]++
	}
	ref := 0
	for i, v := range s.Symbols {
		if count[v] < count[s.Symbols[ref]] {
			ref = i
		}
	}
	D := new(Dataset)
	for _, w := range LatticeRotations(s.Cell, symprec) {
		x0 := Apply(w, [3]float64{}, frac[ref])
		for j, v := range s.Symbols {
			if v != s.Symbols[ref] {
				continue
			}
			var t [3]float64
			for k := 0; k < 3; k++ {
				t[k] = frac[j][k] - x0[k]
				t[k] -= math.Floor(t[k])
				if t[k] > 1-1e-9 {
					t[k] = 0
				}
			}
			if _, ok := mapAtoms(s, frac, w, t, symprec); !ok {
				continue
			}
			if dupOp(D, w, t, s.Cell, symprec) {
				continue
			}
			D.Rotations = append(D.Rotations, w)
			D.Translations = append(D.Translations, t)
		}
	}
	identityFirst(D)
	if n, err := SpaceGroup(D, s.Cell); err == nil {
		D.Number, D.ITA = n, true
	}
	return D, nil
}

func dupOp(D *Dataset, w [3][3]int, t [3]float64, cell cte.Cell, symprec float64) bool {
	for k := range D.Rotations {
		if D.Rotations[k] == w && fracDistance(D.Translations[k], t, cell) < symprec {
			return true
		}
	}
	return false
}

func identityFirst(D *Dataset) {
	id := [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for k := range D.Rotations {
		zero := D.Translations[k] == [3]float64{}
		if D.Rotations[k] == id && zero {
			D.Rotations[0], D.Rotations[k] = D.Rotations[k], D.Rotations[0]
			D.Translations[0], D.Translations[k] = D.Translations[k], D.Translations[0]
			return
		}
	}
}
