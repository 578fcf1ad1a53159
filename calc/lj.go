/*
 * lj.go, part of gocte.
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

package calc

import (
	"math"

	cte "github.com/rmera/gocte"
)

// LJParams are the parameters of a Lennard-Jones potential. Zero values
// take the defaults for argon (Epsilon 0.0104 eV, Sigma 3.40 A, Cutoff 2.5 Sigma).
type LJParams struct {
	Epsilon float64 `yaml:"epsilon"`
	Sigma   float64 `yaml:"sigma"`
	Cutoff  float64 `yaml:"cutoff"`
}

// LJ is a Lennard-Jones pair potential, shifted so the energy is zero at the
// cutoff. All atoms interact the same way regardless of their element.
// It runs in-process and is mostly useful as a reference and for testing.
type LJ struct {
	eps, sigma, rc float64
	shift          float64
}

// NewLJ returns a Lennard-Jones calculator.
func NewLJ(p LJParams) *LJ {
	L := &LJ{eps: p.Epsilon, sigma: p.Sigma, rc: p.Cutoff}
	if L.eps == 0 {
		L.eps = 0.0104
	}
	if L.sigma == 0 {
		L.sigma = 3.40
	}
	if L.rc == 0 {
		L.rc = 2.5 * L.sigma
	}
	L.shift = L.phi(L.rc)
	return L
}

func (L *LJ) phi(r float64) float64 {
	sr6 := math.Pow(L.sigma/r, 6)
	return 4 * L.eps * (sr6*sr6 - sr6)
}

func (L *LJ) dphi(r float64) float64 {
	sr6 := math.Pow(L.sigma/r, 6)
	return 4 * L.eps * (-12*sr6*sr6 + 6*sr6) / r
}

// pairs calls f for every pair (i, j, lattice image) within the cutoff,
// with d the vector from atom i to the image of atom j. Each pair is visited
// twice, once from each side.
func (L *LJ) pairs(s *cte.Structure, f func(i, j int, d [3]float64, r float64)) error {
	var nmax [3]int
	if s.PBC != [3]bool{} {
		inv, err := s.Cell.Inverse()
		if err != nil {
			return cte.ErrDecorate(err, "LJ.pairs")
		}
		for k := 0; k < 3; k++ {
			if !s.PBC[k] {
				continue
			}
			//the distance between lattice planes is 1/|column k of the inverse|
			col := math.Sqrt(inv[0][k]*inv[0][k] + inv[1][k]*inv[1][k] + inv[2][k]*inv[2][k])
			nmax[k] = int(math.Ceil(L.rc * col))
		}
	}
	rc2 := L.rc * L.rc
	for n0 := -nmax[0]; n0 <= nmax[0]; n0++ {
		for n1 := -nmax[1]; n1 <= nmax[1]; n1++ {
			for n2 := -nmax[2]; n2 <= nmax[2]; n2++ {
				t := cte.MulVec3([3]float64{float64(n0), float64(n1), float64(n2)}, s.Cell)
				self := n0 == 0 && n1 == 0 && n2 == 0
				for i := range s.Positions {
					for j := range s.Positions {
						if self && i == j {
							continue
						}
						var d [3]float64
						for k := 0; k < 3; k++ {
							d[k] = s.Positions[j][k] + t[k] - s.Positions[i][k]
						}
						r2 := cte.Dot(d, d)
						if r2 >= rc2 {
							continue
						}
						f(i, j, d, math.Sqrt(r2))
					}
				}
			}
		}
	}
	return nil
}

// PotentialEnergy returns the energy. The force-consistent energy is the same.
func (L *LJ) PotentialEnergy(s *cte.Structure, forceConsistent bool) (float64, error) {
	var e float64
	err := L.pairs(s, func(i, j int, d [3]float64, r float64) {
		e += 0.5 * (L.phi(r) - L.shift)
	})
	return e, err
}

// Forces returns the forces on each atom.
func (L *LJ) Forces(s *cte.Structure) ([][3]float64, error) {
	f := make([][3]float64, s.Len())
	err := L.pairs(s, func(i, j int, d [3]float64, r float64) {
		g := L.dphi(r) / r
		for k := 0; k < 3; k++ {
			f[i][k] += g * d[k]
		}
	})
	return f, err
}

// Stress returns (1/V) dE/d(strain) in Voigt order.
func (L *LJ) Stress(s *cte.Structure) ([6]float64, error) {
	var st [3][3]float64
	err := L.pairs(s, func(i, j int, d [3]float64, r float64) {
		g := 0.5 * L.dphi(r) / r
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				st[a][b] += g * d[a] * d[b]
			}
		}
	})
	if err != nil {
		return [6]float64{}, err
	}
	v := s.Volume()
	return [6]float64{st[0][0] / v, st[1][1] / v, st[2][2] / v, st[1][2] / v, st[0][2] / v, st[0][1] / v}, nil
}
