/*
 * mesh.go, part of gocte.
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

package phonon

import (
	"math"
	"sort"

	cte "github.com/rmera/gocte"
)

// Mesh holds the phonons on the irreducible points of a Monkhorst-Pack grid.
type Mesh struct {
	Mesh            [3]int
	QPoints         [][3]float64
	Weights         []int
	Frequencies     [][]float64      //THz, [q][band]
	Eigenvectors    [][][]complex128 //[q][component][band], if requested
	GroupVelocities [][][3]float64   //THz Angstrom, [q][band], if requested
}

// MeshOptions selects what, besides frequencies, is computed on a mesh.
type MeshOptions struct {
	Eigenvectors    bool
	GroupVelocities bool
	NoSymmetry      bool //use the full grid
}

// gridPoints returns the points of the Monkhorst-Pack grid: meshes with an even
// number of divisions along an axis are shifted by half a division along it, so
// Gamma belongs to the grid only when all the numbers are odd.
func gridPoints(mesh [3]int) [][3]float64 {
	var shift [3]float64
	for k, n := range mesh {
		if n%2 == 0 {
			shift[k] = 0.5
		}
	}
	ret := make([][3]float64, 0, mesh[0]*mesh[1]*mesh[2])
	for i := 0; i < mesh[0]; i++ {
		for j := 0; j < mesh[1]; j++ {
			for k := 0; k < mesh[2]; k++ {
				g := [3]int{i, j, k}
				var q [3]float64
				for a := 0; a < 3; a++ {
					q[a] = (float64(g[a]) + shift[a]) / float64(mesh[a])
					if q[a] > 0.5+1e-10 {
						q[a]--
					}
				}
				ret = append(ret, q)
			}
		}
	}
	return ret
}

// gridIndex returns the index of the grid point q, or -1 if q is not on the grid.
func gridIndex(q [3]float64, mesh [3]int) int {
	var g [3]int
	for a := 0; a < 3; a++ {
		shift := 0.0
		if mesh[a]%2 == 0 {
			shift = 0.5
		}
		x := q[a]*float64(mesh[a]) - shift
		r := math.Round(x)
		if math.Abs(x-r) > 1e-6 {
			return -1
		}
		g[a] = ((int(r) % mesh[a]) + mesh[a]) % mesh[a]
	}
	return (g[0]*mesh[1]+g[1])*mesh[2] + g[2]
}

// IrreducibleGrid returns the points of the grid not related by the given
// rotations (of fractional coordinates) nor by time reversal, with the number
// of grid points each one stands for. The points are in grid order, so for meshes
// with odd numbers the first one is Gamma.
func IrreducibleGrid(mesh [3]int, rotations [][3][3]int) ([][3]float64, []int) {
	points := gridPoints(mesh)
	parent := make([]int, len(points))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}
	for i, q := range points {
		for _, w := range rotations {
			//reciprocal-space coordinates transform with the transpose
			var r [3]float64
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					r[a] += float64(w[b][a]) * q[b]
				}
			}
			for _, sign := range []float64{1, -1} {
				img := [3]float64{sign * r[0], sign * r[1], sign * r[2]}
				if j := gridIndex(img, mesh); j >= 0 {
					union(i, j)
				}
			}
		}
		if j := gridIndex([3]float64{-q[0], -q[1], -q[2]}, mesh); j >= 0 {
			union(i, j)
		}
	}
	count := make(map[int]int)
	for i := range points {
		count[find(i)]++
	}
	reps := make([]int, 0, len(count))
	for r := range count {
		reps = append(reps, r)
	}
	sort.Ints(reps)
	qs := make([][3]float64, len(reps))
	ws := make([]int, len(reps))
	for i, r := range reps {
		qs[i] = points[r]
		ws[i] = count[r]
	}
	return qs, ws
}

// rotations returns the distinct rotations of the unit cell symmetry.
func (P *Phonon) rotations() [][3][3]int {
	var ret [][3][3]int
	for _, op := range P.ops {
		found := false
		for _, r := range ret {
			if r == op.w {
				found = true
				break
			}
		}
		if !found {
			ret = append(ret, op.w)
		}
	}
	return ret
}

// RunMesh computes the phonons on the irreducible points of the mesh.
func (P *Phonon) RunMesh(mesh [3]int, opt MeshOptions) (*Mesh, error) {
	for _, n := range mesh {
		if n < 1 {
			return nil, cte.NewError("invalid mesh", "", true, cte.ErrConfig, "Phonon.RunMesh")
		}
	}
	rots := P.rotations()
	if opt.NoSymmetry {
		rots = nil
	}
	qs, ws := IrreducibleGrid(mesh, rots)
	if opt.NoSymmetry {
		qs = gridPoints(mesh)
		ws = make([]int, len(qs))
		for i := range ws {
			ws[i] = 1
		}
	}
	M := &Mesh{Mesh: mesh, QPoints: qs, Weights: ws, Frequencies: make([][]float64, len(qs))}
	if opt.Eigenvectors {
		M.Eigenvectors = make([][][]complex128, len(qs))
	}
	if opt.GroupVelocities {
		M.GroupVelocities = make([][][3]float64, len(qs))
	}
	for i, q := range qs {
		var err error
		if opt.Eigenvectors {
			M.Frequencies[i], M.Eigenvectors[i], err = P.Frequencies(q)
		} else {
			M.Frequencies[i], err = P.frequenciesOnly(q)
		}
		if err != nil {
			return nil, cte.ErrDecorate(err, "Phonon.RunMesh")
		}
		if opt.GroupVelocities {
			M.GroupVelocities[i], err = P.GroupVelocities(q)
			if err != nil {
				return nil, cte.ErrDecorate(err, "Phonon.RunMesh")
			}
		}
	}
	return M, nil
}
