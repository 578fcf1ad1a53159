/*
 * displacement.go, part of gocte.
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
	"fmt"
	"math"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/symmetry"
	"gonum.org/v1/gonum/mat"
)

// DefaultDistance is the displacement length, in Angstrom, used when none is given.
const DefaultDistance = 0.01

// Displacement is one finite displacement of a supercell atom. Null
// displacements are equivalent by symmetry to another one in the set, and
// need no calculation.
type Displacement struct {
	Atom   int        //supercell index
	Vector [3]float64 //Cartesian, Angstrom
	Null   bool
}

// Phonon holds a unit cell, its supercell, and the force constants
// computed on the latter.
type Phonon struct {
	Unit    *cte.Structure
	Super   *cte.Structure
	Dim     [3]int
	Symprec float64
	//compact second-order force constants, FC[p][j] for the atom p of
	//the unit cell (in the cell 0 of the supercell) and the supercell atom j.
	FC    [][][3][3]float64
	ops   []unitOp
	disps []Displacement
	mass  []float64
	svecs [][][][3]float64 //minimum image vectors, fractional, for each p, j
}

// New prepares the phonon calculation of unit on the dim supercell. ds is
// the symmetry dataset of unit, if nil only the identity is used.
func New(unit *cte.Structure, dim [3]int, ds *symmetry.Dataset, symprec float64) (*Phonon, error) {
	if symprec <= 0 {
		symprec = symmetry.DefaultSymprec
	}
	sc, err := Supercell(unit, dim)
	if err != nil {
		return nil, cte.ErrDecorate(err, "phonon.New")
	}
	ops, err := unitOps(unit, ds, symprec)
	if err != nil {
		return nil, cte.ErrDecorate(err, "phonon.New")
	}
	mass, err := unit.Masses()
	if err != nil {
		return nil, cte.ErrDecorate(err, "phonon.New")
	}
	P := &Phonon{Unit: unit.Copy(), Super: sc, Dim: dim, Symprec: symprec, ops: ops, mass: mass}
	P.svecs, err = shortestVectors(P.Unit, dim)
	if err != nil {
		return nil, cte.ErrDecorate(err, "phonon.New")
	}
	return P, nil
}

// ncells returns the number of unit cells in the supercell.
func (P *Phonon) ncells() int {
	return P.Dim[0] * P.Dim[1] * P.Dim[2]
}

// rep returns the supercell index of the atom p of the unit cell in the cell 0.
func (P *Phonon) rep(p int) int {
	return p * P.ncells()
}

func rotate(r [3][3]float64, v [3]float64) [3]float64 {
	var ret [3]float64
	for i := 0; i < 3; i++ {
		ret[i] = r[i][0]*v[0] + r[i][1]*v[1] + r[i][2]*v[2]
	}
	return ret
}

// GenerateDisplacements sets and returns the displacements for the first atom
// of each orbit of the unit cell. Cartesian axes are taken, in both senses, until
// their images under the site symmetry span space. A minus displacement that some
// site-symmetry operation maps onto the plus one is marked null. The rest of the
// atoms get their force constants from those of their orbit's first atom.
func (P *Phonon) GenerateDisplacements(distance float64) []Displacement {
	if distance <= 0 {
		distance = DefaultDistance
	}
	var ret []Displacement
	nu := P.Unit.Len()
	reps, _ := orbits(P.ops, nu, P.Dim)
	for p := 0; p < nu; p++ {
		if reps[p] != p {
			continue
		}
		site := siteOps(P.ops, p, nu, P.Dim)
		var sp span
		for axis := 0; axis < 3; axis++ {
			var d [3]float64
			d[axis] = distance
			if sp.contains(d) {
				continue
			}
			for _, op := range site {
				sp.add(rotate(op.cart, d))
			}
			ret = append(ret, Displacement{Atom: P.rep(p), Vector: d})
			minus := [3]float64{-d[0], -d[1], -d[2]}
			ret = append(ret, Displacement{Atom: P.rep(p), Vector: minus, Null: reachable(site, d, minus, distance)})
		}
	}
	P.disps = ret
	return append([]Displacement(nil), ret...)
}

// span is an orthonormal basis of the space spanned by the vectors added to it.
type span [][3]float64

func (S span) residual(v [3]float64) [3]float64 {
	for _, b := range S {
		dot := v[0]*b[0] + v[1]*b[1] + v[2]*b[2]
		for k := range v {
			v[k] -= dot * b[k]
		}
	}
	return v
}

func (S span) contains(v [3]float64) bool {
	return cte.Norm(S.residual(v)) <= 1e-6*cte.Norm(v)
}

func (S *span) add(v [3]float64) {
	r := S.residual(v)
	n := cte.Norm(r)
	if n <= 1e-6*cte.Norm(v) {
		return
	}
	*S = append(*S, [3]float64{r[0] / n, r[1] / n, r[2] / n})
}

// reachable tells whether some of the ops sends from onto to.
func reachable(ops []siteOp, from, to [3]float64, scale float64) bool {
	for _, op := range ops {
		r := rotate(op.cart, from)
		var d [3]float64
		for k := range d {
			d[k] = r[k] - to[k]
		}
		if cte.Norm(d) < 1e-6*scale {
			return true
		}
	}
	return false
}

// Displacements returns the current displacement set.
func (P *Phonon) Displacements() []Displacement {
	return append([]Displacement(nil), P.disps...)
}

// SetDisplacements replaces the displacement set, for instance with one read from a file.
func (P *Phonon) SetDisplacements(d []Displacement) {
	P.disps = append([]Displacement(nil), d...)
}

// Supercells returns one displaced supercell per displacement, with nil
// for the null ones.
func (P *Phonon) Supercells() []*cte.Structure {
	ret := make([]*cte.Structure, len(P.disps))
	for i, d := range P.disps {
		if d.Null {
			continue
		}
		s := P.Super.Copy()
		for k := 0; k < 3; k++ {
			s.Positions[d.Atom][k] += d.Vector[k]
		}
		ret[i] = s
	}
	return ret
}

// ProduceFC fits the force constants to the forces on the displaced supercells,
// one set per displacement. The forces of null displacements are ignored. For each
// displaced unit-cell atom, every displacement is expanded with the site-symmetry
// operations and the force constants are the least-squares solution of F = -u Phi.
// Atoms without displacements take them, rotated, from the first atom of their orbit.
func (P *Phonon) ProduceFC(forces [][][3]float64) error {
	if len(forces) != len(P.disps) {
		return cte.NewError(fmt.Sprintf("%d force sets for %d displacements", len(forces), len(P.disps)), "", true, cte.ErrShape, "Phonon.ProduceFC")
	}
	nu := P.Unit.Len()
	n := P.Super.Len()
	reps, via := orbits(P.ops, nu, P.Dim)
	fc := make([][][3][3]float64, nu)
	for p := 0; p < nu; p++ {
		site := siteOps(P.ops, p, nu, P.Dim)
		var urows [][3]float64
		var frows [][]float64
		for k, d := range P.disps {
			if d.Atom != P.rep(p) || d.Null {
				continue
			}
			if len(forces[k]) != n {
				return cte.NewError(fmt.Sprintf("force set %d has %d atoms, the supercell %d", k, len(forces[k]), n), "", true, cte.ErrShape, "Phonon.ProduceFC")
			}
			for _, op := range site {
				urows = append(urows, rotate(op.cart, d.Vector))
				row := make([]float64, 3*n)
				for j, f := range forces[k] {
					rf := rotate(op.cart, f)
					copy(row[3*op.perm[j]:3*op.perm[j]+3], rf[:])
				}
				frows = append(frows, row)
			}
		}
		if len(urows) == 0 && reps[p] != p {
			continue
		}
		if len(urows) < 3 {
			return cte.NewError(fmt.Sprintf("not enough displacements for atom %d", p), "", true, cte.ErrShape, "Phonon.ProduceFC")
		}
		U := mat.NewDense(len(urows), 3, nil)
		F := mat.NewDense(len(frows), 3*n, nil)
		for i := range urows {
			U.SetRow(i, urows[i][:])
			for j, v := range frows[i] {
				F.Set(i, j, -v)
			}
		}
		var X mat.Dense
		if err := X.Solve(U, F); err != nil {
			return cte.NewError(fmt.Sprintf("displacements of atom %d don't span space", p), "", true, err, "Phonon.ProduceFC")
		}
		fc[p] = make([][3][3]float64, n)
		for j := 0; j < n; j++ {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					fc[p][j][a][b] = X.At(a, 3*j+b)
				}
			}
		}
	}
	for p := 0; p < nu; p++ {
		if fc[p] != nil {
			continue
		}
		r := reps[p]
		if fc[r] == nil {
			return cte.NewError(fmt.Sprintf("no displacements for atom %d or its orbit", p), "", true, cte.ErrShape, "Phonon.ProduceFC")
		}
		op := P.ops[via[p]]
		perm := supercellPerm(op, op.shift[r], nu, P.Dim)
		fc[p] = make([][3][3]float64, n)
		for j := 0; j < n; j++ {
			fc[p][perm[j]] = rotateTensor(op.cart, fc[r][j])
		}
	}
	P.FC = fc
	return nil
}

// rotateTensor returns r m r^T.
func rotateTensor(r, m [3][3]float64) [3][3]float64 {
	var ret [3][3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			for x := 0; x < 3; x++ {
				for y := 0; y < 3; y++ {
					ret[a][b] += r[a][x] * m[x][y] * r[b][y]
				}
			}
		}
	}
	return ret
}

// fcAt returns the force constant between the supercell atoms i and j, using
// the translational symmetry of the compact matrix.
func (P *Phonon) fcAt(i, j int) [3][3]float64 {
	nc := P.ncells()
	p, ci := i/nc, i%nc
	q, cj := j/nc, j%nc
	ti := cellTranslation(ci, P.Dim)
	tj := cellTranslation(cj, P.Dim)
	n := [3]int{int(tj[0] - ti[0]), int(tj[1] - ti[1]), int(tj[2] - ti[2])}
	return P.FC[p][q*nc+cellIndex(n, P.Dim)]
}

// SymmetrizeFC imposes, iteratively, the index-permutation symmetry
// Phi(i,j) = Phi(j,i)^T and the acoustic sum rule sum_j Phi(i,j) = 0.
func (P *Phonon) SymmetrizeFC(iterations int) {
	if P.FC == nil {
		return
	}
	if iterations < 1 {
		iterations = 1
	}
	nu := P.Unit.Len()
	n := P.Super.Len()
	for it := 0; it < iterations; it++ {
		sym := make([][][3][3]float64, nu)
		for p := 0; p < nu; p++ {
			sym[p] = make([][3][3]float64, n)
			for j := 0; j < n; j++ {
				a := P.FC[p][j]
				b := P.fcAt(j, P.rep(p))
				for x := 0; x < 3; x++ {
					for y := 0; y < 3; y++ {
						sym[p][j][x][y] = 0.5 * (a[x][y] + b[y][x])
					}
				}
			}
		}
		var change float64
		for p := 0; p < nu; p++ {
			var sum [3][3]float64
			for j := 0; j < n; j++ {
				for x := 0; x < 3; x++ {
					for y := 0; y < 3; y++ {
						sum[x][y] += sym[p][j][x][y]
					}
				}
			}
			for j := 0; j < n; j++ {
				for x := 0; x < 3; x++ {
					for y := 0; y < 3; y++ {
						sym[p][j][x][y] -= sum[x][y] / float64(n)
						change = math.Max(change, math.Abs(sym[p][j][x][y]-P.FC[p][j][x][y]))
					}
				}
			}
		}
		P.FC = sym
		if change < 1e-12 {
			break
		}
	}
}
