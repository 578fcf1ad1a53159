/*
 * dynmat.go, part of gocte.
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
	"math/cmplx"
	"sort"

	cte "github.com/rmera/gocte"
	"gonum.org/v1/gonum/mat"
)

// THz is the conversion factor from sqrt(eV/Angstrom^2/amu) to THz.
const THz = 15.633302

// shortestVectors returns, for each atom p of the unit cell and each supercell
// atom j, the vectors from p to the periodic images of j (in unit-cell fractional
// coordinates) that are shortest, up to a tolerance. There is more than one when
// j sits on the boundary of the Wigner-Seitz cell of the supercell.
func shortestVectors(unit *cte.Structure, dim [3]int) ([][][][3]float64, error) {
	frac, err := unit.Scaled()
	if err != nil {
		return nil, err
	}
	nc := dim[0] * dim[1] * dim[2]
	nu := unit.Len()
	const tol = 1e-4
	ret := make([][][][3]float64, nu)
	for p := 0; p < nu; p++ {
		ret[p] = make([][][3]float64, nu*nc)
		for q := 0; q < nu; q++ {
			for c := 0; c < nc; c++ {
				t := cellTranslation(c, dim)
				var base [3]float64
				for k := 0; k < 3; k++ {
					base[k] = frac[q][k] + t[k] - frac[p][k]
				}
				var vecs [][3]float64
				var lens []float64
				best := math.Inf(1)
				for m0 := -2; m0 <= 2; m0++ {
					for m1 := -2; m1 <= 2; m1++ {
						for m2 := -2; m2 <= 2; m2++ {
							v := [3]float64{
								base[0] + float64(m0*dim[0]),
								base[1] + float64(m1*dim[1]),
								base[2] + float64(m2*dim[2]),
							}
							l := cte.Norm(cte.MulVec3(v, unit.Cell))
							vecs = append(vecs, v)
							lens = append(lens, l)
							best = math.Min(best, l)
						}
					}
				}
				var sel [][3]float64
				for i, v := range vecs {
					if lens[i]-best < tol {
						sel = append(sel, v)
					}
				}
				ret[p][q*nc+c] = sel
			}
		}
	}
	return ret, nil
}

// DynamicalMatrix returns the mass-weighted dynamical matrix at the q-point
// (in reduced coordinates of the reciprocal lattice of the unit cell), in
// eV/Angstrom^2/amu. The matrix is Hermitian, and made exactly so.
func (P *Phonon) DynamicalMatrix(q [3]float64) ([][]complex128, error) {
	if P.FC == nil {
		return nil, cte.NewError("no force constants", "", true, nil, "Phonon.DynamicalMatrix")
	}
	nu := P.Unit.Len()
	nc := P.ncells()
	dm := make([][]complex128, 3*nu)
	for i := range dm {
		dm[i] = make([]complex128, 3*nu)
	}
	for p := 0; p < nu; p++ {
		for j, fc := range P.FC[p] {
			qa := j / nc
			vecs := P.svecs[p][j]
			var phase complex128
			for _, v := range vecs {
				arg := 2 * math.Pi * (q[0]*v[0] + q[1]*v[1] + q[2]*v[2])
				phase += cmplx.Exp(complex(0, arg))
			}
			phase /= complex(float64(len(vecs)), 0)
			w := 1 / math.Sqrt(P.mass[p]*P.mass[qa])
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					dm[3*p+a][3*qa+b] += complex(fc[a][b]*w, 0) * phase
				}
			}
		}
	}
	for i := range dm {
		for j := i; j < len(dm); j++ {
			h := (dm[i][j] + cmplx.Conj(dm[j][i])) / 2
			dm[i][j] = h
			dm[j][i] = cmplx.Conj(h)
		}
	}
	return dm, nil
}

// hermitianEigen diagonalizes the Hermitian matrix h through the real symmetric
// embedding [[A, -B], [B, A]] of h = A + iB, whose spectrum is that of h with
// every eigenvalue doubled. The eigenvalues are returned in ascending order,
// with eigenvectors as the columns of the second return value.
func hermitianEigen(h [][]complex128) ([]float64, [][]complex128, error) {
	n := len(h)
	emb := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := real(h[i][j]), imag(h[i][j])
			emb.SetSym(i, j, a)
			emb.SetSym(i+n, j+n, a)
			emb.SetSym(i, j+n, -b)
			emb.SetSym(j, i+n, b)
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(emb, true); !ok {
		return nil, nil, cte.NewError("eigendecomposition failed", "", true, nil, "hermitianEigen")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	//group the doubled eigenvalues in clusters of degenerate ones, and pull
	//an orthonormal complex basis out of each.
	retv := make([]float64, 0, n)
	retvec := make([][]complex128, 0, n)
	tol := 1e-8 * math.Max(1, math.Abs(vals[0])+math.Abs(vals[len(vals)-1]))
	for start := 0; start < 2*n; {
		end := start + 1
		for end < 2*n && vals[end]-vals[end-1] < tol {
			end++
		}
		var basis [][]complex128
		for k := start; k < end && len(basis) < (end-start+1)/2; k++ {
			z := make([]complex128, n)
			for i := 0; i < n; i++ {
				z[i] = complex(vecs.At(i, k), vecs.At(i+n, k))
			}
			if orthonormalize(z, basis) {
				basis = append(basis, z)
			}
		}
		for k, z := range basis {
			retv = append(retv, vals[start+2*k])
			retvec = append(retvec, z)
		}
		start = end
	}
	if len(retv) != n {
		//clusters with an odd count; fall back to every other eigenvalue
		retv = retv[:0]
		for k := 0; k < 2*n; k += 2 {
			retv = append(retv, vals[k])
		}
		for len(retvec) < n {
			retvec = append(retvec, make([]complex128, n))
		}
		retvec = retvec[:n]
	}
	return retv, transposeVecs(retvec), nil
}

// orthonormalize removes from z its projections on basis, and normalizes it.
// It returns false if nothing is left.
func orthonormalize(z []complex128, basis [][]complex128) bool {
	for _, b := range basis {
		var dot complex128
		for i := range z {
			dot += cmplx.Conj(b[i]) * z[i]
		}
		for i := range z {
			z[i] -= dot * b[i]
		}
	}
	var norm float64
	for _, v := range z {
		norm += real(v)*real(v) + imag(v)*imag(v)
	}
	norm = math.Sqrt(norm)
	if norm < 1e-4 {
		return false
	}
	for i := range z {
		z[i] /= complex(norm, 0)
	}
	return true
}

// transposeVecs turns a list of vectors into a matrix with them as columns.
func transposeVecs(v [][]complex128) [][]complex128 {
	n := len(v)
	ret := make([][]complex128, n)
	for i := range ret {
		ret[i] = make([]complex128, n)
		for k := range v {
			if i < len(v[k]) {
				ret[i][k] = v[k][i]
			}
		}
	}
	return ret
}

// toFrequency turns an eigenvalue of the dynamical matrix into a frequency in
// THz. Negative eigenvalues give negative (imaginary) frequencies.
func toFrequency(l float64) float64 {
	if l < 0 {
		return -math.Sqrt(-l) * THz
	}
	return math.Sqrt(l) * THz
}

// Frequencies returns the phonon frequencies, in THz and ascending order, at
// the q-point, and the eigenvectors as columns.
func (P *Phonon) Frequencies(q [3]float64) ([]float64, [][]complex128, error) {
	dm, err := P.DynamicalMatrix(q)
	if err != nil {
		return nil, nil, cte.ErrDecorate(err, "Phonon.Frequencies")
	}
	vals, vecs, err := hermitianEigen(dm)
	if err != nil {
		return nil, nil, cte.ErrDecorate(err, "Phonon.Frequencies")
	}
	freqs := make([]float64, len(vals))
	for i, v := range vals {
		freqs[i] = toFrequency(v)
	}
	return freqs, vecs, nil
}

func (P *Phonon) frequenciesOnly(q [3]float64) ([]float64, error) {
	dm, err := P.DynamicalMatrix(q)
	if err != nil {
		return nil, err
	}
	n := len(dm)
	emb := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := real(dm[i][j]), imag(dm[i][j])
			emb.SetSym(i, j, a)
			emb.SetSym(i+n, j+n, a)
			emb.SetSym(i, j+n, -b)
			emb.SetSym(j, i+n, b)
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(emb, false); !ok {
		return nil, cte.NewError("eigendecomposition failed", "", true, nil, "Phonon.frequenciesOnly")
	}
	vals := eig.Values(nil)
	sort.Float64s(vals)
	ret := make([]float64, n)
	for k := range ret {
		ret[k] = toFrequency(vals[2*k])
	}
	return ret, nil
}

// GroupVelocities returns, for each band, the gradient of the frequency with
// respect to the Cartesian wave vector (without the 2 pi factor), in THz
// Angstrom. Central finite differences are used, so within degenerate bands
// the result is an average.
func (P *Phonon) GroupVelocities(q [3]float64) ([][3]float64, error) {
	const delta = 1e-5
	lt := cte.Transpose3(P.Unit.Cell)
	var ret [][3]float64
	for a := 0; a < 3; a++ {
		var dk [3]float64
		dk[a] = delta
		dq := cte.MulVec3(dk, lt)
		var plus, minus [3]float64
		for k := 0; k < 3; k++ {
			plus[k] = q[k] + dq[k]
			minus[k] = q[k] - dq[k]
		}
		fp, err := P.frequenciesOnly(plus)
		if err != nil {
			return nil, cte.ErrDecorate(err, "Phonon.GroupVelocities")
		}
		fm, err := P.frequenciesOnly(minus)
		if err != nil {
			return nil, cte.ErrDecorate(err, "Phonon.GroupVelocities")
		}
		if ret == nil {
			ret = make([][3]float64, len(fp))
		}
		for b := range fp {
			ret[b][a] = (fp[b] - fm[b]) / (2 * delta)
		}
	}
	return ret, nil
}
