/*
 * phonon_test.go, part of gocte.
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
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/calc"
	"github.com/rmera/gocte/symmetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fccAr(Te *testing.T, a float64) *cte.Structure {
	cell := [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}}
	pos := [][3]float64{{0, 0, 0}, {0, a / 2, a / 2}, {a / 2, 0, a / 2}, {a / 2, a / 2, 0}}
	s, err := cte.NewStructure([]string{"Ar", "Ar", "Ar", "Ar"}, cell, pos)
	require.NoError(Te, err)
	return s
}

// ljPhonon returns the phonons of fcc argon with the Lennard-Jones potential
// on a 2x2x2 supercell, force constants included.
func ljPhonon(Te *testing.T) *Phonon {
	unit := fccAr(Te, 5.26)
	ds, err := symmetry.Search{}.Find(unit, symmetry.DefaultSymprec)
	require.NoError(Te, err)
	P, err := New(unit, [3]int{2, 2, 2}, ds, symmetry.DefaultSymprec)
	require.NoError(Te, err)
	P.GenerateDisplacements(0.01)
	lj := calc.NewLJ(calc.LJParams{})
	var forces [][][3]float64
	for _, s := range P.Supercells() {
		if s == nil {
			forces = append(forces, make([][3]float64, P.Super.Len()))
			continue
		}
		f, err := lj.Forces(s)
		require.NoError(Te, err)
		forces = append(forces, f)
	}
	require.NoError(Te, P.ProduceFC(forces))
	P.SymmetrizeFC(20)
	return P
}

func TestSupercell(Te *testing.T) {
	unit := fccAr(Te, 5.0)
	sc, err := Supercell(unit, [3]int{2, 1, 3})
	require.NoError(Te, err)
	assert.Equal(Te, 24, sc.Len())
	assert.InDelta(Te, 6*unit.Volume(), sc.Volume(), 1e-9)
	//atom 1 of the unit cell, translation (1,0,2): cell index (1*1+0)*3+2
	c := 5
	want := [3]float64{5, 2.5, 2.5 + 10}
	for k := 0; k < 3; k++ {
		assert.InDelta(Te, want[k], sc.Positions[1*6+c][k], 1e-12)
	}
	_, err = Supercell(unit, [3]int{0, 1, 1})
	assert.True(Te, errors.Is(err, cte.ErrConfig))
}

func TestDisplacements(Te *testing.T) {
	unit := fccAr(Te, 5.26)
	ds, err := symmetry.Search{}.Find(unit, symmetry.DefaultSymprec)
	require.NoError(Te, err)
	P, err := New(unit, [3]int{2, 2, 2}, ds, 0)
	require.NoError(Te, err)
	d := P.GenerateDisplacements(0.02)
	//the four atoms form one orbit, and the images of x span space on an fcc site
	require.Len(Te, d, 2)
	for _, v := range d {
		assert.InDelta(Te, 0.02, cte.Norm(v.Vector), 1e-12)
		assert.Equal(Te, 0, v.Atom)
	}
	assert.False(Te, d[0].Null)
	//every fcc site has inversion symmetry
	assert.True(Te, d[1].Null)
	cells := P.Supercells()
	for i, c := range cells {
		assert.Equal(Te, d[i].Null, c == nil)
	}
	moved := cells[0]
	assert.InDelta(Te, 0.02, moved.Positions[0][0]-P.Super.Positions[0][0], 1e-12)
	//without symmetry nothing is null
	P, err = New(unit, [3]int{1, 1, 1}, nil, 0)
	require.NoError(Te, err)
	d = P.GenerateDisplacements(0)
	require.Len(Te, d, 4*6)
	for i, v := range d {
		assert.False(Te, v.Null)
		assert.Equal(Te, i/6, v.Atom)
	}
}

// ljFC fits the force constants of P to Lennard-Jones forces, without
// symmetrizing them.
func ljFC(Te *testing.T, P *Phonon) {
	lj := calc.NewLJ(calc.LJParams{})
	var forces [][][3]float64
	for _, s := range P.Supercells() {
		if s == nil {
			forces = append(forces, make([][3]float64, P.Super.Len()))
			continue
		}
		f, err := lj.Forces(s)
		require.NoError(Te, err)
		forces = append(forces, f)
	}
	require.NoError(Te, P.ProduceFC(forces))
}

// The force constants of the atoms without displacements, rebuilt from their
// orbit, match those fitted to a full set of displacements.
func TestOrbitForceConstants(Te *testing.T) {
	unit := fccAr(Te, 5.26)
	ds, err := symmetry.Search{}.Find(unit, symmetry.DefaultSymprec)
	require.NoError(Te, err)
	P, err := New(unit, [3]int{2, 2, 2}, ds, 0)
	require.NoError(Te, err)
	P.GenerateDisplacements(0.01)
	ljFC(Te, P)
	Q, err := New(unit, [3]int{2, 2, 2}, nil, 0)
	require.NoError(Te, err)
	require.Len(Te, Q.GenerateDisplacements(0.01), 4*6)
	ljFC(Te, Q)
	var largest float64
	for p := range Q.FC {
		require.Len(Te, P.FC[p], len(Q.FC[p]))
		for j := range Q.FC[p] {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					largest = math.Max(largest, math.Abs(Q.FC[p][j][a][b]))
					assert.InDelta(Te, Q.FC[p][j][a][b], P.FC[p][j][a][b], 1e-8, "atoms %d %d", p, j)
				}
			}
		}
	}
	assert.Greater(Te, largest, 1e-3)
	//a set read from a file with no displacement for an orbit can't be used
	P.SetDisplacements(P.Displacements()[1:])
	err = P.ProduceFC(make([][][3]float64, 1))
	assert.True(Te, errors.Is(err, cte.ErrShape), "%v", err)
}

func TestForceConstants(Te *testing.T) {
	P := ljPhonon(Te)
	//acoustic sum rule
	for p := range P.FC {
		var sum [3][3]float64
		for _, m := range P.FC[p] {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					sum[a][b] += m[a][b]
				}
			}
		}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				assert.InDelta(Te, 0, sum[a][b], 1e-9)
			}
		}
	}
	//permutation symmetry
	n := P.Super.Len()
	for j := 0; j < n; j += 5 {
		a := P.fcAt(0, j)
		b := P.fcAt(j, 0)
		for x := 0; x < 3; x++ {
			for y := 0; y < 3; y++ {
				assert.InDelta(Te, a[x][y], b[y][x], 1e-6)
			}
		}
	}
	freqs, vecs, err := P.Frequencies([3]float64{})
	require.NoError(Te, err)
	fmt.Println("Gamma frequencies:", freqs)
	require.Len(Te, freqs, 12)
	for i := 0; i < 3; i++ {
		assert.InDelta(Te, 0, freqs[i], 1e-2)
	}
	for _, f := range freqs[3:] {
		assert.Greater(Te, f, 0.1)
	}
	//eigenvectors are orthonormal
	for a := 0; a < 12; a++ {
		for b := a; b < 12; b++ {
			var dot complex128
			for i := 0; i < 12; i++ {
				dot += complex(real(vecs[i][a]), -imag(vecs[i][a])) * vecs[i][b]
			}
			want := 0.0
			if a == b {
				want = 1
			}
			assert.InDelta(Te, want, real(dot), 1e-8)
			assert.InDelta(Te, 0, imag(dot), 1e-8)
		}
	}
}

func TestFCFile(Te *testing.T) {
	P := ljPhonon(Te)
	name := filepath.Join(Te.TempDir(), "FORCE_CONSTANTS")
	require.NoError(Te, P.WriteFC(name))
	Q, err := New(P.Unit, P.Dim, nil, 0)
	require.NoError(Te, err)
	require.NoError(Te, Q.ReadFC(name))
	require.Len(Te, Q.FC, len(P.FC))
	for p := range P.FC {
		for j := range P.FC[p] {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					assert.InDelta(Te, P.FC[p][j][a][b], Q.FC[p][j][a][b], 1e-12)
				}
			}
		}
	}
	_, err = os.Stat(name)
	require.NoError(Te, err)
	R, err := New(fccAr(Te, 5.26), [3]int{1, 1, 1}, nil, 0)
	require.NoError(Te, err)
	assert.Error(Te, R.ReadFC(name))
	assert.Error(Te, R.ReadFC(filepath.Join(Te.TempDir(), "nothere")))
}

func TestMeshAndThermal(Te *testing.T) {
	P := ljPhonon(Te)
	mesh := [3]int{4, 4, 4}
	M, err := P.RunMesh(mesh, MeshOptions{Eigenvectors: true, GroupVelocities: true})
	require.NoError(Te, err)
	total := 0
	for _, w := range M.Weights {
		total += w
	}
	assert.Equal(Te, 64, total)
	assert.Less(Te, len(M.QPoints), 64)
	assert.Len(Te, M.GroupVelocities, len(M.QPoints))
	assert.Len(Te, M.Eigenvectors, len(M.QPoints))
	assert.False(Te, HasImaginaryModes(M.Frequencies))
	frac, err := ImaginaryFraction(M.Frequencies, M.Weights)
	require.NoError(Te, err)
	assert.Equal(Te, 0.0, frac)

	full, err := P.RunMesh(mesh, MeshOptions{NoSymmetry: true})
	require.NoError(Te, err)
	assert.Len(Te, full.QPoints, 64)

	temps := Temperatures(0, 2000, 100)
	require.Len(Te, temps, 21)
	T, err := M.Thermal(temps, P.Unit.Len())
	require.NoError(Te, err)
	Tf, err := full.Thermal(temps, P.Unit.Len())
	require.NoError(Te, err)
	for k := range temps {
		assert.InDelta(Te, Tf.FreeEnergy[k], T.FreeEnergy[k], 1e-8)
		assert.InDelta(Te, Tf.HeatCapacity[k], T.HeatCapacity[k], 1e-8)
	}
	//zero point energy at 0 K, Dulong-Petit at high temperature
	assert.InDelta(Te, T.ZeroPoint, T.FreeEnergy[0], 1e-12)
	assert.Equal(Te, 0.0, T.Entropy[0])
	assert.InDelta(Te, 12*Kb*EvToJmolK, T.HeatCapacity[20], 0.1)
	//F = E - TS
	for k, t := range temps {
		assert.InDelta(Te, T.Energy[k]-t*T.Entropy[k]/1000, T.FreeEnergy[k], 1e-8)
	}

	name := filepath.Join(Te.TempDir(), "thermal_properties.yaml")
	require.NoError(Te, T.WriteYAML(name))
	back, err := ReadThermalYAML(name)
	require.NoError(Te, err)
	assert.Equal(Te, T.Temperatures, back.Temperatures)
	for k := range temps {
		assert.InDelta(Te, T.FreeEnergy[k], back.FreeEnergy[k], 1e-9)
		assert.InDelta(Te, T.HeatCapacity[k], back.HeatCapacity[k], 1e-9)
	}
	assert.Equal(Te, 4, back.Natom)

	dos, err := M.TotalDOS(0, 400)
	require.NoError(Te, err)
	var integral float64
	for k := 1; k < len(dos.Values); k++ {
		integral += 0.5 * (dos.Values[k] + dos.Values[k-1]) * (dos.Frequencies[k] - dos.Frequencies[k-1])
	}
	assert.InDelta(Te, 12, integral, 0.05)
	require.NoError(Te, dos.Write(filepath.Join(Te.TempDir(), "total_dos.dat")))

	bands, err := P.RunBands(DefaultPath(), 11)
	require.NoError(Te, err)
	assert.Len(Te, bands.QPoints, 44)
	for i := 1; i < len(bands.Distances); i++ {
		assert.GreaterOrEqual(Te, bands.Distances[i], bands.Distances[i-1])
	}
	bname := filepath.Join(Te.TempDir(), "band.yaml")
	require.NoError(Te, bands.WriteYAML(bname, 4))
	data, err := os.ReadFile(bname)
	require.NoError(Te, err)
	assert.Contains(Te, string(data), "nqpoint: 44")
}

func TestIrreducibleGrid(Te *testing.T) {
	qs, ws := IrreducibleGrid([3]int{9, 9, 9}, nil)
	//time reversal pairs every point but Gamma
	assert.Len(Te, qs, 365)
	assert.Equal(Te, [3]float64{}, qs[0])
	assert.Equal(Te, 1, ws[0])
	unit := fccAr(Te, 5)
	ds, err := symmetry.Search{}.Find(unit, symmetry.DefaultSymprec)
	require.NoError(Te, err)
	qs, ws = IrreducibleGrid([3]int{9, 9, 9}, ds.PointGroup())
	total := 0
	for _, w := range ws {
		total += w
	}
	assert.Equal(Te, 729, total)
	//for m-3m, a 9x9x9 grid has 35 irreducible points
	assert.Len(Te, qs, 35)
	assert.Equal(Te, -1, gridIndex([3]float64{0.1, 0, 0}, [3]int{9, 9, 9}))
}

func TestHermitianEigen(Te *testing.T) {
	h := [][]complex128{{2, 1i}, {-1i, 2}}
	vals, vecs, err := hermitianEigen(h)
	require.NoError(Te, err)
	assert.InDelta(Te, 1, vals[0], 1e-12)
	assert.InDelta(Te, 3, vals[1], 1e-12)
	//h v = l v for the first eigenvector
	for i := 0; i < 2; i++ {
		hv := h[i][0]*vecs[0][0] + h[i][1]*vecs[1][0]
		assert.InDelta(Te, 0, real(hv-complex(vals[0], 0)*vecs[i][0]), 1e-10)
		assert.InDelta(Te, 0, imag(hv-complex(vals[0], 0)*vecs[i][0]), 1e-10)
	}
	assert.InDelta(Te, -2.0, toFrequency(-4/(THz*THz)), 1e-12)
	assert.Equal(Te, 0.0, toFrequency(0))
	assert.False(Te, math.IsNaN(toFrequency(-1e-20)))
}

func TestHasImaginaryModes(Te *testing.T) {
	cases := []struct {
		f    [][]float64
		want bool
	}{
		{[][]float64{{-0.001, -0.001, -0.001, 1, 2, 3}}, false},
		{[][]float64{{-0.02, 0, 0, 1, 2, 3}}, true},
		{[][]float64{{0, 0, 0, -0.001, 2, 3}}, true},
		{[][]float64{{0, 0, 0, 1, 2, 3}, {1, 1, 1, 1, 1, -1e-6}}, true},
		{[][]float64{{0, 0, 0, 1, 2, 3}, {1, 1, 1, 1, 1, 1}}, false},
		{[][]float64{{math.NaN(), math.NaN()}, {math.NaN(), math.NaN()}}, true},
		{nil, true},
		{[][]float64{{}}, true},
	}
	for i, c := range cases {
		assert.Equal(Te, c.want, HasImaginaryModes(c.f), "case %d", i)
	}
}

func TestImaginaryFraction(Te *testing.T) {
	f := [][]float64{{-0.001, -0.001, -0.001, 1.0, 2.0, 3.0}}
	frac, err := ImaginaryFraction(f, []int{1})
	require.NoError(Te, err)
	assert.Equal(Te, 0.0, frac)
	frac, err = ImaginaryFraction([][]float64{{-0.5, 0, 0, 1, 2, 3}}, nil)
	require.NoError(Te, err)
	assert.InDelta(Te, 1.0/6, frac, 1e-12)

	f = [][]float64{{0, 1, 2}, {-1, 1, 2}, {-1, -1, -1}}
	w := []int{1, 2, 3}
	frac, err = ImaginaryFraction(f, w)
	require.NoError(Te, err)
	assert.InDelta(Te, (2.0+9.0)/18.0, frac, 1e-12)
	frac2, err := ImaginaryFraction(f, []int{7, 14, 21})
	require.NoError(Te, err)
	assert.InDelta(Te, frac, frac2, 1e-12)

	none, err := ImaginaryFraction([][]float64{{1, 2}, {3, 4}}, nil)
	require.NoError(Te, err)
	assert.Equal(Te, 0.0, none)
	all, err := ImaginaryFraction([][]float64{{-1, -2}, {-3, -4}}, []int{1, 5})
	require.NoError(Te, err)
	assert.Equal(Te, 1.0, all)

	_, err = ImaginaryFraction([][]float64{{1, 2}, {3}}, nil)
	assert.True(Te, errors.Is(err, cte.ErrConfig))
	_, err = ImaginaryFraction([][]float64{{1, 2}, {3, 4}}, []int{1})
	assert.True(Te, errors.Is(err, cte.ErrConfig))
	_, err = ImaginaryFraction([][]float64{{1, 2}}, []int{0})
	assert.True(Te, errors.Is(err, cte.ErrConfig))
}

func TestQHAEligible(Te *testing.T) {
	assert.False(Te, QHAEligible(0.22))
	assert.True(Te, QHAEligible(0.2199999))
	assert.True(Te, QHAEligible(0))
	assert.False(Te, QHAEligible(1))
}
