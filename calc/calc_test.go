/*
 * calc_test.go, part of gocte.
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
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	cte "github.com/rmera/gocte"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fccAr returns the conventional 4-atom fcc cell of argon.
func fccAr(Te *testing.T, a float64) *cte.Structure {
	cell := [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}}
	pos := [][3]float64{{0, 0, 0}, {0, a / 2, a / 2}, {a / 2, 0, a / 2}, {a / 2, a / 2, 0}}
	s, err := cte.NewStructure([]string{"Ar", "Ar", "Ar", "Ar"}, cell, pos)
	require.NoError(Te, err)
	return s
}

func TestRegistry(Te *testing.T) {
	_, err := New(Options{Tag: "nosuchthing"})
	require.Error(Te, err)
	assert.True(Te, errors.Is(err, cte.ErrConfig))
	for _, tag := range []string{"7net", "SevenNet", "PET", "esen", "lj"} {
		assert.True(Te, Known(tag), tag)
	}
	c, err := New(Options{Tag: "LJ"})
	require.NoError(Te, err)
	_, ok := c.(*LJ)
	assert.True(Te, ok)
	_, err = New(Options{Tag: "exec"})
	assert.True(Te, errors.Is(err, cte.ErrConfig))
	c, err = New(Options{Tag: "lj", D3: true})
	require.NoError(Te, err)
	_, ok = c.(*Sum)
	assert.True(Te, ok)
}

func TestLJForcesAreGradient(Te *testing.T) {
	s := fccAr(Te, 5.3)
	s.Positions[1][0] += 0.03
	s.Positions[2][2] -= 0.02
	lj := NewLJ(LJParams{})
	f, err := lj.Forces(s)
	require.NoError(Te, err)
	h := 1e-5
	for i := 0; i < s.Len(); i++ {
		for k := 0; k < 3; k++ {
			p := s.Copy()
			p.Positions[i][k] += h
			m := s.Copy()
			m.Positions[i][k] -= h
			ep, err := lj.PotentialEnergy(p, false)
			require.NoError(Te, err)
			em, err := lj.PotentialEnergy(m, false)
			require.NoError(Te, err)
			assert.InDelta(Te, -(ep-em)/(2*h), f[i][k], 1e-6, "atom %d comp %d", i, k)
		}
	}
}

func TestLJStressIsStrainDerivative(Te *testing.T) {
	s := fccAr(Te, 5.2)
	lj := NewLJ(LJParams{})
	st, err := lj.Stress(s)
	require.NoError(Te, err)
	h := 1e-5
	e := func(eps float64) float64 {
		p := s.Copy()
		require.NoError(Te, p.Strain(eps))
		v, err := lj.PotentialEnergy(p, true)
		require.NoError(Te, err)
		return v
	}
	//isotropic strain: dE/deps = V (sxx+syy+szz)
	dE := (e(h) - e(-h)) / (2 * h)
	assert.InDelta(Te, dE/s.Volume(), st[0]+st[1]+st[2], 1e-6)
	assert.InDelta(Te, st[0], st[1], 1e-10)
	assert.InDelta(Te, 0, st[3], 1e-10)
	//compressed argon pushes outwards
	assert.Less(Te, st[0], 0.0)
}

func TestVoigt(Te *testing.T) {
	full := []float64{1, 6, 5, 6, 2, 4, 5, 4, 3}
	v, err := ToVoigt(full)
	require.NoError(Te, err)
	assert.Equal(Te, [6]float64{1, 2, 3, 4, 5, 6}, v)
	assert.Equal(Te, [3][3]float64{{1, 6, 5}, {6, 2, 4}, {5, 4, 3}}, FromVoigt(v))
	_, err = ToVoigt([]float64{1, 2})
	assert.True(Te, errors.Is(err, cte.ErrShape))
}

func TestExternalHandle(Te *testing.T) {
	if runtime.GOOS == "windows" {
		Te.Skip("needs a POSIX shell")
	}
	dir := Te.TempDir()
	script := filepath.Join(dir, "worker.sh")
	body := "#!/bin/sh\necho '{\"energy\": -1.5, \"forces\": [[0,0,0.1],[0,0,-0.1]], \"stress\": [0.1,0.2,0.3,0,0,0]}' > \"$2\"\n"
	require.NoError(Te, os.WriteFile(script, []byte(body), 0o755))
	s, err := cte.NewStructure([]string{"Si", "Si"}, [3][3]float64{{5, 0, 0}, {0, 5, 0}, {0, 0, 5}}, [][3]float64{{0, 0, 0}, {1.3, 1.3, 1.3}})
	require.NoError(Te, err)
	h := NewExternalHandle(script)
	h.SetWorkDir(dir)
	_, err = h.PotentialEnergy(s, true)
	assert.True(Te, errors.Is(err, cte.ErrPropertyNotImplemented))
	e, err := h.PotentialEnergy(s, false)
	require.NoError(Te, err)
	assert.Equal(Te, -1.5, e)
	f, err := h.Forces(s)
	require.NoError(Te, err)
	assert.Equal(Te, 0.1, f[0][2])
	st, err := h.Stress(s)
	require.NoError(Te, err)
	assert.Equal(Te, 0.3, st[2])
	assert.Equal(Te, 1, h.Runs())
	s.Positions[1][0] += 0.1
	_, err = h.Forces(s)
	require.NoError(Te, err)
	assert.Equal(Te, 2, h.Runs())
	require.NoError(Te, h.Release())
	_, err = os.Stat(filepath.Join(dir, "gocte.json"))
	assert.True(Te, os.IsNotExist(err))
}

func TestCounterAndSum(Te *testing.T) {
	s := fccAr(Te, 5.3)
	lj := NewLJ(LJParams{})
	c := NewCounter(NewSum(lj, lj))
	e1, err := lj.PotentialEnergy(s, false)
	require.NoError(Te, err)
	e2, err := c.PotentialEnergy(s, false)
	require.NoError(Te, err)
	assert.InDelta(Te, 2*e1, e2, 1e-12)
	_, err = c.Forces(s)
	require.NoError(Te, err)
	_, err = c.Stress(s)
	require.NoError(Te, err)
	assert.Equal(Te, 3, c.Calls())
	assert.NoError(Te, c.Release())
}
