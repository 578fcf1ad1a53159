/*
 * relax_test.go, part of gocte.
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

package relax

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/calc"
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

// noFree is a calculator that can't give force-consistent energies.
type noFree struct {
	calc.Calculator
}

func (N noFree) PotentialEnergy(s *cte.Structure, forceConsistent bool) (float64, error) {
	if forceConsistent {
		return 0, errors.New("not available")
	}
	return N.Calculator.PotentialEnergy(s, false)
}

func TestConverged(Te *testing.T) {
	f := [][3]float64{{0, 0, 1e-3}, {0, -2e-5, 0}}
	assert.False(Te, Converged(f, 1e-4, Magnitude))
	assert.True(Te, Converged(f, 1e-2, Magnitude))
	assert.True(Te, Converged(f, 1e-4, Legacy))
	assert.True(Te, Converged([][3]float64{{-5, -5, -5}}, 1e-4, Legacy))
	assert.False(Te, Converged([][3]float64{{math.NaN(), 0, 0}}, 1, ""))
}

func TestConfigValidate(Te *testing.T) {
	c := DefaultConfig()
	require.NoError(Te, c.Validate())
	bad := []func(*Config){
		func(c *Config) { c.Optimizer = "sd" },
		func(c *Config) { c.CellFilter = "exp" },
		func(c *Config) { c.Fmax = 0 },
		func(c *Config) { c.Steps = -1 },
		func(c *Config) { c.Mask = []float64{1, 1, 1} },
		func(c *Config) { c.ForceCheck = "strict" },
	}
	for i, b := range bad {
		c := DefaultConfig()
		b(&c)
		err := c.Validate()
		assert.True(Te, errors.Is(err, cte.ErrConfig), "case %d", i)
	}
}

func TestEvaluateFallback(Te *testing.T) {
	lj := calc.NewLJ(calc.LJParams{})
	R, err := New(noFree{lj}, DefaultConfig())
	require.NoError(Te, err)
	s := fccAr(Te, 5.3)
	s.Info.ID = cte.Ptr("ID-0")
	e, err := R.Evaluate(s)
	require.NoError(Te, err)
	require.NotNil(Te, e.Info.EFrEnergy)
	assert.Equal(Te, *e.Info.E0Energy, *e.Info.EFrEnergy)
	want, err := lj.PotentialEnergy(s, false)
	require.NoError(Te, err)
	assert.InDelta(Te, want, *e.Info.EFrEnergy, 1e-12)
	assert.Equal(Te, "ID-0", *e.Info.ID)
	require.NotNil(Te, e.Info.OneShot)
	assert.GreaterOrEqual(Te, e.Info.OneShot.End.Wall, e.Info.OneShot.Start.Wall)
	assert.Len(Te, e.Info.Force, 4)
	assert.True(Te, *e.Info.ForceConv)
	//the input is not touched
	assert.Nil(Te, s.Info.EFrEnergy)
}

func relaxFcc(Te *testing.T, cfg Config) (*cte.Structure, *cte.Structure) {
	lj := calc.NewLJ(calc.LJParams{})
	R, err := New(lj, cfg)
	require.NoError(Te, err)
	s := fccAr(Te, 5.1)
	r, err := R.Relax(s)
	require.NoError(Te, err)
	return s, r
}

func TestRelaxCell(Te *testing.T) {
	for _, name := range []string{"fire", "fire2"} {
		for _, filter := range []string{"frechet", "unitcell"} {
			cfg := DefaultConfig()
			cfg.Optimizer = name
			cfg.CellFilter = filter
			cfg.Fmax = 1e-4
			cfg.Steps = 3000
			cfg.LogFile = filepath.Join(Te.TempDir(), "relax.log")
			s, r := relaxFcc(Te, cfg)
			fmt.Println(name, filter, "steps:", *r.Info.Steps, "volume:", s.Volume(), "->", r.Volume())
			assert.Less(Te, *r.Info.Steps, cfg.Steps)
			assert.True(Te, *r.Info.ForceConv)
			assert.Greater(Te, r.Volume(), s.Volume())
			st, err := calc.NewLJ(calc.LJParams{}).Stress(r)
			require.NoError(Te, err)
			for _, v := range st {
				assert.InDelta(Te, 0, v, 1e-5)
			}
			//still cubic
			la := r.Cell.LengthsAngles()
			assert.InDelta(Te, la[0], la[2], 1e-6)
			assert.InDelta(Te, 90, la[3], 1e-6)
			require.NotNil(Te, r.Info.Relax)
			data, err := os.ReadFile(cfg.LogFile)
			require.NoError(Te, err)
			assert.Contains(Te, string(data), "FIRE")
		}
	}
}

func TestRelaxConstantVolume(Te *testing.T) {
	cfg := DefaultConfig()
	cfg.CellFilter = "unitcell"
	cfg.ConstVolume = true
	cfg.Fmax = 1e-4
	cfg.Steps = 500
	s, r := relaxFcc(Te, cfg)
	assert.InDelta(Te, s.Volume(), r.Volume(), 1e-6*s.Volume())
	assert.True(Te, *r.Info.ForceConv)
}

func TestRelaxBudget(Te *testing.T) {
	cfg := DefaultConfig()
	cfg.Fmax = 1e-10
	cfg.Steps = 3
	_, r := relaxFcc(Te, cfg)
	assert.Equal(Te, 3, *r.Info.Steps)
}

func TestRelaxPositionsLBFGS(Te *testing.T) {
	lj := calc.NewLJ(calc.LJParams{})
	cfg := DefaultConfig()
	cfg.Optimizer = "lbfgs"
	cfg.CellFilter = "none"
	cfg.FixSymm = false
	cfg.Fmax = 1e-4
	cfg.Steps = 500
	R, err := New(lj, cfg)
	require.NoError(Te, err)
	s := fccAr(Te, 5.3)
	s.Positions[0][0] += 0.05
	s.Positions[3][1] -= 0.04
	r, err := R.Relax(s)
	require.NoError(Te, err)
	f, err := lj.Forces(r)
	require.NoError(Te, err)
	assert.Less(Te, maxRowNorm(f), 1e-4)
	assert.True(Te, *r.Info.ForceConv)
	assert.Equal(Te, s.Cell, r.Cell)
}

func TestLogm(Te *testing.T) {
	a := [3][3]float64{{1.05, 0.02, 0}, {0.01, 0.97, 0.03}, {0, -0.02, 1.3}}
	back := expm3(logm3(a))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(Te, a[i][j], back[i][j], 1e-10)
		}
	}
}
