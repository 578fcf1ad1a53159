/*
 * plot_test.go, part of gocte.
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

package cteplot

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rmera/gocte/phonon"
	"github.com/rmera/gocte/qha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nonEmpty(Te *testing.T, name string) {
	Te.Helper()
	st, err := os.Stat(name)
	require.NoError(Te, err, name)
	assert.Greater(Te, st.Size(), int64(0), name)
}

func TestPhononPlots(Te *testing.T) {
	dir := Te.TempDir()
	tp := &phonon.ThermalProperties{
		Temperatures: []float64{0, 100, 200, 300},
		FreeEnergy:   []float64{1, 0.5, -0.5, -2},
		Entropy:      []float64{0, 10, 20, 25},
		HeatCapacity: []float64{0, 15, 22, 24},
	}
	name := filepath.Join(dir, "thermal_properties_e0.svg")
	require.NoError(Te, ThermalProperties(tp, "e0", name))
	nonEmpty(Te, name)

	d := &phonon.DOS{Frequencies: []float64{0, 1, 2, 3}, Values: []float64{0, 1, 2, 0}}
	name = filepath.Join(dir, "band_dos_e0.svg")
	require.NoError(Te, DOS(d, "e0", name))
	nonEmpty(Te, name)

	b := &phonon.Bands{
		Path:        phonon.DefaultPath(),
		Distances:   []float64{0, 0.5, 1, 1, 1.5, 2},
		Frequencies: [][]float64{{0, 1}, {1, 2}, {2, 3}, {2, 3}, {1, 2}, {0, 1}},
		SegmentLen:  3,
	}
	name = filepath.Join(dir, "band_structure_e0.svg")
	require.NoError(Te, Bands(b, "e0", name))
	nonEmpty(Te, name)
	assert.Error(Te, Bands(&phonon.Bands{}, "", name))
	assert.Error(Te, DOS(&phonon.DOS{Frequencies: []float64{1}}, "", name))
}

func TestQHAPlots(Te *testing.T) {
	in := qha.Input{EOS: "vinet", TMax: 100}
	p := [4]float64{-10, 0.5, 4.5, 40}
	for i := 0; i < 5; i++ {
		v := 37 + 1.5*float64(i)
		in.Volumes = append(in.Volumes, v)
		in.Energies = append(in.Energies, qha.Vinet(v, p))
	}
	for t := 0.0; t <= 150; t += 10 {
		in.Temperatures = append(in.Temperatures, t)
		var fe, cv, s []float64
		for _, v := range in.Volumes {
			fe = append(fe, -1e-3*t*(v-40))
			cv = append(cv, 90)
			s = append(s, v-40)
		}
		in.FreeEnergy = append(in.FreeEnergy, fe)
		in.Cv = append(in.Cv, cv)
		in.Entropy = append(in.Entropy, s)
	}
	Q, err := qha.New(in, nil)
	require.NoError(Te, err)
	dir := Te.TempDir()
	require.NoError(Te, QHA(Q, dir, 10))
	for _, f := range []string{"volume-temperature.svg", "thermal_expansion.svg", "helmholtz-volume.svg", "Cp-temperature.svg"} {
		nonEmpty(Te, filepath.Join(dir, f))
	}
	fmt.Println("plots in", dir)
}

func TestColors(Te *testing.T) {
	r, g, b := iHVS2RGB(0, 1, 0)
	assert.Equal(Te, [3]uint8{255, 255, 255}, [3]uint8{r, g, b})
	r, g, b = iHVS2RGB(0, 1, 1)
	assert.Equal(Te, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})
	seen := map[[3]uint8]bool{}
	for i := 0; i < 5; i++ {
		r, g, b := colors(i, 5)
		seen[[3]uint8{r, g, b}] = true
	}
	assert.Len(Te, seen, 5)
	assert.Equal(Te, "Γ", plainLabel("$\\Gamma$"))
}
