/*
 * qha_test.go, part of gocte.
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

package qha

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	cte "github.com/rmera/gocte"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitEOS(Te *testing.T) {
	want := [4]float64{-10, 0.5, 4.5, 40}
	var vols []float64
	for v := 36.0; v <= 44.01; v += 1 {
		vols = append(vols, v)
	}
	for _, name := range []string{"vinet", "birch_murnaghan", "birch"} {
		eos, err := EOSByName(name)
		require.NoError(Te, err)
		var es []float64
		for _, v := range vols {
			es = append(es, eos(v, want))
		}
		p, rms, err := FitEOS(eos, vols, es)
		require.NoError(Te, err)
		fmt.Println(name, p, rms)
		assert.InDelta(Te, want[0], p[0], 1e-6)
		assert.InEpsilon(Te, want[1], p[1], 1e-3)
		assert.InDelta(Te, want[2], p[2], 0.05)
		assert.InEpsilon(Te, want[3], p[3], 1e-5)
		assert.Less(Te, rms, 1e-6)
	}
	_, err := EOSByName("murnaghan")
	assert.True(Te, errors.Is(err, cte.ErrConfig))
	_, _, err = FitEOS(Vinet, vols[:3], []float64{1, 2, 3})
	assert.Error(Te, err)
}

func TestPolyfit(Te *testing.T) {
	x := []float64{38, 39, 40, 41, 42, 43}
	c0 := []float64{3, -0.5, 0.25, 0.01}
	var y []float64
	for _, v := range x {
		y = append(y, Polyval(c0, v))
	}
	c, err := Polyfit(x, y, 3)
	require.NoError(Te, err)
	for _, v := range []float64{38.5, 40.2, 42.9} {
		assert.InEpsilon(Te, Polyval(c0, v), Polyval(c, v), 1e-8)
		assert.InEpsilon(Te, Polyval(Polyder(c0), v), Polyval(Polyder(c), v), 1e-6)
	}
	_, err = Polyfit(x[:2], y[:2], 2)
	assert.Error(Te, err)
}

// synthetic returns a quasi-harmonic input where the vibrational free energy
// lowers linearly with volume and temperature, so the crystal expands.
func synthetic(nvol int) Input {
	p := [4]float64{-10, 0.5, 4.5, 40}
	const c = 6e-4 //kJ/mol/K/A^3
	in := Input{EOS: "birch_murnaghan", TMax: 900}
	for i := 0; i < nvol; i++ {
		v := 36 + 8*float64(i)/float64(nvol-1)
		in.Volumes = append(in.Volumes, v)
		in.Energies = append(in.Energies, BirchMurnaghan(v, p))
	}
	for t := 0.0; t <= 1000; t += 10 {
		in.Temperatures = append(in.Temperatures, t)
		var fe, cv, s []float64
		for _, v := range in.Volumes {
			fe = append(fe, -c*t*(v-40))
			cv = append(cv, 99.77)
			s = append(s, c*1000*(v-40))
		}
		in.FreeEnergy = append(in.FreeEnergy, fe)
		in.Cv = append(in.Cv, cv)
		in.Entropy = append(in.Entropy, s)
	}
	return in
}

func TestQHA(Te *testing.T) {
	_, err := New(synthetic(4), nil)
	assert.True(Te, errors.Is(err, ErrTooFewPoints))
	bad := synthetic(5)
	bad.EOS = "murnaghan"
	_, err = New(bad, nil)
	assert.True(Te, errors.Is(err, cte.ErrConfig))
	bad = synthetic(5)
	bad.Cv = bad.Cv[1:]
	_, err = New(bad, nil)
	assert.True(Te, errors.Is(err, cte.ErrShape))

	var log bytes.Buffer
	Q, err := New(synthetic(5), &log)
	require.NoError(Te, err)
	assert.Contains(Te, log.String(), "birch_murnaghan")
	assert.Equal(Te, 90, Q.MaxT)
	temps := Q.Temperatures()
	assert.Equal(Te, 890.0, temps[len(temps)-1])
	assert.InEpsilon(Te, 40, Q.Volumes[0], 1e-5)
	assert.InEpsilon(Te, 0.5*EvToGPa, Q.BulkModulus[0], 1e-3)
	for i := 1; i < len(Q.Volumes); i++ {
		assert.Greater(Te, Q.Volumes[i], Q.Volumes[i-1])
	}
	//small-expansion estimate: dV/dT = c / E''(V0), E'' = B0/V0
	want := 6e-4 / EvTokJmol / (0.5 / 40) / 40
	assert.InEpsilon(Te, want, Q.Expansion[5], 0.05)
	assert.Equal(Te, 0.0, Q.Expansion[0])
	assert.Greater(Te, Q.Gruneisen[30], 0.0)

	cp, err := Q.HeatCapacityNumerical()
	require.NoError(Te, err)
	assert.Len(Te, cp, Q.MaxT)
	assert.Greater(Te, cp[30], 0.0)
	cpp, err := Q.HeatCapacityPolyfit()
	require.NoError(Te, err)
	//Cv plus a positive correction
	assert.Greater(Te, cpp[30], 99.77)

	dir := Te.TempDir()
	writers := map[string]func(string) error{
		HelmholtzVolumeFile:   Q.WriteHelmholtzVolume,
		VolumeTemperatureFile: Q.WriteVolumeTemperature,
		ThermalExpansionFile:  Q.WriteThermalExpansion,
		GibbsTemperatureFile:  Q.WriteGibbsTemperature,
		BulkModulusFile:       Q.WriteBulkModulus,
		CpNumericalFile:       Q.WriteHeatCapacityNumerical,
		CpPolyfitFile:         Q.WriteHeatCapacityPolyfit,
		GruneisenFile:         Q.WriteGruneisen,
		HelmholtzVolumeFittedFile: func(n string) error {
			return Q.WriteHelmholtzVolumeFitted(n, 10)
		},
	}
	for name, w := range writers {
		require.NoError(Te, w(filepath.Join(dir, name)), name)
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(Te, err)
	}
	table, err := ReadTable(filepath.Join(dir, ThermalExpansionFile))
	require.NoError(Te, err)
	assert.Len(Te, table, 90)
	got := LookupCTE(table, append(ReferenceTemperatures, 1200))
	for _, t := range []string{"10", "300", "500", "800"} {
		require.Len(Te, got[t], 1, t)
	}
	assert.InDelta(Te, Q.Expansion[30], got["300"][0], 1e-14)
	assert.NotNil(Te, got["1200"])
	assert.Empty(Te, got["1200"])
}

func TestLookupCTE(Te *testing.T) {
	table := [][2]float64{{0, 0}, {10, 1e-6}, {300.5, 2e-5}, {500, 3e-5}}
	got := LookupCTE(table, ReferenceTemperatures)
	assert.Equal(Te, []float64{1e-6}, got["10"])
	assert.Equal(Te, []float64{}, got["300"])
	assert.Equal(Te, []float64{3e-5}, got["500"])
	assert.Len(Te, got, 4)
	assert.False(Te, math.IsNaN(got["500"][0]))
}
