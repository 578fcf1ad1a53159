/*
 * qha.go, part of gocte.
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
	"path/filepath"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/qha"
	"gonum.org/v1/plot/plotter"
)

// Curve plots y against x as a single line.
func Curve(x, y []float64, title, xlabel, ylabel, filename string) error {
	p := basicPlot(title, xlabel, ylabel)
	pts, err := xys(x, y)
	if err != nil {
		return cte.ErrDecorate(err, "Curve")
	}
	if err := addLine(p, pts, 0, 1, ""); err != nil {
		return cte.NewError("can't draw curve", filename, false, err, "Curve")
	}
	return save(p, filename, "Curve")
}

// HelmholtzVolume plots the free energies at the input volumes and the fitted
// equation of state for every thin-th temperature, plus the equilibrium points.
func HelmholtzVolume(Q *qha.QHA, title, filename string, thin int) error {
	if thin < 1 {
		thin = 1
	}
	p := basicPlot(title, "Volume (Å³)", "Free energy (eV)")
	vols := Q.InputVolumes()
	fine := Q.FittedVolumes(100)
	temps := Q.Temperatures()
	nseries := (len(temps) + thin - 1) / thin
	var eq plotter.XYs
	for i := 0; i < len(temps); i += thin {
		key := i / thin
		pts, err := xys(vols, Q.Helmholtz(i))
		if err != nil {
			return cte.ErrDecorate(err, "HelmholtzVolume")
		}
		if err := addPoints(p, pts, key, nseries); err != nil {
			return cte.NewError("can't draw free energies", filename, false, err, "HelmholtzVolume")
		}
		eos := Q.EOS(i)
		fitted := make([]float64, len(fine))
		for j, v := range fine {
			fitted[j] = eos(v)
		}
		line, err := xys(fine, fitted)
		if err != nil {
			return cte.ErrDecorate(err, "HelmholtzVolume")
		}
		legend := ""
		if key == 0 || i+thin >= len(temps) {
			legend = fmt.Sprintf("%g K", temps[i])
		}
		if err := addLine(p, line, key, nseries, legend); err != nil {
			return cte.NewError("can't draw fit", filename, false, err, "HelmholtzVolume")
		}
		eq = append(eq, plotter.XY{X: Q.Volumes[i], Y: Q.Gibbs[i]})
	}
	if err := addLine(p, eq, nseries, nseries+1, "equilibrium"); err != nil {
		return cte.NewError("can't draw equilibrium line", filename, false, err, "HelmholtzVolume")
	}
	return save(p, filename, "HelmholtzVolume")
}

// QHA draws the temperature dependence of the equilibrium quantities in dir,
// one SVG per quantity, and the Helmholtz free energy of every thin-th
// temperature. It stops at the first failure.
func QHA(Q *qha.QHA, dir string, thin int) error {
	t := Q.Temperatures()
	n := len(t)
	curves := []struct {
		file, title, ylabel string
		y                   []float64
	}{
		{"volume-temperature.svg", "Equilibrium volume", "Volume (Å³)", Q.Volumes[:n]},
		{"thermal_expansion.svg", "Thermal expansion", "α (1/K)", Q.Expansion[:n]},
		{"gibbs-temperature.svg", "Gibbs free energy", "G (eV)", Q.Gibbs[:n]},
		{"bulk_modulus-temperature.svg", "Bulk modulus", "B (GPa)", Q.BulkModulus[:n]},
		{"gruneisen-temperature.svg", "Grüneisen parameter", "γ", Q.Gruneisen[:n]},
	}
	for _, c := range curves {
		if err := Curve(t, c.y, c.title, "Temperature (K)", c.ylabel, filepath.Join(dir, c.file)); err != nil {
			return err
		}
	}
	if cp, err := Q.HeatCapacityNumerical(); err == nil {
		if err := Curve(t, cp, "Heat capacity", "Temperature (K)", "Cp (J/K/mol)", filepath.Join(dir, "Cp-temperature.svg")); err != nil {
			return err
		}
	}
	return HelmholtzVolume(Q, "Helmholtz free energy", filepath.Join(dir, "helmholtz-volume.svg"), thin)
}
