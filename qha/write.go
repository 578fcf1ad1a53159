/*
 * write.go, part of gocte.
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
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	cte "github.com/rmera/gocte"
)

// Output file names, as phonopy names them.
const (
	HelmholtzVolumeFile       = "helmholtz-volume.dat"
	HelmholtzVolumeFittedFile = "helmholtz-volume_fitted.dat"
	VolumeTemperatureFile     = "volume-temperature.dat"
	ThermalExpansionFile      = "thermal_expansion.dat"
	GibbsTemperatureFile      = "gibbs-temperature.dat"
	BulkModulusFile           = "bulk_modulus-temperature.dat"
	CpNumericalFile           = "Cp-temperature.dat"
	CpPolyfitFile             = "Cp-temperature_polyfit.dat"
	GruneisenFile             = "gruneisen-temperature.dat"
)

func create(name, caller string) (*os.File, *bufio.Writer, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, cte.NewError("can't create file", name, false, err, caller)
	}
	return f, bufio.NewWriter(f), nil
}

func finish(f *os.File, w *bufio.Writer, name, caller string) error {
	if err := w.Flush(); err != nil {
		f.Close()
		return cte.NewError("can't write file", name, false, err, caller)
	}
	if err := f.Close(); err != nil {
		return cte.NewError("can't close file", name, false, err, caller)
	}
	return nil
}

// writeColumns writes one "T value" line per temperature up to MaxT.
func (Q *QHA) writeColumns(name, header string, values []float64) error {
	f, w, err := create(name, "QHA.writeColumns")
	if err != nil {
		return err
	}
	if header != "" {
		fmt.Fprintf(w, "# %s\n", header)
	}
	for i, t := range Q.Temperatures() {
		fmt.Fprintf(w, "%25.15f %25.15f\n", t, values[i])
	}
	return finish(f, w, name, "QHA.writeColumns")
}

// WriteVolumeTemperature writes the equilibrium volume at each temperature.
func (Q *QHA) WriteVolumeTemperature(name string) error {
	return Q.writeColumns(name, "temperature (K), volume (A^3)", Q.Volumes)
}

// WriteThermalExpansion writes the volumetric thermal expansion coefficient.
func (Q *QHA) WriteThermalExpansion(name string) error {
	return Q.writeColumns(name, "temperature (K), thermal expansion (1/K)", Q.Expansion)
}

// WriteGibbsTemperature writes the Gibbs energy at zero pressure.
func (Q *QHA) WriteGibbsTemperature(name string) error {
	return Q.writeColumns(name, "temperature (K), Gibbs energy (eV)", Q.Gibbs)
}

// WriteBulkModulus writes the isothermal bulk modulus.
func (Q *QHA) WriteBulkModulus(name string) error {
	return Q.writeColumns(name, "temperature (K), bulk modulus (GPa)", Q.BulkModulus)
}

// WriteGruneisen writes the average Grueneisen parameter.
func (Q *QHA) WriteGruneisen(name string) error {
	return Q.writeColumns(name, "temperature (K), Grueneisen parameter", Q.Gruneisen)
}

// WriteHeatCapacityNumerical writes the numerical heat capacity at constant pressure.
func (Q *QHA) WriteHeatCapacityNumerical(name string) error {
	cp, err := Q.HeatCapacityNumerical()
	if err != nil {
		return err
	}
	return Q.writeColumns(name, "temperature (K), Cp (J/K/mol)", cp)
}

// WriteHeatCapacityPolyfit writes the polynomial-fit heat capacity at constant pressure.
func (Q *QHA) WriteHeatCapacityPolyfit(name string) error {
	cp, err := Q.HeatCapacityPolyfit()
	if err != nil {
		return err
	}
	return Q.writeColumns(name, "temperature (K), Cp (J/K/mol)", cp)
}

// WriteHelmholtzVolume writes, for each temperature, the Helmholtz free energy
// at each input volume, in blocks separated by blank lines.
func (Q *QHA) WriteHelmholtzVolume(name string) error {
	f, w, err := create(name, "QHA.WriteHelmholtzVolume")
	if err != nil {
		return err
	}
	for i, t := range Q.Temperatures() {
		fmt.Fprintf(w, "# Temperature: %f\n", t)
		fmt.Fprintf(w, "# Parameters: %f %f %f %f\n", Q.Params[i][0], Q.Params[i][1], Q.Params[i][2], Q.Params[i][3])
		for j, fe := range Q.Helmholtz(i) {
			fmt.Fprintf(w, "%20.15f %25.15f\n", Q.in.Volumes[j], fe)
		}
		fmt.Fprint(w, "\n\n")
	}
	return finish(f, w, name, "QHA.WriteHelmholtzVolume")
}

// FittedVolumes returns n volumes evenly spread over the input range, widened a little.
func (Q *QHA) FittedVolumes(n int) []float64 {
	vmin, vmax := Q.in.Volumes[0], Q.in.Volumes[0]
	for _, v := range Q.in.Volumes {
		if v < vmin {
			vmin = v
		}
		if v > vmax {
			vmax = v
		}
	}
	span := vmax - vmin
	vmin -= 0.05 * span
	vmax += 0.05 * span
	ret := make([]float64, n)
	for i := range ret {
		ret[i] = vmin + (vmax-vmin)*float64(i)/float64(n-1)
	}
	return ret
}

// WriteHelmholtzVolumeFitted writes the fitted equation of state for every
// thin-th temperature, over a fine volume grid.
func (Q *QHA) WriteHelmholtzVolumeFitted(name string, thin int) error {
	if thin < 1 {
		thin = 1
	}
	f, w, err := create(name, "QHA.WriteHelmholtzVolumeFitted")
	if err != nil {
		return err
	}
	vols := Q.FittedVolumes(100)
	for i, t := range Q.Temperatures() {
		if i%thin != 0 {
			continue
		}
		eos := Q.EOS(i)
		fmt.Fprintf(w, "# Temperature: %f\n", t)
		for _, v := range vols {
			fmt.Fprintf(w, "%20.15f %25.15f\n", v, eos(v))
		}
		fmt.Fprint(w, "\n\n")
	}
	return finish(f, w, name, "QHA.WriteHelmholtzVolumeFitted")
}

// ReadTable reads a two-column whitespace separated file, ignoring comments
// (starting with #) and blank lines.
func ReadTable(name string) ([][2]float64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, cte.NewError("can't open table", name, false, err, "ReadTable")
	}
	defer f.Close()
	var ret [][2]float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, cte.NewError(fmt.Sprintf("malformed line %q", line), name, false, cte.ErrShape, "ReadTable")
		}
		var row [2]float64
		for k := 0; k < 2; k++ {
			if row[k], err = strconv.ParseFloat(fields[k], 64); err != nil {
				return nil, cte.NewError(fmt.Sprintf("malformed line %q", line), name, false, err, "ReadTable")
			}
		}
		ret = append(ret, row)
	}
	if err := sc.Err(); err != nil {
		return nil, cte.NewError("can't read table", name, false, err, "ReadTable")
	}
	return ret, nil
}

// ReferenceTemperatures are the temperatures the thermal expansion is reported at.
var ReferenceTemperatures = []int{10, 300, 500, 800}

// LookupCTE returns, for each reference temperature, the values of the table
// whose temperature is exactly equal to it. Temperatures not in the table get
// an empty list.
func LookupCTE(table [][2]float64, refs []int) map[string][]float64 {
	ret := make(map[string][]float64, len(refs))
	for _, r := range refs {
		vals := []float64{}
		for _, row := range table {
			if row[0] == float64(r) {
				vals = append(vals, row[1])
			}
		}
		ret[strconv.Itoa(r)] = vals
	}
	return ret
}
