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

package qha

import (
	"errors"
	"fmt"
	"io"
	"math"

	cte "github.com/rmera/gocte"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MinPoints is the least number of volumes an equation-of-state fit is attempted with.
const MinPoints = 5

// Unit conversions
const (
	EvTokJmol = 96.48533212
	EvToGPa   = 160.21766208
)

// ErrTooFewPoints is returned when there are less than MinPoints volumes.
var ErrTooFewPoints = errors.New("at least 5 volume points needed for EOS fitting")

// Input is the data for a quasi-harmonic calculation. The thermal quantities
// are indexed [temperature][volume], in phonopy units (kJ/mol and J/K/mol).
type Input struct {
	Volumes      []float64 //Angstrom^3
	Energies     []float64 //electronic energies, eV
	Temperatures []float64 //K, evenly spaced
	FreeEnergy   [][]float64
	Cv           [][]float64
	Entropy      [][]float64
	EOS          string
	TMax         float64
}

// QHA holds the results of a quasi-harmonic calculation. The temperature
// dependent quantities are given up to (not including) the temperature with
// index MaxT.
type QHA struct {
	in     Input
	eos    EOS
	MaxT   int
	Params [][4]float64 //EOS parameters per temperature
	//equilibrium quantities
	Volumes     []float64
	Gibbs       []float64 //eV
	BulkModulus []float64 //GPa
	Expansion   []float64 //thermal expansion coefficient, 1/K
	Gruneisen   []float64
}

// Validate checks the shapes of the input.
func (I *Input) Validate() error {
	nv := len(I.Volumes)
	if nv < MinPoints {
		return fmt.Errorf("%w: got %d", ErrTooFewPoints, nv)
	}
	if len(I.Energies) != nv {
		return cte.NewError(fmt.Sprintf("%d energies for %d volumes", len(I.Energies), nv), "", true, cte.ErrShape, "Input.Validate")
	}
	nt := len(I.Temperatures)
	if nt < 4 {
		return cte.NewError("at least 4 temperatures are needed", "", true, cte.ErrShape, "Input.Validate")
	}
	for _, t := range [][][]float64{I.FreeEnergy, I.Cv, I.Entropy} {
		if len(t) != nt {
			return cte.NewError("thermal data doesn't match the temperatures", "", true, cte.ErrShape, "Input.Validate")
		}
		for _, row := range t {
			if len(row) != nv {
				return cte.NewError("thermal data doesn't match the volumes", "", true, cte.ErrShape, "Input.Validate")
			}
		}
	}
	if _, err := EOSByName(I.EOS); err != nil {
		return err
	}
	return nil
}

// maxTIndex returns the index of the last temperature not above tmax, leaving
// room for the central differences.
func maxTIndex(temps []float64, tmax float64) int {
	m := 0
	for i, t := range temps {
		if t > tmax+1e-5 {
			break
		}
		m = i
	}
	if m > len(temps)-3 {
		m = len(temps) - 3
	}
	return m
}

// New fits the equation of state at every temperature up to TMax (plus one,
// for the derivatives) and computes the equilibrium quantities. The fit log
// goes to log, if not nil.
func New(in Input, log io.Writer) (*QHA, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	eos, _ := EOSByName(in.EOS)
	if log == nil {
		log = io.Discard
	}
	Q := &QHA{in: in, eos: eos}
	Q.MaxT = maxTIndex(in.Temperatures, in.TMax)
	nfit := Q.MaxT + 2
	fmt.Fprintf(log, "# Equation of state: %s\n", in.EOS)
	fmt.Fprintf(log, "# %d volumes, %d temperatures fitted\n", len(in.Volumes), nfit)
	fmt.Fprintf(log, "#%11s %18s %14s %10s %14s %12s\n", "T(K)", "E0(eV)", "B0(GPa)", "B'", "V0(A^3)", "rms(eV)")
	var residuals []float64
	for i := 0; i < nfit; i++ {
		p, rms, err := FitEOS(eos, in.Volumes, Q.Helmholtz(i))
		if err != nil {
			return nil, cte.NewError(fmt.Sprintf("fit at %g K", in.Temperatures[i]), "", false, err, "qha.New")
		}
		residuals = append(residuals, rms)
		fmt.Fprintf(log, "%12.4f %18.10f %14.6f %10.5f %14.6f %12.3e\n", in.Temperatures[i], p[0], p[1]*EvToGPa, p[2], p[3], rms)
		Q.Params = append(Q.Params, p)
		Q.Volumes = append(Q.Volumes, p[3])
		Q.Gibbs = append(Q.Gibbs, p[0])
		Q.BulkModulus = append(Q.BulkModulus, p[1]*EvToGPa)
	}
	mean, std := stat.MeanStdDev(residuals, nil)
	fmt.Fprintf(log, "# fit residuals: mean %.3e eV, standard deviation %.3e eV, largest %.3e eV\n", mean, std, floats.Max(residuals))
	Q.setExpansion()
	Q.setGruneisen()
	return Q, nil
}

// Helmholtz returns the Helmholtz free energy (electronic plus vibrational, eV)
// at each volume for the temperature with index it.
func (Q *QHA) Helmholtz(it int) []float64 {
	ret := make([]float64, len(Q.in.Volumes))
	for j, e := range Q.in.Energies {
		ret[j] = e + Q.in.FreeEnergy[it][j]/EvTokJmol
	}
	return ret
}

// Temperatures returns the temperatures the results are given for.
func (Q *QHA) Temperatures() []float64 {
	return Q.in.Temperatures[:Q.MaxT]
}

func (Q *QHA) setExpansion() {
	t := Q.in.Temperatures
	Q.Expansion = make([]float64, Q.MaxT+1)
	for i := 1; i <= Q.MaxT; i++ {
		Q.Expansion[i] = (Q.Volumes[i+1] - Q.Volumes[i-1]) / (t[i+1] - t[i-1]) / Q.Volumes[i]
	}
}

// propertyAt returns a thermal quantity, or its volume derivative, at the
// equilibrium volume of the temperature with index it, from a quartic fit
// over the volumes.
func (Q *QHA) propertyAt(data [][]float64, it int, deriv bool) (float64, error) {
	deg := 4
	if len(Q.in.Volumes) <= deg {
		deg = len(Q.in.Volumes) - 1
	}
	c, err := Polyfit(Q.in.Volumes, data[it], deg)
	if err != nil {
		return 0, err
	}
	if deriv {
		c = Polyder(c)
	}
	return Polyval(c, Q.Volumes[it]), nil
}

func (Q *QHA) setGruneisen() {
	Q.Gruneisen = make([]float64, Q.MaxT+1)
	for i := 1; i < Q.MaxT; i++ {
		cv, err := Q.propertyAt(Q.in.Cv, i, false)
		if err != nil {
			continue
		}
		//J/K/mol to eV/K
		cv /= EvTokJmol * 1000
		if cv < 1e-10 {
			continue
		}
		Q.Gruneisen[i] = Q.Expansion[i] * Q.BulkModulus[i] / EvToGPa * Q.Volumes[i] / cv
	}
}

// HeatCapacityNumerical returns the heat capacity at constant pressure,
// J/K/mol, as -T d2G/dT2 from parabolas through consecutive Gibbs energies.
func (Q *QHA) HeatCapacityNumerical() ([]float64, error) {
	t := Q.in.Temperatures
	cp := make([]float64, Q.MaxT)
	for i := 1; i < Q.MaxT; i++ {
		g := make([]float64, 3)
		for k := 0; k < 3; k++ {
			g[k] = Q.Gibbs[i-1+k] * EvTokJmol * 1000
		}
		c, err := Polyfit(t[i-1:i+2], g, 2)
		if err != nil {
			return nil, cte.ErrDecorate(err, "QHA.HeatCapacityNumerical")
		}
		cp[i] = -2 * c[2] * t[i]
	}
	return cp, nil
}

// HeatCapacityPolyfit returns the heat capacity at constant pressure, J/K/mol,
// as Cv + T (dV/dT) (dS/dV), with Cv and S interpolated at the equilibrium
// volumes with polynomial fits.
func (Q *QHA) HeatCapacityPolyfit() ([]float64, error) {
	t := Q.in.Temperatures
	cp := make([]float64, Q.MaxT)
	for i := 1; i < Q.MaxT; i++ {
		cv, err := Q.propertyAt(Q.in.Cv, i, false)
		if err != nil {
			return nil, cte.ErrDecorate(err, "QHA.HeatCapacityPolyfit")
		}
		dsdv, err := Q.propertyAt(Q.in.Entropy, i, true)
		if err != nil {
			return nil, cte.ErrDecorate(err, "QHA.HeatCapacityPolyfit")
		}
		dvdt := (Q.Volumes[i+1] - Q.Volumes[i-1]) / (t[i+1] - t[i-1])
		cp[i] = cv + t[i]*dvdt*dsdv
		if math.IsNaN(cp[i]) {
			return nil, cte.NewError(fmt.Sprintf("NaN heat capacity at %g K", t[i]), "", false, nil, "QHA.HeatCapacityPolyfit")
		}
	}
	return cp, nil
}

// EOS returns the fitted equation of state at the temperature with index it.
func (Q *QHA) EOS(it int) func(v float64) float64 {
	p := Q.Params[it]
	return func(v float64) float64 { return Q.eos(v, p) }
}

// InputVolumes returns the volumes of the fit.
func (Q *QHA) InputVolumes() []float64 {
	return append([]float64(nil), Q.in.Volumes...)
}
