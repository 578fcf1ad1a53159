/*
 * eos.go, part of gocte.
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

// Package qha implements the quasi-harmonic approximation: equation-of-state
// fits of the Helmholtz free energy over a set of volumes at each temperature,
// and the thermal expansion, Gibbs energy, bulk modulus, heat capacity at
// constant pressure and Grueneisen parameter that follow from them.
package qha

import (
	"fmt"
	"math"
	"strings"

	cte "github.com/rmera/gocte"
	"gonum.org/v1/gonum/optimize"
)

// EOS is an energy-volume equation of state. The parameters are, in order, the
// energy at the minimum (eV), the bulk modulus (eV/Angstrom^3), its pressure
// derivative, and the equilibrium volume (Angstrom^3).
type EOS func(v float64, p [4]float64) float64

// Vinet is the Vinet equation of state.
func Vinet(v float64, p [4]float64) float64 {
	e0, b0, b1, v0 := p[0], p[1], p[2], p[3]
	x := math.Cbrt(v / v0)
	xi := 1.5 * (b1 - 1)
	return e0 + 9*b0*v0/(xi*xi)*(1+(xi*(1-x)-1)*math.Exp(xi*(1-x)))
}

// BirchMurnaghan is the third-order Birch-Murnaghan equation of state.
func BirchMurnaghan(v float64, p [4]float64) float64 {
	e0, b0, b1, v0 := p[0], p[1], p[2], p[3]
	eta := math.Cbrt(v0 / v)
	e2 := eta*eta - 1
	return e0 + 9*b0*v0/16*(e2*e2*e2*b1+e2*e2*(6-4*eta*eta))
}

// Birch is the Birch equation of state.
func Birch(v float64, p [4]float64) float64 {
	e0, b0, b1, v0 := p[0], p[1], p[2], p[3]
	f := math.Pow(v0/v, 2.0/3.0) - 1
	return e0 + 9.0/8.0*b0*v0*f*f + 9.0/16.0*b0*v0*(b1-4)*f*f*f
}

// EOSByName returns the equation of state with the given name: vinet, birch or
// birch_murnaghan.
func EOSByName(name string) (EOS, error) {
	switch strings.ToLower(name) {
	case "vinet":
		return Vinet, nil
	case "birch_murnaghan":
		return BirchMurnaghan, nil
	case "birch":
		return Birch, nil
	}
	return nil, fmt.Errorf("%w: unknown equation of state %q", cte.ErrConfig, name)
}

// initialGuess fits a parabola to the data and takes the minimum, the
// curvature and a pressure derivative of 4.
func initialGuess(volumes, energies []float64) ([4]float64, error) {
	c, err := Polyfit(volumes, energies, 2)
	if err != nil {
		return [4]float64{}, err
	}
	if c[2] <= 0 {
		return [4]float64{}, cte.NewError("the energies don't have a minimum", "", false, nil, "initialGuess")
	}
	v0 := -c[1] / (2 * c[2])
	e0 := Polyval(c, v0)
	return [4]float64{e0, 2 * c[2] * v0, 4, v0}, nil
}

// FitEOS fits the equation of state to the energy-volume data with a
// Nelder-Mead minimization of the squared residuals, starting from a parabolic
// fit. It returns the parameters and the root mean square residual.
func FitEOS(eos EOS, volumes, energies []float64) ([4]float64, float64, error) {
	if len(volumes) != len(energies) || len(volumes) < 4 {
		return [4]float64{}, 0, cte.NewError(fmt.Sprintf("%d volumes and %d energies", len(volumes), len(energies)), "", false, cte.ErrShape, "FitEOS")
	}
	p0, err := initialGuess(volumes, energies)
	if err != nil {
		return [4]float64{}, 0, cte.ErrDecorate(err, "FitEOS")
	}
	//the minimization runs on parameters scaled by their first guesses
	var scale [4]float64
	for i, v := range p0 {
		scale[i] = math.Abs(v)
		if scale[i] < 1e-8 {
			scale[i] = 1
		}
	}
	unscale := func(x []float64) [4]float64 {
		var p [4]float64
		for i := range p {
			p[i] = x[i] * scale[i]
		}
		return p
	}
	sq := func(x []float64) float64 {
		p := unscale(x)
		var s float64
		for i, v := range volumes {
			d := eos(v, p) - energies[i]
			s += d * d
		}
		if math.IsNaN(s) {
			return math.Inf(1)
		}
		return s
	}
	x := make([]float64, 4)
	for i := range x {
		x[i] = p0[i] / scale[i]
	}
	var fit float64
	//restarting Nelder-Mead from its own result gets it out of collapsed simplices
	for round := 0; round < 3; round++ {
		res, err := optimize.Minimize(optimize.Problem{Func: sq}, x, &optimize.Settings{
			MajorIterations: 20000,
			Converger:       &optimize.FunctionConverge{Absolute: 1e-30, Iterations: 400},
		}, &optimize.NelderMead{})
		if res == nil {
			return [4]float64{}, 0, cte.NewError("equation of state fit failed", "", false, err, "FitEOS")
		}
		x = res.X
		fit = res.F
	}
	p := unscale(x)
	if p[3] <= 0 || math.IsNaN(p[3]) {
		return [4]float64{}, 0, cte.NewError("equation of state fit gave a non-physical volume", "", false, nil, "FitEOS")
	}
	return p, math.Sqrt(fit / float64(len(volumes))), nil
}
