/*
 * classify.go, part of gocte.
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
	"fmt"
	"math"

	cte "github.com/rmera/gocte"
)

// QHAThreshold is the largest fraction of imaginary modes a strain point can
// have and still be used for the quasi-harmonic fit.
const QHAThreshold = 0.22

// acousticTolerance is how negative, in THz, the three acoustic bands at the
// first q-point (Gamma) can be before they count as imaginary.
const acousticTolerance = -0.01

// HasImaginaryModes tells whether the mesh frequencies (rows are q-points,
// columns bands, the first row Gamma) show imaginary modes. A set with only
// NaN values, or with no values at all, is considered to have them.
func HasImaginaryModes(freqs [][]float64) bool {
	allNaN := true
	for _, row := range freqs {
		for _, v := range row {
			if !math.IsNaN(v) {
				allNaN = false
			}
		}
	}
	if allNaN {
		return true
	}
	for b, v := range freqs[0] {
		if b < 3 && v < acousticTolerance {
			return true
		}
		if b >= 3 && v < 0 {
			return true
		}
	}
	for _, row := range freqs[1:] {
		for _, v := range row {
			if v < 0 {
				return true
			}
		}
	}
	return false
}

// ImaginaryFraction returns the weighted fraction of negative frequencies. The
// three acoustic bands of the first row (Gamma) only count below the same
// tolerance HasImaginaryModes uses. All rows must have the same length, and
// weights, if not nil, one entry per row.
func ImaginaryFraction(freqs [][]float64, weights []int) (float64, error) {
	if len(freqs) == 0 {
		return 0, cte.NewError("no frequencies", "", true, cte.ErrConfig, "ImaginaryFraction")
	}
	nb := len(freqs[0])
	for i, row := range freqs {
		if len(row) != nb {
			return 0, cte.NewError(fmt.Sprintf("row %d has %d bands, row 0 %d", i, len(row), nb), "", true, cte.ErrConfig, "ImaginaryFraction")
		}
	}
	if weights == nil {
		weights = make([]int, len(freqs))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(freqs) {
		return 0, cte.NewError(fmt.Sprintf("%d weights for %d q-points", len(weights), len(freqs)), "", true, cte.ErrConfig, "ImaginaryFraction")
	}
	var total, imag float64
	for i, row := range freqs {
		w := float64(weights[i])
		total += w * float64(nb)
		for b, v := range row {
			if i == 0 && b < 3 && v >= acousticTolerance {
				continue
			}
			if v < 0 {
				imag += w
			}
		}
	}
	if total == 0 {
		return 0, cte.NewError("zero total weight", "", true, cte.ErrConfig, "ImaginaryFraction")
	}
	return imag / total, nil
}

// QHAEligible tells whether a strain point with the given fraction of
// imaginary modes can be used in the quasi-harmonic fit.
func QHAEligible(fraction float64) bool {
	return fraction < QHAThreshold
}
