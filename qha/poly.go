/*
 * poly.go, part of gocte.
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
	"fmt"

	cte "github.com/rmera/gocte"
	"gonum.org/v1/gonum/mat"
)

// Polyfit returns the least-squares polynomial of degree deg through the
// points, as coefficients in ascending order.
func Polyfit(x, y []float64, deg int) ([]float64, error) {
	if len(x) != len(y) || len(x) < deg+1 {
		return nil, cte.NewError(fmt.Sprintf("%d points can't determine a degree %d polynomial", len(x), deg), "", false, cte.ErrShape, "Polyfit")
	}
	//center and scale x for a better conditioned Vandermonde matrix
	var mean, spread float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	for _, v := range x {
		if d := v - mean; d > spread {
			spread = d
		} else if -d > spread {
			spread = -d
		}
	}
	if spread == 0 {
		spread = 1
	}
	A := mat.NewDense(len(x), deg+1, nil)
	b := mat.NewVecDense(len(y), append([]float64(nil), y...))
	for i, v := range x {
		t := (v - mean) / spread
		p := 1.0
		for j := 0; j <= deg; j++ {
			A.Set(i, j, p)
			p *= t
		}
	}
	var c mat.VecDense
	if err := c.SolveVec(A, b); err != nil {
		return nil, cte.NewError("polynomial fit failed", "", false, err, "Polyfit")
	}
	//expand the polynomial in t = (x-mean)/spread back to powers of x
	ret := make([]float64, deg+1)
	for j := 0; j <= deg; j++ {
		cj := c.AtVec(j) / pow(spread, j)
		//(x-mean)^j = sum_k binom(j,k) x^k (-mean)^(j-k)
		for k := 0; k <= j; k++ {
			ret[k] += cj * binom(j, k) * pow(-mean, j-k)
		}
	}
	return ret, nil
}

func pow(x float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= x
	}
	return r
}

func binom(n, k int) float64 {
	r := 1.0
	for i := 1; i <= k; i++ {
		r *= float64(n-k+i) / float64(i)
	}
	return r
}

// Polyval evaluates the polynomial with ascending coefficients c at x.
func Polyval(c []float64, x float64) float64 {
	var r float64
	for i := len(c) - 1; i >= 0; i-- {
		r = r*x + c[i]
	}
	return r
}

// Polyder returns the derivative of the polynomial with ascending coefficients c.
func Polyder(c []float64) []float64 {
	if len(c) < 2 {
		return []float64{0}
	}
	ret := make([]float64, len(c)-1)
	for i := 1; i < len(c); i++ {
		ret[i-1] = float64(i) * c[i]
	}
	return ret
}
