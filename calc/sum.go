/*
 * sum.go, part of gocte.
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

	cte "github.com/rmera/gocte"
)

// Sum is a calculator whose results are the sums of those of its terms.
// It's used to add a dispersion correction on top of a potential.
type Sum struct {
	terms []Calculator
}

// NewSum returns the sum of the given calculators.
func NewSum(terms ...Calculator) *Sum {
	return &Sum{terms: terms}
}

func (S *Sum) PotentialEnergy(s *cte.Structure, forceConsistent bool) (float64, error) {
	var e float64
	for _, t := range S.terms {
		v, err := t.PotentialEnergy(s, forceConsistent)
		if err != nil {
			return 0, cte.ErrDecorate(err, "Sum.PotentialEnergy")
		}
		e += v
	}
	return e, nil
}

func (S *Sum) Forces(s *cte.Structure) ([][3]float64, error) {
	f := make([][3]float64, s.Len())
	for _, t := range S.terms {
		v, err := t.Forces(s)
		if err != nil {
			return nil, cte.ErrDecorate(err, "Sum.Forces")
		}
		for i := range f {
			for k := 0; k < 3; k++ {
				f[i][k] += v[i][k]
			}
		}
	}
	return f, nil
}

func (S *Sum) Stress(s *cte.Structure) ([6]float64, error) {
	var st [6]float64
	for _, t := range S.terms {
		v, err := t.Stress(s)
		if err != nil {
			return st, cte.ErrDecorate(err, "Sum.Stress")
		}
		for k := range st {
			st[k] += v[k]
		}
	}
	return st, nil
}

// Release releases every term that can be released.
func (S *Sum) Release() error {
	var errs []error
	for _, t := range S.terms {
		if r, ok := t.(Releaser); ok {
			errs = append(errs, r.Release())
		}
	}
	return errors.Join(errs...)
}

// Counter wraps a calculator and counts the calls to it.
type Counter struct {
	Calculator
	Energy, Force, Stresses int
	Releases                int
}

// NewCounter wraps c.
func NewCounter(c Calculator) *Counter {
	return &Counter{Calculator: c}
}

// Calls returns the total number of calls.
func (C *Counter) Calls() int {
	return C.Energy + C.Force + C.Stresses
}

func (C *Counter) PotentialEnergy(s *cte.Structure, forceConsistent bool) (float64, error) {
	C.Energy++
	return C.Calculator.PotentialEnergy(s, forceConsistent)
}

func (C *Counter) Forces(s *cte.Structure) ([][3]float64, error) {
	C.Force++
	return C.Calculator.Forces(s)
}

func (C *Counter) Stress(s *cte.Structure) ([6]float64, error) {
	C.Stresses++
	return C.Calculator.Stress(s)
}

// Release forwards to the wrapped calculator, if it can be released.
func (C *Counter) Release() error {
	C.Releases++
	if r, ok := C.Calculator.(Releaser); ok {
		return r.Release()
	}
	return nil
}
