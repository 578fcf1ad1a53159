/*
 * config.go, part of gocte.
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
	"fmt"
	"math"
	"strings"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/symmetry"
)

// ForceCheck is the policy used to decide whether the forces on a structure
// are converged, once the relaxation is over.
type ForceCheck string

const (
	//Magnitude: converged if no force component is larger, in absolute value, than the tolerance.
	Magnitude ForceCheck = "magnitude"
	//Legacy reproduces the check of the first versions of the benchmark, which tested the
	//truth value of each force column against zero. It accepts any forces.
	Legacy ForceCheck = "legacy"
)

// Config holds the settings of a relaxation. It's not changed by the Relaxer.
type Config struct {
	Optimizer   string     `yaml:"optimizer"`   //fire, fire2, lbfgs, bfgs
	CellFilter  string     `yaml:"cell_filter"` //unitcell, frechet or none
	Mask        []float64  `yaml:"mask"`        //6 Voigt components, 1 free, 0 fixed. Empty means all free.
	FixSymm     bool       `yaml:"fix_symm"`
	ConstVolume bool       `yaml:"const_vol"`
	Fmax        float64    `yaml:"fmax"`
	Steps       int        `yaml:"steps"`
	ForceCheck  ForceCheck `yaml:"force_check"`
	Symprec     float64    `yaml:"symprec"`
	//Where to write the optimizer log. Empty means no log.
	LogFile string `yaml:"log_file"`
	//Finder is used to find the symmetry when FixSymm is set. nil means the internal search.
	Finder symmetry.Finder `yaml:"-"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Optimizer:  "fire",
		CellFilter: "frechet",
		FixSymm:    true,
		Fmax:       1e-6,
		Steps:      5000,
		ForceCheck: Magnitude,
		Symprec:    symmetry.DefaultSymprec,
	}
}

var optimizers = map[string]bool{"fire": true, "fire2": true, "lbfgs": true, "bfgs": true}
var filters = map[string]bool{"unitcell": true, "frechet": true, "none": true, "": true}

// Validate returns an error wrapping cte.ErrConfig if the settings can't be used.
func (C *Config) Validate() error {
	if !optimizers[strings.ToLower(C.Optimizer)] {
		return fmt.Errorf("%w: unknown optimizer %q (fire, fire2, lbfgs, bfgs)", cte.ErrConfig, C.Optimizer)
	}
	if !filters[strings.ToLower(C.CellFilter)] {
		return fmt.Errorf("%w: unknown cell filter %q (unitcell, frechet, none)", cte.ErrConfig, C.CellFilter)
	}
	if !(C.Fmax > 0) || math.IsInf(C.Fmax, 0) {
		return fmt.Errorf("%w: fmax must be positive, got %v", cte.ErrConfig, C.Fmax)
	}
	if C.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", cte.ErrConfig, C.Steps)
	}
	if len(C.Mask) != 0 && len(C.Mask) != 6 {
		return fmt.Errorf("%w: the mask needs 6 Voigt components, got %d", cte.ErrConfig, len(C.Mask))
	}
	switch C.ForceCheck {
	case "", Magnitude, Legacy:
	default:
		return fmt.Errorf("%w: unknown force check %q (magnitude, legacy)", cte.ErrConfig, C.ForceCheck)
	}
	return nil
}

// Converged tells whether the forces are converged under the given policy.
// An empty policy means Magnitude.
func Converged(forces [][3]float64, fmax float64, policy ForceCheck) bool {
	if policy == Legacy {
		//np.any(column) < 0 is never true
		return true
	}
	for _, f := range forces {
		for _, c := range f {
			if math.IsNaN(c) || math.Abs(c) > fmax {
				return false
			}
		}
	}
	return true
}

// mask3 returns the Voigt mask as a symmetric 3x3 matrix.
func mask3(m []float64) [3][3]float64 {
	if len(m) != 6 {
		return [3][3]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	}
	return [3][3]float64{
		{m[0], m[5], m[4]},
		{m[5], m[1], m[3]},
		{m[4], m[3], m[2]},
	}
}
