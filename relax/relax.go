/*
 * relax.go, part of gocte.
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

// Package relax evaluates structures with a calculator, and relaxes their
// atomic positions and cell.
package relax

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/calc"
	"github.com/rmera/gocte/symmetry"
)

// Relaxer evaluates and relaxes structures with a calculator.
type Relaxer struct {
	calc calc.Calculator
	cfg  Config
}

// New returns a Relaxer. The configuration is validated.
func New(c calc.Calculator, cfg Config) (*Relaxer, error) {
	if c == nil {
		return nil, cte.NewError("nil calculator", "", true, cte.ErrConfig, "relax.New")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ForceCheck == "" {
		cfg.ForceCheck = Magnitude
	}
	if cfg.Symprec <= 0 {
		cfg.Symprec = symmetry.DefaultSymprec
	}
	if cfg.Finder == nil {
		cfg.Finder = symmetry.Search{}
	}
	cfg.Mask = append([]float64(nil), cfg.Mask...)
	return &Relaxer{calc: c, cfg: cfg}, nil
}

// Config returns a copy of the configuration of the relaxer.
func (R *Relaxer) Config() Config {
	c := R.cfg
	c.Mask = append([]float64(nil), c.Mask...)
	return c
}

// WithLog returns a relaxer identical to R that writes the optimizer log to name.
func (R *Relaxer) WithLog(name string) *Relaxer {
	r := *R
	r.cfg.LogFile = name
	return &r
}

// Evaluate returns a copy of s with the energies, forces and stress computed by
// the calculator in its metadata, plus the force convergence flag and the timing
// of the evaluation. If the calculator can't give the force-consistent energy,
// for any reason, the plain potential energy is used for e_fr_energy.
func (R *Relaxer) Evaluate(s *cte.Structure) (*cte.Structure, error) {
	watch := cte.StartWatch()
	ret := s.Copy()
	efr, err := R.calc.PotentialEnergy(ret, true)
	if err != nil {
		if !errors.Is(err, cte.ErrPropertyNotImplemented) {
			slog.Debug("force-consistent energy failed, using the potential energy", "error", err)
		}
		efr, err = R.calc.PotentialEnergy(ret, false)
		if err != nil {
			return nil, cte.ErrDecorate(err, "Relaxer.Evaluate")
		}
	}
	e0, err := R.calc.PotentialEnergy(ret, false)
	if err != nil {
		return nil, cte.ErrDecorate(err, "Relaxer.Evaluate")
	}
	forces, err := R.calc.Forces(ret)
	if err != nil {
		return nil, cte.ErrDecorate(err, "Relaxer.Evaluate")
	}
	stress, err := R.calc.Stress(ret)
	if err != nil {
		return nil, cte.ErrDecorate(err, "Relaxer.Evaluate")
	}
	ret.Info.Update(&cte.Info{
		EFrEnergy: cte.Ptr(efr),
		E0Energy:  cte.Ptr(e0),
		Force:     forces,
		Stress:    &stress,
		ForceConv: cte.Ptr(Converged(forces, R.cfg.Fmax, R.cfg.ForceCheck)),
		OneShot:   watch.Stop(),
	})
	return ret, nil
}

// Relax returns a relaxed copy of s. The optimizer stops when the forces are
// converged or the step budget is spent; the latter is not an error. The
// number of steps, the force convergence flag and the timing are added to
// the metadata.
func (R *Relaxer) Relax(s *cte.Structure) (*cte.Structure, error) {
	watch := cte.StartWatch()
	ret := s.Copy()
	a := &atoms{s: ret, calc: R.calc}
	if R.cfg.FixSymm {
		sym, err := symmetry.NewSymmetrizer(ret, R.cfg.Finder, R.cfg.Symprec)
		if err != nil {
			return nil, cte.ErrDecorate(err, "Relaxer.Relax")
		}
		a.sym = sym
	}
	var sys system
	switch strings.ToLower(R.cfg.CellFilter) {
	case "unitcell":
		sys = newUnitCell(a, R.cfg.Mask, R.cfg.ConstVolume, false)
	case "frechet":
		sys = newUnitCell(a, R.cfg.Mask, R.cfg.ConstVolume, true)
	default:
		sys = fixedCell{a}
	}
	var log io.Writer
	if R.cfg.LogFile != "" {
		f, err := os.OpenFile(R.cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, cte.NewError("can't open the optimizer log", R.cfg.LogFile, false, err, "Relaxer.Relax")
		}
		defer f.Close()
		log = f
	}
	opt := newOptimizer(R.cfg.Optimizer, log)
	steps, _, err := opt.Run(sys, R.cfg.Fmax, R.cfg.Steps)
	if err != nil {
		return nil, cte.ErrDecorate(err, "Relaxer.Relax")
	}
	forces, err := a.forces()
	if err != nil {
		return nil, cte.ErrDecorate(err, "Relaxer.Relax")
	}
	ret.Info.Update(&cte.Info{
		Steps:     cte.Ptr(steps),
		ForceConv: cte.Ptr(Converged(forces, R.cfg.Fmax, R.cfg.ForceCheck)),
		Relax:     watch.Stop(),
	})
	return ret, nil
}
