/*
 * optimizer.go, part of gocte.
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
	"io"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// optimizer runs a minimization on a system until the largest generalized
// force is below fmax or the step budget is spent. It returns the number of
// steps taken, and whether it converged.
type optimizer interface {
	Run(sys system, fmax float64, steps int) (int, bool, error)
}

func newOptimizer(name string, log io.Writer) optimizer {
	switch strings.ToLower(name) {
	case "fire2":
		return &fire{log: log, name: "FIRE2", v2: true, dt: 0.1, maxstep: 0.2, dtmax: 1.0, dtmin: 2e-3,
			nmin: 20, finc: 1.1, fdec: 0.5, astart: 0.25, fa: 0.99}
	case "lbfgs":
		return &gonumOpt{log: log, name: "LBFGS", method: &optimize.LBFGS{}}
	case "bfgs":
		return &gonumOpt{log: log, name: "BFGS", method: &optimize.BFGS{}}
	default:
		return &fire{log: log, name: "FIRE", dt: 0.1, maxstep: 0.2, dtmax: 1.0,
			nmin: 5, finc: 1.1, fdec: 0.5, astart: 0.1, fa: 0.99}
	}
}

func logStep(w io.Writer, name string, step int, e, fmax float64) {
	if w == nil {
		return
	}
	if step == 0 {
		fmt.Fprintf(w, "%s %4s %8s %15s %12s\n", strings.Repeat(" ", len(name)), "Step", "Time", "Energy", "fmax")
	}
	fmt.Fprintf(w, "%s: %4d %8s %15.6f %12.6f\n", name, step, time.Now().Format("15:04:05"), e, fmax)
}

// fire is the Fast Inertial Relaxation Engine, in its original form
// (Bitzek et al., PRL 97, 170201) or, if v2 is set, the revised
// one (Guenole et al., Comp. Mat. Sci. 175, 109584).
type fire struct {
	log     io.Writer
	name    string
	v2      bool
	dt      float64
	maxstep float64
	dtmax   float64
	dtmin   float64
	nmin    int
	finc    float64
	fdec    float64
	astart  float64
	fa      float64
}

func flat(v [][3]float64) []float64 {
	ret := make([]float64, 0, 3*len(v))
	for _, r := range v {
		ret = append(ret, r[:]...)
	}
	return ret
}

func unflat(v []float64) [][3]float64 {
	ret := make([][3]float64, len(v)/3)
	for i := range ret {
		copy(ret[i][:], v[3*i:3*i+3])
	}
	return ret
}

func (F *fire) Run(sys system, fmax float64, steps int) (int, bool, error) {
	dt := F.dt
	a := F.astart
	var v []float64
	nsteps := 0 //steps since the last uphill move
	forces, err := sys.Forces()
	if err != nil {
		return 0, false, err
	}
	for step := 0; ; step++ {
		fm := maxRowNorm(forces)
		if F.log != nil {
			e, err := sys.Energy()
			if err != nil {
				return step, false, err
			}
			logStep(F.log, F.name, step, e, fm)
		}
		if fm < fmax {
			return step, true, nil
		}
		if step >= steps {
			return step, false, nil
		}
		f := flat(forces)
		if v == nil {
			v = make([]float64, len(f))
		} else {
			vf := floats.Dot(f, v)
			if vf > 0 {
				if !F.v2 {
					mix(v, f, a)
				} else {
					nsteps++
				}
				if nsteps > F.nmin {
					dt = math.Min(dt*F.finc, F.dtmax)
					a *= F.fa
				}
				if !F.v2 {
					nsteps++
				}
			} else {
				nsteps = 0
				a = F.astart
				if F.v2 {
					dt = math.Max(dt*F.fdec, F.dtmin)
					//go back half a step
					pos := flat(sys.Positions())
					floats.AddScaled(pos, -0.5*dt, v)
					if err := sys.SetPositions(unflat(pos)); err != nil {
						return step, false, err
					}
					forces, err = sys.Forces()
					if err != nil {
						return step, false, err
					}
					f = flat(forces)
				} else {
					dt *= F.fdec
				}
				for i := range v {
					v[i] = 0
				}
			}
		}
		floats.AddScaled(v, dt, f)
		if F.v2 {
			mix(v, f, a)
		}
		dr := make([]float64, len(v))
		floats.AddScaled(dr, dt, v)
		if n := floats.Norm(dr, 2); n > F.maxstep {
			floats.Scale(F.maxstep/n, dr)
		}
		pos := flat(sys.Positions())
		floats.Add(pos, dr)
		if err := sys.SetPositions(unflat(pos)); err != nil {
			return step, false, err
		}
		forces, err = sys.Forces()
		if err != nil {
			return step + 1, false, err
		}
	}
}

// mix does v = (1-a) v + a |v| f/|f|
func mix(v, f []float64, a float64) {
	nf := floats.Norm(f, 2)
	if nf == 0 {
		return
	}
	nv := floats.Norm(v, 2)
	floats.Scale(1-a, v)
	floats.AddScaled(v, a*nv/nf, f)
}

// gonumOpt uses the quasi-Newton methods of gonum/optimize. The energy is the
// objective and minus the generalized forces are its gradient.
type gonumOpt struct {
	log    io.Writer
	name   string
	method optimize.Method
}

func (G *gonumOpt) Run(sys system, fmax float64, steps int) (int, bool, error) {
	var calcErr error
	evals := 0
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if calcErr != nil {
				return math.Inf(1)
			}
			if err := sys.SetPositions(unflat(x)); err != nil {
				calcErr = err
				return math.Inf(1)
			}
			e, err := sys.Energy()
			if err != nil {
				calcErr = err
				return math.Inf(1)
			}
			return e
		},
		Grad: func(grad, x []float64) {
			if calcErr != nil {
				return
			}
			if err := sys.SetPositions(unflat(x)); err != nil {
				calcErr = err
				return
			}
			f, err := sys.Forces()
			if err != nil {
				calcErr = err
				return
			}
			for i, v := range flat(f) {
				grad[i] = -v
			}
		},
	}
	x0 := flat(sys.Positions())
	f0, err := sys.Forces()
	if err != nil {
		return 0, false, err
	}
	if fm := maxRowNorm(f0); fm < fmax {
		if e, err := sys.Energy(); err == nil {
			logStep(G.log, G.name, 0, e, fm)
		}
		return 0, true, nil
	}
	settings := &optimize.Settings{
		//the infinity norm is at most the row norm, which is at most sqrt(3) times the former
		GradientThreshold: fmax / math.Sqrt(3),
		MajorIterations:   steps,
		Converger:         optimize.NeverTerminate{},
		Recorder:          &stepLogger{w: G.log, name: G.name, evals: &evals},
	}
	res, err := optimize.Minimize(problem, x0, settings, G.method)
	if calcErr != nil {
		return evals, false, calcErr
	}
	if res == nil {
		return 0, false, err
	}
	if err := sys.SetPositions(unflat(res.X)); err != nil {
		return res.Stats.MajorIterations, false, err
	}
	forces, ferr := sys.Forces()
	if ferr != nil {
		return res.Stats.MajorIterations, false, ferr
	}
	//a failed line search is treated like a spent budget
	return res.Stats.MajorIterations, maxRowNorm(forces) < fmax, nil
}

// stepLogger writes a line to the optimizer log at each major iteration.
type stepLogger struct {
	w     io.Writer
	name  string
	evals *int
}

func (S *stepLogger) Init() error { return nil }

func (S *stepLogger) Record(loc *optimize.Location, op optimize.Operation, st *optimize.Stats) error {
	if op != optimize.MajorIteration && op != optimize.InitIteration {
		return nil
	}
	*S.evals = st.MajorIterations
	if S.w == nil || loc.Gradient == nil {
		return nil
	}
	logStep(S.w, S.name, st.MajorIterations, loc.F, maxRowNorm(unflat(loc.Gradient)))
	return nil
}
