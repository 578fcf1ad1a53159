/*
 * pipeline.go, part of gocte.
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

// Package pipeline runs the thermal expansion benchmark: unit cell
// relaxation, strained cells, second-order force constants, harmonic phonons
// and the quasi-harmonic approximation. Each stage reads what the previous
// ones left on disk, so stages can be run, and re-run, separately.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/calc"
	"github.com/rmera/gocte/relax"
	"github.com/rmera/gocte/symmetry"
)

// Task names.
const (
	TaskAll       = "all"
	TaskUnitcell  = "unitcell"
	TaskStrain    = "strain"
	TaskSupercell = "supercell"
	TaskHarmonic  = "harmonic"
	TaskQHA       = "qha"
)

type stage func(R *Runner, ctx context.Context) error

var stages = map[string]stage{
	TaskUnitcell:  (*Runner).Unitcell,
	TaskStrain:    (*Runner).Strain,
	TaskSupercell: (*Runner).Supercell,
	TaskHarmonic:  (*Runner).Harmonic,
	TaskQHA:       (*Runner).QHA,
}

var stageOrder = []string{TaskUnitcell, TaskStrain, TaskSupercell, TaskHarmonic, TaskQHA}

// Status is what happened to an optional step.
type Status int

const (
	Done Status = iota
	Skipped
	Failed
)

func (S Status) String() string {
	switch S {
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	}
	return "failed"
}

// Outcome reports an optional step. Err is set only if Status is Failed.
type Outcome struct {
	Step   string
	Status Status
	Err    error
}

func done(step string) Outcome               { return Outcome{Step: step, Status: Done} }
func skipped(step string) Outcome            { return Outcome{Step: step, Status: Skipped} }
func failed(step string, err error) Outcome { return Outcome{Step: step, Status: Failed, Err: err} }

// Releaser runs at the end of every structure, in every stage. It frees
// memory and lets the calculator drop whatever it caches.
type Releaser struct {
	Calc calc.Calculator
}

// Release triggers a garbage collection and releases the calculator, if it
// can be released.
func (R Releaser) Release() {
	runtime.GC()
	if r, ok := R.Calc.(calc.Releaser); ok {
		if err := r.Release(); err != nil {
			slog.Warn("can't release calculator", "error", err)
		}
	}
}

// Runner runs the stages of the pipeline.
type Runner struct {
	cfg     Config
	calc    calc.Calculator
	finder  symmetry.Finder
	log     *slog.Logger
	stats   *StatsLog
	release Releaser
}

// NewCalculator builds the calculator in the configuration, creating its
// scratch directory.
func NewCalculator(cfg Config) (calc.Calculator, error) {
	o := cfg.CalcOptions()
	if err := os.MkdirAll(o.WorkDir, 0o755); err != nil {
		return nil, cte.NewError("can't create scratch directory", o.WorkDir, true, err, "NewCalculator")
	}
	return calc.New(o)
}

// New returns a runner. The calculator can be nil if only the harmonic and
// QHA stages are going to run. A nil logger means slog's default.
func New(cfg Config, c calc.Calculator, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	finder, err := symmetry.NewFinder(cfg.Symmetry.Finder, cfg.Symmetry.Command)
	if err != nil {
		return nil, err
	}
	if cfg.Symmetry.Symprec <= 0 {
		cfg.Symmetry.Symprec = symmetry.DefaultSymprec
	}
	if err := os.MkdirAll(cfg.Directory.Cwd, 0o755); err != nil {
		return nil, cte.NewError("can't create working directory", cfg.Directory.Cwd, true, err, "pipeline.New")
	}
	stats, err := OpenStats(cfg.Directory.Logfile)
	if err != nil {
		return nil, err
	}
	for _, o := range []*relax.Config{&cfg.Opt.Unitcell, &cfg.Opt.Strain} {
		if o.Finder == nil {
			o.Finder = finder
		}
	}
	return &Runner{cfg: cfg, calc: c, finder: finder, log: log, stats: stats, release: Releaser{Calc: c}}, nil
}

// Run runs the task: either one stage, or, for "all", every stage
// switched on in the configuration, in order. Failures of single structures
// are logged and skipped; only errors that make the rest of the run
// meaningless are returned.
func (R *Runner) Run(ctx context.Context, task string) error {
	task = strings.ToLower(task)
	var todo []string
	if task == TaskAll {
		on := map[string]bool{
			TaskUnitcell:  R.cfg.Unitcell.Run,
			TaskStrain:    R.cfg.Strain.Run,
			TaskSupercell: R.cfg.Supercell.Run,
			TaskHarmonic:  R.cfg.Harmonic.Run,
			TaskQHA:       R.cfg.QHA.Run,
		}
		for _, s := range stageOrder {
			if on[s] {
				todo = append(todo, s)
			}
		}
	} else if _, ok := stages[task]; ok {
		todo = []string{task}
	} else {
		return fmt.Errorf("%w: unknown task %q", cte.ErrConfig, task)
	}
	for _, s := range todo {
		if err := ctx.Err(); err != nil {
			return err
		}
		if R.calc == nil && (s == TaskUnitcell || s == TaskStrain || s == TaskSupercell) {
			return cte.NewError("stage "+s+" needs a calculator", "", true, cte.ErrConfig, "Runner.Run")
		}
		R.log.Info("starting stage", "stage", s, "calc", R.cfg.Calculator.Tag)
		if err := stages[s](R, ctx); err != nil {
			return cte.ErrDecorate(err, "Runner.Run")
		}
	}
	return nil
}

func (R *Runner) progress(desc string, i, n int, attrs ...any) {
	R.log.Info(fmt.Sprintf("%s %d/%d", desc, i+1, n), attrs...)
}

// spaceGroup returns the space group number of s, or 0 if the search fails
// or the group can't be identified.
func (R *Runner) spaceGroup(s *cte.Structure) int {
	ds, err := R.finder.Find(s, R.cfg.Symmetry.Symprec)
	if err != nil {
		R.log.Warn("symmetry search failed", "error", err)
		return 0
	}
	if !ds.ITA {
		R.log.Warn("space group not identified", "operations", ds.Len())
		return 0
	}
	return ds.Number
}

func (R *Runner) relaxer(cfg relax.Config, logfile string) (*relax.Relaxer, error) {
	r, err := relax.New(R.calc, cfg)
	if err != nil {
		return nil, err
	}
	return r.WithLog(logfile), nil
}

func (R *Runner) base(parts ...string) string {
	return filepath.Join(append([]string{R.cfg.Directory.Cwd}, parts...)...)
}

func (R *Runner) tag() string {
	return R.cfg.Calculator.Tag
}

// Paths of the files shared between stages.
func (R *Runner) unitcellSnap() string { return R.base(R.tag() + "-unitcell.snap") }
func (R *Runner) unitcellXYZ() string  { return R.base(R.tag() + "-unitcell_relax.extxyz") }
func (R *Runner) resultsFile() string  { return R.base(R.tag() + "_results.json") }

func (R *Runner) strainDir(suffix string) string { return R.base(suffix, R.cfg.Strain.Save) }
func (R *Runner) strainSnap(suffix string) string {
	return filepath.Join(R.strainDir(suffix), R.tag()+"-strain_dct-"+suffix+".snap")
}
func (R *Runner) strainXYZ(suffix string) string {
	return filepath.Join(R.strainDir(suffix), R.tag()+"-strain_relax-"+suffix+".extxyz")
}
func (R *Runner) fcFile(suffix, label string) string {
	return R.base(suffix, R.cfg.Supercell.Save, "FORCE_CONSTANTS_2ND_"+label)
}

// strained returns the relaxed strained structures of suffix, by label.
func (R *Runner) strained(suffix string) (map[string]*cte.Structure, error) {
	list, err := cte.ExtXYZRead(R.strainXYZ(suffix))
	if err != nil {
		return nil, err
	}
	ret := make(map[string]*cte.Structure, len(list))
	for _, s := range list {
		if s.Info == nil || s.Info.Eps == nil {
			continue
		}
		ret[Label(*s.Info.Eps)] = s
	}
	return ret, nil
}

func exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func strOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}
