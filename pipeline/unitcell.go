/*
 * unitcell.go, part of gocte.
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

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/snap"
)

var suffixReplacer = strings.NewReplacer("/", "-", " ", "-")

// Suffix returns the directory name of a structure:
// ID-<idx>_<material_id>_<name>_<symm.no>. Path separators and spaces are
// replaced.
func Suffix(idx int, info *cte.Info) string {
	symm := "?"
	if info.SymmNo != nil {
		symm = strconv.Itoa(*info.SymmNo)
	}
	s := fmt.Sprintf("ID-%d_%s_%s_%s", idx, strOr(info.MaterialID, "mp-??"), strOr(info.Name, "?"), symm)
	return suffixReplacer.Replace(s)
}

// Unitcell relaxes every structure in the input file. Each one gets its
// own directory with the relaxed CONTCAR; the metadata of all of them is
// kept in a snapshot and in an extended XYZ ensemble, which the rest of
// the stages read.
func (R *Runner) Unitcell(ctx context.Context) error {
	input, err := cte.ExtXYZRead(R.cfg.Directory.Input)
	if err != nil {
		return cte.ErrDecorate(err, "Runner.Unitcell")
	}
	infos := make(map[int]*cte.Info, len(input))
	var relaxed []*cte.Structure
	for idx, s0 := range input {
		if err := ctx.Err(); err != nil {
			return err
		}
		R.progress("Unit cell optimization", idx, len(input))
		s, err := R.unitcell(idx, s0)
		R.release.Release()
		if err != nil {
			R.log.Error("unit cell relaxation failed", "index", idx, "error", err)
			continue
		}
		infos[idx] = s.Info.Copy()
		relaxed = append(relaxed, s)
	}
	if err := snap.Write(R.unitcellSnap(), infos); err != nil {
		return cte.ErrDecorate(err, "Runner.Unitcell")
	}
	if err := cte.ExtXYZWrite(R.unitcellXYZ(), relaxed...); err != nil {
		R.log.Error("can't save the relaxed unit cells", "error", err)
	}
	return nil
}

func (R *Runner) unitcell(idx int, s0 *cte.Structure) (*cte.Structure, error) {
	s := s0.Copy()
	s.Info.ID = cte.Ptr(fmt.Sprintf("ID-%d", idx))
	suffix := Suffix(idx, s.Info)
	dir := R.base(suffix, R.cfg.Unitcell.Save)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cte.NewError("can't create directory", dir, true, err, "Runner.unitcell")
	}
	rel, err := R.relaxer(R.cfg.Opt.Unitcell, filepath.Join(dir, R.tag()+"-unitcell0.log"))
	if err != nil {
		return nil, err
	}
	initial := R.spaceGroup(s)
	R.primitive186(s, initial)
	if s, err = rel.Evaluate(s); err != nil {
		return nil, err
	}
	s.Info.Suffix = cte.Ptr(suffix)
	s.Info.CalcTag = cte.Ptr(R.tag())
	R.stat(s, "unit", "oneshot", 0, "#N/A")
	if s, err = rel.Relax(s); err != nil {
		return nil, err
	}
	if s, err = rel.Evaluate(s); err != nil {
		return nil, err
	}
	R.stat(s, "unit", "relax", 0, "#N/A")
	final := R.spaceGroup(s)
	s.Info.SymmNoUnit = cte.Ptr(final)
	if err := cte.POSCARWrite(filepath.Join(dir, "CONTCAR"), s, suffix+"-"+R.tag()); err != nil {
		return nil, err
	}
	opt := converged(s.Info, R.cfg.Opt.Unitcell.Steps)
	if !opt {
		R.log.Warn("unit cell relaxation did not reach convergence", "suffix", suffix, "steps", *s.Info.Steps)
	}
	s.Info.UnitcellOpt = cte.Ptr(opt)
	s.Info.UnitcellSymm = cte.Ptr(initial == final)
	if initial != final {
		R.log.Warn("symmetry changed", "suffix", suffix, "from", initial, "to", final)
	}
	return s, nil
}

// primitive186 gives the identity primitive matrix to P6_3mc (186) structures
// that have none. The group number comes from the metadata or, failing that,
// from the symmetry search (detected, 0 if unknown).
func (R *Runner) primitive186(s *cte.Structure, detected int) {
	if s.Info.PrimitiveMatrix != nil {
		return
	}
	number := detected
	if s.Info.SymmNo != nil {
		number = *s.Info.SymmNo
	}
	if number == 0 {
		R.log.Warn("unknown space group, no P6_3mc primitive matrix check", "id", strOr(s.Info.ID, ""))
		return
	}
	if number == 186 {
		s.Info.PrimitiveMatrix = cte.Ptr(cte.Identity3())
	}
}

// converged tells whether a relaxation ended with converged forces before
// spending the step budget.
func converged(info *cte.Info, budget int) bool {
	if info.Steps == nil || info.ForceConv == nil {
		return false
	}
	return *info.Steps < budget && *info.ForceConv
}

func (R *Runner) stat(s *cte.Structure, task, stat string, eps float64, disp string) {
	if err := R.stats.Write(s, task, stat, eps, disp); err != nil {
		R.log.Warn("can't write stats", "error", err)
	}
}
