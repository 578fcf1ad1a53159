/*
 * strain.go, part of gocte.
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
	"os"
	"path/filepath"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/snap"
)

// Strain builds the strained cells of every relaxed unit cell and relaxes
// them at constant volume.
func (R *Runner) Strain(ctx context.Context) error {
	units, err := cte.ExtXYZRead(R.unitcellXYZ())
	if err != nil {
		return cte.ErrDecorate(err, "Runner.Strain")
	}
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		R.progress("v-ZSISA relaxation", i, len(units))
		suffix := strOr(u.Info.Suffix, "")
		if suffix == "" {
			R.log.Warn("unit cell without suffix, skipping", "index", i)
			continue
		}
		if err := R.strain(ctx, suffix, u.Info); err != nil {
			R.log.Error("strain stage failed", "suffix", suffix, "error", err)
		}
		R.release.Release()
	}
	return nil
}

// scale writes one POSCAR_e<eps> per strain, built from the relaxed unit
// cell, and returns the strained structures in the order of the strains.
func (R *Runner) scale(suffix string) ([]*cte.Structure, error) {
	dir := R.strainDir(suffix)
	contcar := R.base(suffix, R.cfg.Unitcell.Save, "CONTCAR")
	comment := suffix + "-" + R.tag()
	var ret []*cte.Structure
	for _, eps := range R.cfg.Strain.Eps {
		name := filepath.Join(dir, "POSCAR_"+Label(eps))
		if R.cfg.Strain.Mode == "c_axis" {
			s, err := cte.POSCARRead(contcar)
			if err != nil {
				return nil, err
			}
			if err := s.StrainC(eps); err != nil {
				return nil, err
			}
			if err := cte.POSCARWrite(name, s, comment); err != nil {
				return nil, err
			}
		} else if err := cte.POSCARRescale(contcar, name, comment, 1+eps); err != nil {
			return nil, err
		}
		s, err := cte.POSCARRead(name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}
	if err := cte.ExtXYZWrite(filepath.Join(dir, R.tag()+"-strain-"+suffix+".extxyz"), ret...); err != nil {
		return nil, err
	}
	return ret, nil
}

func (R *Runner) strain(ctx context.Context, suffix string, parent *cte.Info) error {
	dir := R.strainDir(suffix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cte.NewError("can't create directory", dir, true, err, "Runner.strain")
	}
	strained, err := R.scale(suffix)
	if err != nil {
		return err
	}
	infos := make(map[string]*cte.Info, len(strained))
	var relaxed []*cte.Structure
	for i, eps := range R.cfg.Strain.Eps {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := strained[i]
		s.Info = parent.Copy()
		s.Info.Eps = cte.Ptr(eps)
		s, err := R.strainOne(dir, suffix, eps, s)
		if err != nil {
			R.log.Error("strain relaxation failed", "suffix", suffix, "eps", eps, "error", err)
			continue
		}
		infos[Label(eps)] = s.Info.Copy()
		relaxed = append(relaxed, s)
	}
	if err := cte.ExtXYZWrite(R.strainXYZ(suffix), relaxed...); err != nil {
		return err
	}
	return snap.Write(R.strainSnap(suffix), infos)
}

func (R *Runner) strainOne(dir, suffix string, eps float64, s *cte.Structure) (*cte.Structure, error) {
	label := Label(eps)
	rel, err := R.relaxer(R.cfg.Opt.Strain, filepath.Join(dir, "strain_"+label+".log"))
	if err != nil {
		return nil, err
	}
	if s, err = rel.Evaluate(s); err != nil {
		return nil, err
	}
	R.stat(s, "strain", "oneshot", eps, "#N/A")
	vi := s.VolumePerAtom(4)
	if s, err = rel.Relax(s); err != nil {
		return nil, err
	}
	if s, err = rel.Evaluate(s); err != nil {
		return nil, err
	}
	if err := cte.POSCARWrite(filepath.Join(dir, "CONTCAR_"+label), s, suffix+"-"+R.tag()); err != nil {
		return nil, err
	}
	sg := R.spaceGroup(s)
	s.Info.SymmNoStrain = cte.Ptr(sg)
	R.stat(s, "strain", "relax", eps, "#N/A")
	vf := s.VolumePerAtom(4)
	opt := converged(s.Info, R.cfg.Opt.Strain.Steps)
	if !opt {
		R.log.Warn("strain relaxation did not reach convergence", "suffix", suffix, "eps", eps, "steps", *s.Info.Steps)
	}
	unit := -1
	if s.Info.SymmNoUnit != nil {
		unit = *s.Info.SymmNoUnit
	}
	if unit != sg {
		R.log.Warn("symmetry changed", "suffix", suffix, "eps", eps, "from", unit, "to", sg)
	}
	if vi != vf {
		R.log.Warn("volume changed", "suffix", suffix, "eps", eps, "from", vi, "to", vf)
	}
	s.Info.Update(&cte.Info{
		StrainOpt:  cte.Ptr(opt),
		StrainSymm: cte.Ptr(unit == sg),
		StrainVol:  cte.Ptr(vi == vf),
		VolInit:    cte.Ptr(vi),
		VolFinal:   cte.Ptr(vf),
	})
	return s, nil
}
