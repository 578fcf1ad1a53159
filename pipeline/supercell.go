/*
 * supercell.go, part of gocte.
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
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/phonon"
	"github.com/rmera/gocte/relax"
	"github.com/rmera/gocte/snap"
	"github.com/rmera/gocte/symmetry"
)

// unitInfos returns the metadata of the relaxed unit cells, and their indexes
// in increasing order.
func (R *Runner) unitInfos() (map[int]*cte.Info, []int, error) {
	infos, err := snap.Load[map[int]*cte.Info](R.unitcellSnap())
	if err != nil {
		return nil, nil, err
	}
	idx := make([]int, 0, len(infos))
	for k := range infos {
		idx = append(idx, k)
	}
	sort.Ints(idx)
	return infos, idx, nil
}

// dataset returns the symmetry of s, or nil, which the phonon code takes as
// the identity alone, if the search fails.
func (R *Runner) dataset(s *cte.Structure) *symmetry.Dataset {
	ds, err := R.finder.Find(s, R.cfg.Symmetry.Symprec)
	if err != nil {
		R.log.Warn("symmetry search failed, using the identity only", "error", err)
		return nil
	}
	return ds
}

// Supercell computes the second-order force constants of every strained
// cell with finite displacements.
func (R *Runner) Supercell(ctx context.Context) error {
	infos, idxs, err := R.unitInfos()
	if err != nil {
		return cte.ErrDecorate(err, "Runner.Supercell")
	}
	for n, idx := range idxs {
		if err := ctx.Err(); err != nil {
			return err
		}
		info := infos[idx]
		suffix := strOr(info.Suffix, "")
		R.progress("Phonon supercells", n, len(idxs), "suffix", suffix)
		if info.FC2Supercell == nil {
			R.log.Warn("no fc2_supercell, skipping", "suffix", suffix)
			continue
		}
		meta, err := snap.Load[map[string]*cte.Info](R.strainSnap(suffix))
		if err != nil {
			R.log.Error("can't read strain metadata", "suffix", suffix, "error", err)
			continue
		}
		strained, err := R.strained(suffix)
		if err != nil {
			R.log.Error("can't read strained cells", "suffix", suffix, "error", err)
			continue
		}
		dir := R.base(suffix, R.cfg.Supercell.Save)
		for _, eps := range R.cfg.Strain.Eps {
			if err := ctx.Err(); err != nil {
				return err
			}
			label := Label(eps)
			s, ok := strained[label]
			if meta[label] == nil || !ok {
				R.log.Warn("no metadata available, skipping", "suffix", suffix, "eps", eps)
				continue
			}
			fcname := R.fcFile(suffix, label)
			if R.cfg.Supercell.Cont && exists(fcname) {
				continue
			}
			if err := os.MkdirAll(filepath.Join(dir, label), 0o755); err != nil {
				return cte.NewError("can't create directory", dir, true, err, "Runner.Supercell")
			}
			P, err := phonon.New(s, *info.FC2Supercell, R.dataset(s), R.cfg.Symmetry.Symprec)
			if err == nil {
				P.GenerateDisplacements(R.cfg.Supercell.Distance)
				err = R.fc2(dir, eps, P)
			}
			if err == nil {
				err = P.WriteFC(fcname)
			}
			if err != nil {
				R.log.Error("FC2 calculation failed", "suffix", suffix, "eps", eps, "error", err)
			}
		}
		R.release.Release()
	}
	return nil
}

// fc2 evaluates the forces on the displaced supercells of P and fits the
// force constants to them. The evaluated supercells go to e<eps>_FC2.extxyz
// and each force set to e<eps>/force-<n>.dat. Null displacements get zero
// forces.
func (R *Runner) fc2(dir string, eps float64, P *phonon.Phonon) error {
	label := Label(eps)
	rel, err := relax.New(R.calc, R.cfg.Opt.Strain)
	if err != nil {
		return err
	}
	cells := P.Supercells()
	nat := P.Super.Len()
	var evaluated []*cte.Structure
	forces := make([][][3]float64, len(cells))
	for i, sc := range cells {
		disp := fmt.Sprintf("%05d", i+1)
		if sc == nil {
			forces[i] = make([][3]float64, nat)
		} else {
			R.progress("FC2 calculation", i, len(cells))
			e, err := rel.Evaluate(sc)
			if err != nil {
				return err
			}
			R.stat(e, "fc2", "oneshot", eps, disp)
			forces[i] = e.Info.Force
			evaluated = append(evaluated, e)
		}
		if err := writeForces(filepath.Join(dir, label, "force-"+disp+".dat"), forces[i]); err != nil {
			return err
		}
	}
	if err := cte.ExtXYZWrite(filepath.Join(dir, label+"_FC2.extxyz"), evaluated...); err != nil {
		R.log.Error("can't save the displaced supercells", "error", err)
	}
	if err := P.ProduceFC(forces); err != nil {
		return err
	}
	if R.cfg.Supercell.SymmetrizeFC {
		P.SymmetrizeFC(3)
	}
	return nil
}

// writeForces writes one force per line, eV/Angstrom.
func writeForces(name string, f [][3]float64) error {
	out, err := os.Create(name)
	if err != nil {
		return cte.NewError("can't create force file", name, true, err, "writeForces")
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	for _, v := range f {
		fmt.Fprintf(w, "%22.15e %22.15e %22.15e\n", v[0], v[1], v[2])
	}
	if err := w.Flush(); err != nil {
		return cte.NewError("can't write force file", name, true, err, "writeForces")
	}
	return nil
}
