/*
 * harmonic.go, part of gocte.
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
	"strconv"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/cteplot"
	"github.com/rmera/gocte/phonon"
	"github.com/rmera/gocte/snap"
)

// Harmonic computes the phonons of every strained cell on a q-point mesh
// from the stored force constants, classifies them and, optionally, writes
// the thermal properties, band structure and density of states. Results are
// merged into the results file after each structure.
func (R *Runner) Harmonic(ctx context.Context) error {
	infos, idxs, err := R.unitInfos()
	if err != nil {
		return cte.ErrDecorate(err, "Runner.Harmonic")
	}
	res, err := LoadResults(R.resultsFile(), R.tag())
	if err != nil {
		return cte.ErrDecorate(err, "Runner.Harmonic")
	}
	for n, idx := range idxs {
		if err := ctx.Err(); err != nil {
			return err
		}
		info := infos[idx]
		suffix := strOr(info.Suffix, "")
		R.progress("Mesh properties", n, len(idxs), "suffix", suffix)
		e, err := R.harmonic(ctx, info)
		R.release.Release()
		if err != nil {
			R.log.Error("harmonic stage failed", "suffix", suffix, "error", err)
			continue
		}
		res.Merge(idx, e)
		if err := res.Save(R.resultsFile()); err != nil {
			return cte.ErrDecorate(err, "Runner.Harmonic")
		}
	}
	return nil
}

// entryFor returns a results entry with the identity of the structure.
func entryFor(info *cte.Info) *Entry {
	e := &Entry{ID: strOr(info.ID, ""), Name: strOr(info.Name, ""), MPID: strOr(info.MaterialID, "")}
	if info.SymmNo != nil {
		e.SymmNo = strconv.Itoa(*info.SymmNo)
	}
	return e
}

func (R *Runner) harmonic(ctx context.Context, info *cte.Info) (*Entry, error) {
	suffix := strOr(info.Suffix, "")
	if info.FC2Supercell == nil {
		return nil, cte.NewError("no fc2_supercell for "+suffix, "", false, cte.ErrShape, "Runner.harmonic")
	}
	strained, err := R.strained(suffix)
	if err != nil {
		return nil, err
	}
	mesh := R.cfg.Harmonic.Mesh
	if info.QPointMesh != nil {
		mesh = *info.QPointMesh
	}
	e := entryFor(info)
	e.Harmonic = make(map[string]*HarmonicRecord)
	for _, eps := range R.cfg.Strain.Eps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label := Label(eps)
		dir := R.base(suffix, R.cfg.Harmonic.Save, label)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cte.NewError("can't create directory", dir, true, err, "Runner.harmonic")
		}
		rec, outs := R.harmonicOne(dir, label, *info.FC2Supercell, mesh, strained[label], R.fcFile(suffix, label))
		for _, o := range outs {
			if o.Status == Failed {
				R.log.Error("step failed", "suffix", suffix, "eps", eps, "step", o.Step, "error", o.Err)
			} else {
				R.log.Debug("step "+o.Status.String(), "suffix", suffix, "eps", eps, "step", o.Step)
			}
		}
		e.Harmonic[label] = rec
	}
	return e, nil
}

func classify(m *phonon.Mesh) (*HarmonicRecord, error) {
	frac, err := phonon.ImaginaryFraction(m.Frequencies, m.Weights)
	if err != nil {
		return nil, err
	}
	return &HarmonicRecord{
		FC2:       true,
		Imaginary: phonon.HasImaginaryModes(m.Frequencies),
		Fraction:  frac,
		QHA:       phonon.QHAEligible(frac),
	}, nil
}

// harmonicOne runs the phonon calculations for one strained cell s. The
// returned record is always non-nil: failures before the mesh is ready
// give fc2 and QHA false.
func (R *Runner) harmonicOne(dir, label string, dim, mesh [3]int, s *cte.Structure, fcname string) (*HarmonicRecord, []Outcome) {
	bad := &HarmonicRecord{}
	meshname := filepath.Join(dir, "mesh_"+label+".snap")
	if R.cfg.Harmonic.Cont && snap.Exists(meshname) {
		m, err := snap.Load[*phonon.Mesh](meshname)
		if err == nil {
			var rec *HarmonicRecord
			if rec, err = classify(m); err == nil {
				return rec, []Outcome{skipped("mesh")}
			}
		}
		R.log.Warn("unusable mesh snapshot, recomputing", "file", meshname, "error", err)
	}
	if s == nil {
		return bad, []Outcome{failed("mesh", cte.NewError("no relaxed structure for "+label, "", false, nil, "Runner.harmonicOne"))}
	}
	P, err := phonon.New(s, dim, R.dataset(s), R.cfg.Symmetry.Symprec)
	if err != nil {
		return bad, []Outcome{failed("mesh", err)}
	}
	if err := P.ReadFC(fcname); err != nil {
		return bad, []Outcome{failed("force constants", err)}
	}
	m, err := P.RunMesh(mesh, phonon.MeshOptions{Eigenvectors: true, GroupVelocities: true})
	if err != nil {
		return bad, []Outcome{failed("mesh", err)}
	}
	if err := snap.Write(meshname, m); err != nil {
		R.log.Warn("can't save the mesh", "error", err)
	}
	rec, err := classify(m)
	if err != nil {
		return bad, []Outcome{failed("classification", err)}
	}
	outs := []Outcome{done("mesh")}
	if R.cfg.Harmonic.RunThermal {
		outs = append(outs, R.thermal(dir, label, m, s.Len()))
	}
	if R.cfg.Harmonic.RunBand {
		outs = append(outs, R.bands(dir, label, P))
	}
	if R.cfg.Harmonic.RunDOS {
		outs = append(outs, R.dos(dir, label, m))
	}
	return rec, outs
}

func (R *Runner) thermal(dir, label string, m *phonon.Mesh, natom int) Outcome {
	const step = "thermal properties"
	svg := filepath.Join(dir, "thermal_properties_"+label+".svg")
	if exists(svg) {
		return skipped(step)
	}
	h := R.cfg.Harmonic
	tp, err := m.Thermal(phonon.Temperatures(h.TMin, h.TMax, h.TStep), natom)
	if err != nil {
		return failed(step, err)
	}
	if err := tp.WriteYAML(filepath.Join(dir, "thermal_properties_"+label+".yaml")); err != nil {
		return failed(step, err)
	}
	if err := cteplot.ThermalProperties(tp, label, svg); err != nil {
		return failed(step, err)
	}
	return done(step)
}

func (R *Runner) bands(dir, label string, P *phonon.Phonon) Outcome {
	const step = "band structure"
	svg := filepath.Join(dir, "band_structure_"+label+".svg")
	if exists(svg) {
		return skipped(step)
	}
	b, err := P.RunBands(phonon.DefaultPath(), R.cfg.Harmonic.BandPoints)
	if err != nil {
		return failed(step, err)
	}
	if err := b.WriteYAML(filepath.Join(dir, "band_"+label+".yaml"), P.Unit.Len()); err != nil {
		return failed(step, err)
	}
	if err := cteplot.Bands(b, label, svg); err != nil {
		return failed(step, err)
	}
	return done(step)
}

func (R *Runner) dos(dir, label string, m *phonon.Mesh) Outcome {
	const step = "density of states"
	svg := filepath.Join(dir, "band_dos_"+label+".svg")
	if exists(svg) {
		return skipped(step)
	}
	d, err := m.TotalDOS(R.cfg.Harmonic.DOSSigma, 0)
	if err != nil {
		return failed(step, err)
	}
	if err := d.Write(filepath.Join(dir, "total_dos_"+label+".dat")); err != nil {
		return failed(step, err)
	}
	if err := cteplot.DOS(d, label, svg); err != nil {
		return failed(step, err)
	}
	return done(step)
}
