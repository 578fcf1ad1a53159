/*
 * qha.go, part of gocte.
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
	"errors"
	"math"
	"os"
	"path/filepath"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/cteplot"
	"github.com/rmera/gocte/phonon"
	"github.com/rmera/gocte/qha"
	"github.com/rmera/gocte/snap"
)

// QHA fits the quasi-harmonic approximation for every structure with at
// least qha.MinPoints usable strain points, and reports the thermal
// expansion coefficients at the reference temperatures.
func (R *Runner) QHA(ctx context.Context) error {
	infos, idxs, err := R.unitInfos()
	if err != nil {
		return cte.ErrDecorate(err, "Runner.QHA")
	}
	if !exists(R.resultsFile()) {
		return cte.NewError("no results file, run the harmonic stage first", R.resultsFile(), true, nil, "Runner.QHA")
	}
	res, err := LoadResults(R.resultsFile(), R.tag())
	if err != nil {
		return cte.ErrDecorate(err, "Runner.QHA")
	}
	for n, idx := range idxs {
		if err := ctx.Err(); err != nil {
			return err
		}
		info := infos[idx]
		suffix := strOr(info.Suffix, "")
		R.progress("QHA", n, len(idxs), "suffix", suffix)
		e := res.Entries[idx]
		if e == nil || len(e.Harmonic) == 0 {
			R.log.Warn("mesh calculation must be preceded", "suffix", suffix)
			continue
		}
		cteVals, err := R.qha(info, e)
		R.release.Release()
		if errors.Is(err, qha.ErrTooFewPoints) {
			R.log.Warn("At least 5 volume points needed for EOS fitting", "suffix", suffix, "error", err)
			continue
		}
		if err != nil {
			R.log.Error("QHA failed", "suffix", suffix, "error", err)
			continue
		}
		res.Merge(idx, &Entry{CTE: map[string]map[string][]float64{"CALC": cteVals}})
		if err := res.SaveEntry(idx, R.base(suffix, R.tag()+"_results.json")); err != nil {
			R.log.Error("can't save results", "suffix", suffix, "error", err)
		}
		if err := res.Save(R.resultsFile()); err != nil {
			return cte.ErrDecorate(err, "Runner.QHA")
		}
	}
	return nil
}

// qhaInput gathers the volumes, energies and thermal properties of the
// usable strain points of a structure. Everything is scaled by the
// determinant of the primitive matrix.
func (R *Runner) qhaInput(info *cte.Info, e *Entry) (qha.Input, error) {
	suffix := strOr(info.Suffix, "")
	in := qha.Input{EOS: R.cfg.QHA.EOS, TMax: R.cfg.QHA.TMax}
	det := 1.0
	if info.PrimitiveMatrix != nil {
		det = math.Abs(cte.Det3(*info.PrimitiveMatrix))
	}
	strained, err := R.strained(suffix)
	if err != nil {
		return in, err
	}
	meta, err := snap.Load[map[string]*cte.Info](R.strainSnap(suffix))
	if err != nil {
		return in, err
	}
	var thermal []*phonon.ThermalProperties
	for _, eps := range R.cfg.QHA.Eps {
		label := Label(eps)
		h := e.Harmonic[label]
		name := R.base(suffix, R.cfg.Harmonic.Save, label, "thermal_properties_"+label+".yaml")
		s := strained[label]
		if h == nil || !h.QHA || !exists(name) || s == nil {
			continue
		}
		tp, err := phonon.ReadThermalYAML(name)
		if err != nil {
			return in, err
		}
		tp.Scale(det)
		energy := 0.0
		if s.Info.EFrEnergy != nil {
			energy = *s.Info.EFrEnergy
		} else if m := meta[label]; m != nil && m.EFrEnergy != nil {
			energy = *m.EFrEnergy
		}
		in.Volumes = append(in.Volumes, s.Volume()*det)
		in.Energies = append(in.Energies, energy*det)
		thermal = append(thermal, tp)
	}
	if len(in.Volumes) < qha.MinPoints {
		return in, qha.ErrTooFewPoints
	}
	in.Temperatures = thermal[0].Temperatures
	for it := range in.Temperatures {
		var fe, cv, s []float64
		for _, tp := range thermal {
			if len(tp.Temperatures) != len(in.Temperatures) {
				return in, cte.NewError("thermal properties at different temperatures", suffix, true, cte.ErrShape, "Runner.qhaInput")
			}
			fe = append(fe, tp.FreeEnergy[it])
			cv = append(cv, tp.HeatCapacity[it])
			s = append(s, tp.Entropy[it])
		}
		in.FreeEnergy = append(in.FreeEnergy, fe)
		in.Cv = append(in.Cv, cv)
		in.Entropy = append(in.Entropy, s)
	}
	return in, nil
}

func (R *Runner) qha(info *cte.Info, e *Entry) (map[string][]float64, error) {
	suffix := strOr(info.Suffix, "")
	in, err := R.qhaInput(info, e)
	if err != nil {
		return nil, err
	}
	c := R.cfg.QHA
	dir := R.base(suffix, c.Save)
	data := filepath.Join(dir, c.Data)
	full := filepath.Join(dir, c.Full)
	plot := filepath.Join(dir, c.Plot)
	for _, d := range []string{dir, data, full, plot} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, cte.NewError("can't create directory", d, true, err, "Runner.qha")
		}
	}
	log, err := os.Create(filepath.Join(dir, "qha.x"))
	if err != nil {
		return nil, cte.NewError("can't create fit log", dir, true, err, "Runner.qha")
	}
	Q, err := qha.New(in, log)
	log.Close()
	if err != nil {
		return nil, err
	}
	if c.Plots {
		if err := cteplot.QHA(Q, plot, c.ThinNumber); err != nil {
			R.log.Warn("can't plot QHA results", "suffix", suffix, "error", err)
		}
		if err := cteplot.Curve(in.Volumes, in.Energies, c.EOS, "Volume (Å³)", "Energy (eV)", filepath.Join(dir, c.EOS+".svg")); err != nil {
			R.log.Warn("can't plot the equation of state", "suffix", suffix, "error", err)
		}
	}
	writers := []struct {
		file string
		w    func(string) error
	}{
		{qha.HelmholtzVolumeFile, Q.WriteHelmholtzVolume},
		{qha.HelmholtzVolumeFittedFile, func(n string) error { return Q.WriteHelmholtzVolumeFitted(n, c.ThinNumber) }},
		{qha.VolumeTemperatureFile, Q.WriteVolumeTemperature},
		{qha.ThermalExpansionFile, Q.WriteThermalExpansion},
		{qha.GibbsTemperatureFile, Q.WriteGibbsTemperature},
		{qha.BulkModulusFile, Q.WriteBulkModulus},
		{qha.GruneisenFile, Q.WriteGruneisen},
	}
	for _, w := range writers {
		if err := w.w(filepath.Join(data, w.file)); err != nil {
			return nil, err
		}
	}
	for _, w := range []struct {
		file string
		w    func(string) error
	}{{qha.CpNumericalFile, Q.WriteHeatCapacityNumerical}, {qha.CpPolyfitFile, Q.WriteHeatCapacityPolyfit}} {
		if err := w.w(filepath.Join(data, w.file)); err != nil {
			R.log.Warn("heat capacity failed", "suffix", suffix, "file", w.file, "error", err)
		}
	}
	thin := int(R.cfg.Harmonic.TStep)
	if err := Q.WriteHelmholtzVolumeFitted(filepath.Join(full, qha.HelmholtzVolumeFittedFile), thin); err != nil {
		R.log.Warn("can't write the full Helmholtz table", "suffix", suffix, "error", err)
	}
	table, err := qha.ReadTable(filepath.Join(data, qha.ThermalExpansionFile))
	if err != nil {
		return nil, err
	}
	return finite(qha.LookupCTE(table, qha.ReferenceTemperatures)), nil
}

// finite drops the values that can't be written as JSON numbers.
func finite(m map[string][]float64) map[string][]float64 {
	for k, vals := range m {
		ok := vals[:0]
		for _, v := range vals {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				ok = append(ok, v)
			}
		}
		m[k] = ok
	}
	return m
}
