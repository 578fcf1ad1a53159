/*
 * stats.go, part of gocte.
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
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	cte "github.com/rmera/gocte"
)

// StatsHeader are the columns of the stats log.
var StatsHeader = []string{"ID", "MP-ID", "NAME", "TASK", "EPSILON", "DISP", "TYPE", "STEPS", "FORCE_CONV",
	"WALL_I", "WALL_F", "SYMM", "NATOM", "ENERGY", "VOLUME", "A", "B", "C", "ALPHA", "BETA", "GAMMA"}

// StatsLog appends one CSV line per evaluated structure to a file.
type StatsLog struct {
	name string
}

// OpenStats returns the stats log for the file name, writing the header if
// the file is new or empty.
func OpenStats(name string) (*StatsLog, error) {
	st, err := os.Stat(name)
	if err == nil && st.Size() > 0 {
		return &StatsLog{name: name}, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, cte.NewError("can't create stats log", name, true, err, "OpenStats")
	}
	w := csv.NewWriter(f)
	w.Write(StatsHeader)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, cte.NewError("can't write stats log", name, true, err, "OpenStats")
	}
	return &StatsLog{name: name}, f.Close()
}

// StatsRecord returns the fields of the stats line for s. task is unit,
// strain or fc2, stat is oneshot or relax, and selects which timing is used.
func StatsRecord(s *cte.Structure, task, stat string, eps float64, disp string) []string {
	info := s.Info
	if info == nil {
		info = new(cte.Info)
	}
	str := func(p *string, def string) string {
		if p == nil {
			return def
		}
		return *p
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	t := info.OneShot
	if stat == "relax" {
		t = info.Relax
	}
	walli, wallf := "wall_i", "wall_f"
	if t != nil {
		walli, wallf = num(t.Start.Wall), num(t.End.Wall)
	}
	steps := "steps?"
	if info.Steps != nil {
		steps = strconv.Itoa(*info.Steps)
	}
	conv := "force_conv?"
	if info.ForceConv != nil {
		conv = "False"
		if *info.ForceConv {
			conv = "True"
		}
	}
	symm := "task.symm.no?"
	var sp *int
	switch task {
	case "unit":
		sp = info.SymmNoUnit
	case "strain":
		sp = info.SymmNoStrain
	}
	if sp == nil {
		sp = info.SymmNo
	}
	if sp != nil {
		symm = strconv.Itoa(*sp)
	}
	energy := "energy?"
	if info.EFrEnergy != nil {
		energy = num(*info.EFrEnergy)
	}
	la := s.Cell.LengthsAngles()
	rec := []string{
		str(info.ID, "ID-?"), str(info.MaterialID, "mp-??"), str(info.Name, strings.Join(uniqueSymbols(s.Symbols), "")),
		task, num(eps), disp, stat, steps, conv, walli, wallf, symm,
		strconv.Itoa(s.Len()), energy, num(s.Volume()),
	}
	for _, v := range la {
		rec = append(rec, num(v))
	}
	return rec
}

func uniqueSymbols(s []string) []string {
	var ret []string
	seen := map[string]bool{}
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			ret = append(ret, v)
		}
	}
	return ret
}

// Write appends the stats line of s to the log.
func (S *StatsLog) Write(s *cte.Structure, task, stat string, eps float64, disp string) error {
	if S == nil {
		return nil
	}
	f, err := os.OpenFile(S.name, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return cte.NewError("can't open stats log", S.name, false, err, "StatsLog.Write")
	}
	w := csv.NewWriter(f)
	w.Write(StatsRecord(s, task, stat, eps, disp))
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return cte.NewError("can't write stats log", S.name, false, err, "StatsLog.Write")
	}
	return f.Close()
}
