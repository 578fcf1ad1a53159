/*
 * poscar.go, part of gocte.
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

package cte

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

//VASP 5 POSCAR/CONTCAR files.

// POSCARRead reads a VASP 5 POSCAR (or CONTCAR) file. The scale line is applied
// to the lattice and positions. A negative scale is taken as the target volume.
func POSCARRead(name string) (*Structure, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, NewError("unable to open file", name, true, err, "POSCARRead")
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, NewError("reading POSCAR", name, true, err, "POSCARRead")
	}
	S, err := parsePOSCAR(lines)
	if err != nil {
		return nil, NewError("ill formatted POSCAR", name, true, err, "POSCARRead")
	}
	return S, nil
}

func parsePOSCAR(lines []string) (*Structure, error) {
	if len(lines) < 8 {
		return nil, fmt.Errorf("only %d lines", len(lines))
	}
	sf := strings.Fields(lines[1])
	if len(sf) == 0 {
		return nil, fmt.Errorf("empty scale line")
	}
	scale, err := strconv.ParseFloat(sf[0], 64)
	if err != nil {
		return nil, fmt.Errorf("bad scale line: %w", err)
	}
	var cell Cell
	for i := 0; i < 3; i++ {
		f := strings.Fields(lines[2+i])
		if len(f) < 3 {
			return nil, fmt.Errorf("bad lattice line %d", i+1)
		}
		for j := 0; j < 3; j++ {
			cell[i][j], err = strconv.ParseFloat(f[j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad lattice line %d: %w", i+1, err)
			}
		}
	}
	if scale < 0 {
		scale = math.Cbrt(-scale / cell.Volume())
	}
	for i := range cell {
		for j := range cell[i] {
			cell[i][j] *= scale
		}
	}
	species := strings.Fields(lines[5])
	countsLine := 6
	if len(species) == 0 {
		return nil, fmt.Errorf("empty species line")
	}
	if _, err := strconv.Atoi(species[0]); err == nil {
		return nil, fmt.Errorf("VASP 4 files without species line are not supported")
	}
	countFields := strings.Fields(lines[countsLine])
	if len(countFields) != len(species) {
		return nil, fmt.Errorf("%d species but %d counts", len(species), len(countFields))
	}
	var symbols []string
	for i, c := range countFields {
		n, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("bad count %q: %w", c, err)
		}
		for k := 0; k < n; k++ {
			symbols = append(symbols, species[i])
		}
	}
	l := countsLine + 1
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lines[l])), "s") {
		l++ //selective dynamics
	}
	mode := strings.ToLower(strings.TrimSpace(lines[l]))
	direct := strings.HasPrefix(mode, "d")
	l++
	if len(lines) < l+len(symbols) {
		return nil, fmt.Errorf("expected %d positions", len(symbols))
	}
	pos := make([][3]float64, len(symbols))
	for i := range symbols {
		f := strings.Fields(lines[l+i])
		if len(f) < 3 {
			return nil, fmt.Errorf("bad position line %d", i+1)
		}
		for j := 0; j < 3; j++ {
			pos[i][j], err = strconv.ParseFloat(f[j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad position line %d: %w", i+1, err)
			}
		}
		if !direct {
			for j := 0; j < 3; j++ {
				pos[i][j] *= scale
			}
		}
	}
	S, err := NewStructure(symbols, cell, pos)
	if err != nil {
		return nil, err
	}
	if direct {
		S.SetScaled(pos)
	}
	return S, nil
}

// POSCARWrite writes S as a VASP 5 POSCAR file in direct coordinates.
// Consecutive atoms of the same element are grouped, so the atom order is kept.
func POSCARWrite(name string, S *Structure, comment string) error {
	frac, err := S.Scaled()
	if err != nil {
		return ErrDecorate(err, "POSCARWrite")
	}
	out, err := os.Create(name)
	if err != nil {
		return NewError("unable to create file", name, true, err, "POSCARWrite")
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	if comment == "" {
		comment = strings.Join(S.Symbols, "")
	}
	fmt.Fprintln(w, strings.ReplaceAll(comment, "\n", " "))
	fmt.Fprintf(w, "%19.16f\n", 1.0)
	for i := 0; i < 3; i++ {
		fmt.Fprintf(w, " %21.16f %21.16f %21.16f\n", S.Cell[i][0], S.Cell[i][1], S.Cell[i][2])
	}
	var species []string
	var counts []string
	for i := 0; i < len(S.Symbols); {
		j := i
		for j < len(S.Symbols) && S.Symbols[j] == S.Symbols[i] {
			j++
		}
		species = append(species, S.Symbols[i])
		counts = append(counts, strconv.Itoa(j-i))
		i = j
	}
	fmt.Fprintf(w, " %s\n", strings.Join(species, " "))
	fmt.Fprintf(w, " %s\n", strings.Join(counts, " "))
	fmt.Fprintln(w, "Direct")
	for _, v := range frac {
		fmt.Fprintf(w, " %19.16f %19.16f %19.16f\n", v[0], v[1], v[2])
	}
	if err := w.Flush(); err != nil {
		return NewError("unable to write file", name, true, err, "POSCARWrite")
	}
	return nil
}

// POSCARRescale copies the POSCAR file in to out, replacing the comment line
// and multiplying the scale line by factor. The lattice, and with it the
// atoms, are thus scaled isotropically.
func POSCARRescale(in, out, comment string, factor float64) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return NewError("unable to read file", in, true, err, "POSCARRescale")
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) < 8 {
		return NewError("ill formatted POSCAR", in, true, nil, "POSCARRescale")
	}
	f := strings.Fields(lines[1])
	if len(f) == 0 {
		return NewError("missing scale line", in, true, ErrShape, "POSCARRescale")
	}
	scale, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return NewError("bad scale line", in, true, err, "POSCARRescale")
	}
	if scale < 0 {
		//volume
		scale *= factor * factor * factor
	} else {
		scale *= factor
	}
	lines[0] = comment
	lines[1] = strconv.FormatFloat(scale, 'f', -1, 64)
	if err := os.WriteFile(out, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return NewError("unable to write file", out, true, err, "POSCARRescale")
	}
	return nil
}
