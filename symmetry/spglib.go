/*
 * spglib.go, part of gocte.
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

package symmetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	cte "github.com/rmera/gocte"
)

// spglibScript reads a cell from stdin and writes the spglib dataset to stdout.
const spglibScript = `
import sys, json
import spglib
d = json.load(sys.stdin)
cell = (d["lattice"], d["positions"], d["numbers"])
ds = spglib.get_symmetry_dataset(cell, symprec=d["symprec"])
if ds is None:
    raise SystemExit("spglib failed: " + str(spglib.get_error_message()))
get = (lambda k: getattr(ds, k)) if hasattr(ds, "number") else (lambda k: ds[k])
json.dump({"number": int(get("number")),
           "rotations": get("rotations").tolist(),
           "translations": get("translations").tolist()}, sys.stdout)
`

// Spglib finds the symmetry with the spglib library, through an external
// Python interpreter that must have it installed.
type Spglib struct {
	command string
}

// NewSpglib returns a handle that runs the given Python interpreter (python3 if empty).
func NewSpglib(command string) *Spglib {
	if command == "" {
		command = "python3"
	}
	return &Spglib{command: command}
}

// Command returns the interpreter used.
func (S *Spglib) Command() string {
	return S.command
}

type spglibInput struct {
	Lattice   [3][3]float64 `json:"lattice"`
	Positions [][3]float64  `json:"positions"`
	Numbers   []int         `json:"numbers"`
	Symprec   float64       `json:"symprec"`
}

type spglibOutput struct {
	Number       int          `json:"number"`
	Rotations    [][3][3]int  `json:"rotations"`
	Translations [][3]float64 `json:"translations"`
}

// Find runs spglib on s. The dataset has ITA space group numbers.
func (S *Spglib) Find(s *cte.Structure, symprec float64) (*Dataset, error) {
	if symprec <= 0 {
		symprec = DefaultSymprec
	}
	frac, err := s.Scaled()
	if err != nil {
		return nil, cte.ErrDecorate(err, "Spglib.Find")
	}
	//spglib only needs to tell species apart
	types := make(map[string]int)
	numbers := make([]int, s.Len())
	for i, v := range s.Symbols {
		n, ok := types[v]
		if !ok {
			n = len(types) + 1
			types[v] = n
		}
		numbers[i] = n
	}
	in, err := json.Marshal(spglibInput{Lattice: s.Cell, Positions: frac, Numbers: numbers, Symprec: symprec})
	if err != nil {
		return nil, cte.NewError("encoding spglib input", "", true, err, "Spglib.Find")
	}
	command := exec.Command(S.command, "-c", spglibScript)
	command.Stdin = bytes.NewReader(in)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, cte.NewError(fmt.Sprintf("spglib failed: %s", strings.TrimSpace(stderr.String())), "", true, err, "Spglib.Find")
	}
	var out spglibOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, cte.NewError("can't parse spglib output", "", true, err, "Spglib.Find")
	}
	if len(out.Rotations) != len(out.Translations) {
		return nil, cte.NewError("spglib returned mismatched operations", "", true, cte.ErrShape, "Spglib.Find")
	}
	return &Dataset{Number: out.Number, ITA: true, Rotations: out.Rotations, Translations: out.Translations}, nil
}
