/*
 * fcio.go, part of gocte.
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

package phonon

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	cte "github.com/rmera/gocte"
)

// WriteFC writes the force constants in phonopy's FORCE_CONSTANTS text format,
// compact form: a "n_unit n_super" header, then for each pair the 1-based
// supercell indices followed by the 3x3 block, eV/Angstrom^2.
func (P *Phonon) WriteFC(name string) error {
	if P.FC == nil {
		return cte.NewError("no force constants to write", name, true, nil, "Phonon.WriteFC")
	}
	f, err := os.Create(name)
	if err != nil {
		return cte.NewError("can't create force constants file", name, true, err, "Phonon.WriteFC")
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%4d %4d\n", len(P.FC), P.Super.Len())
	for p, row := range P.FC {
		for j, m := range row {
			fmt.Fprintf(w, "%d %d\n", P.rep(p)+1, j+1)
			for a := 0; a < 3; a++ {
				fmt.Fprintf(w, "%22.15f%22.15f%22.15f\n", m[a][0], m[a][1], m[a][2])
			}
		}
	}
	if err := w.Flush(); err != nil {
		return cte.NewError("can't write force constants", name, true, err, "Phonon.WriteFC")
	}
	return nil
}

// ReadFC reads force constants in phonopy's FORCE_CONSTANTS format, either
// compact or full, for the supercell of P. Only the blocks of the atoms of
// the unit cell in the cell 0 are kept.
func (P *Phonon) ReadFC(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return cte.NewError("can't open force constants file", name, false, err, "Phonon.ReadFC")
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	next := func() ([]string, error) {
		for sc.Scan() {
			fields := strings.Fields(sc.Text())
			if len(fields) > 0 {
				return fields, nil
			}
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected end of file")
	}
	bad := func(err error) error {
		return cte.NewError("malformed force constants file", name, true, err, "Phonon.ReadFC")
	}
	head, err := next()
	if err != nil {
		return bad(err)
	}
	n1, err := strconv.Atoi(head[0])
	if err != nil {
		return bad(err)
	}
	n2 := n1
	if len(head) > 1 {
		if n2, err = strconv.Atoi(head[1]); err != nil {
			return bad(err)
		}
	}
	n := P.Super.Len()
	nu := P.Unit.Len()
	if n2 != n || (n1 != n && n1 != nu) {
		return bad(fmt.Errorf("shape %dx%d doesn't match the supercell (%d atoms, %d in the unit cell)", n1, n2, n, nu))
	}
	fc := make([][][3][3]float64, nu)
	for p := range fc {
		fc[p] = make([][3][3]float64, n)
	}
	nc := P.ncells()
	for k := 0; k < n1*n2; k++ {
		idx, err := next()
		if err != nil || len(idx) < 2 {
			return bad(fmt.Errorf("block %d: missing indices", k))
		}
		i, err1 := strconv.Atoi(idx[0])
		j, err2 := strconv.Atoi(idx[1])
		if err1 != nil || err2 != nil || i < 1 || j < 1 || i > n || j > n {
			return bad(fmt.Errorf("block %d: bad indices %v", k, idx))
		}
		var m [3][3]float64
		for a := 0; a < 3; a++ {
			row, err := next()
			if err != nil || len(row) < 3 {
				return bad(fmt.Errorf("block %d: short row", k))
			}
			for b := 0; b < 3; b++ {
				if m[a][b], err = strconv.ParseFloat(row[b], 64); err != nil {
					return bad(err)
				}
			}
		}
		i--
		if i%nc == 0 {
			fc[i/nc][j-1] = m
		}
	}
	P.FC = fc
	return nil
}
