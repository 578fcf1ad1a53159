/*
 * dos.go, part of gocte.
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
	"math"
	"os"

	cte "github.com/rmera/gocte"
)

// DOS is a phonon density of states, in states/THz per unit cell.
type DOS struct {
	Frequencies []float64
	Values      []float64
	Sigma       float64
}

// TotalDOS returns the Gaussian-smeared density of states of the mesh over
// npoints frequencies. If sigma is not positive, a hundredth of the frequency
// range is used.
func (M *Mesh) TotalDOS(sigma float64, npoints int) (*DOS, error) {
	if len(M.Frequencies) == 0 {
		return nil, cte.NewError("empty mesh", "", true, cte.ErrShape, "Mesh.TotalDOS")
	}
	if npoints < 2 {
		npoints = 201
	}
	fmin, fmax := math.Inf(1), math.Inf(-1)
	var wsum float64
	for i, row := range M.Frequencies {
		wsum += float64(M.Weights[i])
		for _, f := range row {
			if math.IsNaN(f) {
				continue
			}
			fmin = math.Min(fmin, f)
			fmax = math.Max(fmax, f)
		}
	}
	if math.IsInf(fmin, 0) || wsum == 0 {
		return nil, cte.NewError("no frequencies for a DOS", "", true, cte.ErrShape, "Mesh.TotalDOS")
	}
	if sigma <= 0 {
		sigma = math.Max((fmax-fmin)/100, 1e-3)
	}
	lo := fmin - 5*sigma
	hi := fmax + 5*sigma
	D := &DOS{Sigma: sigma, Frequencies: make([]float64, npoints), Values: make([]float64, npoints)}
	norm := 1 / (sigma * math.Sqrt(2*math.Pi))
	for k := range D.Frequencies {
		x := lo + (hi-lo)*float64(k)/float64(npoints-1)
		D.Frequencies[k] = x
		var v float64
		for i, row := range M.Frequencies {
			w := float64(M.Weights[i]) / wsum
			for _, f := range row {
				if math.IsNaN(f) {
					continue
				}
				d := (x - f) / sigma
				v += w * norm * math.Exp(-0.5*d*d)
			}
		}
		D.Values[k] = v
	}
	return D, nil
}

// Write writes the DOS as phonopy's total_dos.dat: a comment with sigma, then
// one frequency and value per line.
func (D *DOS) Write(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return cte.NewError("can't create DOS file", name, true, err, "DOS.Write")
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Sigma = %.6f\n", D.Sigma)
	for k, x := range D.Frequencies {
		fmt.Fprintf(w, "%20.10f%20.10f\n", x, D.Values[k])
	}
	if err := w.Flush(); err != nil {
		return cte.NewError("can't write DOS file", name, true, err, "DOS.Write")
	}
	return nil
}
