/*
 * band.go, part of gocte.
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
	"os"

	cte "github.com/rmera/gocte"
	"gopkg.in/yaml.v3"
)

// BandPath is a set of straight segments in reciprocal space, in reduced
// coordinates, with labels for the segment ends.
type BandPath struct {
	Segments [][2][3]float64
	Labels   [][2]string
}

// DefaultPath runs through Gamma and the zone-boundary points of the
// reciprocal cell: G-X-M-G-R, with X=(1/2,0,0), M=(1/2,1/2,0) and R=(1/2,1/2,1/2).
func DefaultPath() BandPath {
	g := [3]float64{0, 0, 0}
	x := [3]float64{0.5, 0, 0}
	m := [3]float64{0.5, 0.5, 0}
	r := [3]float64{0.5, 0.5, 0.5}
	return BandPath{
		Segments: [][2][3]float64{{g, x}, {x, m}, {m, g}, {g, r}},
		Labels:   [][2]string{{"$\\Gamma$", "X"}, {"X", "M"}, {"M", "$\\Gamma$"}, {"$\\Gamma$", "R"}},
	}
}

// Bands holds frequencies along a band path.
type Bands struct {
	Path        BandPath
	QPoints     [][3]float64
	Distances   []float64 //cumulative, 1/Angstrom
	Frequencies [][]float64
	SegmentLen  int
}

// RunBands computes the frequencies along the path, with npoints q-points per segment.
func (P *Phonon) RunBands(path BandPath, npoints int) (*Bands, error) {
	if npoints < 2 {
		npoints = 51
	}
	inv, err := P.Unit.Cell.Inverse()
	if err != nil {
		return nil, cte.ErrDecorate(err, "Phonon.RunBands")
	}
	//reciprocal lattice vectors are the rows of the transposed inverse
	rec := cte.Transpose3(inv)
	B := &Bands{Path: path, SegmentLen: npoints}
	var dist float64
	var last [3]float64
	for _, seg := range path.Segments {
		for k := 0; k < npoints; k++ {
			t := float64(k) / float64(npoints-1)
			var q [3]float64
			for a := 0; a < 3; a++ {
				q[a] = seg[0][a] + t*(seg[1][a]-seg[0][a])
			}
			if k > 0 {
				var d [3]float64
				for a := 0; a < 3; a++ {
					d[a] = q[a] - last[a]
				}
				dist += cte.Norm(cte.MulVec3(d, rec))
			}
			last = q
			f, err := P.frequenciesOnly(q)
			if err != nil {
				return nil, cte.ErrDecorate(err, "Phonon.RunBands")
			}
			B.QPoints = append(B.QPoints, q)
			B.Distances = append(B.Distances, dist)
			B.Frequencies = append(B.Frequencies, f)
		}
	}
	return B, nil
}

type bandFrequency struct {
	Frequency float64 `yaml:"frequency"`
}

type bandPoint struct {
	QPosition [3]float64      `yaml:"q-position,flow"`
	Distance  float64         `yaml:"distance"`
	Band      []bandFrequency `yaml:"band"`
}

type bandYAML struct {
	NQPoint        int         `yaml:"nqpoint"`
	NPath          int         `yaml:"npath"`
	SegmentNQPoint []int       `yaml:"segment_nqpoint,flow"`
	Labels         [][2]string `yaml:"labels"`
	Natom          int         `yaml:"natom"`
	Phonon         []bandPoint `yaml:"phonon"`
}

// WriteYAML writes the band structure in the layout of phonopy's band.yaml.
func (B *Bands) WriteYAML(name string, natom int) error {
	doc := bandYAML{
		NQPoint: len(B.QPoints),
		NPath:   len(B.Path.Segments),
		Labels:  B.Path.Labels,
		Natom:   natom,
	}
	for range B.Path.Segments {
		doc.SegmentNQPoint = append(doc.SegmentNQPoint, B.SegmentLen)
	}
	for i, q := range B.QPoints {
		p := bandPoint{QPosition: q, Distance: B.Distances[i]}
		for _, f := range B.Frequencies[i] {
			p.Band = append(p.Band, bandFrequency{f})
		}
		doc.Phonon = append(doc.Phonon, p)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return cte.NewError("can't encode bands", name, true, err, "Bands.WriteYAML")
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return cte.NewError("can't write bands", name, true, err, "Bands.WriteYAML")
	}
	return nil
}
