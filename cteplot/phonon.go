/*
 * phonon.go, part of gocte.
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

package cteplot

import (
	"fmt"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/phonon"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
)

// ThermalProperties plots the free energy, entropy and heat capacity against
// the temperature.
func ThermalProperties(tp *phonon.ThermalProperties, title, filename string) error {
	p := basicPlot(title, "Temperature (K)", "kJ/mol, J/K/mol")
	series := []struct {
		name string
		y    []float64
	}{
		{"Free energy (kJ/mol)", tp.FreeEnergy},
		{"Entropy (J/K/mol)", tp.Entropy},
		{"Cv (J/K/mol)", tp.HeatCapacity},
	}
	for i, s := range series {
		pts, err := xys(tp.Temperatures, s.y)
		if err != nil {
			return cte.ErrDecorate(err, "ThermalProperties")
		}
		if err := addLine(p, pts, i, len(series), s.name); err != nil {
			return cte.NewError("can't draw thermal properties", filename, false, err, "ThermalProperties")
		}
	}
	p.Legend.Top = true
	return save(p, filename, "ThermalProperties")
}

// DOS plots a density of states.
func DOS(d *phonon.DOS, title, filename string) error {
	p := basicPlot(title, "Frequency (THz)", "DOS (states/THz)")
	pts, err := xys(d.Frequencies, d.Values)
	if err != nil {
		return cte.ErrDecorate(err, "DOS")
	}
	if err := addLine(p, pts, 0, 1, ""); err != nil {
		return cte.NewError("can't draw DOS", filename, false, err, "DOS")
	}
	p.Y.Min = 0
	return save(p, filename, "DOS")
}

// Bands plots a band structure, with the path labels as ticks of the x axis.
func Bands(b *phonon.Bands, title, filename string) error {
	if len(b.Frequencies) == 0 || b.SegmentLen < 2 {
		return cte.NewError("no bands to plot", filename, false, cte.ErrShape, "Bands")
	}
	p := basicPlot(title, "", "Frequency (THz)")
	nband := len(b.Frequencies[0])
	nseg := len(b.Frequencies) / b.SegmentLen
	var ticks []plot.Tick
	for s := 0; s < nseg; s++ {
		first, last := s*b.SegmentLen, (s+1)*b.SegmentLen-1
		if s < len(b.Path.Labels) {
			ticks = append(ticks, plot.Tick{Value: b.Distances[first], Label: plainLabel(b.Path.Labels[s][0])})
			if s == nseg-1 {
				ticks = append(ticks, plot.Tick{Value: b.Distances[last], Label: plainLabel(b.Path.Labels[s][1])})
			}
		}
		for j := 0; j < nband; j++ {
			pts := make(plotter.XYs, 0, b.SegmentLen)
			for k := first; k <= last; k++ {
				pts = append(pts, plotter.XY{X: b.Distances[k], Y: b.Frequencies[k][j]})
			}
			if err := addLine(p, pts, 0, 1, ""); err != nil {
				return cte.NewError(fmt.Sprintf("can't draw band %d", j), filename, false, err, "Bands")
			}
		}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Min = b.Distances[0]
	p.X.Max = b.Distances[len(b.Distances)-1]
	return save(p, filename, "Bands")
}
