/*
 * plotutils.go, part of gocte.
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

// Package cteplot draws the optional figures of the pipeline (thermal
// properties, densities of states, band structures and quasi-harmonic curves)
// as SVG files, with gonum/plot.
package cteplot

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	cte "github.com/rmera/gocte"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Size is the side of the (square) figures.
var Size = 4 * vg.Inch

func basicPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Padding = 3 * vg.Millimeter
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

// save writes the plot to filename. The format is given by the extension.
func save(p *plot.Plot, filename, caller string) error {
	if err := p.Save(Size, Size, filename); err != nil {
		return cte.NewError("can't save plot", filename, false, err, caller)
	}
	return nil
}

// xys builds plotter points from two columns, skipping non-finite values.
func xys(x, y []float64) (plotter.XYs, error) {
	if len(x) != len(y) {
		return nil, cte.NewError(fmt.Sprintf("%d x values and %d y values", len(x), len(y)), "", false, cte.ErrShape, "xys")
	}
	ret := make(plotter.XYs, 0, len(x))
	for i := range x {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		ret = append(ret, plotter.XY{X: x[i], Y: y[i]})
	}
	return ret, nil
}

// addLine adds a line through the points, colored as the key-th of steps
// series, with a legend entry if legend is not empty.
func addLine(p *plot.Plot, pts plotter.XYs, key, steps int, legend string) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	r, g, b := colors(key, steps)
	l.LineStyle.Color = color.RGBA{R: r, G: g, B: b, A: 255}
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l)
	if legend != "" {
		p.Legend.Add(legend, l)
	}
	return nil
}

// addPoints adds a scatter of the points with the key-th glyph.
func addPoints(p *plot.Plot, pts plotter.XYs, key, steps int) error {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	r, g, b := colors(key, steps)
	s.GlyphStyle.Color = color.RGBA{R: r, G: g, B: b, A: 255}
	s.GlyphStyle.Shape = shape(key)
	p.Add(s)
	return nil
}

// takes hue (0-360), v and s (0-1), returns r,g,b (0-255)
func iHVS2RGB(h, v, s float64) (uint8, uint8, uint8) {
	conversion := 255.0 * v
	if s == 0.0 {
		return uint8(conversion), uint8(conversion), uint8(conversion)
	}
	h = h / 60
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default: //case 5
		r, g, b = v, p, q
	}
	return uint8(r * conversion), uint8(g * conversion), uint8(b * conversion)
}

// colors spreads steps colors over the hue wheel, jumping over the yellows,
// which are hard to see on white.
func colors(key, steps int) (r, g, b uint8) {
	if steps < 1 {
		steps = 1
	}
	norm := 260.0 / float64(steps)
	hp := float64(key)*norm + 20.0
	h := hp + 20.0
	if hp < 55 {
		h = hp - 20.0
	}
	return iHVS2RGB(h, 0.9, 1)
}

func shape(key int) draw.GlyphDrawer {
	switch key % 5 {
	case 0:
		return draw.CircleGlyph{}
	case 1:
		return draw.SquareGlyph{}
	case 2:
		return draw.PyramidGlyph{}
	case 3:
		return draw.CrossGlyph{}
	default:
		return draw.RingGlyph{}
	}
}

// plainLabel turns the TeX point labels of band paths into plain text.
func plainLabel(l string) string {
	l = strings.ReplaceAll(l, "$\\Gamma$", "Γ")
	return strings.Trim(l, "$")
}
