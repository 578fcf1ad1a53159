/*
 * structure.go, part of gocte.
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
	"fmt"
	"math"
)

// Structure is a periodic (or not) collection of atoms with its lattice
// and metadata.
type Structure struct {
	Symbols   []string
	Cell      Cell
	Positions [][3]float64 //Cartesian, Angstrom
	PBC       [3]bool
	Info      *Info
}

// NewStructure returns a fully periodic structure with empty metadata.
// The slices are copied.
func NewStructure(symbols []string, cell [3][3]float64, positions [][3]float64) (*Structure, error) {
	if len(symbols) != len(positions) {
		return nil, NewError(fmt.Sprintf("%d symbols but %d positions", len(symbols), len(positions)), "", true, ErrShape, "NewStructure")
	}
	S := &Structure{
		Symbols:   append([]string(nil), symbols...),
		Cell:      Cell(cell),
		Positions: append([][3]float64(nil), positions...),
		PBC:       [3]bool{true, true, true},
		Info:      new(Info),
	}
	return S, nil
}

// Len returns the number of atoms.
func (S *Structure) Len() int {
	return len(S.Symbols)
}

// Copy returns a deep copy of the structure, metadata included.
func (S *Structure) Copy() *Structure {
	ret := &Structure{
		Symbols:   append([]string(nil), S.Symbols...),
		Cell:      S.Cell,
		Positions: append([][3]float64(nil), S.Positions...),
		PBC:       S.PBC,
		Info:      S.Info.Copy(),
	}
	if ret.Info == nil {
		ret.Info = new(Info)
	}
	return ret
}

// Volume returns the volume of the cell, in cubic Angstrom.
func (S *Structure) Volume() float64 {
	return S.Cell.Volume()
}

// Masses returns the atomic masses, in amu.
func (S *Structure) Masses() ([]float64, error) {
	ret := make([]float64, len(S.Symbols))
	var err error
	for i, v := range S.Symbols {
		ret[i], err = Mass(v)
		if err != nil {
			return nil, ErrDecorate(err, "Structure.Masses")
		}
	}
	return ret, nil
}

// Scaled returns the fractional coordinates of the atoms.
func (S *Structure) Scaled() ([][3]float64, error) {
	inv, err := S.Cell.Inverse()
	if err != nil {
		return nil, ErrDecorate(err, "Structure.Scaled")
	}
	ret := make([][3]float64, len(S.Positions))
	for i, v := range S.Positions {
		ret[i] = MulVec3(v, inv)
	}
	return ret, nil
}

// SetScaled sets the positions from fractional coordinates.
func (S *Structure) SetScaled(frac [][3]float64) {
	S.Positions = make([][3]float64, len(frac))
	for i, v := range frac {
		S.Positions[i] = MulVec3(v, S.Cell)
	}
}

// SetCell replaces the lattice. If scaleAtoms is true, the atoms keep
// their fractional coordinates.
func (S *Structure) SetCell(cell [3][3]float64, scaleAtoms bool) error {
	if !scaleAtoms {
		S.Cell = cell
		return nil
	}
	frac, err := S.Scaled()
	if err != nil {
		return ErrDecorate(err, "Structure.SetCell")
	}
	S.Cell = cell
	S.SetScaled(frac)
	return nil
}

// Wrap puts all atoms inside the cell.
func (S *Structure) Wrap() error {
	frac, err := S.Scaled()
	if err != nil {
		return ErrDecorate(err, "Structure.Wrap")
	}
	for i := range frac {
		for j := 0; j < 3; j++ {
			frac[i][j] -= math.Floor(frac[i][j])
			if frac[i][j] > 1-1e-12 {
				frac[i][j] = 0
			}
		}
	}
	S.SetScaled(frac)
	return nil
}

// Strain scales the lattice, and the atoms with it, by (1+eps) along
// every lattice vector.
func (S *Structure) Strain(eps float64) error {
	c := S.Cell
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c[i][j] *= 1 + eps
		}
	}
	return S.SetCell(c, true)
}

// StrainC scales only the third lattice vector, and the atoms with it, by (1+eps).
func (S *Structure) StrainC(eps float64) error {
	c := S.Cell
	for j := 0; j < 3; j++ {
		c[2][j] *= 1 + eps
	}
	return S.SetCell(c, true)
}

// VolumePerAtom returns the volume per atom, rounded to the given number of decimals.
// A negative number of decimals means no rounding.
func (S *Structure) VolumePerAtom(decimals int) float64 {
	v := S.Volume() / float64(S.Len())
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
