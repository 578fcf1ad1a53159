/*
 * cte_test.go, part of gocte.
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
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silicon(Te *testing.T) *Structure {
	a := 5.43
	cell := [3][3]float64{{0, a / 2, a / 2}, {a / 2, 0, a / 2}, {a / 2, a / 2, 0}}
	s, err := NewStructure([]string{"Si", "Si"}, cell, [][3]float64{{0, 0, 0}, {a / 4, a / 4, a / 4}})
	require.NoError(Te, err)
	return s
}

func TestInfoUpdateNeverShrinks(Te *testing.T) {
	I := &Info{ID: Ptr("ID-0"), SymmNo: Ptr(227), Force: [][3]float64{{1, 2, 3}}}
	I.Update(&Info{EFrEnergy: Ptr(-10.5), SymmNo: Ptr(166)})
	require.NotNil(Te, I.ID)
	assert.Equal(Te, "ID-0", *I.ID)
	assert.Equal(Te, 166, *I.SymmNo)
	assert.Equal(Te, -10.5, *I.EFrEnergy)
	assert.Len(Te, I.Force, 1)
	I.Update(new(Info))
	assert.Equal(Te, "ID-0", *I.ID)

	C := I.Copy()
	*C.SymmNo = 1
	C.Force[0][0] = 100
	assert.Equal(Te, 166, *I.SymmNo)
	assert.Equal(Te, 1.0, I.Force[0][0])
}

func TestExtXYZRoundTrip(Te *testing.T) {
	fmt.Println("Extended XYZ test")
	s := silicon(Te)
	s.Info.ID = Ptr("ID-3")
	s.Info.MaterialID = Ptr("mp-149")
	s.Info.Name = Ptr("Si \"diamond\"")
	s.Info.SymmNo = Ptr(227)
	s.Info.PrimitiveMatrix = Ptr(Identity3())
	s.Info.EFrEnergy = Ptr(-10.84)
	s.Info.Stress = &[6]float64{0.01, 0.01, 0.01, 0, 0, 0}
	s.Info.ForceConv = Ptr(true)
	s.Info.Force = [][3]float64{{0.1, 0, 0}, {-0.1, 0, 0}}
	s.Info.OneShot = StartWatch().Stop()
	s.Info.Extra = map[string]string{"source": `"materials project"`}
	var b bytes.Buffer
	require.NoError(Te, ExtXYZWriteTo(&b, s, s))
	fmt.Println(b.String())
	back, err := ExtXYZReadFrom(&b)
	require.NoError(Te, err)
	require.Len(Te, back, 2)
	r := back[1]
	assert.Equal(Te, s.Symbols, r.Symbols)
	for i := range s.Positions {
		for k := 0; k < 3; k++ {
			assert.InDelta(Te, s.Positions[i][k], r.Positions[i][k], 1e-7)
		}
	}
	assert.Equal(Te, s.Cell, r.Cell)
	if d := cmp.Diff(s.Info, r.Info); d != "" {
		Te.Errorf("metadata differs (-want +got):\n%s", d)
	}
}

func TestExtXYZForeignKeys(Te *testing.T) {
	in := `2
Lattice="4 0 0 0 4 0 0 0 4" Properties=species:S:1:pos:R:3 pbc="T T T" material_id=1234 symm.no="225" energy=-3.2 name=NaCl
Na 0 0 0
Cl 2 2 2
`
	s, err := ExtXYZReadFrom(strings.NewReader(in))
	require.NoError(Te, err)
	require.Len(Te, s, 1)
	I := s[0].Info
	require.NotNil(Te, I.MaterialID)
	assert.Equal(Te, "1234", *I.MaterialID)
	require.NotNil(Te, I.SymmNo)
	assert.Equal(Te, 225, *I.SymmNo)
	assert.Equal(Te, "NaCl", *I.Name)
	assert.Equal(Te, "-3.2", I.Extra["energy"])
	assert.InDelta(Te, 64.0, s[0].Volume(), 1e-12)
}

func TestExtXYZBadInput(Te *testing.T) {
	_, err := ExtXYZReadFrom(strings.NewReader("3\nLattice=\"1 0 0 0 1 0 0 0 1\"\nH 0 0 0\n"))
	assert.Error(Te, err)
	_, err = ExtXYZRead(filepath.Join(Te.TempDir(), "nothere.extxyz"))
	assert.Error(Te, err)
}

func TestPOSCAR(Te *testing.T) {
	dir := Te.TempDir()
	s := silicon(Te)
	name := filepath.Join(dir, "CONTCAR")
	require.NoError(Te, POSCARWrite(name, s, "ID-0_mp-149_Si_227"))
	r, err := POSCARRead(name)
	require.NoError(Te, err)
	assert.Equal(Te, s.Symbols, r.Symbols)
	assert.InDelta(Te, s.Volume(), r.Volume(), 1e-9)
	for i := range s.Positions {
		for k := 0; k < 3; k++ {
			assert.InDelta(Te, s.Positions[i][k], r.Positions[i][k], 1e-9)
		}
	}
	strained := filepath.Join(dir, "POSCAR_e0.01")
	require.NoError(Te, POSCARRescale(name, strained, "ID-0-e0.01", 1.01))
	data, err := os.ReadFile(strained)
	require.NoError(Te, err)
	lines := strings.Split(string(data), "\n")
	assert.Equal(Te, "ID-0-e0.01", lines[0])
	assert.Equal(Te, "1.01", lines[1])
	r2, err := POSCARRead(strained)
	require.NoError(Te, err)
	assert.InDelta(Te, s.Volume()*math.Pow(1.01, 3), r2.Volume(), 1e-8)
	s2 := s.Copy()
	require.NoError(Te, s2.Strain(0.01))
	assert.InDelta(Te, s2.Positions[1][0], r2.Positions[1][0], 1e-9)
}

func TestCellUtilities(Te *testing.T) {
	s := silicon(Te)
	la := s.Cell.LengthsAngles()
	assert.InDelta(Te, 5.43/math.Sqrt2, la[0], 1e-12)
	assert.InDelta(Te, 60, la[3], 1e-9)
	assert.InDelta(Te, 60, la[5], 1e-9)
	assert.InDelta(Te, math.Pow(5.43, 3)/4, s.Volume(), 1e-9)
	c := s.Copy()
	require.NoError(Te, c.StrainC(0.1))
	assert.InDelta(Te, s.Volume()*1.1, c.Volume(), 1e-9)
	m, err := s.Masses()
	require.NoError(Te, err)
	assert.InDelta(Te, 28.085, m[0], 1e-9)
	_, err = Mass("Xx")
	assert.Error(Te, err)
	assert.Equal(Te, 20.4, (&Structure{Symbols: []string{"A"}, Cell: Cell{{2.71, 0, 0}, {0, 2.71, 0}, {0, 0, 2.78}}}).VolumePerAtom(1))
}
