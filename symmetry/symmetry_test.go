/*
 * symmetry_test.go, part of gocte.
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
	"errors"
	"fmt"
	"math"
	"testing"

	cte "github.com/rmera/gocte"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fcc(Te *testing.T, a float64) *cte.Structure {
	cell := [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}}
	pos := [][3]float64{{0, 0, 0}, {0, a / 2, a / 2}, {a / 2, 0, a / 2}, {a / 2, a / 2, 0}}
	s, err := cte.NewStructure([]string{"Ar", "Ar", "Ar", "Ar"}, cell, pos)
	require.NoError(Te, err)
	return s
}

func diamond(Te *testing.T) *cte.Structure {
	a := 5.43
	cell := [3][3]float64{{0, a / 2, a / 2}, {a / 2, 0, a / 2}, {a / 2, a / 2, 0}}
	s, err := cte.NewStructure([]string{"Si", "Si"}, cell, [][3]float64{{0, 0, 0}, {a / 4, a / 4, a / 4}})
	require.NoError(Te, err)
	return s
}

func TestSearch(Te *testing.T) {
	D, err := Search{}.Find(fcc(Te, 5.3), 1e-5)
	require.NoError(Te, err)
	fmt.Println("fcc operations:", D.Len())
	assert.Equal(Te, 192, D.Len())
	assert.Len(Te, D.PointGroup(), 48)
	assert.True(Te, D.ITA)
	assert.Equal(Te, 225, D.Number)
	assert.Equal(Te, [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, D.Rotations[0])

	D, err = Search{}.Find(diamond(Te), 1e-5)
	require.NoError(Te, err)
	assert.Equal(Te, 48, D.Len())
	assert.True(Te, D.ITA)
	assert.Equal(Te, 227, D.Number)

	t := fcc(Te, 5.3)
	require.NoError(Te, t.StrainC(0.02))
	D, err = Search{}.Find(t, 1e-5)
	require.NoError(Te, err)
	assert.Len(Te, D.PointGroup(), 16)
	assert.Equal(Te, 139, D.Number)

	p := fcc(Te, 5.3)
	p.Positions[0][2] += 0.05
	D, err = Search{}.Find(p, 1e-5)
	require.NoError(Te, err)
	assert.Less(Te, D.Len(), 192)
	assert.True(Te, D.ITA)
	assert.Equal(Te, 99, D.Number)
}

func hexagonalCell(a, c float64) [3][3]float64 {
	return [3][3]float64{{a, 0, 0}, {-a / 2, a * math.Sqrt(3) / 2, 0}, {0, 0, c}}
}

func fromScaled(Te *testing.T, symbols []string, cell [3][3]float64, frac [][3]float64) *cte.Structure {
	pos := make([][3]float64, len(frac))
	for i, f := range frac {
		pos[i] = cte.MulVec3(f, cell)
	}
	s, err := cte.NewStructure(symbols, cell, pos)
	require.NoError(Te, err)
	return s
}

func TestSpaceGroup(Te *testing.T) {
	u := 0.382
	r := 0.305
	z := 0.227
	ah, ch := 3.76, 10.55
	rh := [3][3]float64{
		{ah / 2, ah * math.Sqrt(3) / 6, ch / 3},
		{-ah / 2, ah * math.Sqrt(3) / 6, ch / 3},
		{0, -ah * math.Sqrt(3) / 3, ch / 3},
	}
	beta := 100 * math.Pi / 180
	shifted := diamond(Te)
	for i := range shifted.Positions {
		shifted.Positions[i] = [3]float64{shifted.Positions[i][0] + 0.37, shifted.Positions[i][1] + 0.11, shifted.Positions[i][2] + 0.53}
	}
	cases := []struct {
		name string
		s    *cte.Structure
		want int
	}{
		{"wurtzite", fromScaled(Te, []string{"Zn", "Zn", "O", "O"}, hexagonalCell(3.25, 5.207),
			[][3]float64{{1.0 / 3, 2.0 / 3, 0}, {2.0 / 3, 1.0 / 3, 0.5}, {1.0 / 3, 2.0 / 3, u}, {2.0 / 3, 1.0 / 3, 0.5 + u}}), 186},
		{"hcp", fromScaled(Te, []string{"Mg", "Mg"}, hexagonalCell(3.21, 5.21),
			[][3]float64{{1.0 / 3, 2.0 / 3, 0.25}, {2.0 / 3, 1.0 / 3, 0.75}}), 194},
		{"rutile", fromScaled(Te, []string{"Ti", "Ti", "O", "O", "O", "O"}, [3][3]float64{{4.59, 0, 0}, {0, 4.59, 0}, {0, 0, 2.96}},
			[][3]float64{{0, 0, 0}, {0.5, 0.5, 0.5}, {r, r, 0}, {1 - r, 1 - r, 0}, {0.5 + r, 0.5 - r, 0.5}, {0.5 - r, 0.5 + r, 0.5}}), 136},
		{"arsenic", fromScaled(Te, []string{"As", "As"}, rh, [][3]float64{{z, z, z}, {1 - z, 1 - z, 1 - z}}), 166},
		{"CsCl", fromScaled(Te, []string{"Cs", "Cl"}, [3][3]float64{{4.1, 0, 0}, {0, 4.1, 0}, {0, 0, 4.1}},
			[][3]float64{{0, 0, 0}, {0.5, 0.5, 0.5}}), 221},
		{"zincblende", fromScaled(Te, []string{"Zn", "Zn", "Zn", "Zn", "S", "S", "S", "S"}, [3][3]float64{{5.41, 0, 0}, {0, 5.41, 0}, {0, 0, 5.41}},
			[][3]float64{{0, 0, 0}, {0, 0.5, 0.5}, {0.5, 0, 0.5}, {0.5, 0.5, 0}, {0.25, 0.25, 0.25}, {0.25, 0.75, 0.75}, {0.75, 0.25, 0.75}, {0.75, 0.75, 0.25}}), 216},
		{"orthorhombic", fromScaled(Te, []string{"Ar"}, [3][3]float64{{3, 0, 0}, {0, 4, 0}, {0, 0, 5}}, [][3]float64{{0, 0, 0}}), 47},
		{"monoclinic", fromScaled(Te, []string{"Ar"}, [3][3]float64{{3, 0, 0}, {0, 4, 0}, {5 * math.Cos(beta), 0, 5 * math.Sin(beta)}}, [][3]float64{{0, 0, 0}}), 10},
		{"triclinic", fromScaled(Te, []string{"Ar"}, [3][3]float64{{3, 0, 0}, {0.4, 4, 0}, {0.7, -0.9, 5}}, [][3]float64{{0, 0, 0}}), 2},
		{"shifted diamond", shifted, 227},
	}
	for _, c := range cases {
		D, err := Search{}.Find(c.s, 1e-5)
		require.NoError(Te, err, c.name)
		fmt.Println(c.name, "operations:", D.Len(), "space group:", D.Number)
		assert.True(Te, D.ITA, c.name)
		assert.Equal(Te, c.want, D.Number, c.name)
	}
}

func TestHallTable(Te *testing.T) {
	table, err := hallTable()
	require.NoError(Te, err)
	require.Len(Te, table, 230)
	same := func(a, b *hallGroup) bool {
		if a.sig != b.sig || !a.centering.equal(b.centering) || len(a.intr) != len(b.intr) {
			return false
		}
		for w, s := range a.intr {
			t, ok := b.intr[w]
			if !ok || !s.equal(t) {
				return false
			}
		}
		return true
	}
	//only these pairs share every screw and glide, axesMeet tells them apart
	var twins [][2]int
	for i := range table {
		for j := i + 1; j < len(table); j++ {
			if same(table[i], table[j]) {
				twins = append(twins, [2]int{table[i].number, table[j].number})
			}
		}
	}
	assert.Equal(Te, [][2]int{{23, 24}, {197, 199}}, twins)
	orders := map[int]int{1: 1, 2: 2, 15: 8, 70: 32, 166: 36, 194: 24, 225: 192, 227: 192, 230: 96}
	for n, want := range orders {
		gens, err := parseHall(hallSymbols[n])
		require.NoError(Te, err)
		assert.Len(Te, closure(gens), want, "group %d", n)
	}
	_, err = parseHall("Q 2")
	assert.Error(Te, err)
	_, err = parseHall("P 5")
	assert.Error(Te, err)
}

func TestSymmetrizer(Te *testing.T) {
	s := diamond(Te)
	sym, err := NewSymmetrizer(s, Search{}, 1e-5)
	require.NoError(Te, err)
	//every atom of diamond sits on a -43m site, so no force survives
	f, err := sym.Forces(s, [][3]float64{{0.3, -0.1, 0.2}, {0.1, 0.1, -0.4}})
	require.NoError(Te, err)
	for _, v := range f {
		for _, c := range v {
			assert.InDelta(Te, 0, c, 1e-12)
		}
	}
	st, err := sym.Stress(s, [6]float64{0.1, 0.2, 0.3, 0.05, -0.02, 0.01})
	require.NoError(Te, err)
	assert.InDelta(Te, 0.2, st[0], 1e-12)
	assert.InDelta(Te, 0.2, st[1], 1e-12)
	assert.InDelta(Te, 0.2, st[2], 1e-12)
	for _, v := range st[3:] {
		assert.InDelta(Te, 0, v, 1e-12)
	}
	perms, err := sym.Dataset().Permutations(s, 1e-5)
	require.NoError(Te, err)
	assert.Len(Te, perms, 48)
}

func TestNewFinder(Te *testing.T) {
	f, err := NewFinder("", "")
	require.NoError(Te, err)
	_, ok := f.(Search)
	assert.True(Te, ok)
	f, err = NewFinder("SPGLIB", "")
	require.NoError(Te, err)
	assert.Equal(Te, "python3", f.(*Spglib).Command())
	_, err = NewFinder("nope", "")
	assert.True(Te, errors.Is(err, cte.ErrConfig))
}
