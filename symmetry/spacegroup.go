/*
 * spacegroup.go, part of gocte.
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
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	cte "github.com/rmera/gocte"
)

// The space-group type of a set of operations is found by bringing them to a
// conventional cell, built from the rotation axes and the lattice, and
// comparing, rotation by rotation, the screw and glide parts with those of
// each type in its standard setting. Those parts don't depend on the origin.

// hallSymbols holds one Hall symbol per space-group type, in the standard
// setting (unique axis b, cell choice 1, hexagonal axes for R). Origin shifts
// are left out.
var hallSymbols = [...]string{
	"",
	"P 1", "-P 1", "P 2y", "P 2yb", "C 2y", //1
	"P -2y", "P -2yc", "C -2y", "C -2yc", "-P 2y", //6
	"-P 2yb", "-C 2y", "-P 2yc", "-P 2ybc", "-C 2yc", //11
	"P 2 2", "P 2c 2", "P 2 2ab", "P 2ac 2ab", "C 2c 2", //16
	"C 2 2", "F 2 2", "I 2 2", "I 2b 2c", "P 2 -2", //21
	"P 2c -2", "P 2 -2c", "P 2 -2a", "P 2c -2ac", "P 2 -2bc", //26
	"P 2ac -2", "P 2 -2ab", "P 2c -2n", "P 2 -2n", "C 2 -2", //31
	"C 2c -2", "C 2 -2c", "A 2 -2", "A 2 -2c", "A 2 -2a", //36
	"A 2 -2ac", "F 2 -2", "F 2 -2d", "I 2 -2", "I 2 -2c", //41
	"I 2 -2a", "-P 2 2", "P 2 2 -1n", "-P 2 2c", "P 2 2 -1ab", //46
	"-P 2a 2a", "-P 2a 2bc", "-P 2ac 2", "-P 2a 2ac", "-P 2 2ab", //51
	"-P 2ab 2ac", "-P 2c 2b", "-P 2 2n", "P 2 2ab -1ab", "-P 2n 2ab", //56
	"-P 2ac 2ab", "-P 2ac 2n", "-C 2c 2", "-C 2ac 2", "-C 2 2", //61
	"-C 2 2c", "-C 2a 2", "C 2 2 -1ac", "-F 2 2", "F 2 2 -1d", //66
	"-I 2 2", "-I 2 2c", "-I 2b 2c", "-I 2b 2", "P 4", //71
	"P 4w", "P 4c", "P 4cw", "I 4", "I 4bw", //76
	"P -4", "I -4", "-P 4", "-P 4c", "P 4ab -1ab", //81
	"P 4n -1n", "-I 4", "I 4bw -1bw", "P 4 2", "P 4ab 2ab", //86
	"P 4w 2c", "P 4abw 2nw", "P 4c 2", "P 4n 2n", "P 4cw 2c", //91
	"P 4nw 2abw", "I 4 2", "I 4bw 2bw", "P 4 -2", "P 4 -2ab", //96
	"P 4c -2c", "P 4n -2n", "P 4 -2c", "P 4 -2n", "P 4c -2", //101
	"P 4c -2ab", "I 4 -2", "I 4 -2c", "I 4bw -2", "I 4bw -2c", //106
	"P -4 2", "P -4 2c", "P -4 2ab", "P -4 2n", "P -4 -2", //111
	"P -4 -2c", "P -4 -2ab", "P -4 -2n", "I -4 -2", "I -4 -2c", //116
	"I -4 2", "I -4 2bw", "-P 4 2", "-P 4 2c", "P 4 2 -1ab", //121
	"P 4 2 -1n", "-P 4 2ab", "-P 4 2n", "P 4ab 2ab -1ab", "P 4ab 2n -1ab", //126
	"-P 4c 2", "-P 4c 2c", "P 4n 2c -1n", "P 4n 2 -1n", "-P 4c 2ab", //131
	"-P 4n 2n", "P 4n 2n -1n", "P 4n 2ab -1n", "-I 4 2", "-I 4 2c", //136
	"I 4bw 2bw -1bw", "I 4bw 2aw -1bw", "P 3", "P 31", "P 32", //141
	"R 3", "-P 3", "-R 3", "P 3 2", `P 3 2"`, //146
	"P 31 2c", `P 31 2"`, "P 32 2c", `P 32 2"`, `R 3 2"`, //151
	`P 3 -2"`, "P 3 -2", `P 3 -2"c`, "P 3 -2c", `R 3 -2"`, //156
	`R 3 -2"c`, "-P 3 2", "-P 3 2c", `-P 3 2"`, `-P 3 2"c`, //161
	`-R 3 2"`, `-R 3 2"c`, "P 6", "P 61", "P 65", //166
	"P 62", "P 64", "P 6c", "P -6", "-P 6", //171
	"-P 6c", "P 6 2", "P 61 2", "P 65 2", "P 62 2c", //176
	"P 64 2c", "P 6c 2c", "P 6 -2", "P 6 -2c", "P 6c -2", //181
	"P 6c -2c", "P -6 2", "P -6c 2", "P -6 -2", "P -6c -2c", //186
	"-P 6 2", "-P 6 2c", "-P 6c 2", "-P 6c 2c", "P 2 2 3", //191
	"F 2 2 3", "I 2 2 3", "P 2ac 2ab 3", "I 2b 2c 3", "-P 2 2 3", //196
	"P 2 2 3 -1n", "-F 2 2 3", "F 2 2 3 -1d", "-I 2 2 3", "-P 2ac 2ab 3", //201
	"-I 2b 2c 3", "P 4 2 3", "P 4n 2 3", "F 4 2 3", "F 4d 2 3", //206
	"I 4 2 3", "P 4acd 2ab 3", "P 4bd 2ab 3", "I 4bd 2c 3", "P -4 2 3", //211
	"F -4 2 3", "I -4 2 3", "P -4n 2 3", "F -4c 2 3", "I -4bd 2c 3", //216
	"-P 4 2 3", "P 4 2 3 -1n", "-P 4n 2 3", "P 4n 2 3 -1n", "-F 4 2 3", //221
	"-F 4c 2 3", "F 4d 2 3 -1d", "F 4d 2 3 -1cd", "-I 4 2 3", "-I 4bd 2c 3", //226
}

var ident = [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

var hallLattices = map[byte][][3]float64{
	'P': nil,
	'A': {{0, 0.5, 0.5}},
	'B': {{0.5, 0, 0.5}},
	'C': {{0.5, 0.5, 0}},
	'I': {{0.5, 0.5, 0.5}},
	'R': {{2.0 / 3, 1.0 / 3, 1.0 / 3}, {1.0 / 3, 2.0 / 3, 2.0 / 3}},
	'F': {{0, 0.5, 0.5}, {0.5, 0, 0.5}, {0.5, 0.5, 0}},
}

var hallTranslations = map[byte][3]float64{
	'a': {0.5, 0, 0},
	'b': {0, 0.5, 0},
	'c': {0, 0, 0.5},
	'n': {0.5, 0.5, 0.5},
	'u': {0.25, 0, 0},
	'v': {0, 0.25, 0},
	'w': {0, 0, 0.25},
	'd': {0.25, 0.25, 0.25},
}

// hallRotations are the proper rotations used in the table, by order and axis.
// ' and " are the two-fold axes along a-b and a+b, * the body diagonal.
var hallRotations = map[string][3][3]int{
	"2x": {{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
	"2y": {{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}},
	"2z": {{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
	"3z": {{0, -1, 0}, {1, -1, 0}, {0, 0, 1}},
	"4x": {{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	"4y": {{0, 0, 1}, {0, 1, 0}, {-1, 0, 0}},
	"4z": {{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	"6z": {{1, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	"2'": {{0, -1, 0}, {-1, 0, 0}, {0, 0, -1}},
	`2"`: {{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	"3*": {{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
}

// symOp is an operation with its translation reduced to [0,1).
type symOp struct {
	w [3][3]int
	t [3]float64
}

func mulInt(a, b [3][3]int) [3][3]int {
	var ret [3][3]int
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				ret[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return ret
}

func negInt(a [3][3]int) [3][3]int {
	for i := range a {
		for j := range a[i] {
			a[i][j] = -a[i][j]
		}
	}
	return a
}

func detInt(w [3][3]int) int {
	return w[0][0]*(w[1][1]*w[2][2]-w[1][2]*w[2][1]) -
		w[0][1]*(w[1][0]*w[2][2]-w[1][2]*w[2][0]) +
		w[0][2]*(w[1][0]*w[2][1]-w[1][1]*w[2][0])
}

func mod1(x float64) float64 {
	x -= math.Floor(x)
	if x > 1-1e-6 {
		return 0
	}
	return x
}

func mod1v(v [3]float64) [3]float64 {
	for k := range v {
		v[k] = mod1(v[k])
	}
	return v
}

func add3(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// matVec returns m v, with v a column vector.
func matVec(m [3][3]float64, v [3]float64) [3]float64 {
	var ret [3]float64
	for i := 0; i < 3; i++ {
		ret[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return ret
}

func compose(a, b symOp) symOp {
	return symOp{w: mulInt(a.w, b.w), t: mod1v(Apply(a.w, a.t, b.t))}
}

// rotType returns the kind of rotation: 1, 2, 3, 4 and 6 for proper
// rotations, and the same numbers, negative, for rotoinversions (-2 is a
// mirror). It returns 0 for a non-crystallographic matrix.
func rotType(w [3][3]int) int {
	tr := w[0][0] + w[1][1] + w[2][2]
	if detInt(w) < 0 {
		return -properByTrace[-tr]
	}
	return properByTrace[tr]
}

var properByTrace = map[int]int{3: 1, -1: 2, 0: 3, 1: 4, 2: 6}

// order returns the smallest n > 0 with W^n = 1.
func order(w [3][3]int) int {
	p := w
	for n := 1; n <= 6; n++ {
		if p == ident {
			return n
		}
		p = mulInt(p, w)
	}
	return 0
}

// intrinsic returns the screw or glide part of (w, t): the mean of W^k t
// over the order of W.
func intrinsic(w [3][3]int, t [3]float64) [3]float64 {
	n := order(w)
	if n == 0 {
		return [3]float64{}
	}
	var sum [3]float64
	p := ident
	for k := 0; k < n; k++ {
		sum = add3(sum, Apply(p, [3]float64{}, t))
		p = mulInt(p, w)
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum
}

// vecSet is a set of fractional vectors, modulo integer translations.
type vecSet [][3]float64

const setTol = 1e-3

func sameMod1(a, b [3]float64) bool {
	for k := range a {
		d := a[k] - b[k]
		if math.Abs(d-math.Round(d)) > setTol {
			return false
		}
	}
	return true
}

func (S vecSet) has(v [3]float64) bool {
	for _, u := range S {
		if sameMod1(u, v) {
			return true
		}
	}
	return false
}

func (S *vecSet) add(v [3]float64) {
	if !S.has(v) {
		*S = append(*S, mod1v(v))
	}
}

func (S vecSet) equal(o vecSet) bool {
	if len(S) != len(o) {
		return false
	}
	for _, v := range S {
		if !o.has(v) {
			return false
		}
	}
	return true
}

// projectedLattice returns the intrinsic parts of the pure translations of
// the lattice (integer vectors plus cent) under w, reduced to [0,1). Intrinsic
// parts of operations with the same rotation are compared modulo this set.
func projectedLattice(w [3][3]int, cent vecSet) vecSet {
	gens := append([][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, cent...)
	ret := vecSet{{}}
	for i := 0; i < len(ret); i++ {
		for _, g := range gens {
			ret.add(add3(ret[i], intrinsic(w, g)))
		}
	}
	return ret
}

func intrinsicSet(w [3][3]int, ts [][3]float64, cent vecSet) vecSet {
	g := projectedLattice(w, cent)
	var ret vecSet
	for _, t := range ts {
		tau := intrinsic(w, t)
		for _, h := range g {
			ret.add(add3(tau, h))
		}
	}
	return ret
}

// signature counts the rotations of a point group by kind.
type signature [10]int

var kindIndex = map[int]int{1: 0, 2: 1, 3: 2, 4: 3, 6: 4, -1: 5, -2: 6, -3: 7, -4: 8, -6: 9}

func signatureOf(pg [][3][3]int) signature {
	var s signature
	for _, w := range pg {
		if i, ok := kindIndex[rotType(w)]; ok {
			s[i]++
		}
	}
	return s
}

func (S signature) count(kinds ...int) int {
	n := 0
	for _, k := range kinds {
		n += S[kindIndex[k]]
	}
	return n
}

const (
	triclinic = iota
	monoclinic
	orthorhombic
	tetragonal
	hexagonal
	cubic
)

func (S signature) system() int {
	switch {
	case S.count(3) == 8:
		return cubic
	case S.count(3, -3, 6, -6) > 0:
		return hexagonal
	case S.count(4, -4) > 0:
		return tetragonal
	case S.count(2, -2) >= 3:
		return orthorhombic
	case S.count(2, -2) > 0:
		return monoclinic
	}
	return triclinic
}

// hallMatrix parses one rotation of a Hall symbol. i is its position, and
// prev the order of the previous one, which set the default axis.
func hallMatrix(tok string, i, prev int) (symOp, int, error) {
	var op symOp
	bad := fmt.Errorf("malformed Hall rotation %q", tok)
	improper := strings.HasPrefix(tok, "-")
	tok = strings.TrimPrefix(tok, "-")
	if tok == "" {
		return op, 0, bad
	}
	n := int(tok[0] - '0')
	tok = tok[1:]
	if n != 1 && n != 2 && n != 3 && n != 4 && n != 6 {
		return op, 0, bad
	}
	screw := 0
	if n > 1 && len(tok) > 0 && tok[0] >= '1' && tok[0] < byte('0'+n) {
		screw = int(tok[0] - '0')
		tok = tok[1:]
	}
	var axis byte
	if len(tok) > 0 && strings.IndexByte(`xyz'"*`, tok[0]) >= 0 {
		axis = tok[0]
		tok = tok[1:]
	}
	if axis == 0 {
		switch {
		case i == 0:
			axis = 'z'
		case i == 1 && n == 2 && (prev == 2 || prev == 4):
			axis = 'x'
		case i == 1 && n == 2 && (prev == 3 || prev == 6):
			axis = '\''
		case i == 2 && n == 3:
			axis = '*'
		}
	}
	op.w = ident
	if n > 1 {
		w, ok := hallRotations[fmt.Sprintf("%d%c", n, axis)]
		if !ok {
			return op, 0, bad
		}
		op.w = w
	}
	if improper {
		op.w = negInt(op.w)
	}
	if screw > 0 {
		k := strings.IndexByte("xyz", axis)
		if k < 0 {
			return op, 0, bad
		}
		op.t[k] = float64(screw) / float64(n)
	}
	for j := 0; j < len(tok); j++ {
		t, ok := hallTranslations[tok[j]]
		if !ok {
			return op, 0, bad
		}
		op.t = add3(op.t, t)
	}
	op.t = mod1v(op.t)
	return op, n, nil
}

// parseHall returns the generators of a Hall symbol, centering included.
func parseHall(symbol string) ([]symOp, error) {
	fields := strings.Fields(symbol)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty Hall symbol")
	}
	lat := fields[0]
	var gens []symOp
	if strings.HasPrefix(lat, "-") {
		gens = append(gens, symOp{w: negInt(ident)})
		lat = lat[1:]
	}
	if len(lat) != 1 {
		return nil, fmt.Errorf("unknown lattice in Hall symbol %q", symbol)
	}
	cents, ok := hallLattices[lat[0]]
	if !ok {
		return nil, fmt.Errorf("unknown lattice in Hall symbol %q", symbol)
	}
	for _, c := range cents {
		gens = append(gens, symOp{w: ident, t: c})
	}
	prev := 0
	for i, tok := range fields[1:] {
		op, n, err := hallMatrix(tok, i, prev)
		if err != nil {
			return nil, fmt.Errorf("%w in %q", err, symbol)
		}
		gens = append(gens, op)
		prev = n
	}
	return gens, nil
}

type opKey struct {
	w [3][3]int
	t [3]int
}

func keyOf(o symOp) opKey {
	k := opKey{w: o.w}
	for i := range o.t {
		k.t[i] = int(math.Round(o.t[i]*24)) % 24
	}
	return k
}

// closure returns the group generated by gens, with translations in [0,1).
func closure(gens []symOp) []symOp {
	id := symOp{w: ident}
	seen := map[opKey]bool{keyOf(id): true}
	ret := []symOp{id}
	for i := 0; i < len(ret); i++ {
		for _, g := range gens {
			x := compose(g, ret[i])
			if k := keyOf(x); !seen[k] {
				seen[k] = true
				ret = append(ret, x)
			}
		}
	}
	return ret
}

// hallGroup is a space-group type in its standard setting, reduced to what
// the classification compares.
type hallGroup struct {
	number    int
	sig       signature
	centering vecSet
	intr      map[[3][3]int]vecSet
}

func newHallGroup(number int, symbol string) (*hallGroup, error) {
	gens, err := parseHall(symbol)
	if err != nil {
		return nil, err
	}
	H := &hallGroup{number: number, intr: make(map[[3][3]int]vecSet)}
	byW := make(map[[3][3]int][][3]float64)
	var pg [][3][3]int
	for _, o := range closure(gens) {
		if o.w == ident {
			H.centering.add(o.t)
		}
		if _, ok := byW[o.w]; !ok {
			pg = append(pg, o.w)
		}
		byW[o.w] = append(byW[o.w], o.t)
	}
	H.sig = signatureOf(pg)
	for w, ts := range byW {
		H.intr[w] = intrinsicSet(w, ts, H.centering)
	}
	return H, nil
}

var hallTable = sync.OnceValues(func() ([]*hallGroup, error) {
	ret := make([]*hallGroup, 0, len(hallSymbols)-1)
	for i, sym := range hallSymbols[1:] {
		H, err := newHallGroup(i+1, sym)
		if err != nil {
			return nil, err
		}
		ret = append(ret, H)
	}
	return ret, nil
})

// matches tells whether the operations, grouped by rotation and in a
// conventional cell with the given centering, belong to the type of H.
func (H *hallGroup) matches(byW map[[3][3]int][][3]float64, cent vecSet) bool {
	if len(byW) != len(H.intr) || !cent.equal(H.centering) {
		return false
	}
	for w, ts := range byW {
		want, ok := H.intr[w]
		if !ok || !intrinsicSet(w, ts, cent).equal(want) {
			return false
		}
	}
	return true
}

// latVec is a lattice vector, in fractional coordinates of the original cell
// and in Cartesian ones.
type latVec struct {
	frac, cart [3]float64
	norm       float64
}

func (L latVec) neg() latVec {
	for k := 0; k < 3; k++ {
		L.frac[k] = -L.frac[k]
		L.cart[k] = -L.cart[k]
	}
	return L
}

// lattice holds lattice vectors sorted by length.
type lattice []latVec

const geomTol = 1e-3

func latticeVectors(cell cte.Cell, cent vecSet, r int) lattice {
	var ret lattice
	for n0 := -r; n0 <= r; n0++ {
		for n1 := -r; n1 <= r; n1++ {
			for n2 := -r; n2 <= r; n2++ {
				for _, c := range cent {
					f := add3([3]float64{float64(n0), float64(n1), float64(n2)}, c)
					v := latVec{frac: f, cart: cte.MulVec3(f, cell)}
					v.norm = cte.Norm(v.cart)
					if v.norm > 1e-8 {
						ret = append(ret, v)
					}
				}
			}
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].norm < ret[j].norm })
	return ret
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

// along returns the shortest lattice vector parallel to the unit vector dir.
func (L lattice) along(dir [3]float64) (latVec, bool) {
	for _, v := range L {
		if cte.Dot(v.cart, dir) > 0 && cte.Norm(cross(v.cart, dir)) < geomTol*v.norm {
			return v, true
		}
	}
	return latVec{}, false
}

// perpendicular returns the lattice vectors perpendicular to the unit vector dir.
func (L lattice) perpendicular(dir [3]float64) lattice {
	var ret lattice
	for _, v := range L {
		if math.Abs(cte.Dot(v.cart, dir)) < geomTol*v.norm {
			ret = append(ret, v)
		}
	}
	return ret
}

// at returns the lattice vector at the Cartesian position target.
func (L lattice) at(target [3]float64) (latVec, bool) {
	tol := geomTol * cte.Norm(target)
	for _, v := range L {
		d := [3]float64{v.cart[0] - target[0], v.cart[1] - target[1], v.cart[2] - target[2]}
		if cte.Norm(d) < tol {
			return v, true
		}
	}
	return latVec{}, false
}

// rotateAbout rotates v by angle degrees about the unit vector k.
func rotateAbout(v, k [3]float64, angle float64) [3]float64 {
	c, s := math.Cos(angle*math.Pi/180), math.Sin(angle*math.Pi/180)
	kv := cross(k, v)
	kd := cte.Dot(k, v) * (1 - c)
	var ret [3]float64
	for i := range ret {
		ret[i] = v[i]*c + kv[i]*s + k[i]*kd
	}
	return ret
}

// basisOf returns the matrix with the fractional coordinates of a, b and c as columns.
func basisOf(a, b, c latVec) [3][3]float64 {
	var B [3][3]float64
	for i := 0; i < 3; i++ {
		B[i] = [3]float64{a.frac[i], b.frac[i], c.frac[i]}
	}
	return B
}

func rightHanded(a, b, c latVec) bool {
	return cte.Det3([3][3]float64{a.cart, b.cart, c.cart}) > 0
}

// axes returns the distinct rotation axes, Cartesian and normalized, of the
// rotations of the given kinds.
func axes(pg [][3][3]int, cell cte.Cell, kinds ...int) ([][3]float64, error) {
	var ret [][3]float64
	for _, w := range pg {
		kind := rotType(w)
		wanted := false
		for _, k := range kinds {
			wanted = wanted || k == kind
		}
		if !wanted {
			continue
		}
		r, err := CartesianRotation(w, cell)
		if err != nil {
			return nil, err
		}
		sign := 1.0
		if kind < 0 {
			sign = -1
		}
		//the proper part of the rotation, summed over its powers, projects onto the axis
		sum := cte.Identity3()
		pk := cte.Identity3()
		for k := 1; k < int(math.Abs(float64(kind))); k++ {
			pk = cte.MatMul3(pk, r)
			f := math.Pow(sign, float64(k))
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					sum[i][j] += f * pk[i][j]
				}
			}
		}
		var axis [3]float64
		best := -1.0
		for j := 0; j < 3; j++ {
			col := [3]float64{sum[0][j], sum[1][j], sum[2][j]}
			if n := cte.Norm(col); n > best {
				best = n
				axis = [3]float64{col[0] / n, col[1] / n, col[2] / n}
			}
		}
		dup := false
		for _, a := range ret {
			dup = dup || cte.Norm(cross(a, axis)) < geomTol
		}
		if !dup {
			ret = append(ret, axis)
		}
	}
	return ret, nil
}

// axisBases returns the right-handed cells with edges along the three
// directions, in every order.
func axisBases(dirs [][3]float64, L lattice) [][3][3]float64 {
	if len(dirs) != 3 {
		return nil
	}
	var v [3]latVec
	for i, d := range dirs {
		var ok bool
		if v[i], ok = L.along(d); !ok {
			return nil
		}
	}
	var ret [][3][3]float64
	for _, p := range [][3]int{{0, 1, 2}, {1, 2, 0}, {2, 0, 1}, {1, 0, 2}, {0, 2, 1}, {2, 1, 0}} {
		a, b, c := v[p[0]], v[p[1]], v[p[2]]
		if !rightHanded(a, b, c) {
			c = c.neg()
		}
		ret = append(ret, basisOf(a, b, c))
	}
	return ret
}

// planeBases returns cells with c along dir and b the image of a under a
// rotation by angle about c. a is the shortest lattice vector perpendicular to
// dir, rotated by k*step, for k < turns.
func planeBases(dir [3]float64, turns int, step, angle float64, L lattice) [][3][3]float64 {
	c, ok := L.along(dir)
	perp := L.perpendicular(dir)
	if !ok || len(perp) == 0 {
		return nil
	}
	var ret [][3][3]float64
	for k := 0; k < turns; k++ {
		a, ok := L.at(rotateAbout(perp[0].cart, dir, float64(k)*step))
		if !ok {
			continue
		}
		b, ok := L.at(rotateAbout(a.cart, dir, angle))
		if !ok {
			continue
		}
		ret = append(ret, basisOf(a, b, c))
	}
	return ret
}

// monoclinicBases returns cells with b along dir, and a and c spanning the
// lattice plane perpendicular to it.
func monoclinicBases(dir [3]float64, L lattice) [][3][3]float64 {
	b, ok := L.along(dir)
	perp := L.perpendicular(dir)
	if !ok || len(perp) == 0 {
		return nil
	}
	u := perp[0]
	var v latVec
	found := false
	for _, p := range perp[1:] {
		if cte.Norm(cross(u.cart, p.cart)) > geomTol*u.norm*p.norm {
			v, found = p, true
			break
		}
	}
	if !found {
		return nil
	}
	comb := func(i, j int) latVec {
		var ret latVec
		for k := 0; k < 3; k++ {
			ret.frac[k] = float64(i)*u.frac[k] + float64(j)*v.frac[k]
			ret.cart[k] = float64(i)*u.cart[k] + float64(j)*v.cart[k]
		}
		ret.norm = cte.Norm(ret.cart)
		return ret
	}
	var ret [][3][3]float64
	for i1 := -2; i1 <= 2; i1++ {
		for j1 := -2; j1 <= 2; j1++ {
			for i2 := -2; i2 <= 2; i2++ {
				for j2 := -2; j2 <= 2; j2++ {
					if d := i1*j2 - j1*i2; d != 1 && d != -1 {
						continue
					}
					a, c := comb(i1, j1), comb(i2, j2)
					bb := b
					if !rightHanded(a, bb, c) {
						bb = b.neg()
					}
					ret = append(ret, basisOf(a, bb, c))
				}
			}
		}
	}
	return ret
}

func conventionalBases(sig signature, pg [][3][3]int, cell cte.Cell, L lattice) ([][3][3]float64, error) {
	var kinds []int
	switch sig.system() {
	case cubic:
		kinds = []int{4, -4}
		if sig.count(4, -4) == 0 {
			kinds = []int{2}
		}
	case hexagonal:
		kinds = []int{3, -3, 6, -6}
	case tetragonal:
		kinds = []int{4, -4}
	default:
		kinds = []int{2, -2}
	}
	dirs, err := axes(pg, cell, kinds...)
	if err != nil || len(dirs) == 0 {
		return nil, err
	}
	switch sig.system() {
	case hexagonal:
		return planeBases(dirs[0], 6, 60, 120, L), nil
	case tetragonal:
		return planeBases(dirs[0], 1, 90, 90, L), nil
	case monoclinic:
		return monoclinicBases(dirs[0], L), nil
	}
	return axisBases(dirs, L), nil
}

// conventional expresses the operations of D in the cell B (lattice vectors
// as columns, fractional coordinates of the original cell), with every
// centering translation of B added. npoints is the number of lattice points
// in the original cell. It returns false if B isn't a cell of the lattice,
// or doesn't bring the rotations to integer matrices.
func conventional(D *Dataset, B [3][3]float64, npoints int, L lattice) (map[[3][3]int][][3]float64, vecSet, bool) {
	binv, err := cte.Cell(B).Inverse()
	if err != nil {
		return nil, nil, false
	}
	want := int(math.Round(math.Abs(cte.Det3(B)) * float64(npoints)))
	cent := vecSet{{}}
	for _, v := range L {
		cent.add(matVec(binv, v.frac))
		if len(cent) > want {
			return nil, nil, false
		}
	}
	if len(cent) != want {
		return nil, nil, false
	}
	byW := make(map[[3][3]int][][3]float64)
	for k, w := range D.Rotations {
		var wf [3][3]float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				wf[i][j] = float64(w[i][j])
			}
		}
		m := cte.MatMul3(cte.MatMul3(binv, wf), B)
		var wp [3][3]int
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				wp[i][j] = int(math.Round(m[i][j]))
				if math.Abs(m[i][j]-float64(wp[i][j])) > geomTol {
					return nil, nil, false
				}
			}
		}
		tp := matVec(binv, D.Translations[k])
		for _, c := range cent {
			byW[wp] = append(byW[wp], mod1v(add3(tp, c)))
		}
	}
	return byW, cent, true
}

// axesMeet tells whether the two-fold rotations (not screws) about the three
// edges of a conventional cell have a common point. It tells I222 from
// I2(1)2(1)2(1), and I23 from I2(1)3, which have the same screws and glides.
func axesMeet(byW map[[3][3]int][][3]float64) bool {
	two := [3][3][3]int{hallRotations["2x"], hallRotations["2y"], hallRotations["2z"]}
	pure := func(a int) [][3]float64 {
		var ret [][3]float64
		for _, t := range byW[two[a]] {
			if math.Abs(t[a]-math.Round(t[a])) < setTol {
				ret = append(ret, t)
			}
		}
		return ret
	}
	var xs, ys, zs []float64
	for _, t := range pure(2) {
		xs = append(xs, t[0]/2, t[0]/2+0.5)
		ys = append(ys, t[1]/2, t[1]/2+0.5)
	}
	for _, t := range pure(0) {
		zs = append(zs, t[2]/2, t[2]/2+0.5)
	}
	fixes := func(s [3]float64, a int) bool {
		for _, t := range byW[two[a]] {
			if sameMod1(Apply(two[a], t, s), s) {
				return true
			}
		}
		return false
	}
	for _, x := range xs {
		for _, y := range ys {
			for _, z := range zs {
				s := [3]float64{x, y, z}
				if fixes(s, 0) && fixes(s, 1) && fixes(s, 2) {
					return true
				}
			}
		}
	}
	return false
}

// SpaceGroup returns the number (1-230) of the space-group type of the
// operations in D, found for a structure with the given cell. D must hold
// every operation in that cell, pure translations included.
func SpaceGroup(D *Dataset, cell cte.Cell) (int, error) {
	table, err := hallTable()
	if err != nil {
		return 0, cte.NewError("bad space group table", "", true, err, "SpaceGroup")
	}
	pg := D.PointGroup()
	sig := signatureOf(pg)
	var cands []*hallGroup
	for _, H := range table {
		if H.sig == sig {
			cands = append(cands, H)
		}
	}
	if len(cands) == 0 {
		return 0, cte.NewError(fmt.Sprintf("%d rotations don't form a crystallographic point group", len(pg)), "", false, nil, "SpaceGroup")
	}
	if sig.system() == triclinic {
		return cands[0].number, nil
	}
	var cent vecSet
	for k, w := range D.Rotations {
		if w == ident {
			cent.add(D.Translations[k])
		}
	}
	if !cent.has([3]float64{}) {
		cent.add([3]float64{})
	}
	L := latticeVectors(cell, cent, 3)
	bases, err := conventionalBases(sig, pg, cell, L)
	if err != nil {
		return 0, cte.ErrDecorate(err, "SpaceGroup")
	}
	found := make(map[int]map[[3][3]int][][3]float64)
	for _, B := range bases {
		byW, ccent, ok := conventional(D, B, len(cent), L)
		if !ok {
			continue
		}
		for _, H := range cands {
			if _, done := found[H.number]; !done && H.matches(byW, ccent) {
				found[H.number] = byW
			}
		}
	}
	var nums []int
	for n := range found {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	switch {
	case len(nums) == 1:
		return nums[0], nil
	case len(nums) == 2 && (nums[0] == 23 && nums[1] == 24 || nums[0] == 197 && nums[1] == 199):
		if axesMeet(found[nums[0]]) {
			return nums[0], nil
		}
		return nums[1], nil
	}
	return 0, cte.NewError(fmt.Sprintf("space group type not identified, candidates: %v", nums), "", false, nil, "SpaceGroup")
}
