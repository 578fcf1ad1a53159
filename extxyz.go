/*
 * extxyz.go, part of gocte.
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
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

//Extended XYZ files. The comment line carries the lattice, the per-atom
//properties and the metadata as key=value pairs. Scalar metadata is written
//plainly, strings and everything else (as JSON) are quoted.

const reservedLattice, reservedProperties, reservedPBC = "Lattice", "Properties", "pbc"

// ExtXYZRead reads all the frames in the extended XYZ file xyzname.
func ExtXYZRead(xyzname string) ([]*Structure, error) {
	xyzfile, err := os.Open(xyzname)
	if err != nil {
		return nil, NewError("unable to open file", xyzname, true, err, "ExtXYZRead")
	}
	defer xyzfile.Close()
	ret, err := ExtXYZReadFrom(xyzfile)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.filename = xyzname
		}
		return nil, ErrDecorate(err, "ExtXYZRead")
	}
	return ret, nil
}

// ExtXYZReadFrom reads all the extended XYZ frames from r.
func ExtXYZReadFrom(r io.Reader) ([]*Structure, error) {
	xyz := bufio.NewScanner(r)
	xyz.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	var ret []*Structure
	frame := 0
	for xyz.Scan() {
		line := strings.TrimSpace(xyz.Text())
		if line == "" {
			continue
		}
		natoms, err := strconv.Atoi(line)
		if err != nil {
			return nil, NewError(fmt.Sprintf("ill formatted extended XYZ, frame %d: bad atom count", frame), "", true, err, "ExtXYZReadFrom")
		}
		if !xyz.Scan() {
			return nil, NewError(fmt.Sprintf("ill formatted extended XYZ, frame %d: missing comment line", frame), "", true, nil, "ExtXYZReadFrom")
		}
		S, props, err := parseComment(xyz.Text())
		if err != nil {
			return nil, ErrDecorate(err, "ExtXYZReadFrom")
		}
		S.Symbols = make([]string, 0, natoms)
		S.Positions = make([][3]float64, 0, natoms)
		var forces [][3]float64
		for i := 0; i < natoms; i++ {
			if !xyz.Scan() {
				return nil, NewError(fmt.Sprintf("frame %d ends after %d atoms", frame, i), "", true, nil, "ExtXYZReadFrom")
			}
			f, err := props.parseAtom(xyz.Text())
			if err != nil {
				return nil, NewError(fmt.Sprintf("frame %d, atom %d ill formed", frame, i), "", true, err, "ExtXYZReadFrom")
			}
			S.Symbols = append(S.Symbols, f.symbol)
			S.Positions = append(S.Positions, f.pos)
			if f.hasForce {
				forces = append(forces, f.force)
			}
		}
		if len(forces) > 0 {
			S.Info.Force = forces
		}
		ret = append(ret, S)
		frame++
	}
	if err := xyz.Err(); err != nil {
		return nil, NewError("reading extended XYZ", "", true, err, "ExtXYZReadFrom")
	}
	return ret, nil
}

// ExtXYZWrite writes the structures to xyzname, one frame each. The file is
// overwritten if it exists.
func ExtXYZWrite(xyzname string, structures ...*Structure) error {
	out, err := os.Create(xyzname)
	if err != nil {
		return NewError("unable to create file", xyzname, true, err, "ExtXYZWrite")
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	if err := ExtXYZWriteTo(w, structures...); err != nil {
		return ErrDecorate(err, "ExtXYZWrite")
	}
	if err := w.Flush(); err != nil {
		return NewError("unable to write file", xyzname, true, err, "ExtXYZWrite")
	}
	return nil
}

// ExtXYZWriteTo writes the structures to w in extended XYZ format.
// Forces in the metadata are written as a per-atom property.
func ExtXYZWriteTo(w io.Writer, structures ...*Structure) error {
	for _, S := range structures {
		comment, err := formatComment(S)
		if err != nil {
			return ErrDecorate(err, "ExtXYZWriteTo")
		}
		withForces := S.Info != nil && len(S.Info.Force) == S.Len() && S.Len() > 0
		if _, err := fmt.Fprintf(w, "%d\n%s\n", S.Len(), comment); err != nil {
			return NewError("writing extended XYZ", "", true, err, "ExtXYZWriteTo")
		}
		for i, sym := range S.Symbols {
			c := S.Positions[i]
			line := fmt.Sprintf("%-2s %16.8f %16.8f %16.8f", sym, c[0], c[1], c[2])
			if withForces {
				f := S.Info.Force[i]
				line += fmt.Sprintf(" %16.8f %16.8f %16.8f", f[0], f[1], f[2])
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return NewError("writing extended XYZ", "", true, err, "ExtXYZWriteTo")
			}
		}
	}
	return nil
}

func formatComment(S *Structure) (string, error) {
	var b strings.Builder
	b.WriteString(reservedLattice + "=\"")
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i+j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(S.Cell[i][j], 'f', -1, 64))
		}
	}
	b.WriteString("\" " + reservedProperties + "=species:S:1:pos:R:3")
	withForces := S.Info != nil && len(S.Info.Force) == S.Len() && S.Len() > 0
	if withForces {
		b.WriteString(":forces:R:3")
	}
	b.WriteString(" " + reservedPBC + "=\"")
	for i, p := range S.PBC {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(boolText(p))
	}
	b.WriteString("\"")
	if S.Info == nil {
		return b.String(), nil
	}
	raw, err := json.Marshal(S.Info)
	if err != nil {
		return "", NewError("encoding metadata", "", true, err, "formatComment")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", NewError("encoding metadata", "", true, err, "formatComment")
	}
	delete(m, "force")
	keys := make([]string, 0, len(m)+len(S.Info.Extra))
	for k := range m {
		keys = append(keys, k)
	}
	for k := range S.Info.Extra {
		if _, ok := m[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		v, ok := m[k]
		if !ok {
			b.WriteString(S.Info.Extra[k])
			continue
		}
		b.WriteString(formatValue(v))
	}
	return b.String(), nil
}

func boolText(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

func formatValue(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	switch {
	case len(v) == 0:
		return `""`
	case v[0] == '"':
		var s string
		_ = json.Unmarshal(v, &s)
		return quote(s)
	case bytes.Equal(v, []byte("true")):
		return "T"
	case bytes.Equal(v, []byte("false")):
		return "F"
	case v[0] == '[' || v[0] == '{':
		return quote(string(v))
	default:
		return string(v)
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// kv is one key=value token of the comment line.
type kv struct {
	key    string
	value  string
	quoted bool
}

// splitComment tokenizes the comment line. Values can be quoted with
// double quotes, with backslash escapes.
func splitComment(line string) ([]kv, error) {
	var ret []kv
	i := 0
	n := len(line)
	for i < n {
		for i < n && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= n {
			break
		}
		start := i
		for i < n && line[i] != '=' && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		key := line[start:i]
		if i >= n || line[i] != '=' {
			//bare keys are boolean flags
			ret = append(ret, kv{key: key, value: "T"})
			continue
		}
		i++ //the '='
		if i < n && line[i] == '"' {
			i++
			var b strings.Builder
			closed := false
			for i < n {
				c := line[i]
				if c == '\\' && i+1 < n {
					b.WriteByte(line[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, NewError(fmt.Sprintf("unterminated quote for key %s", key), "", true, nil, "splitComment")
			}
			ret = append(ret, kv{key: key, value: b.String(), quoted: true})
			continue
		}
		start = i
		for i < n && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		ret = append(ret, kv{key: key, value: line[start:i]})
	}
	return ret, nil
}

// rawValue turns a comment-line value into JSON.
func (K kv) rawValue() json.RawMessage {
	v := strings.TrimSpace(K.value)
	if K.quoted {
		if (strings.HasPrefix(v, "[") || strings.HasPrefix(v, "{")) && json.Valid([]byte(v)) {
			return json.RawMessage(v)
		}
		s, _ := json.Marshal(K.value)
		return s
	}
	switch v {
	case "T", "True", "true":
		return json.RawMessage("true")
	case "F", "False", "false":
		return json.RawMessage("false")
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil && json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	s, _ := json.Marshal(K.value)
	return s
}

type atomProps struct {
	cols     int
	posCol   int
	forceCol int //-1 if absent
	specCol  int
}

type atomFields struct {
	symbol   string
	pos      [3]float64
	force    [3]float64
	hasForce bool
}

func parseComment(line string) (*Structure, *atomProps, error) {
	S := &Structure{PBC: [3]bool{true, true, true}, Info: new(Info)}
	props := &atomProps{cols: 4, posCol: 1, forceCol: -1}
	tokens, err := splitComment(line)
	if err != nil {
		return nil, nil, ErrDecorate(err, "parseComment")
	}
	hasLattice := false
	for _, t := range tokens {
		switch t.key {
		case reservedLattice:
			f := strings.Fields(t.value)
			if len(f) != 9 {
				return nil, nil, NewError("Lattice needs 9 numbers", "", true, ErrShape, "parseComment")
			}
			for i, s := range f {
				S.Cell[i/3][i%3], err = strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, nil, NewError("bad Lattice", "", true, err, "parseComment")
				}
			}
			hasLattice = true
		case reservedProperties:
			props, err = parseProperties(t.value)
			if err != nil {
				return nil, nil, ErrDecorate(err, "parseComment")
			}
		case reservedPBC:
			f := strings.Fields(t.value)
			for i := 0; i < 3 && i < len(f); i++ {
				S.PBC[i] = f[i] == "T" || strings.EqualFold(f[i], "true")
			}
		default:
			raw := t.rawValue()
			if !IsInfoKey(t.key) {
				if S.Info.Extra == nil {
					S.Info.Extra = make(map[string]string)
				}
				S.Info.Extra[t.key] = formatValue(raw)
				continue
			}
			tmp, err := decodeInfoKey(t.key, raw)
			if err != nil && t.quoted && json.Valid([]byte(t.value)) {
				//a number or other JSON value that came quoted
				tmp, err = decodeInfoKey(t.key, json.RawMessage(strings.TrimSpace(t.value)))
			} else if err != nil && !t.quoted {
				//a string that looks like a number
				str, _ := json.Marshal(t.value)
				tmp, err = decodeInfoKey(t.key, str)
			}
			if err != nil {
				if S.Info.Extra == nil {
					S.Info.Extra = make(map[string]string)
				}
				S.Info.Extra[t.key] = formatValue(raw)
				continue
			}
			S.Info.Update(tmp)
		}
	}
	if !hasLattice {
		S.PBC = [3]bool{}
	}
	return S, props, nil
}

func decodeInfoKey(key string, raw json.RawMessage) (*Info, error) {
	doc, err := json.Marshal(map[string]json.RawMessage{key: raw})
	if err != nil {
		return nil, err
	}
	tmp := new(Info)
	if err := json.Unmarshal(doc, tmp); err != nil {
		return nil, err
	}
	return tmp, nil
}

func parseProperties(p string) (*atomProps, error) {
	f := strings.Split(p, ":")
	if len(f)%3 != 0 {
		return nil, NewError("Properties must come in name:type:cols triplets", "", true, ErrShape, "parseProperties")
	}
	props := &atomProps{posCol: -1, forceCol: -1, specCol: -1}
	col := 0
	for i := 0; i < len(f); i += 3 {
		n, err := strconv.Atoi(f[i+2])
		if err != nil {
			return nil, NewError("bad column count in Properties", "", true, err, "parseProperties")
		}
		switch f[i] {
		case "species":
			props.specCol = col
		case "pos":
			props.posCol = col
		case "forces", "force":
			props.forceCol = col
		}
		col += n
	}
	props.cols = col
	if props.specCol < 0 || props.posCol < 0 {
		return nil, NewError("Properties need species and pos", "", true, ErrShape, "parseProperties")
	}
	return props, nil
}

func (P *atomProps) parseAtom(line string) (atomFields, error) {
	var ret atomFields
	f := strings.Fields(line)
	if len(f) < P.cols {
		return ret, fmt.Errorf("%d columns, expected %d", len(f), P.cols)
	}
	ret.symbol = f[P.specCol]
	var err error
	for j := 0; j < 3; j++ {
		ret.pos[j], err = strconv.ParseFloat(f[P.posCol+j], 64)
		if err != nil {
			return ret, err
		}
	}
	if P.forceCol >= 0 {
		ret.hasForce = true
		for j := 0; j < 3; j++ {
			ret.force[j], err = strconv.ParseFloat(f[P.forceCol+j], 64)
			if err != nil {
				return ret, err
			}
		}
	}
	return ret, nil
}
