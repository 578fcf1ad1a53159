/*
 * results.go, part of gocte.
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

package pipeline

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strconv"

	"github.com/google/uuid"
	cte "github.com/rmera/gocte"
)

// Label returns the key used for the strain eps: "e" followed by the
// shortest decimal representation of eps, i.e. e0.01, e-0.02, e0.
func Label(eps float64) string {
	return "e" + strconv.FormatFloat(eps, 'f', -1, 64)
}

// HarmonicRecord is the outcome of the harmonic calculation for one strain.
type HarmonicRecord struct {
	FC2       bool    `json:"fc2"`
	Imaginary bool    `json:"IMAGINARY"`
	Fraction  float64 `json:"fraction"`
	QHA       bool    `json:"QHA"`
}

// Entry holds the results for one structure.
type Entry struct {
	ID       string                     `json:"ID,omitempty"`
	Name     string                     `json:"name,omitempty"`
	SymmNo   string                     `json:"symm.no,omitempty"`
	MPID     string                     `json:"mp-id,omitempty"`
	Harmonic map[string]*HarmonicRecord `json:"harmonic,omitempty"`
	//CTE["CALC"]["300"] holds the thermal expansion coefficients found at 300 K.
	CTE map[string]map[string][]float64 `json:"CTE,omitempty"`
}

// Merge copies into E everything set in o. Nothing already in E is removed.
func (E *Entry) Merge(o *Entry) {
	if o == nil {
		return
	}
	for _, f := range []struct{ dst, src *string }{{&E.ID, &o.ID}, {&E.Name, &o.Name}, {&E.SymmNo, &o.SymmNo}, {&E.MPID, &o.MPID}} {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
	for k, v := range o.Harmonic {
		if E.Harmonic == nil {
			E.Harmonic = make(map[string]*HarmonicRecord)
		}
		r := *v
		E.Harmonic[k] = &r
	}
	for k, v := range o.CTE {
		if E.CTE == nil {
			E.CTE = make(map[string]map[string][]float64)
		}
		if E.CTE[k] == nil {
			E.CTE[k] = make(map[string][]float64)
		}
		for t, vals := range v {
			E.CTE[k][t] = append([]float64{}, vals...)
		}
	}
}

// Results accumulates the results of all the structures of a run. It's
// written as a JSON object with the keys "calc", "run_id" and one key per
// structure index.
type Results struct {
	Calc    string
	RunID   string
	Entries map[int]*Entry
}

// NewResults returns empty results with a fresh run ID.
func NewResults(calcTag string) *Results {
	return &Results{Calc: calcTag, RunID: uuid.NewString(), Entries: make(map[int]*Entry)}
}

// Merge adds e to the entry of the structure idx.
func (R *Results) Merge(idx int, e *Entry) {
	if R.Entries == nil {
		R.Entries = make(map[int]*Entry)
	}
	cur, ok := R.Entries[idx]
	if !ok {
		cur = new(Entry)
		R.Entries[idx] = cur
	}
	cur.Merge(e)
}

// Indexes returns the structure indexes in increasing order.
func (R *Results) Indexes() []int {
	ret := make([]int, 0, len(R.Entries))
	for k := range R.Entries {
		ret = append(ret, k)
	}
	sort.Ints(ret)
	return ret
}

func (R *Results) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(R.Entries)+2)
	var err error
	if m["calc"], err = json.Marshal(R.Calc); err != nil {
		return nil, err
	}
	if m["run_id"], err = json.Marshal(R.RunID); err != nil {
		return nil, err
	}
	for k, v := range R.Entries {
		if m[strconv.Itoa(k)], err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

func (R *Results) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	R.Entries = make(map[int]*Entry)
	for k, v := range m {
		switch k {
		case "calc":
			if err := json.Unmarshal(v, &R.Calc); err != nil {
				return err
			}
		case "run_id":
			if err := json.Unmarshal(v, &R.RunID); err != nil {
				return err
			}
		default:
			idx, err := strconv.Atoi(k)
			if err != nil {
				return cte.NewError("unexpected key "+strconv.Quote(k), "", true, cte.ErrShape, "Results.UnmarshalJSON")
			}
			e := new(Entry)
			if err := json.Unmarshal(v, e); err != nil {
				return err
			}
			R.Entries[idx] = e
		}
	}
	return nil
}

// LoadResults reads the results file name. A missing file gives empty results.
// Either way, the run ID is replaced by a new one and the calculator tag is set.
func LoadResults(name, calcTag string) (*Results, error) {
	R := NewResults(calcTag)
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return R, nil
	}
	if err != nil {
		return nil, cte.NewError("can't read results", name, true, err, "LoadResults")
	}
	if err := json.Unmarshal(data, R); err != nil {
		return nil, cte.NewError("malformed results", name, true, err, "LoadResults")
	}
	R.RunID = uuid.NewString()
	R.Calc = calcTag
	return R, nil
}

// Save writes the results to name, merged over whatever the file already
// holds, so entries written by earlier runs or stages survive.
func (R *Results) Save(name string) error {
	old, err := LoadResults(name, R.Calc)
	if err != nil {
		return cte.ErrDecorate(err, "Results.Save")
	}
	for _, k := range R.Indexes() {
		old.Merge(k, R.Entries[k])
	}
	old.RunID = R.RunID
	data, err := json.MarshalIndent(old, "", "    ")
	if err != nil {
		return cte.NewError("can't encode results", name, true, err, "Results.Save")
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return cte.NewError("can't write results", name, true, err, "Results.Save")
	}
	return nil
}

// SaveEntry writes the entry of the structure idx alone to name.
func (R *Results) SaveEntry(idx int, name string) error {
	e, ok := R.Entries[idx]
	if !ok {
		return cte.NewError("no results for structure "+strconv.Itoa(idx), name, false, nil, "Results.SaveEntry")
	}
	data, err := json.MarshalIndent(e, "", "    ")
	if err != nil {
		return cte.NewError("can't encode results", name, true, err, "Results.SaveEntry")
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return cte.NewError("can't write results", name, true, err, "Results.SaveEntry")
	}
	return nil
}
