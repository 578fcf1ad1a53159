/*
 * info.go, part of gocte.
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
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// DateLayout is the layout used for the human-readable dates in timing records.
const DateLayout = "2006-01-02 15:04:05"

// TimePoint is one end of a timing record.
type TimePoint struct {
	Wall float64 `json:"wall"` //seconds since the Unix epoch
	Date string  `json:"date"`
}

// Timing holds the start and end of some evaluation. Elapsed is taken from
// the monotonic clock, so it is not affected by changes in the wall clock.
type Timing struct {
	Start   TimePoint `json:"start"`
	End     TimePoint `json:"end"`
	Elapsed float64   `json:"elapsed"`
}

// Stopwatch measures a Timing.
type Stopwatch struct {
	start time.Time
}

// StartWatch starts a new stopwatch.
func StartWatch() Stopwatch {
	return Stopwatch{start: time.Now()}
}

// Stop returns the Timing from the start of the watch until now.
func (S Stopwatch) Stop() *Timing {
	end := time.Now()
	return &Timing{
		Start:   timePoint(S.start),
		End:     timePoint(end),
		Elapsed: end.Sub(S.start).Seconds(),
	}
}

func timePoint(t time.Time) TimePoint {
	return TimePoint{Wall: float64(t.UnixNano()) / 1e9, Date: t.Format(DateLayout)}
}

// Info is the metadata attached to a structure. Every field is optional (nil
// means "not set"). Fields are written by the different stages of the pipeline,
// and Info is only ever extended by them, never shrunk.
// The JSON names are the keys used in the extended XYZ comment line and in the
// snapshots.
type Info struct {
	//provenance
	ID              *string        `json:"ID,omitempty"`
	MaterialID      *string        `json:"material_id,omitempty"`
	Name            *string        `json:"name,omitempty"`
	SymmNo          *int           `json:"symm.no,omitempty"`
	Suffix          *string        `json:"suffix,omitempty"`
	CalcTag         *string        `json:"calc_tag,omitempty"`
	PrimitiveMatrix *[3][3]float64 `json:"primitive_matrix,omitempty"`
	FC2Supercell    *[3]int        `json:"fc2_supercell,omitempty"`
	FC3Supercell    *[3]int        `json:"fc3_supercell,omitempty"`
	QPointMesh      *[3]int        `json:"q_point_mesh,omitempty"`

	//evaluation
	EFrEnergy *float64     `json:"e_fr_energy,omitempty"`
	E0Energy  *float64     `json:"e_0_energy,omitempty"`
	Force     [][3]float64 `json:"force,omitempty"`
	Stress    *[6]float64  `json:"stress,omitempty"`
	ForceConv *bool        `json:"force_conv,omitempty"`
	Steps     *int         `json:"steps,omitempty"`
	OneShot   *Timing      `json:"oneshot,omitempty"`
	Relax     *Timing      `json:"relax,omitempty"`

	//unit cell stage
	SymmNoUnit   *int  `json:"symm.no.unit,omitempty"`
	UnitcellOpt  *bool `json:"unitcell.opt,omitempty"`
	UnitcellSymm *bool `json:"unitcell.symm,omitempty"`

	//strain stage
	Eps          *float64 `json:"eps,omitempty"`
	SymmNoStrain *int     `json:"symm.no.strain,omitempty"`
	StrainOpt    *bool    `json:"strain.opt,omitempty"`
	StrainSymm   *bool    `json:"strain.symm,omitempty"`
	StrainVol    *bool    `json:"strain.vol,omitempty"`
	VolInit      *float64 `json:"vol.init,omitempty"`
	VolFinal     *float64 `json:"vol.final,omitempty"`

	//Keys found in input files that don't correspond to any field.
	//They are kept as their raw text so they can be written back.
	Extra map[string]string `json:"-"`
}

// Ptr returns a pointer to a copy of v. Handy to fill Info fields.
func Ptr[T any](v T) *T {
	return &v
}

// Update copies every field set in o into I. Fields not set in o are left alone,
// so Update never removes information. Extra keys are merged the same way.
func (I *Info) Update(o *Info) {
	if o == nil {
		return
	}
	dst := reflect.ValueOf(I).Elem()
	src := reflect.ValueOf(o).Elem()
	for i := 0; i < src.NumField(); i++ {
		f := src.Field(i)
		switch f.Kind() {
		case reflect.Pointer:
			if !f.IsNil() {
				dst.Field(i).Set(clonePointer(f))
			}
		case reflect.Slice:
			if f.Len() > 0 {
				dst.Field(i).Set(reflect.AppendSlice(reflect.MakeSlice(f.Type(), 0, f.Len()), f))
			}
		}
	}
	for k, v := range o.Extra {
		if I.Extra == nil {
			I.Extra = make(map[string]string, len(o.Extra))
		}
		I.Extra[k] = v
	}
}

// Copy returns a deep copy of I.
func (I *Info) Copy() *Info {
	if I == nil {
		return nil
	}
	ret := new(Info)
	ret.Update(I)
	return ret
}

func clonePointer(p reflect.Value) reflect.Value {
	n := reflect.New(p.Elem().Type())
	n.Elem().Set(p.Elem())
	return n
}

var infoKeys = func() map[string]bool {
	t := reflect.TypeOf(Info{})
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}()

// IsInfoKey returns true if key is the JSON name of an Info field.
func IsInfoKey(key string) bool {
	return infoKeys[key]
}

// gob drops pointers to zero values, which would turn a set field (say,
// eps=0 or force_conv=false) into an unset one. Info is sent through gob as
// JSON instead.
type infoWire struct {
	Fields json.RawMessage   `json:"fields"`
	Extra  map[string]string `json:"extra,omitempty"`
}

type plainInfo Info

// GobEncode implements gob.GobEncoder.
func (I Info) GobEncode() ([]byte, error) {
	f, err := json.Marshal(plainInfo(I))
	if err != nil {
		return nil, err
	}
	return json.Marshal(infoWire{Fields: f, Extra: I.Extra})
}

// GobDecode implements gob.GobDecoder.
func (I *Info) GobDecode(b []byte) error {
	var w infoWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var p plainInfo
	if err := json.Unmarshal(w.Fields, &p); err != nil {
		return err
	}
	*I = Info(p)
	I.Extra = w.Extra
	return nil
}
