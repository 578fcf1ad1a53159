/*
 * thermal.go, part of gocte.
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
	"bytes"
	"fmt"
	"math"
	"os"

	cte "github.com/rmera/gocte"
	"gopkg.in/yaml.v3"
)

// Physical constants, phonopy's values.
const (
	Kb         = 8.617333262e-5 //eV/K
	PlanckTHz  = 4.135667696e-3 //eV/THz
	EvTokJmol  = 96.48533212    //eV to kJ/mol
	EvToJmolK  = EvTokJmol * 1000
	CutoffFreq = 1e-4 //THz, lower frequencies are left out of the thermal sums
)

// ThermalProperties are the harmonic thermodynamic functions of a unit cell,
// one entry per temperature. Energies are in kJ/mol, entropies and heat
// capacities in J/K/mol.
type ThermalProperties struct {
	Natom        int
	Temperatures []float64
	FreeEnergy   []float64
	Entropy      []float64
	HeatCapacity []float64
	Energy       []float64
	ZeroPoint    float64
	Modes        int //modes included in the sums
}

// Temperatures returns tmin, tmin+step, ... up to and including tmax.
func Temperatures(tmin, tmax, step float64) []float64 {
	if step <= 0 || tmax < tmin {
		return []float64{tmin}
	}
	n := int(math.Floor((tmax-tmin)/step+1e-8)) + 1
	ret := make([]float64, n)
	for i := range ret {
		ret[i] = tmin + float64(i)*step
	}
	return ret
}

// Thermal computes the thermal properties from the frequencies on a mesh.
func (M *Mesh) Thermal(temperatures []float64, natom int) (*ThermalProperties, error) {
	if len(M.Frequencies) == 0 {
		return nil, cte.NewError("empty mesh", "", true, cte.ErrShape, "Mesh.Thermal")
	}
	var wsum float64
	for _, w := range M.Weights {
		wsum += float64(w)
	}
	if wsum == 0 {
		return nil, cte.NewError("zero total weight", "", true, cte.ErrShape, "Mesh.Thermal")
	}
	T := &ThermalProperties{
		Natom:        natom,
		Temperatures: append([]float64(nil), temperatures...),
		FreeEnergy:   make([]float64, len(temperatures)),
		Entropy:      make([]float64, len(temperatures)),
		HeatCapacity: make([]float64, len(temperatures)),
		Energy:       make([]float64, len(temperatures)),
	}
	for i, row := range M.Frequencies {
		w := float64(M.Weights[i]) / wsum
		for _, f := range row {
			if math.IsNaN(f) || f <= CutoffFreq {
				continue
			}
			T.Modes += M.Weights[i]
			e := PlanckTHz * f
			T.ZeroPoint += w * e / 2
			for k, t := range temperatures {
				if t <= 0 {
					T.FreeEnergy[k] += w * e / 2
					T.Energy[k] += w * e / 2
					continue
				}
				x := e / (Kb * t)
				emx := math.Exp(-x)
				occ := emx / (1 - emx)
				T.FreeEnergy[k] += w * (e/2 + Kb*t*math.Log1p(-emx))
				T.Entropy[k] += w * Kb * (x*occ - math.Log1p(-emx))
				T.HeatCapacity[k] += w * Kb * x * x * emx / ((1 - emx) * (1 - emx))
				T.Energy[k] += w * e * (0.5 + occ)
			}
		}
	}
	T.ZeroPoint *= EvTokJmol
	for k := range temperatures {
		T.FreeEnergy[k] *= EvTokJmol
		T.Energy[k] *= EvTokJmol
		T.Entropy[k] *= EvToJmolK
		T.HeatCapacity[k] *= EvToJmolK
	}
	return T, nil
}

// Scale multiplies every extensive quantity by f, for instance to go from the
// unit cell to the primitive cell.
func (T *ThermalProperties) Scale(f float64) {
	for k := range T.Temperatures {
		T.FreeEnergy[k] *= f
		T.Entropy[k] *= f
		T.HeatCapacity[k] *= f
		T.Energy[k] *= f
	}
	T.ZeroPoint *= f
}

type thermalUnits struct {
	Temperature  string `yaml:"temperature"`
	FreeEnergy   string `yaml:"free_energy"`
	Entropy      string `yaml:"entropy"`
	HeatCapacity string `yaml:"heat_capacity"`
}

type thermalPoint struct {
	Temperature  float64 `yaml:"temperature"`
	FreeEnergy   float64 `yaml:"free_energy"`
	Entropy      float64 `yaml:"entropy"`
	HeatCapacity float64 `yaml:"heat_capacity"`
	Energy       float64 `yaml:"energy"`
}

type thermalYAML struct {
	Unit            thermalUnits   `yaml:"unit"`
	Natom           int            `yaml:"natom"`
	CutoffFrequency float64        `yaml:"cutoff_frequency"`
	NumModes        int            `yaml:"num_integrated_modes"`
	ZeroPoint       float64        `yaml:"zero_point_energy"`
	Properties      []thermalPoint `yaml:"thermal_properties"`
}

// WriteYAML writes the thermal properties in phonopy's thermal_properties.yaml layout.
func (T *ThermalProperties) WriteYAML(name string) error {
	doc := thermalYAML{
		Unit:            thermalUnits{"K", "kJ/mol", "J/K/mol", "J/K/mol"},
		Natom:           T.Natom,
		CutoffFrequency: CutoffFreq,
		NumModes:        T.Modes,
		ZeroPoint:       T.ZeroPoint,
	}
	for k, t := range T.Temperatures {
		doc.Properties = append(doc.Properties, thermalPoint{t, T.FreeEnergy[k], T.Entropy[k], T.HeatCapacity[k], T.Energy[k]})
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Thermal properties / unit cell (natom)\n\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return cte.NewError("can't encode thermal properties", name, true, err, "ThermalProperties.WriteYAML")
	}
	enc.Close()
	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		return cte.NewError("can't write thermal properties", name, true, err, "ThermalProperties.WriteYAML")
	}
	return nil
}

// ReadThermalYAML reads a thermal_properties.yaml file.
func ReadThermalYAML(name string) (*ThermalProperties, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, cte.NewError("can't read thermal properties", name, true, err, "ReadThermalYAML")
	}
	var doc thermalYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cte.NewError("malformed thermal properties", name, true, err, "ReadThermalYAML")
	}
	if len(doc.Properties) == 0 {
		return nil, cte.NewError("no thermal properties in file", name, true, cte.ErrShape, "ReadThermalYAML")
	}
	T := &ThermalProperties{Natom: doc.Natom, ZeroPoint: doc.ZeroPoint, Modes: doc.NumModes}
	for _, p := range doc.Properties {
		T.Temperatures = append(T.Temperatures, p.Temperature)
		T.FreeEnergy = append(T.FreeEnergy, p.FreeEnergy)
		T.Entropy = append(T.Entropy, p.Entropy)
		T.HeatCapacity = append(T.HeatCapacity, p.HeatCapacity)
		T.Energy = append(T.Energy, p.Energy)
	}
	return T, nil
}
