/*
 * calc.go, part of gocte.
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

package calc

import (
	"fmt"
	"sort"
	"strings"

	cte "github.com/rmera/gocte"
)

// Calculator is an interatomic potential. Energies are in eV, forces in eV/A,
// and stress in eV/A^3, in Voigt order (xx, yy, zz, yz, xz, xy) with positive
// values meaning tensile stress.
type Calculator interface {
	//PotentialEnergy returns the energy of s. If forceConsistent is true, the
	//energy consistent with the forces (the free energy for smeared electrons)
	//is requested; calculators that can't provide it return an error wrapping
	//cte.ErrPropertyNotImplemented.
	PotentialEnergy(s *cte.Structure, forceConsistent bool) (float64, error)
	Forces(s *cte.Structure) ([][3]float64, error)
	Stress(s *cte.Structure) ([6]float64, error)
}

// Releaser is implemented by calculators that hold resources (scratch files,
// device memory in a worker) that can be freed between structures.
type Releaser interface {
	Release() error
}

// Options is what a constructor gets to build a calculator.
type Options struct {
	Tag     string //the backend, i.e. 7net, pet
	Model   string
	Modal   string
	Device  string
	Command string   //overrides the default worker command of external backends
	Args    []string //extra arguments for the worker command
	WorkDir string   //scratch directory for external backends
	D3      bool     //add a D3 dispersion correction on top of the backend
	D3Cmd   string   //command for the D3 worker
	//Parameters for the in-process Lennard-Jones potential.
	LJ LJParams
}

// Constructor builds a Calculator from the options.
type Constructor func(o Options) (Calculator, error)

var registry = map[string]Constructor{}

// Register adds a constructor under the given tags. Tags are case-insensitive.
// A tag registered twice keeps the last constructor.
func Register(c Constructor, tags ...string) {
	for _, t := range tags {
		registry[strings.ToLower(t)] = c
	}
}

// Tags returns the registered tags, sorted.
func Tags() []string {
	ret := make([]string, 0, len(registry))
	for k := range registry {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Known returns true if tag has a registered constructor.
func Known(tag string) bool {
	_, ok := registry[strings.ToLower(tag)]
	return ok
}

// New builds the calculator registered under o.Tag. An unknown tag is a
// configuration error. If o.D3 is set, the result is the sum of the backend
// and a D3 correction.
func New(o Options) (Calculator, error) {
	c, ok := registry[strings.ToLower(o.Tag)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown calculator %q, available: %s", cte.ErrConfig, o.Tag, strings.Join(Tags(), ", "))
	}
	backend, err := c(o)
	if err != nil {
		return nil, cte.ErrDecorate(err, "calc.New")
	}
	if !o.D3 {
		return backend, nil
	}
	d3 := NewExternalHandle(defaultString(o.D3Cmd, "cte2bench-d3"))
	d3.SetWorkDir(o.WorkDir)
	d3.SetName("d3")
	d3.SetFreeEnergyFromEnergy(true)
	return NewSum(backend, d3), nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// externalBackend returns a constructor for an external worker. The default
// command is cte2bench-<worker>, which gets the model, modal and device as flags.
func externalBackend(worker string) Constructor {
	return func(o Options) (Calculator, error) {
		cmd := defaultString(o.Command, "cte2bench-"+worker)
		args := make([]string, 0, 6+len(o.Args))
		if o.Model != "" {
			args = append(args, "--model", o.Model)
		}
		if o.Modal != "" {
			args = append(args, "--modal", o.Modal)
		}
		if o.Device != "" {
			args = append(args, "--device", o.Device)
		}
		args = append(args, o.Args...)
		h := NewExternalHandle(cmd, args...)
		h.SetWorkDir(o.WorkDir)
		h.SetName(worker)
		return h, nil
	}
}

func init() {
	Register(externalBackend("sevennet"), "7net", "sevenn", "sevennet")
	Register(externalBackend("pet"), "pet")
	Register(externalBackend("esen"), "esen")
	Register(externalBackend("mace"), "mace")
	Register(externalBackend("orb"), "orb")
	Register(externalBackend("dpa"), "dpa")
	Register(externalBackend("uma"), "uma")
	Register(func(o Options) (Calculator, error) {
		if o.Command == "" {
			return nil, fmt.Errorf("%w: the exec calculator needs a command", cte.ErrConfig)
		}
		h := NewExternalHandle(o.Command, o.Args...)
		h.SetWorkDir(o.WorkDir)
		h.SetName("exec")
		return h, nil
	}, "exec")
	Register(func(o Options) (Calculator, error) {
		return NewLJ(o.LJ), nil
	}, "lj")
}
