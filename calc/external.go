/*
 * external.go, part of gocte.
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
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	cte "github.com/rmera/gocte"
)

//An ExternalHandle drives an interatomic potential that runs as a separate
//program (usually a small Python worker around the ML model). For every new
//structure, the handle writes it as extended XYZ, runs
//
//	command args... name.extxyz name.json
//
//and reads the results from name.json, which must contain
//
//	{"energy": E, "free_energy": F, "forces": [[fx,fy,fz],...], "stress": [6 or 9 numbers]}
//
//"free_energy" is optional. The results for the last structure are kept, so asking
//for energy, forces and stress of the same structure runs the program only once.
type ExternalHandle struct {
	command   string
	args      []string
	inputname string
	wrkdir    string
	fcEnergy  bool //use the energy when free_energy is missing
	last      *cte.Structure
	result    *ExternalResult
	runs      int
}

// ExternalResult is what an external worker returns.
type ExternalResult struct {
	Energy     float64      `json:"energy"`
	FreeEnergy *float64     `json:"free_energy,omitempty"`
	Forces     [][3]float64 `json:"forces"`
	Stress     []float64    `json:"stress"`
}

// NewExternalHandle returns a handle for the given command and arguments.
func NewExternalHandle(command string, args ...string) *ExternalHandle {
	O := new(ExternalHandle)
	O.command = command
	O.args = append([]string(nil), args...)
	O.inputname = "gocte"
	return O
}

// Command returns the command of the handle
func (O *ExternalHandle) Command() string {
	return O.command
}

// SetName sets the base name for the input and output files.
func (O *ExternalHandle) SetName(name string) {
	O.inputname = name
}

// SetCommand sets the program to run
func (O *ExternalHandle) SetCommand(name string) {
	O.command = name
}

// SetWorkDir sets the directory for the scratch files. Empty means the current directory.
func (O *ExternalHandle) SetWorkDir(dir string) {
	O.wrkdir = dir
}

// SetFreeEnergyFromEnergy makes the handle return the energy when the
// force-consistent energy is requested and the worker didn't provide one.
func (O *ExternalHandle) SetFreeEnergyFromEnergy(b bool) {
	O.fcEnergy = b
}

// Runs returns how many times the external program has been run.
func (O *ExternalHandle) Runs() int {
	return O.runs
}

func (O *ExternalHandle) path(ext string) string {
	return filepath.Join(O.wrkdir, O.inputname+ext)
}

// Run runs the external program for s, unless the results for s are already
// available.
func (O *ExternalHandle) Run(s *cte.Structure) (*ExternalResult, error) {
	if O.result != nil && sameGeometry(O.last, s) {
		return O.result, nil
	}
	O.result = nil
	O.last = nil
	input := O.path(".extxyz")
	output := O.path(".json")
	os.Remove(output)
	geo := s.Copy()
	geo.Info = nil
	if err := cte.ExtXYZWrite(input, geo); err != nil {
		return nil, cte.ErrDecorate(err, "ExternalHandle.Run")
	}
	args := append(append([]string(nil), O.args...), input, output)
	command := exec.Command(O.command, args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	slog.Debug("running external calculator", "command", O.command, "args", strings.Join(args, " "))
	if err := command.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		return nil, cte.NewError(fmt.Sprintf("external calculator %s failed: %s", O.command, msg), input, true, err, "ExternalHandle.Run")
	}
	O.runs++
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, cte.NewError("can't read calculator output", output, true, err, "ExternalHandle.Run")
	}
	res := new(ExternalResult)
	if err := json.Unmarshal(data, res); err != nil {
		return nil, cte.NewError("can't parse calculator output", output, true, err, "ExternalHandle.Run")
	}
	if len(res.Forces) != s.Len() {
		return nil, cte.NewError(fmt.Sprintf("%d forces for %d atoms", len(res.Forces), s.Len()), output, true, cte.ErrShape, "ExternalHandle.Run")
	}
	O.result = res
	O.last = s.Copy()
	return res, nil
}

// PotentialEnergy returns the energy of s. See the Calculator interface.
func (O *ExternalHandle) PotentialEnergy(s *cte.Structure, forceConsistent bool) (float64, error) {
	r, err := O.Run(s)
	if err != nil {
		return 0, cte.ErrDecorate(err, "ExternalHandle.PotentialEnergy")
	}
	if !forceConsistent {
		return r.Energy, nil
	}
	if r.FreeEnergy != nil {
		return *r.FreeEnergy, nil
	}
	if O.fcEnergy {
		return r.Energy, nil
	}
	return 0, fmt.Errorf("%s: force-consistent energy: %w", O.command, cte.ErrPropertyNotImplemented)
}

// Forces returns the forces on the atoms of s.
func (O *ExternalHandle) Forces(s *cte.Structure) ([][3]float64, error) {
	r, err := O.Run(s)
	if err != nil {
		return nil, cte.ErrDecorate(err, "ExternalHandle.Forces")
	}
	return append([][3]float64(nil), r.Forces...), nil
}

// Stress returns the stress of s in Voigt order.
func (O *ExternalHandle) Stress(s *cte.Structure) ([6]float64, error) {
	r, err := O.Run(s)
	if err != nil {
		return [6]float64{}, cte.ErrDecorate(err, "ExternalHandle.Stress")
	}
	return ToVoigt(r.Stress)
}

// Release removes the scratch files and forgets the last results.
func (O *ExternalHandle) Release() error {
	O.result = nil
	O.last = nil
	for _, ext := range []string{".extxyz", ".json"} {
		if err := os.Remove(O.path(ext)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ToVoigt takes a stress either in Voigt order (6 numbers) or as a full 3x3
// tensor in row-major order (9 numbers), and returns it in Voigt order.
func ToVoigt(s []float64) ([6]float64, error) {
	var ret [6]float64
	switch len(s) {
	case 6:
		copy(ret[:], s)
	case 9:
		ret = [6]float64{s[0], s[4], s[8], s[5], s[2], s[1]}
	default:
		return ret, fmt.Errorf("stress with %d components: %w", len(s), cte.ErrShape)
	}
	return ret, nil
}

// FromVoigt returns the full 3x3 tensor for a Voigt-ordered stress.
func FromVoigt(v [6]float64) [3][3]float64 {
	return [3][3]float64{
		{v[0], v[5], v[4]},
		{v[5], v[1], v[3]},
		{v[4], v[3], v[2]},
	}
}

func sameGeometry(a, b *cte.Structure) bool {
	if a == nil || b == nil || a.Len() != b.Len() || a.Cell != b.Cell || a.PBC != b.PBC {
		return false
	}
	for i := range a.Symbols {
		if a.Symbols[i] != b.Symbols[i] || a.Positions[i] != b.Positions[i] {
			return false
		}
	}
	return true
}
