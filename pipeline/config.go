/*
 * config.go, part of gocte.
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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/calc"
	"github.com/rmera/gocte/qha"
	"github.com/rmera/gocte/relax"
	"github.com/rmera/gocte/symmetry"
	"gopkg.in/yaml.v3"
)

// CalculatorConfig selects and sets up the interatomic potential.
type CalculatorConfig struct {
	Calc    string        `yaml:"calc"`
	Model   string        `yaml:"model"`
	Modal   string        `yaml:"modal"`
	Tag     string        `yaml:"tag"`
	Device  string        `yaml:"device"`
	Path    string        `yaml:"path"` //model checkpoint, required by SevenNet
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	D3      bool          `yaml:"d3"`
	D3Cmd   string        `yaml:"d3_command"`
	LJ      calc.LJParams `yaml:"lj"`
}

// DirectoryConfig holds the input file and the places results go to.
type DirectoryConfig struct {
	Input   string `yaml:"input"`
	Prefix  string `yaml:"prefix"`
	Cwd     string `yaml:"cwd"`
	Logfile string `yaml:"logfile"`
}

type UnitcellConfig struct {
	Run  bool   `yaml:"run"`
	Save string `yaml:"save"`
}

type StrainConfig struct {
	Run  bool      `yaml:"run"`
	Save string    `yaml:"save"`
	Eps  []float64 `yaml:"eps"`
	Mode string    `yaml:"mode"` //isotropic or c_axis
}

type SupercellConfig struct {
	Run          bool    `yaml:"run"`
	Save         string  `yaml:"save"`
	Distance     float64 `yaml:"distance"`
	Cont         bool    `yaml:"cont"`
	SymmetrizeFC bool    `yaml:"symmetrize_fc2"`
	//Kept for compatibility with older configuration files. Displacements
	//are deterministic, so it's not used.
	RandomSeed *int `yaml:"random_seed"`
}

type HarmonicConfig struct {
	Run        bool    `yaml:"run"`
	Save       string  `yaml:"save"`
	Cont       bool    `yaml:"cont"`
	RunThermal bool    `yaml:"run_thermal"`
	RunBand    bool    `yaml:"run_band"`
	RunDOS     bool    `yaml:"run_dos"`
	TMin       float64 `yaml:"t_min"`
	TMax       float64 `yaml:"t_max"`
	TStep      float64 `yaml:"t_step"`
	Mesh       [3]int  `yaml:"mesh"` //used when the structure has no q_point_mesh
	BandPoints int     `yaml:"band_points"`
	DOSSigma   float64 `yaml:"dos_sigma"`
}

type QHAConfig struct {
	Run        bool      `yaml:"run"`
	Save       string    `yaml:"save"`
	Eps        []float64 `yaml:"eps"`
	EOS        string    `yaml:"eos"`
	TMax       float64   `yaml:"t_max"`
	ThinNumber int       `yaml:"thin_number"`
	Plot       string    `yaml:"plot"`
	Data       string    `yaml:"data"`
	Full       string    `yaml:"full"`
	Plots      bool      `yaml:"plots"`
}

// OptConfig holds the relaxation settings of the two stages that relax.
type OptConfig struct {
	Unitcell relax.Config `yaml:"unitcell"`
	Strain   relax.Config `yaml:"strain"`
}

type SymmetryConfig struct {
	Finder  string  `yaml:"finder"` //internal or spglib
	Command string  `yaml:"command"`
	Symprec float64 `yaml:"symprec"`
}

// Config is the whole configuration of a run.
type Config struct {
	Calculator CalculatorConfig `yaml:"calculator"`
	Directory  DirectoryConfig  `yaml:"directory"`
	Unitcell   UnitcellConfig   `yaml:"unitcell"`
	Strain     StrainConfig     `yaml:"strain"`
	Supercell  SupercellConfig  `yaml:"supercell"`
	Harmonic   HarmonicConfig   `yaml:"harmonic"`
	QHA        QHAConfig        `yaml:"qha"`
	Opt        OptConfig        `yaml:"opt"`
	Symmetry   SymmetryConfig   `yaml:"symmetry"`
}

// DefaultConfig returns the configuration used for anything a file doesn't set.
func DefaultConfig() Config {
	eps := []float64{-0.02, -0.01, 0, 0.01, 0.02}
	strain := relax.DefaultConfig()
	strain.ConstVolume = true
	return Config{
		Calculator: CalculatorConfig{Calc: "7net", Model: "omni", Modal: "omat24"},
		Directory:  DirectoryConfig{Input: "input.extxyz"},
		Unitcell:   UnitcellConfig{Run: true, Save: "unitcell"},
		Strain:     StrainConfig{Run: true, Save: "strain", Eps: eps, Mode: "isotropic"},
		Supercell:  SupercellConfig{Run: true, Save: "supercell", Distance: 0.01, SymmetrizeFC: true},
		Harmonic: HarmonicConfig{Run: true, Save: "harmonic", RunThermal: true, RunBand: true, RunDOS: true,
			TMin: 0, TMax: 1000, TStep: 10, Mesh: [3]int{19, 19, 19}, BandPoints: 51},
		QHA: QHAConfig{Run: true, Save: "qha", Eps: append([]float64(nil), eps...), EOS: "vinet", TMax: 1000,
			ThinNumber: 10, Plot: "plot", Data: "data", Full: "full", Plots: true},
		Opt:      OptConfig{Unitcell: relax.DefaultConfig(), Strain: strain},
		Symmetry: SymmetryConfig{Finder: "internal", Symprec: symmetry.DefaultSymprec},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(name string) (Config, error) {
	C := DefaultConfig()
	data, err := os.ReadFile(name)
	if err != nil {
		return C, cte.NewError("can't read configuration", name, true, fmt.Errorf("%w: %w", cte.ErrConfig, err), "LoadConfig")
	}
	if err := yaml.Unmarshal(data, &C); err != nil {
		return C, cte.NewError("malformed configuration", name, true, fmt.Errorf("%w: %w", cte.ErrConfig, err), "LoadConfig")
	}
	return C, nil
}

// IsSevenNet returns true for the tags of the SevenNet backend.
func IsSevenNet(name string) bool {
	switch strings.ToLower(name) {
	case "7net", "sevenn", "sevennet", "seven":
		return true
	}
	return false
}

// Override sets the calculator from the command line, and derives from it the
// calculator tag and the working directory: <model>_<modal> and
// ./<model>/<modal> for SevenNet, <CALC>_<model>_<modal> and
// ./<calc>/<model>/<modal> otherwise. Empty arguments keep the configured values.
func (C *Config) Override(calcName, model, modal string) error {
	if calcName != "" {
		C.Calculator.Calc = calcName
	}
	if model != "" {
		C.Calculator.Model = model
	}
	if modal != "" {
		C.Calculator.Modal = modal
	}
	rawModal := C.Calculator.Modal
	C.Calculator.Model = strings.ToLower(C.Calculator.Model)
	C.Calculator.Modal = strings.ToLower(C.Calculator.Modal)
	if IsSevenNet(C.Calculator.Calc) {
		C.Calculator.Tag = C.Calculator.Model + "_" + rawModal
		C.Directory.Prefix = "./" + C.Calculator.Model + "/" + C.Calculator.Modal
	} else {
		C.Calculator.Tag = strings.ToUpper(C.Calculator.Calc) + "_" + C.Calculator.Model + "_" + rawModal
		C.Directory.Prefix = "./" + strings.ToLower(C.Calculator.Calc) + "/" + C.Calculator.Model + "/" + C.Calculator.Modal
	}
	cwd, err := filepath.Abs(C.Directory.Prefix)
	if err != nil {
		return cte.NewError("can't resolve the working directory", C.Directory.Prefix, true, err, "Config.Override")
	}
	C.Directory.Cwd = cwd
	C.Directory.Logfile = filepath.Join(cwd, C.Calculator.Tag+"_stats.log")
	return nil
}

// NeedsCalculator tells whether running task with this configuration
// evaluates any structure.
func (C *Config) NeedsCalculator(task string) bool {
	switch strings.ToLower(task) {
	case TaskUnitcell, TaskStrain, TaskSupercell:
		return true
	case TaskAll:
		return C.Unitcell.Run || C.Strain.Run || C.Supercell.Run
	}
	return false
}

// Validate checks the configuration before any stage runs. All the errors
// wrap cte.ErrConfig.
func (C *Config) Validate(task string) error {
	if _, ok := stages[strings.ToLower(task)]; !ok && strings.ToLower(task) != TaskAll {
		return fmt.Errorf("%w: unknown task %q", cte.ErrConfig, task)
	}
	if C.Calculator.Tag == "" || C.Directory.Cwd == "" {
		return fmt.Errorf("%w: no calculator tag or working directory, call Override first", cte.ErrConfig)
	}
	runs := func(stage string, on bool) bool {
		t := strings.ToLower(task)
		return t == stage || (t == TaskAll && on)
	}
	if C.NeedsCalculator(task) && !calc.Known(C.Calculator.Calc) {
		return fmt.Errorf("%w: unknown calculator %q, available: %s", cte.ErrConfig, C.Calculator.Calc, strings.Join(calc.Tags(), ", "))
	}
	if C.NeedsCalculator(task) && IsSevenNet(C.Calculator.Calc) && C.Calculator.Path != "" {
		if _, err := os.Stat(C.Calculator.Path); err != nil {
			return fmt.Errorf("%w: model checkpoint %s not found", cte.ErrConfig, C.Calculator.Path)
		}
	}
	if runs(TaskUnitcell, C.Unitcell.Run) {
		if _, err := os.Stat(C.Directory.Input); err != nil {
			return fmt.Errorf("%w: input file not found at %s", cte.ErrConfig, C.Directory.Input)
		}
		if err := C.Opt.Unitcell.Validate(); err != nil {
			return fmt.Errorf("opt.unitcell: %w", err)
		}
	}
	if runs(TaskStrain, C.Strain.Run) {
		if err := C.Opt.Strain.Validate(); err != nil {
			return fmt.Errorf("opt.strain: %w", err)
		}
		switch C.Strain.Mode {
		case "", "isotropic", "c_axis":
		default:
			return fmt.Errorf("%w: unknown strain mode %q (isotropic, c_axis)", cte.ErrConfig, C.Strain.Mode)
		}
	}
	if len(C.Strain.Eps) == 0 {
		return fmt.Errorf("%w: strain.eps is empty", cte.ErrConfig)
	}
	seen := map[string]bool{}
	for _, e := range C.Strain.Eps {
		if e <= -1 {
			return fmt.Errorf("%w: strain %v would collapse the cell", cte.ErrConfig, e)
		}
		if seen[Label(e)] {
			return fmt.Errorf("%w: strain %v given twice", cte.ErrConfig, e)
		}
		seen[Label(e)] = true
	}
	if runs(TaskSupercell, C.Supercell.Run) && !(C.Supercell.Distance > 0) {
		return fmt.Errorf("%w: supercell.distance must be a positive number, got %v", cte.ErrConfig, C.Supercell.Distance)
	}
	if runs(TaskHarmonic, C.Harmonic.Run) {
		h := C.Harmonic
		if h.TStep <= 0 || h.TMin < 0 || h.TMax < h.TMin {
			return fmt.Errorf("%w: bad temperature range %v:%v:%v", cte.ErrConfig, h.TMin, h.TStep, h.TMax)
		}
		for _, n := range h.Mesh {
			if n < 1 {
				return fmt.Errorf("%w: bad q-point mesh %v", cte.ErrConfig, h.Mesh)
			}
		}
	}
	if runs(TaskQHA, C.QHA.Run) {
		if _, err := qha.EOSByName(C.QHA.EOS); err != nil {
			return err
		}
		if C.QHA.ThinNumber < 0 {
			return fmt.Errorf("%w: qha.thin_number must not be negative", cte.ErrConfig)
		}
		for _, e := range C.QHA.Eps {
			if !seen[Label(e)] {
				return fmt.Errorf("%w: qha strain %v is not in strain.eps", cte.ErrConfig, e)
			}
		}
	}
	if _, err := symmetry.NewFinder(C.Symmetry.Finder, C.Symmetry.Command); err != nil {
		return err
	}
	return nil
}

// Dump writes the configuration, as YAML, to <cwd>/<timestamp>_config.yaml and
// returns the file name.
func (C *Config) Dump(now time.Time) (string, error) {
	name := filepath.Join(C.Directory.Cwd, now.Format("2006-01-02_15-04-05")+"_config.yaml")
	data, err := yaml.Marshal(C)
	if err != nil {
		return "", cte.NewError("can't encode configuration", name, false, err, "Config.Dump")
	}
	if err := os.WriteFile(name, append([]byte("---\n"), data...), 0o644); err != nil {
		return "", cte.NewError("can't write configuration", name, false, err, "Config.Dump")
	}
	return name, nil
}

// CalcOptions returns the options to build the calculator.
func (C *Config) CalcOptions() calc.Options {
	c := C.Calculator
	args := append([]string(nil), c.Args...)
	if c.Path != "" {
		args = append(args, "--checkpoint", c.Path)
	}
	return calc.Options{
		Tag:     c.Calc,
		Model:   c.Model,
		Modal:   c.Modal,
		Device:  c.Device,
		Command: c.Command,
		Args:    args,
		WorkDir: filepath.Join(C.Directory.Cwd, "scratch"),
		D3:      c.D3,
		D3Cmd:   c.D3Cmd,
		LJ:      c.LJ,
	}
}
