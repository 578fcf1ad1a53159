/*
 * pipeline_test.go, part of gocte.
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
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	cte "github.com/rmera/gocte"
	"github.com/rmera/gocte/calc"
	"github.com/rmera/gocte/snap"
	"github.com/rmera/gocte/symmetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fccAr(Te *testing.T, a float64) *cte.Structure {
	cell := [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}}
	pos := [][3]float64{{0, 0, 0}, {0, a / 2, a / 2}, {a / 2, 0, a / 2}, {a / 2, a / 2, 0}}
	s, err := cte.NewStructure([]string{"Ar", "Ar", "Ar", "Ar"}, cell, pos)
	require.NoError(Te, err)
	return s
}

// testConfig returns a configuration for the Lennard-Jones calculator that
// works in dir, with cheap settings.
func testConfig(Te *testing.T, dir string, eps ...float64) Config {
	C := DefaultConfig()
	C.Calculator = CalculatorConfig{Calc: "lj", Model: "ar", Modal: "test", Tag: "LJ_ar_test"}
	C.Directory = DirectoryConfig{
		Input:   filepath.Join(dir, "input.extxyz"),
		Cwd:     filepath.Join(dir, "lj", "ar", "test"),
		Logfile: filepath.Join(dir, "lj", "ar", "test", "LJ_ar_test_stats.log"),
	}
	C.Strain.Eps = eps
	C.QHA.Eps = append([]float64(nil), eps...)
	C.Opt.Unitcell.Fmax = 1e-3
	C.Opt.Strain.Fmax = 1e-3
	C.Opt.Unitcell.Steps = 500
	C.Opt.Strain.Steps = 500
	C.Harmonic.TMax = 150
	C.QHA.TMax = 100
	C.Harmonic.BandPoints = 11
	return C
}

func writeInput(Te *testing.T, C Config, symmno int, structures ...*cte.Structure) {
	for _, s := range structures {
		s.Info.Update(&cte.Info{
			MaterialID:   cte.Ptr("mp-23155"),
			Name:         cte.Ptr("Ar"),
			SymmNo:       cte.Ptr(symmno),
			FC2Supercell: &[3]int{2, 2, 2},
			FC3Supercell: &[3]int{1, 1, 1},
			QPointMesh:   &[3]int{4, 4, 4},
		})
	}
	require.NoError(Te, cte.ExtXYZWrite(C.Directory.Input, structures...))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestLabelAndSuffix(Te *testing.T) {
	assert.Equal(Te, "e0.01", Label(0.01))
	assert.Equal(Te, "e-0.02", Label(-0.02))
	assert.Equal(Te, "e0", Label(0))
	info := &cte.Info{MaterialID: cte.Ptr("mp-1"), Name: cte.Ptr("Na Cl/x"), SymmNo: cte.Ptr(225)}
	assert.Equal(Te, "ID-3_mp-1_Na-Cl-x_225", Suffix(3, info))
	assert.Equal(Te, "ID-0_mp-??_?_?", Suffix(0, &cte.Info{}))
}

func TestOverride(Te *testing.T) {
	C := DefaultConfig()
	require.NoError(Te, C.Override("7net", "Omni", "MPA"))
	assert.Equal(Te, "omni_MPA", C.Calculator.Tag)
	assert.Equal(Te, "mpa", C.Calculator.Modal)
	assert.Equal(Te, "./omni/mpa", C.Directory.Prefix)
	assert.True(Te, filepath.IsAbs(C.Directory.Cwd))
	assert.Equal(Te, filepath.Join(C.Directory.Cwd, "omni_MPA_stats.log"), C.Directory.Logfile)

	C = DefaultConfig()
	require.NoError(Te, C.Override("mace", "omat", "pbe"))
	assert.Equal(Te, "MACE_omat_pbe", C.Calculator.Tag)
	assert.Equal(Te, "./mace/omat/pbe", C.Directory.Prefix)
	fmt.Println(C.Calculator.Tag, C.Directory.Cwd)
}

func TestValidate(Te *testing.T) {
	dir := Te.TempDir()
	C := testConfig(Te, dir, -0.01, 0, 0.01)
	writeInput(Te, C, 225, fccAr(Te, 5.26))
	require.NoError(Te, C.Validate(TaskAll))
	bad := func(task string, f func(c *Config)) {
		c := C
		c.Strain.Eps = append([]float64(nil), C.Strain.Eps...)
		c.QHA.Eps = append([]float64(nil), C.QHA.Eps...)
		f(&c)
		err := c.Validate(task)
		assert.True(Te, errors.Is(err, cte.ErrConfig), "%v", err)
	}
	bad("relax", func(c *Config) {})
	bad(TaskAll, func(c *Config) { c.Calculator.Calc = "nosuchthing" })
	bad(TaskUnitcell, func(c *Config) { c.Directory.Input = filepath.Join(dir, "missing.extxyz") })
	bad(TaskQHA, func(c *Config) { c.QHA.Eps = []float64{0.05} })
	bad(TaskQHA, func(c *Config) { c.QHA.EOS = "murnaghan" })
	bad(TaskStrain, func(c *Config) { c.Strain.Mode = "shear" })
	bad(TaskAll, func(c *Config) { c.Strain.Eps = []float64{0, 0} })
	bad(TaskSupercell, func(c *Config) { c.Supercell.Distance = 0 })
	bad(TaskHarmonic, func(c *Config) { c.Harmonic.Mesh = [3]int{4, 0, 4} })
	bad(TaskUnitcell, func(c *Config) { c.Opt.Unitcell.Optimizer = "sd" })
	bad(TaskAll, func(c *Config) { c.Calculator.Tag = "" })
	//the harmonic and QHA stages don't need a calculator
	c := C
	c.Calculator.Calc = "nosuchthing"
	assert.NoError(Te, c.Validate(TaskQHA))
	assert.False(Te, c.NeedsCalculator(TaskHarmonic))
	assert.True(Te, c.NeedsCalculator(TaskSupercell))
}

func TestConfigFile(Te *testing.T) {
	dir := Te.TempDir()
	name := filepath.Join(dir, "config.yaml")
	text := `
strain:
  eps: [-0.01, 0.0, 0.01]
  mode: c_axis
qha:
  eos: birch_murnaghan
opt:
  strain:
    optimizer: lbfgs
    fmax: 0.01
    steps: 100
    cell_filter: frechet
`
	require.NoError(Te, os.WriteFile(name, []byte(text), 0o644))
	C, err := LoadConfig(name)
	require.NoError(Te, err)
	assert.Equal(Te, []float64{-0.01, 0, 0.01}, C.Strain.Eps)
	assert.Equal(Te, "c_axis", C.Strain.Mode)
	assert.Equal(Te, "birch_murnaghan", C.QHA.EOS)
	assert.Equal(Te, "lbfgs", C.Opt.Strain.Optimizer)
	//defaults survive
	assert.Equal(Te, 0.01, C.Supercell.Distance)
	assert.Equal(Te, "fire", C.Opt.Unitcell.Optimizer)

	C.Directory.Cwd = dir
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	dump, err := C.Dump(now)
	require.NoError(Te, err)
	assert.Equal(Te, filepath.Join(dir, "2025-03-04_05-06-07_config.yaml"), dump)
	data, err := os.ReadFile(dump)
	require.NoError(Te, err)
	assert.True(Te, strings.HasPrefix(string(data), "---\n"))
	back := DefaultConfig()
	require.NoError(Te, yaml.Unmarshal(data, &back))
	back.Opt.Unitcell.Finder, back.Opt.Strain.Finder = nil, nil
	C.Opt.Unitcell.Finder, C.Opt.Strain.Finder = nil, nil
	if d := cmp.Diff(C, back, cmpopts.EquateEmpty()); d != "" {
		Te.Error("dumped configuration differs:\n", d)
	}
	_, err = LoadConfig(filepath.Join(dir, "nothere.yaml"))
	assert.True(Te, errors.Is(err, cte.ErrConfig))
}

func TestResults(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "results.json")
	R := NewResults("LJ_ar_test")
	R.Merge(0, &Entry{ID: "ID-0", Name: "Ar", SymmNo: "225", MPID: "mp-23155",
		Harmonic: map[string]*HarmonicRecord{"e0": {FC2: true, Fraction: 0.01, QHA: true}}})
	require.NoError(Te, R.Save(name))

	back, err := LoadResults(name, "LJ_ar_test")
	require.NoError(Te, err)
	assert.NotEqual(Te, R.RunID, back.RunID)
	if d := cmp.Diff(R.Entries, back.Entries); d != "" {
		Te.Error("results differ after reading:\n", d)
	}

	//a later run only adds
	R2 := NewResults("LJ_ar_test")
	R2.Merge(0, &Entry{CTE: map[string]map[string][]float64{"CALC": {"300": {1e-5}, "800": {}}}})
	R2.Merge(1, &Entry{ID: "ID-1"})
	require.NoError(Te, R2.Save(name))
	final, err := LoadResults(name, "x")
	require.NoError(Te, err)
	assert.Equal(Te, []int{0, 1}, final.Indexes())
	e := final.Entries[0]
	assert.Equal(Te, "mp-23155", e.MPID)
	assert.True(Te, e.Harmonic["e0"].QHA)
	assert.Equal(Te, []float64{1e-5}, e.CTE["CALC"]["300"])
	assert.Equal(Te, []float64{}, e.CTE["CALC"]["800"])

	data, err := os.ReadFile(name)
	require.NoError(Te, err)
	assert.Contains(Te, string(data), `"run_id"`)
	assert.Contains(Te, string(data), `"IMAGINARY"`)
	assert.Contains(Te, string(data), `"symm.no"`)

	require.NoError(Te, final.SaveEntry(0, filepath.Join(Te.TempDir(), "one.json")))
	assert.Error(Te, final.SaveEntry(7, filepath.Join(Te.TempDir(), "none.json")))

	empty, err := LoadResults(filepath.Join(Te.TempDir(), "none.json"), "x")
	require.NoError(Te, err)
	assert.Empty(Te, empty.Entries)
}

func TestStats(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "stats.log")
	S, err := OpenStats(name)
	require.NoError(Te, err)
	s := fccAr(Te, 5.26)
	require.NoError(Te, S.Write(s, "unit", "oneshot", 0, "#N/A"))
	s.Info.Update(&cte.Info{ID: cte.Ptr("ID-0"), EFrEnergy: cte.Ptr(-0.3), Steps: cte.Ptr(12),
		ForceConv: cte.Ptr(true), SymmNoStrain: cte.Ptr(225), Relax: cte.StartWatch().Stop()})
	require.NoError(Te, S.Write(s, "strain", "relax", 0.01, "#N/A"))
	//reopening keeps the content, and doesn't add a header
	S, err = OpenStats(name)
	require.NoError(Te, err)
	require.NoError(Te, S.Write(s, "fc2", "oneshot", 0.01, "00001"))
	var nilStats *StatsLog
	assert.NoError(Te, nilStats.Write(s, "unit", "relax", 0, ""))

	f, err := os.Open(name)
	require.NoError(Te, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(Te, err)
	require.Len(Te, rows, 4)
	assert.Equal(Te, StatsHeader, rows[0])
	assert.Equal(Te, []string{"ID-?", "mp-??", "Ar", "unit", "0", "#N/A", "oneshot", "steps?", "force_conv?", "wall_i", "wall_f",
		"task.symm.no?", "4", "energy?"}, rows[1][:14])
	assert.Equal(Te, "ID-0", rows[2][0])
	assert.Equal(Te, "True", rows[2][8])
	assert.Equal(Te, "225", rows[2][11])
	assert.Equal(Te, "-0.3", rows[2][13])
	a, err := strconv.ParseFloat(rows[2][15], 64)
	require.NoError(Te, err)
	assert.InDelta(Te, 5.26, a, 1e-9)
	gamma, err := strconv.ParseFloat(rows[2][20], 64)
	require.NoError(Te, err)
	assert.InDelta(Te, 90, gamma, 1e-9)
	assert.Equal(Te, "00001", rows[3][5])
}

func TestPrimitiveMatrix186(Te *testing.T) {
	dir := Te.TempDir()
	C := testConfig(Te, dir, 0)
	C.Opt.Unitcell.Steps = 3
	writeInput(Te, C, 186, fccAr(Te, 5.26))
	R, err := New(C, calc.NewLJ(calc.LJParams{}), quietLogger())
	require.NoError(Te, err)
	require.NoError(Te, R.Run(context.Background(), TaskUnitcell))
	infos, err := snap.Load[map[int]*cte.Info](filepath.Join(C.Directory.Cwd, "LJ_ar_test-unitcell.snap"))
	require.NoError(Te, err)
	require.Contains(Te, infos, 0)
	info := infos[0]
	require.NotNil(Te, info.PrimitiveMatrix)
	assert.Equal(Te, cte.Identity3(), *info.PrimitiveMatrix)
	assert.Equal(Te, "ID-0_mp-23155_Ar_186", *info.Suffix)
	assert.Equal(Te, "LJ_ar_test", *info.CalcTag)
	assert.Equal(Te, 225, *info.SymmNoUnit)
	assert.True(Te, *info.UnitcellSymm)
	assert.FileExists(Te, filepath.Join(C.Directory.Cwd, "ID-0_mp-23155_Ar_186", "unitcell", "CONTCAR"))
}

// unknownGroup finds operations but can't name the group.
type unknownGroup struct{}

func (unknownGroup) Find(s *cte.Structure, symprec float64) (*symmetry.Dataset, error) {
	return &symmetry.Dataset{Number: 4, Rotations: [][3][3]int{{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}, Translations: [][3]float64{{}}}, nil
}

func wurtzite(Te *testing.T) *cte.Structure {
	a, c, u := 3.25, 5.21, 0.382
	cell := [3][3]float64{{a, 0, 0}, {-a / 2, a * math.Sqrt(3) / 2, 0}, {0, 0, c}}
	frac := [][3]float64{{1. / 3, 2. / 3, 0}, {2. / 3, 1. / 3, 0.5}, {1. / 3, 2. / 3, u}, {2. / 3, 1. / 3, 0.5 + u}}
	pos := make([][3]float64, len(frac))
	for i, f := range frac {
		pos[i] = cte.MulVec3(f, cell)
	}
	s, err := cte.NewStructure([]string{"Zn", "Zn", "O", "O"}, cell, pos)
	require.NoError(Te, err)
	return s
}

func TestPrimitive186FromSearch(Te *testing.T) {
	C := testConfig(Te, Te.TempDir(), 0)
	R, err := New(C, calc.NewLJ(calc.LJParams{}), quietLogger())
	require.NoError(Te, err)

	w := wurtzite(Te)
	n := R.spaceGroup(w)
	fmt.Println("wurtzite:", n)
	assert.Equal(Te, 186, n)
	R.primitive186(w, n)
	require.NotNil(Te, w.Info.PrimitiveMatrix)
	assert.Equal(Te, cte.Identity3(), *w.Info.PrimitiveMatrix)

	//a cubic structure with no metadata is left alone
	f := fccAr(Te, 5.26)
	R.primitive186(f, R.spaceGroup(f))
	assert.Nil(Te, f.Info.PrimitiveMatrix)

	//the metadata wins over the search
	f.Info.SymmNo = cte.Ptr(186)
	R.primitive186(f, 225)
	require.NotNil(Te, f.Info.PrimitiveMatrix)

	//an existing matrix is kept
	w = wurtzite(Te)
	m := [3][3]float64{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}}
	w.Info.PrimitiveMatrix = cte.Ptr(m)
	R.primitive186(w, 186)
	assert.Equal(Te, m, *w.Info.PrimitiveMatrix)

	//an unidentified group gives 0, never the operation count
	R.finder = unknownGroup{}
	w = wurtzite(Te)
	n = R.spaceGroup(w)
	assert.Equal(Te, 0, n)
	R.primitive186(w, n)
	assert.Nil(Te, w.Info.PrimitiveMatrix)
}

func TestRunWithoutCalculator(Te *testing.T) {
	C := testConfig(Te, Te.TempDir(), 0)
	R, err := New(C, nil, quietLogger())
	require.NoError(Te, err)
	err = R.Run(context.Background(), TaskStrain)
	assert.True(Te, errors.Is(err, cte.ErrConfig), "%v", err)
	err = R.Run(context.Background(), "phonons")
	assert.True(Te, errors.Is(err, cte.ErrConfig), "%v", err)
	//no unit cell snapshot yet
	assert.Error(Te, R.Run(context.Background(), TaskHarmonic))
}

// TestPipeline runs the whole benchmark on fcc argon with the Lennard-Jones
// potential.
func TestPipeline(Te *testing.T) {
	if testing.Short() {
		Te.Skip("full pipeline")
	}
	dir := Te.TempDir()
	eps := []float64{-0.01, -0.005, 0, 0.005, 0.01}
	C := testConfig(Te, dir, eps...)
	//first with too few points
	C.QHA.Eps = eps[:4]
	writeInput(Te, C, 225, fccAr(Te, 5.26))
	require.NoError(Te, C.Validate(TaskAll))
	lj := calc.NewCounter(calc.NewLJ(calc.LJParams{}))
	R, err := New(C, lj, quietLogger())
	require.NoError(Te, err)
	ctx := context.Background()
	require.NoError(Te, R.Run(ctx, TaskAll))
	assert.Greater(Te, lj.Calls(), 0)
	//one release per structure and stage, not per strain
	assert.Equal(Te, 5, lj.Releases)

	cwd := C.Directory.Cwd
	tag := C.Calculator.Tag
	suffix := "ID-0_mp-23155_Ar_225"
	for _, f := range []string{
		tag + "-unitcell.snap",
		tag + "-unitcell_relax.extxyz",
		tag + "_stats.log",
		tag + "_results.json",
		filepath.Join(suffix, "strain", tag+"-strain-"+suffix+".extxyz"),
		filepath.Join(suffix, "strain", tag+"-strain_relax-"+suffix+".extxyz"),
		filepath.Join(suffix, "strain", tag+"-strain_dct-"+suffix+".snap"),
		filepath.Join(suffix, "strain", "POSCAR_e-0.01"),
		filepath.Join(suffix, "strain", "CONTCAR_e0.005"),
		filepath.Join(suffix, "supercell", "FORCE_CONSTANTS_2ND_e0"),
		filepath.Join(suffix, "supercell", "e0_FC2.extxyz"),
		filepath.Join(suffix, "supercell", "e0", "force-00001.dat"),
		filepath.Join(suffix, "harmonic", "e0", "mesh_e0.snap"),
		filepath.Join(suffix, "harmonic", "e0", "thermal_properties_e0.yaml"),
		filepath.Join(suffix, "harmonic", "e0", "thermal_properties_e0.svg"),
		filepath.Join(suffix, "harmonic", "e0", "band_e0.yaml"),
		filepath.Join(suffix, "harmonic", "e0", "band_structure_e0.svg"),
		filepath.Join(suffix, "harmonic", "e0", "total_dos_e0.dat"),
		filepath.Join(suffix, "harmonic", "e0", "band_dos_e0.svg"),
	} {
		assert.FileExists(Te, filepath.Join(cwd, f))
	}
	//the strained cells keep their volume
	strained, err := R.strained(suffix)
	require.NoError(Te, err)
	require.Len(Te, strained, 5)
	for _, e := range eps {
		s := strained[Label(e)]
		require.NotNil(Te, s, Label(e))
		assert.Equal(Te, e, *s.Info.Eps)
		assert.True(Te, *s.Info.StrainVol, Label(e))
		assert.Equal(Te, *s.Info.VolInit, *s.Info.VolFinal)
		assert.NotNil(Te, s.Info.UnitcellOpt)
	}
	assert.Less(Te, strained["e-0.01"].Volume(), strained["e0.01"].Volume())
	records, err := snap.Load[map[string]*cte.Info](filepath.Join(cwd, suffix, "strain", tag+"-strain_dct-"+suffix+".snap"))
	require.NoError(Te, err)
	require.Len(Te, records, 5)
	for _, e := range eps {
		r := records[Label(e)]
		require.NotNil(Te, r, Label(e))
		assert.Equal(Te, e, *r.Eps)
		assert.True(Te, *r.StrainVol, Label(e))
		assert.True(Te, *r.StrainSymm, Label(e))
		assert.NotNil(Te, r.StrainOpt)
	}

	res, err := LoadResults(filepath.Join(cwd, tag+"_results.json"), tag)
	require.NoError(Te, err)
	e := res.Entries[0]
	require.NotNil(Te, e)
	assert.Equal(Te, "ID-0", e.ID)
	assert.Equal(Te, "225", e.SymmNo)
	require.Len(Te, e.Harmonic, 5)
	for k, h := range e.Harmonic {
		assert.True(Te, h.FC2, k)
		assert.False(Te, h.Imaginary, k)
		assert.True(Te, h.QHA, k)
	}
	//four points are not enough for the equation of state
	assert.Empty(Te, e.CTE)
	assert.NoFileExists(Te, filepath.Join(cwd, suffix, tag+"_results.json"))

	//with five
	R.cfg.QHA.Eps = eps
	require.NoError(Te, R.Run(ctx, TaskQHA))
	res, err = LoadResults(filepath.Join(cwd, tag+"_results.json"), tag)
	require.NoError(Te, err)
	e = res.Entries[0]
	require.Contains(Te, e.CTE, "CALC")
	require.Len(Te, e.CTE["CALC"]["10"], 1)
	assert.Empty(Te, e.CTE["CALC"]["300"])
	require.Len(Te, e.Harmonic, 5)
	for _, f := range []string{"qha.x", "data/thermal_expansion.dat", "data/helmholtz-volume.dat",
		"full/helmholtz-volume_fitted.dat", "plot/thermal_expansion.svg", "vinet.svg"} {
		assert.FileExists(Te, filepath.Join(cwd, suffix, "qha", f))
	}
	assert.FileExists(Te, filepath.Join(cwd, suffix, tag+"_results.json"))

	//continuation: nothing is evaluated again
	C2 := C
	C2.Supercell.Cont = true
	C2.Harmonic.Cont = true
	lj2 := calc.NewCounter(calc.NewLJ(calc.LJParams{}))
	R2, err := New(C2, lj2, quietLogger())
	require.NoError(Te, err)
	require.NoError(Te, R2.Run(ctx, TaskSupercell))
	require.NoError(Te, R2.Run(ctx, TaskHarmonic))
	assert.Equal(Te, 0, lj2.Calls())
	assert.Equal(Te, 2, lj2.Releases)
	res, err = LoadResults(filepath.Join(cwd, tag+"_results.json"), tag)
	require.NoError(Te, err)
	//the harmonic stage doesn't remove the thermal expansion
	assert.Contains(Te, res.Entries[0].CTE, "CALC")
	fmt.Println("CTE at 10 K:", res.Entries[0].CTE["CALC"]["10"])
}
