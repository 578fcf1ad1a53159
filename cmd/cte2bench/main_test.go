/*
 * main_test.go, part of gocte.
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

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	cte "github.com/rmera/gocte"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inDir runs the test from dir, since the working directory of a run is
// relative to the current one.
func inDir(Te *testing.T, dir string) {
	old, err := os.Getwd()
	require.NoError(Te, err)
	require.NoError(Te, os.Chdir(dir))
	Te.Cleanup(func() { os.Chdir(old) })
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBadArguments(Te *testing.T) {
	dir := Te.TempDir()
	inDir(Te, dir)
	_, err := execute("--config", "missing.yaml")
	assert.True(Te, errors.Is(err, cte.ErrConfig), "%v", err)

	require.NoError(Te, os.WriteFile("config.yaml", []byte("directory:\n  input: input.extxyz\n"), 0o644))
	_, err = execute("--task", "relax", "--calc", "lj")
	assert.True(Te, errors.Is(err, cte.ErrConfig), "%v", err)
	_, err = execute("--calc", "nosuchcalc")
	assert.True(Te, errors.Is(err, cte.ErrConfig), "%v", err)
	assert.NoDirExists(Te, filepath.Join(dir, "nosuchcalc"))
}

func TestUnitcellTask(Te *testing.T) {
	dir := Te.TempDir()
	inDir(Te, dir)
	a := 5.26
	s, err := cte.NewStructure([]string{"Ar", "Ar", "Ar", "Ar"}, [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}},
		[][3]float64{{0, 0, 0}, {0, a / 2, a / 2}, {a / 2, 0, a / 2}, {a / 2, a / 2, 0}})
	require.NoError(Te, err)
	s.Info.Update(&cte.Info{MaterialID: cte.Ptr("mp-23155"), Name: cte.Ptr("Ar"), SymmNo: cte.Ptr(225)})
	require.NoError(Te, cte.ExtXYZWrite("input.extxyz", s))
	conf := "directory:\n  input: input.extxyz\nopt:\n  unitcell:\n    optimizer: fire\n    cell_filter: frechet\n    fmax: 0.001\n    steps: 20\n"
	require.NoError(Te, os.WriteFile("config.yaml", []byte(conf), 0o644))
	out, err := execute("--task", "unitcell", "--calc", "lj", "--model", "Ar", "--modal", "Test")
	require.NoError(Te, err, out)
	cwd := filepath.Join(dir, "lj", "ar", "test")
	assert.FileExists(Te, filepath.Join(cwd, "LJ_ar_Test-unitcell.snap"))
	assert.FileExists(Te, filepath.Join(cwd, "LJ_ar_Test-unitcell_relax.extxyz"))
	assert.FileExists(Te, filepath.Join(cwd, "LJ_ar_Test_stats.log"))
	dumps, err := filepath.Glob(filepath.Join(cwd, "*_config.yaml"))
	require.NoError(Te, err)
	assert.Len(Te, dumps, 1)
	assert.Contains(Te, out, "Unit cell optimization 1/1")
}
