/*
 * main.go, part of gocte.
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

// cte2bench runs the thermal expansion benchmark of an interatomic potential.
//
// Usage:
//
//	cte2bench --task <all|unitcell|strain|supercell|harmonic|qha> --config config.yaml \
//		--calc 7net --model omni --modal omat24
//
// Results go to ./<calc>/<model>/<modal> (./<model>/<modal> for SevenNet).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/rmera/gocte/calc"
	"github.com/rmera/gocte/pipeline"
	"github.com/spf13/cobra"
)

var flags struct {
	task    string
	config  string
	calc    string
	model   string
	modal   string
	verbose bool
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cte2bench",
		Short:        "Benchmark interatomic potentials on the thermal expansion of crystals",
		Long:         "cte2bench relaxes the input crystals, strains them, computes their phonons and fits\nthe quasi-harmonic approximation to obtain the thermal expansion coefficient.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	f := cmd.Flags()
	f.StringVar(&flags.task, "task", pipeline.TaskAll, "all, unitcell, strain, supercell, harmonic or qha")
	f.StringVar(&flags.config, "config", "./config.yaml", "configuration file")
	f.StringVar(&flags.calc, "calc", "7net", "calculator: 7net, mace, orb, esen, dpa, uma, pet, exec, lj")
	f.StringVar(&flags.model, "model", "omni", "model of the calculator")
	f.StringVar(&flags.modal, "modal", "omat24", "modal (training set) of the model")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "debug output")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.OutOrStdout(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := pipeline.LoadConfig(flags.config)
	if err != nil {
		return err
	}
	if err := cfg.Override(flags.calc, flags.model, flags.modal); err != nil {
		return err
	}
	if err := cfg.Validate(flags.task); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Directory.Cwd, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	if name, err := cfg.Dump(time.Now()); err != nil {
		logger.Warn("can't save the configuration", "error", err)
	} else {
		logger.Info("configuration saved", "file", name)
	}
	var c calc.Calculator
	if cfg.NeedsCalculator(flags.task) {
		if c, err = pipeline.NewCalculator(cfg); err != nil {
			return err
		}
		defer pipeline.Releaser{Calc: c}.Release()
	}
	R, err := pipeline.New(cfg, c, logger)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	start := time.Now()
	if err := R.Run(ctx, flags.task); err != nil {
		return err
	}
	logger.Info("finished", "task", flags.task, "tag", cfg.Calculator.Tag, "elapsed", time.Since(start).Round(time.Second))
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
