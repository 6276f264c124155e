package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"plotarchiver/internal/destinations"
	"plotarchiver/internal/plot"
)

func newDestinationsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "destinations",
		Short: "Show destination directories and whether they can take another plot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := inspectionLogger(cfg)
			registry := destinations.NewRegistry(logger)
			capacity := destinations.NewCapacity(logger)
			unit := plot.UnitSize(plot.Category(cfg.Plots.K))

			out := cmd.OutOrStdout()
			dirs := registry.Refresh(cfg.Paths.DestinationsFile)
			if len(dirs) == 0 {
				fmt.Fprintf(out, "No valid destinations listed in %s\n", cfg.Paths.DestinationsFile)
				return nil
			}
			rows := destinationRows(dirs, capacity, unit, shouldColorize(out))
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Directory", "Free", "Admitted"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "One k%d plot needs %s\n", cfg.Plots.K, humanize.IBytes(unit))
			return nil
		},
	}
}

func destinationRows(dirs []string, capacity *destinations.Capacity, unit uint64, colorize bool) [][]string {
	rows := make([][]string, 0, len(dirs))
	for i, dir := range dirs {
		free := "unknown"
		if bytes, err := capacity.FreeBytes(dir); err == nil {
			free = humanize.IBytes(bytes)
		}
		admitted := capacity.HasCapacity(dir, unit)
		kind := verdictOK
		if !admitted {
			kind = verdictWarn
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			dir,
			free,
			colorizeVerdict(kind, yesNo(admitted), colorize),
		})
	}
	return rows
}
