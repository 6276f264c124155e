package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"plotarchiver/internal/config"
	"plotarchiver/internal/daemon"
	"plotarchiver/internal/plot"
)

type scanEntry struct {
	name     string
	size     int64
	category string
	reason   plot.Reason
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List staging entries and whether each would be archived",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			entries, err := scanStaging(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Staging directory %s is empty\n", cfg.Paths.StagingDir)
				return nil
			}

			colorize := shouldColorize(out)
			eligible := 0
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				if entry.reason == plot.ReasonEligible {
					eligible++
				}
				rows = append(rows, []string{
					entry.name,
					humanize.IBytes(uint64(entry.size)),
					entry.category,
					colorizeVerdict(reasonKind(entry.reason), string(entry.reason), colorize),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Size", "Category", "Verdict"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d of %d entries eligible for k%d\n", eligible, len(entries), cfg.Plots.K)
			return nil
		},
	}
}

func scanStaging(cfg *config.Config) ([]scanEntry, error) {
	dirEntries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("read staging directory: %w", err)
	}
	criteria := daemon.Criteria(cfg)
	entries := make([]scanEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(cfg.Paths.StagingDir, de.Name())
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		candidate, reason := criteria.Inspect(path, info.Size())
		category := "-"
		if candidate.Category != 0 {
			category = candidate.Category.Token()
		} else if k, ok := plot.ParseCategory(de.Name()); ok {
			category = k.Token()
		}
		entries = append(entries, scanEntry{
			name:     de.Name(),
			size:     info.Size(),
			category: category,
			reason:   reason,
		})
	}
	return entries, nil
}

func reasonKind(reason plot.Reason) verdictKind {
	switch {
	case reason == plot.ReasonEligible:
		return verdictOK
	case reason.Rejected():
		return verdictError
	case reason == plot.ReasonWrongCategory:
		return verdictWarn
	default:
		return verdictInfo
	}
}
