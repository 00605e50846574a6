package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cellmask/internal/dataset"
	"cellmask/internal/resolve"
)

func runMake(cfg *config, logger *slog.Logger, out io.Writer, datasets []dataset.Dataset) dataset.Tally {
	runner := dataset.NewRunner(cfg.options(), logger, out)
	total, _ := runner.Run(datasets)
	return total
}

func runSummarize(cfg *config, out io.Writer, datasets []dataset.Dataset) error {
	rows := make([]dataset.SummaryRow, 0, len(datasets))
	for _, ds := range datasets {
		rows = append(rows, dataset.Summarize(ds))
	}

	if err := os.MkdirAll(filepath.Dir(cfg.summaryOut), 0755); err != nil {
		return err
	}
	f, err := os.Create(cfg.summaryOut)
	if err != nil {
		return err
	}
	if err := dataset.WriteSummary(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "[ok] wrote %s\n", cfg.summaryOut)
	return nil
}

func runPrune(cfg *config, out io.Writer, datasets []dataset.Dataset) int {
	total := 0
	for idx, ds := range datasets {
		status := fmt.Sprintf("[%d/%d] ", idx+1, len(datasets))
		removed, err := dataset.Prune(ds, cfg.extensions(), cfg.dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%sWARNING: Skipping '%s': %v\n", status, ds.Name, err)
			continue
		}
		verb := "removed"
		if cfg.dryRun {
			verb = "would remove"
		}
		for _, name := range removed {
			fmt.Fprintf(out, "  [rm] %s\n", name)
		}
		fmt.Fprintf(out, "%s%s %d stale masks from %s\n", status, verb, len(removed), ds.MaskDir())
		total += len(removed)
	}
	return total
}

func runDiagnose(cfg *config, out io.Writer, datasets []dataset.Dataset) {
	for _, ds := range datasets {
		d, err := dataset.Diagnose(ds, cfg.extensions())
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: Skipping '%s': %v\n", ds.Name, err)
			continue
		}
		fmt.Fprintf(out, "== %s\n", ds.Name)
		fmt.Fprintf(out, "found images: %d\n", d.Images)
		fmt.Fprintf(out, "manual keys: %d\n", d.Manual)
		for _, rule := range []resolve.Rule{resolve.Exact, resolve.Previous, resolve.Offset, resolve.Lowest, resolve.Nearest} {
			if n := d.Rules[rule]; n > 0 {
				fmt.Fprintf(out, "  resolved by %s: %d\n", rule, n)
			}
		}
		fmt.Fprintf(out, "missing images for keys: %d\n", len(d.Unresolved))
		for i, u := range d.Unresolved {
			if i == 30 {
				fmt.Fprintf(out, "  ... %d more\n", len(d.Unresolved)-i)
				break
			}
			fmt.Fprintf(out, "  missing %s tried: %s\n", u.Key, strings.Join(u.Tried, ", "))
		}
		fmt.Fprintf(out, "example filenames: %s\n", strings.Join(d.Sample, ", "))
	}
}

func runInspect(cfg *config, out io.Writer, datasets []dataset.Dataset) {
	for _, ds := range datasets {
		inv, err := dataset.Inspect(ds, cfg.extensions())
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: Skipping '%s': %v\n", ds.Name, err)
			continue
		}
		var sizes []string
		for _, s := range inv.SortedSizes() {
			sizes = append(sizes, fmt.Sprintf("%dx%d (%d)", s.X, s.Y, inv.Sizes[s]))
		}
		fmt.Fprintf(out, "%s: %d images, %d jsons, %d masks, %d unreadable; sizes: %s\n",
			ds.Name, inv.Images, inv.JSONFiles, inv.Masks, inv.Unreadable, strings.Join(sizes, ", "))
	}
}
