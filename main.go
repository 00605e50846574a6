// Command cellmask builds binary segmentation masks for microscopy datasets
// from the polygon annotations made in the labelling tool.
//
// Usage: cellmask [options] [make|summarize|prune|diagnose|inspect]
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sfomuseum/go-flags/flagset"
	"github.com/sfomuseum/go-flags/multi"

	"cellmask/internal/dataset"
	"cellmask/internal/resolve"
)

// envPrefix names the environment variables that can stand in for flags,
// e.g. CELLMASK_DATA for -data.
const envPrefix = "CELLMASK"

type config struct {
	dataRoot   string
	datasets   multi.MultiString
	verbose    bool
	permissive bool
	vdFilter   bool
	summaryOut string
	dryRun     bool
}

func (c *config) options() dataset.Options {
	return dataset.Options{Extensions: c.extensions(), VerdictFilter: c.vdFilter}
}

func (c *config) extensions() resolve.Extensions {
	if c.permissive {
		return resolve.Permissive
	}
	return resolve.Strict
}

func newFlagSet(cfg *config) *flag.FlagSet {
	fs := flagset.NewFlagSet("cellmask")

	fs.StringVar(&cfg.dataRoot, "data", "data", "Folder holding the DN?-rapid / DN?-rate datasets")
	fs.Var(&cfg.datasets, "dataset", "Only process this dataset (repeatable)")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Print debug information")
	fs.BoolVar(&cfg.permissive, "permissive", false, "Also match .png/.jpg/.jpeg images")
	fs.BoolVar(&cfg.vdFilter, "vd-filter", false, "Rapid only: require a true verdict in *_vd_annotations.json")
	fs.StringVar(&cfg.summaryOut, "summary-out", "results/mask_summary.csv", "CSV written by summarize")
	fs.BoolVar(&cfg.dryRun, "dry-run", false, "prune: list stale masks without deleting them")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [make|summarize|prune|diagnose|inspect]\n", os.Args[0])
		fs.PrintDefaults()
	}
	return fs
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	cfg := &config{}
	fs := newFlagSet(cfg)
	flagset.Parse(fs)

	if err := flagset.SetFlagsFromEnvVars(fs, envPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}

	command := "make"
	switch args := fs.Args(); len(args) {
	case 0:
	case 1:
		command = args[0]
	default:
		fs.Usage()
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, cfg.verbose)
	datasets, err := dataset.Discover(cfg.dataRoot, cfg.datasets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}
	if len(datasets) == 0 {
		fmt.Fprintf(os.Stderr, "WARNING: no -rapid or -rate datasets under '%s'\n", cfg.dataRoot)
	}
	logger.Debug("discovered datasets", slog.String("root", cfg.dataRoot), slog.Int("count", len(datasets)))

	switch command {
	case "make":
		runMake(cfg, logger, os.Stdout, datasets)
	case "summarize":
		err = runSummarize(cfg, os.Stdout, datasets)
	case "prune":
		runPrune(cfg, os.Stdout, datasets)
	case "diagnose":
		runDiagnose(cfg, os.Stdout, datasets)
	case "inspect":
		runInspect(cfg, os.Stdout, datasets)
	default:
		fmt.Fprintf(os.Stderr, "ERROR: unknown command '%s'\n", command)
		fs.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
