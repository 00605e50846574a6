package dataset

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cellmask/internal/annotation"
	"cellmask/internal/mask"
	"cellmask/internal/resolve"
)

// Tally counts what happened to the entries of one dataset.
type Tally struct {
	Written int // mask files written
	Manual  int // manual entries accepted for mask generation
	Skipped int // entries not labelled manual, or rejected by verdict
	Missing int // accepted entries with no readable image or polygons
}

// Add accumulates o into t.
func (t *Tally) Add(o Tally) {
	t.Written += o.Written
	t.Manual += o.Manual
	t.Skipped += o.Skipped
	t.Missing += o.Missing
}

func (t Tally) String() string {
	return fmt.Sprintf("wrote=%d; manual=%d; skipped_nonmanual=%d; missing_images=%d",
		t.Written, t.Manual, t.Skipped, t.Missing)
}

// Options control how datasets are read.
type Options struct {
	Extensions resolve.Extensions
	// VerdictFilter requires rapid entries to be marked valid in the
	// verdict file as well as labelled manual.
	VerdictFilter bool
}

func (o Options) extensions() resolve.Extensions {
	if o.Extensions == nil {
		return resolve.Strict
	}
	return o.Extensions
}

// Runner generates masks for datasets one after another.
type Runner struct {
	opts   Options
	logger *slog.Logger
	out    io.Writer
}

// NewRunner returns a Runner that logs diagnostics to logger and prints
// tally lines to out.
func NewRunner(opts Options, logger *slog.Logger, out io.Writer) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{opts: opts, logger: logger, out: out}
}

// Run processes every dataset in order. A dataset that fails is reported and
// skipped; the returned tally covers the datasets that ran.
func (r *Runner) Run(datasets []Dataset) (Tally, int) {
	var total Tally
	failed := 0
	for _, ds := range datasets {
		t, err := r.guarded(ds)
		if err != nil {
			failed++
			r.logger.Warn("skipping dataset", slog.String("dataset", ds.Name), slog.Any("error", err))
			fmt.Fprintf(r.out, "[skip] %s: %v\n", ds.Name, err)
			continue
		}
		fmt.Fprintf(r.out, "== %s: %s\n", ds.Name, t)
		total.Add(t)
	}
	fmt.Fprintf(r.out, "== total (%d datasets, %d skipped): %s\n", len(datasets)-failed, failed, total)
	return total, failed
}

// Process writes one mask per manual entry of the dataset. The error is
// non-nil only when the dataset as a whole cannot be processed.
func (r *Runner) Process(ds Dataset) (Tally, error) {
	var t Tally
	log := r.logger.With(slog.String("dataset", ds.Name), slog.String("layout", ds.Layout.String()))

	annPath, ok := ds.AnnotationPath()
	if !ok {
		return t, ErrNoAnnotations
	}
	set, err := annotation.Load(annPath)
	if err != nil {
		return t, err
	}
	log.Debug("loaded annotations", slog.String("path", annPath), slog.Int("entries", set.Len()))

	verdicts, err := r.verdicts(ds)
	if err != nil {
		return t, err
	}

	idx, err := resolve.Scan(ds.Dir, r.opts.extensions())
	if err != nil {
		return t, err
	}
	resolver := ds.Resolver(idx)

	if err := os.MkdirAll(ds.MaskDir(), 0755); err != nil {
		return t, fmt.Errorf("create mask dir: %w", err)
	}

	for _, k := range set.Keys() {
		entry, _ := set.Get(k)
		if !entry.Manual() {
			t.Skipped++
			continue
		}
		if verdicts != nil && !verdicts.Accepts(k) {
			t.Skipped++
			continue
		}
		t.Manual++
		if entry.Err != nil {
			t.Missing++
			log.Warn("bad clickData", slog.String("key", k.String()), slog.Any("error", entry.Err))
			continue
		}

		res := resolver.Resolve(k)
		if !res.OK() {
			t.Missing++
			log.Warn("miss-img", slog.String("key", k.String()), slog.Any("tried", res.Tried))
			continue
		}
		log.Debug("resolved", slog.String("key", k.String()), slog.String("rule", res.Rule.String()), slog.String("image", res.Path))

		err := r.writeMask(ds, res.Path, entry.Polygons)
		if errors.Is(err, mask.ErrUnreadable) {
			t.Missing++
			log.Warn("unreadable image", slog.String("key", k.String()), slog.String("image", res.Path))
			continue
		}
		if err != nil {
			return t, err
		}
		t.Written++
	}
	return t, nil
}

func (r *Runner) verdicts(ds Dataset) (annotation.Verdicts, error) {
	if !r.opts.VerdictFilter || ds.Layout != Rapid {
		return nil, nil
	}
	path, ok := ds.VerdictPath()
	if !ok {
		r.logger.Debug("verdict filter enabled but no verdict file", slog.String("dataset", ds.Name))
		return nil, nil
	}
	return annotation.LoadVerdicts(path)
}

func (r *Runner) writeMask(ds Dataset, imgPath string, polys []annotation.Polygon) error {
	img, err := mask.ReadImage(imgPath)
	defer img.Close()
	if err != nil {
		return err
	}

	m := mask.Rasterize(img.Rows(), img.Cols(), polys)
	defer m.Close()

	out := filepath.Join(ds.MaskDir(), mask.Name(fileStem(imgPath)))
	if err := mask.Write(out, m); err != nil {
		return err
	}
	r.logger.Debug("wrote mask", slog.String("path", out), slog.Int("foreground", mask.Foreground(m)))
	return nil
}

// fileStem keeps the original case of the image name.
func fileStem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// guarded runs Process and turns a panic from the image library into a
// dataset-level error so the batch keeps going.
func (r *Runner) guarded(ds Dataset) (t Tally, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Process(ds)
}
