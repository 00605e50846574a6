package dataset

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"

	"cellmask/internal/annotation"
	"cellmask/internal/mask"
)

// SummaryRow compares the masks on disk with the annotation labels.
type SummaryRow struct {
	Dataset       string
	MasksWritten  int
	ManualInJSON  int
	ExcludeInJSON int
}

// Summarize counts masks and labels for ds. Missing or malformed annotation
// files count as zero rather than failing the summary.
func Summarize(ds Dataset) SummaryRow {
	row := SummaryRow{Dataset: ds.Name}

	masks, _ := filepath.Glob(filepath.Join(ds.MaskDir(), "*"+mask.Suffix))
	row.MasksWritten = len(masks)

	var set *annotation.Set
	if p, ok := ds.AnnotationPath(); ok {
		set, _ = annotation.Load(p)
	}
	var verdicts annotation.Verdicts
	if p, ok := ds.VerdictPath(); ok {
		verdicts, _ = annotation.LoadVerdicts(p)
	}

	if set != nil {
		row.ManualInJSON = set.CountManual()
		row.ExcludeInJSON = set.CountExcluded()
	}
	// Without non-manual labels, fall back to explicit false verdicts.
	if row.ExcludeInJSON == 0 && verdicts != nil {
		row.ExcludeInJSON = verdicts.CountRejected()
	}
	return row
}

// WriteSummary writes rows as CSV with a header line.
func WriteSummary(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"dataset", "masks_written", "manual_in_json", "exclude_in_json"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Dataset,
			strconv.Itoa(r.MasksWritten),
			strconv.Itoa(r.ManualInJSON),
			strconv.Itoa(r.ExcludeInJSON),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
