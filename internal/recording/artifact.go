package recording

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
)

// DefaultDelimiter separates fields in an export.
const DefaultDelimiter = ','

// FilenameLayout is the ISO-8601 layout of the start time in export names.
const FilenameLayout = "2006-01-02T15:04:05.000Z07:00"

// Column is one metric's recorded value sequence.
type Column struct {
	Metric stats.Metric
	Values []float64
}

// Artifact is a stopped recording, ready for export.
type Artifact struct {
	ID      string
	Start   time.Time
	Columns []Column
}

// Rows returns the number of data rows: the length of the longest column.
func (a *Artifact) Rows() int {
	n := 0
	for _, c := range a.Columns {
		if len(c.Values) > n {
			n = len(c.Values)
		}
	}
	return n
}

// Records transposes the columns into rows of formatted cells, header first.
// Row i holds the i-th value of every column; a column shorter than the
// longest leaves its trailing cells empty.
func (a *Artifact) Records() [][]string {
	rows := a.Rows()
	records := make([][]string, 0, rows+1)

	header := make([]string, len(a.Columns))
	for i, c := range a.Columns {
		header[i] = c.Metric.String()
	}
	records = append(records, header)

	for i := 0; i < rows; i++ {
		row := make([]string, len(a.Columns))
		for j, c := range a.Columns {
			if i < len(c.Values) {
				row[j] = c.Metric.Format(c.Values[i])
			}
		}
		records = append(records, row)
	}
	return records
}

// Encode writes the artifact to w with the given single-character delimiter
// and newline row separators.
func (a *Artifact) Encode(w io.Writer, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.WriteAll(a.Records()); err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	return nil
}

// Filename returns <src>_<dst>_<ISO-8601 start>.<ext>.
func (a *Artifact) Filename(src, dst, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s_%s_%s.%s", src, dst, a.Start.UTC().Format(FilenameLayout), ext)
}

// Save encodes the artifact into dir under its Filename and returns the path.
func (a *Artifact) Save(dir, src, dst, ext string, delim rune) (string, error) {
	path := filepath.Join(dir, a.Filename(src, dst, ext))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := a.Encode(bw, delim); err != nil {
		f.Close()
		return "", err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	return path, nil
}

// ColumnSummary describes the distribution of one recorded column.
type ColumnSummary struct {
	Metric stats.Metric
	Count  int
	Mean   float64
	P50    float64
	P95    float64
	Max    float64
}

// Summary computes per-column statistics. Percentiles come from a t-digest,
// so they are approximate for long recordings.
func (a *Artifact) Summary() []ColumnSummary {
	out := make([]ColumnSummary, 0, len(a.Columns))
	for _, c := range a.Columns {
		s := ColumnSummary{Metric: c.Metric, Count: len(c.Values)}
		if s.Count == 0 {
			out = append(out, s)
			continue
		}

		td := tdigest.NewWithCompression(100)
		var sum float64
		s.Max = c.Values[0]
		for _, v := range c.Values {
			td.Add(v, 1)
			sum += v
			if v > s.Max {
				s.Max = v
			}
		}
		s.Mean = sum / float64(s.Count)
		s.P50 = td.Quantile(0.50)
		s.P95 = td.Quantile(0.95)
		out = append(out, s)
	}
	return out
}
