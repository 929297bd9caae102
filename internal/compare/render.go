package compare

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// RenderOptions controls Render.
type RenderOptions struct {
	// Metrics limits output to these metrics. Empty means all pairs.
	Metrics []string
	// Labels name the reference and other series.
	ReferenceLabel string
	OtherLabel     string
}

// Render writes one index/reference/other table per metric pair. Indices past
// the shorter series show "-".
func Render(w io.Writer, al Alignment, opts RenderOptions) error {
	if opts.ReferenceLabel == "" {
		opts.ReferenceLabel = "reference"
	}
	if opts.OtherLabel == "" {
		opts.OtherLabel = "other"
	}

	want := make(map[string]bool, len(opts.Metrics))
	for _, m := range opts.Metrics {
		want[m] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf(
		"rows: %s=%d %s=%d overlap=%d",
		opts.ReferenceLabel, al.ReferenceRows, opts.OtherLabel, al.OtherRows, al.Overlap,
	)))

	for _, p := range al.Pairs {
		if len(want) > 0 && !want[p.Metric] {
			continue
		}
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(p.Metric))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%6s  %14s  %14s\n", "index", opts.ReferenceLabel, opts.OtherLabel)

		for i := 0; i < len(p.Reference) || i < len(p.Other); i++ {
			ref, refOK, other, otherOK := p.At(i)
			fmt.Fprintf(&b, "%6d  %14s  %14s\n", i,
				formatCell(p.Metric, ref, refOK),
				formatCell(p.Metric, other, otherOK))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatCell(metric string, v float64, ok bool) string {
	if !ok {
		return "-"
	}
	if m := stats.Metric(metric); m.Known() {
		return m.Format(v)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
