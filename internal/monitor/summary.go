package monitor

import (
	"fmt"
	"time"

	"github.com/randomizedcoder/go-whep-stats/internal/recording"
)

// printExitSummary prints a summary of the run.
func (m *Monitor) printExitSummary() {
	summary := m.collector.GenerateSummary()
	w := m.out

	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                     go-whep-stats Exit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Run Duration:           %s\n", formatDuration(summary.Duration))
	fmt.Fprintf(w, "Endpoint:               %s\n", m.endpoint)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Polling:")
	fmt.Fprintf(w, "  Snapshots:            %d\n", summary.Polls)
	fmt.Fprintf(w, "  Ticks Skipped:        %d\n", summary.Skipped)
	fmt.Fprintf(w, "  Errors:               %d\n", summary.Errors)
	fmt.Fprintf(w, "  Reconnects:           %d\n", summary.Reconnects)
	fmt.Fprintln(w)

	m.mu.Lock()
	saved := append([]savedRecording(nil), m.saved...)
	pending := append([]*recording.Artifact(nil), m.pending...)
	m.mu.Unlock()
	if summary.Recordings > 0 || len(saved) > 0 || len(pending) > 0 {
		fmt.Fprintln(w, "Recordings:")
		fmt.Fprintf(w, "  Started:              %d\n", summary.Recordings)
		fmt.Fprintf(w, "  Saved:                %d\n", len(saved))
		if len(pending) > 0 {
			fmt.Fprintf(w, "  Not Saved:            %d\n", len(pending))
		}
		fmt.Fprintln(w)
		for _, s := range saved {
			m.printArtifactSummary(s.path, s.artifact)
		}
		for _, art := range pending {
			fmt.Fprintf(w, "Recording %s (%d rows) was NOT saved\n\n", art.ID, art.Rows())
		}
	}

	if m.config.MetricsAddr != "" {
		fmt.Fprintf(w, "Metrics endpoint was: http://%s/metrics\n", m.config.MetricsAddr)
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
}

// printArtifactSummary prints per-metric statistics of an export.
func (m *Monitor) printArtifactSummary(path string, art *recording.Artifact) {
	w := m.out
	fmt.Fprintf(w, "Recording %s (%d rows) saved to %s\n", art.ID, art.Rows(), path)
	fmt.Fprintf(w, "  %-26s %8s %10s %10s %10s %10s\n", "metric", "samples", "mean", "p50", "p95", "max")
	for _, s := range art.Summary() {
		fmt.Fprintf(w, "  %-26s %8d %10s %10s %10s %10s\n",
			s.Metric, s.Count,
			s.Metric.Format(s.Mean), s.Metric.Format(s.P50),
			s.Metric.Format(s.P95), s.Metric.Format(s.Max))
	}
	fmt.Fprintln(w)
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
