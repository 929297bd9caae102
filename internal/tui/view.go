package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
)

// sparkWidth matches the live window: one rune per second.
const sparkWidth = 60

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderReadings(),
		m.renderSparklines(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders every metric with its window bounds.
func (m Model) renderDetailedView() string {
	sections := []string{
		m.renderHeader(),
		m.renderMetricTable(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	rec := dimStyle.Render("○ rec")
	if m.recording {
		rec = statusError.Render("● REC")
	}

	header := fmt.Sprintf(
		" go-whep-stats │ %s │ %s │ Elapsed: %s ",
		GetStateLabel(m.state),
		rec,
		formatDuration(m.elapsed),
	)
	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Readings
// =============================================================================

func (m Model) renderReadings() string {
	loss := m.Reading(stats.PacketLoss)
	rtt := m.Reading(stats.RoundTripTime)

	left := []string{
		sectionHeaderStyle.Render("Media"),
		RenderKeyValue("Video bitrate", formatBitrate(m.Reading(stats.VideoBitrate))),
		RenderKeyValue("Audio bitrate", formatBitrate(m.Reading(stats.AudioBitrate))),
		RenderKeyValue("Frame rate", stats.FrameRate.Format(m.Reading(stats.FrameRate))+" fps"),
		RenderKeyValue("Resolution", formatResolution(m.Reading(stats.FrameWidth), m.Reading(stats.FrameHeight))),
		RenderKeyValue("Keyframes", stats.KeyFrames.Format(m.Reading(stats.KeyFrames))),
		RenderKeyValue("Freezes", fmt.Sprintf("%s (%ss)",
			stats.FreezeCount.Format(m.Reading(stats.FreezeCount)),
			stats.FreezeDuration.Format(m.Reading(stats.FreezeDuration)))),
	}

	right := []string{
		sectionHeaderStyle.Render("Network"),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Packet loss:"),
			GetLossStyle(loss).Render(stats.PacketLoss.Format(loss)+" %")),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("RTT:"),
			GetRTTStyle(rtt).Render(stats.RoundTripTime.Format(rtt)+" ms")),
		RenderKeyValue("Packets/s", stats.PacketsReceivedRate.Format(m.Reading(stats.PacketsReceivedRate))),
		RenderKeyValue("Jitter buffer", stats.JitterBufferDelayMs.Format(m.Reading(stats.JitterBufferDelayMs))+" ms"),
		RenderKeyValue("NACK / PLI", fmt.Sprintf("%s / %s",
			stats.NACKCount.Format(m.Reading(stats.NACKCount)),
			stats.PLICount.Format(m.Reading(stats.PLICount)))),
	}

	return boxStyle.Width(m.width - 2).Render(renderTwoColumns(left, right))
}

// =============================================================================
// Sparklines
// =============================================================================

var sparkMetrics = []stats.Metric{
	stats.VideoBitrate,
	stats.AudioBitrate,
	stats.PacketLoss,
	stats.RoundTripTime,
}

func (m Model) renderSparklines() string {
	lines := []string{sectionHeaderStyle.Render("Last minute")}
	for _, metric := range sparkMetrics {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(string(metric)),
			RenderSparkline(m.Values(metric), sparkWidth),
		))
	}
	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// =============================================================================
// Detailed table
// =============================================================================

func (m Model) renderMetricTable() string {
	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-26s %12s %12s %12s",
		"metric", "current", "min", "max"))}

	for _, metric := range stats.Metrics {
		lo, hi := minMax(m.Values(metric))
		rows = append(rows, fmt.Sprintf("%-26s %12s %12s %12s",
			metric,
			metric.Format(m.Reading(metric)),
			metric.Format(lo),
			metric.Format(hi),
		))
	}
	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"r: start/stop recording",
		"d: toggle details",
	}
	left := dimStyle.Render(strings.Join(shortcuts, " │ "))

	right := dimStyle.Render("Endpoint: " + truncate(m.endpoint, m.width-60))
	if m.metricsAddr != "" {
		right += dimStyle.Render("  Metrics: http://" + m.metricsAddr + "/metrics")
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	lines := []string{lipgloss.JoinHorizontal(lipgloss.Left, left, strings.Repeat(" ", padding), right)}
	if m.status != "" {
		style := mutedStyle
		if m.statusIsErr {
			style = statusError
		}
		lines = append(lines, style.Render(m.status))
	}
	return footerStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func truncate(s string, max int) string {
	if len(s) > max && max > 10 {
		return s[:max-3] + "..."
	}
	return s
}

// =============================================================================
// Two-Column Layout Helper
// =============================================================================

// renderTwoColumns renders two columns side-by-side with a separator.
func renderTwoColumns(left, right []string) string {
	leftContent := lipgloss.JoinVertical(lipgloss.Left, left...)
	rightContent := lipgloss.JoinVertical(lipgloss.Left, right...)

	separator := mutedStyle.Render(" │ ")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftContent, separator, rightContent)
}
