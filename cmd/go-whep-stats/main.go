// Package main provides the go-whep-stats CLI entry point.
//
// go-whep-stats subscribes to a WebRTC stream over WHEP, turns the peer
// connection's cumulative counters into per-second metrics, and shows them in
// a terminal dashboard, on a Prometheus endpoint and over a websocket feed.
// Sessions can be recorded to delimited files and compared offline.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/randomizedcoder/go-whep-stats/internal/compare"
	"github.com/randomizedcoder/go-whep-stats/internal/config"
	"github.com/randomizedcoder/go-whep-stats/internal/logging"
	"github.com/randomizedcoder/go-whep-stats/internal/monitor"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-whep-stats
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "-version", "--version", "version":
			fmt.Printf("go-whep-stats %s\n", version)
			return 0
		case "compare":
			return runCompare(args[1:], os.Stdout, os.Stderr)
		}
	}

	cfg, err := config.Parse(args, os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if config.ApplyTerminal(cfg, config.StdoutIsTerminal()) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal, dashboard disabled")
	}
	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.Discard()
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	mon := monitor.New(cfg, logger, monitor.WithVersion(version))

	logger.Info("starting",
		"version", version,
		"endpoint", mon.Endpoint(),
		"interval", cfg.Interval.String(),
		"record", cfg.Record,
		"metrics_addr", cfg.MetricsAddr,
	)
	if !cfg.TUIEnabled {
		printBanner(cfg, mon.Endpoint())
	}

	if err := mon.Run(context.Background()); err != nil {
		logger.Error("monitor_failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config, endpoint string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                          go-whep-stats                            ║")
	fmt.Println("║          Live WebRTC receive statistics over WHEP                 ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Endpoint:    %s\n", endpoint)
	fmt.Printf("  Interval:    %s\n", cfg.Interval)
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
		fmt.Printf("  Feed:        ws://%s/ws\n", cfg.MetricsAddr)
	}
	if cfg.Record {
		fmt.Printf("  Recording:   on, exports to %s\n", cfg.RecordDir)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// runCompare aligns two exports and prints them side by side.
func runCompare(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(stderr)
	delimiter := fs.String("delimiter", ",", "Field separator used by both files")
	metricList := fs.String("metrics", "", "Comma-separated metrics to show (default all)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage:\n  go-whep-stats compare [flags] <A> <B>\n\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	if utf8.RuneCountInString(*delimiter) != 1 {
		fmt.Fprintf(stderr, "delimiter must be a single character (got %q)\n", *delimiter)
		return 2
	}
	delim, _ := utf8.DecodeRuneInString(*delimiter)

	pathA, pathB := fs.Arg(0), fs.Arg(1)
	a, err := parseFile(pathA, delim)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	b, err := parseFile(pathB, delim)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	refLabel, otherLabel := filepath.Base(pathA), filepath.Base(pathB)
	if b.Len() > a.Len() {
		refLabel, otherLabel = otherLabel, refLabel
	}

	opts := compare.RenderOptions{
		ReferenceLabel: refLabel,
		OtherLabel:     otherLabel,
	}
	if *metricList != "" {
		opts.Metrics = strings.Split(*metricList, ",")
	}
	if err := compare.Render(stdout, compare.Align(a, b), opts); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFile(path string, delim rune) (*compare.ColumnSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	set, err := compare.Parse(f, delim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
