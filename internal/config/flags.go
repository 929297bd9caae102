package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// originList is a custom flag type for repeatable -feed-origin flags.
type originList []string

func (o *originList) String() string {
	if o == nil {
		return ""
	}
	return strings.Join(*o, ", ")
}

func (o *originList) Set(value string) error {
	*o = append(*o, value)
	return nil
}

// ParseFlags parses os.Args and returns a Config.
func ParseFlags() (*Config, error) {
	return Parse(os.Args[1:], os.Stderr)
}

// Parse parses args into a Config. When -config names a file, the file is
// applied over the defaults first and the flags given on the command line
// win over it.
func Parse(args []string, output io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	fs := newFlagSet(cfg, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		path := cfg.ConfigFile
		cfg = DefaultConfig()
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
		fs = newFlagSet(cfg, output)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	// Positional argument: broadcaster URL
	if rest := fs.Args(); len(rest) >= 1 {
		cfg.URL = rest[0]
	}
	return cfg, nil
}

func newFlagSet(cfg *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("go-whep-stats", flag.ContinueOnError)
	fs.SetOutput(output)

	origins := (*originList)(&cfg.FeedOrigins)

	fs.Usage = func() {
		fmt.Fprintf(output, `go-whep-stats - live WebRTC receive statistics for a WHEP stream

Usage:
  go-whep-stats [flags] <BROADCASTER_URL>
  go-whep-stats compare [flags] <A.csv> <B.csv>

Stream:
`)
		printFlagCategory(fs, output, []string{"input-id", "whep-endpoint", "token", "config"})

		fmt.Fprintf(output, "\nPolling:\n")
		printFlagCategory(fs, output, []string{"interval", "duration"})

		fmt.Fprintf(output, "\nRecording:\n")
		printFlagCategory(fs, output, []string{"record", "record-dir", "delimiter", "ext", "src", "dst"})

		fmt.Fprintf(output, "\nReconnect:\n")
		printFlagCategory(fs, output, []string{"reconnect", "max-reconnects", "backoff-initial", "backoff-max", "backoff-multiply"})

		fmt.Fprintf(output, "\nObservability:\n")
		printFlagCategory(fs, output, []string{"metrics", "feed-origin", "tui", "v", "log-format", "log-level", "pion-log-level"})

		fmt.Fprintf(output, "\nDiagnostics:\n")
		printFlagCategory(fs, output, []string{"dump-metrics", "check", "skip-preflight"})

		fmt.Fprintf(output, `
Examples:
  # Watch a stream in the dashboard
  go-whep-stats -input-id cam1 http://localhost:4000

  # Record from launch, export with semicolons on exit
  go-whep-stats -input-id cam1 -record -delimiter ';' -src berlin -dst lab http://localhost:4000

  # Compare two exported recordings
  go-whep-stats compare run_a.csv run_b.csv

`)
	}

	// Stream
	fs.StringVar(&cfg.InputID, "input-id", cfg.InputID, "Broadcaster input to subscribe to")
	fs.StringVar(&cfg.WHEPEndpoint, "whep-endpoint", cfg.WHEPEndpoint, "Full WHEP endpoint URL (overrides URL and -input-id)")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Bearer token for the WHEP endpoint")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file applied before flags")

	// Polling
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Stats polling interval")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run duration (0 = forever)")

	// Recording
	fs.BoolVar(&cfg.Record, "record", cfg.Record, "Start recording at launch")
	fs.StringVar(&cfg.RecordDir, "record-dir", cfg.RecordDir, "Directory for exported recordings")
	fs.StringVar(&cfg.Delimiter, "delimiter", cfg.Delimiter, "Field separator for exports")
	fs.StringVar(&cfg.Extension, "ext", cfg.Extension, "File extension for exports")
	fs.StringVar(&cfg.SourceLabel, "src", cfg.SourceLabel, "Source label used in export filenames")
	fs.StringVar(&cfg.DestLabel, "dst", cfg.DestLabel, "Destination label used in export filenames")

	// Reconnect
	fs.BoolVar(&cfg.Reconnect, "reconnect", cfg.Reconnect, "Reconnect when the peer connection goes away")
	fs.IntVar(&cfg.MaxReconnects, "max-reconnects", cfg.MaxReconnects, "Give up after this many reconnects (0 = unlimited)")
	fs.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "First reconnect delay")
	fs.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "Maximum reconnect delay")
	fs.Float64Var(&cfg.BackoffMultiply, "backoff-multiply", cfg.BackoffMultiply, "Reconnect delay multiplier")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics and feed address (empty = disabled)")
	fs.Var(origins, "feed-origin", "Allowed websocket Origin for /ws (can repeat)")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard (use -tui=false to disable)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)
	fs.StringVar(&cfg.PionLevel, "pion-log-level", cfg.PionLevel, "Minimum level for WebRTC stack logs")

	// Diagnostics
	fs.BoolVar(&cfg.DumpMetrics, "dump-metrics", cfg.DumpMetrics, "Print Prometheus text exposition on exit")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Run preflight checks and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	return fs
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(w, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(w)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
