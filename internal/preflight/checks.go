// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-whep-stats/internal/whep"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options selects what RunAll checks.
type Options struct {
	// BaseURL is the broadcaster whose pc-config is fetched. Empty skips
	// the check.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration

	// RecordDir is checked for write access. Empty skips the check.
	RecordDir string
}

// minFileDescriptors covers one peer connection's sockets plus the
// metrics server and feed clients.
const minFileDescriptors = 256

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	if opts.BaseURL != "" {
		result.add(checkPCConfig(ctx, opts))
	}
	if opts.RecordDir != "" {
		result.add(checkRecordDir(opts.RecordDir))
	}
	result.add(checkFileDescriptors())
	result.add(checkEphemeralPorts())

	return result
}

// checkPCConfig verifies the broadcaster answers its peer connection
// config endpoint.
func checkPCConfig(ctx context.Context, opts Options) Check {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pc, err := whep.FetchPCConfig(ctx, opts.HTTPClient, opts.BaseURL)
	if err != nil {
		return Check{
			Name:    "pc_config",
			Passed:  false,
			Message: err.Error(),
		}
	}
	return Check{
		Name:    "pc_config",
		Passed:  true,
		Message: fmt.Sprintf("%d ICE server(s), policy %s", len(pc.ICEServers), pc.ICETransportPolicy),
	}
}

// checkRecordDir verifies exports can be written to dir.
func checkRecordDir(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil {
		return Check{Name: "record_dir", Passed: false, Message: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: "record_dir", Passed: false, Message: dir + " is not a directory"}
	}

	f, err := os.CreateTemp(dir, ".go-whep-stats-*")
	if err != nil {
		return Check{Name: "record_dir", Passed: false, Message: fmt.Sprintf("%s not writable: %v", dir, err)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	return Check{Name: "record_dir", Passed: true, Message: dir + " is writable"}
}

// checkFileDescriptors warns when the descriptor limit is unusually low.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: "unable to read ulimit -n",
		}
	}

	actual := int(limit.Cur)
	return Check{
		Name:     "file_descriptors",
		Required: minFileDescriptors,
		Actual:   actual,
		Passed:   true,
		Warning:  actual < minFileDescriptors,
		Message:  fmt.Sprintf("ulimit -n %d", actual),
	}
}

// checkEphemeralPorts reads the local port range ICE gathers from.
func checkEphemeralPorts() Check {
	data, err := os.ReadFile("/proc/sys/net/ipv4/ip_local_port_range")
	if err != nil {
		return Check{
			Name:    "ephemeral_ports",
			Passed:  true,
			Warning: true,
			Message: "unable to read port range (non-Linux?)",
		}
	}

	var low, high int
	fmt.Sscanf(string(data), "%d %d", &low, &high)
	available := high - low

	return Check{
		Name:    "ephemeral_ports",
		Passed:  true,
		Warning: available <= 0,
		Message: fmt.Sprintf("%d-%d (%d available)", low, high, available),
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "pc_config":
		return "check the broadcaster URL and that the broadcaster is running"
	case "record_dir":
		return "create the directory or pass a writable -record-dir"
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	default:
		return "see documentation"
	}
}
