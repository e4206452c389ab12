package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/milmillin/copyem/cli/config"
	"github.com/milmillin/copyem/schedule"
	"github.com/milmillin/copyem/types"
	"github.com/milmillin/copyem/units"
)

// settings is the fully resolved transfer configuration: positional
// arguments, config file defaults, and flag overrides merged.
type settings struct {
	sourceDir string
	remote    string
	destDir   string

	include     string
	speed       string
	speedBytes  int64
	latency     float64
	bufferStr   string
	bufferBytes int64
	parallel    int

	maxRetries int
	retryDelay time.Duration
	yes        bool
	noTUI      bool
	report     string
	logFile    string
}

// resolveSettings merges the three configuration layers. CLI flags always
// win; the config file fills anything the flags left at their default.
func resolveSettings(c *cli.Context) (*settings, error) {
	if c.Args().Len() != 3 {
		return nil, fmt.Errorf("expected SRC_DIR REMOTE DST_DIR, got %d arguments", c.Args().Len())
	}

	var fileCfg config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		fileCfg = *loaded
	}

	s := &settings{
		sourceDir:  c.Args().Get(0),
		remote:     c.Args().Get(1),
		destDir:    c.Args().Get(2),
		include:    stringValue(c, "include", fileCfg.Include),
		speed:      stringValue(c, "speed", fileCfg.Speed),
		bufferStr:  stringValue(c, "buffer-size", fileCfg.BufferSize),
		latency:    c.Float64("latency"),
		parallel:   c.Int("parallel"),
		maxRetries: c.Int("max-retries"),
		retryDelay: c.Duration("retry-delay"),
		yes:        c.Bool("yes"),
		noTUI:      c.Bool("no-tui"),
		report:     stringValue(c, "report", fileCfg.Report),
		logFile:    stringValue(c, "log-file", fileCfg.LogFile),
	}
	if !c.IsSet("latency") && fileCfg.Latency > 0 {
		s.latency = fileCfg.Latency
	}
	if !c.IsSet("parallel") && fileCfg.Parallel > 0 {
		s.parallel = fileCfg.Parallel
	}
	if !c.IsSet("max-retries") && fileCfg.MaxRetries > 0 {
		s.maxRetries = fileCfg.MaxRetries
	}
	if !c.IsSet("retry-delay") && fileCfg.RetryDelay.Duration > 0 {
		s.retryDelay = fileCfg.RetryDelay.Duration
	}

	var err error
	if s.speedBytes, err = units.ParseSize(s.speed); err != nil {
		return nil, fmt.Errorf("invalid speed: %w", err)
	}
	if s.bufferBytes, err = units.ParseSize(s.bufferStr); err != nil {
		return nil, fmt.Errorf("invalid buffer size: %w", err)
	}
	if s.speedBytes <= 0 {
		return nil, fmt.Errorf("speed must be positive")
	}
	if s.parallel < 1 {
		return nil, fmt.Errorf("parallel must be >= 1, got %d", s.parallel)
	}
	if s.maxRetries < 0 {
		return nil, fmt.Errorf("max-retries must be >= 0, got %d", s.maxRetries)
	}
	if s.latency < 0 {
		return nil, fmt.Errorf("latency must be >= 0, got %v", s.latency)
	}

	return s, nil
}

// stringValue returns the flag value if explicitly set, otherwise the
// config file value, otherwise the flag default.
func stringValue(c *cli.Context, name, fromFile string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if fromFile != "" {
		return fromFile
	}
	return c.String(name)
}

func (s *settings) costModel() types.CostModel {
	return types.CostModel{SpeedBps: s.speedBytes, Latency: s.latency}
}

// printSummary writes the pre-transfer summary: totals, settings, and the
// per-stream schedule with its estimated makespan.
func printSummary(w io.Writer, s *settings, manifest types.Manifest, plans []types.StreamPlan) {
	totalSize := manifest.TotalBytes()

	smallest, largest := int64(0), int64(0)
	if len(manifest) > 0 {
		smallest, largest = manifest[0].Size, manifest[0].Size
		for _, e := range manifest[1:] {
			if e.Size < smallest {
				smallest = e.Size
			}
			if e.Size > largest {
				largest = e.Size
			}
		}
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "Transfer Summary:\n")
	fmt.Fprintf(w, "  Source: %s\n", s.sourceDir)
	fmt.Fprintf(w, "  Destination: %s:%s\n", s.remote, s.destDir)
	fmt.Fprintf(w, "  Total files: %d\n", len(manifest))
	fmt.Fprintf(w, "  Total size: %s\n", units.FormatSize(totalSize))
	fmt.Fprintf(w, "  Smallest file: %s\n", units.FormatSize(smallest))
	fmt.Fprintf(w, "  Largest file: %s\n", units.FormatSize(largest))

	fmt.Fprintf(w, "\nTransfer Settings:\n")
	fmt.Fprintf(w, "  Parallel streams: %d\n", s.parallel)
	fmt.Fprintf(w, "  Assumed speed: %s (%s/s)\n", s.speed, units.FormatSize(s.speedBytes))
	fmt.Fprintf(w, "  Buffer size: %s (%s)\n", s.bufferStr, units.FormatSize(s.bufferBytes))
	fmt.Fprintf(w, "  File latency: %gs\n", s.latency)
	if s.maxRetries > 0 {
		fmt.Fprintf(w, "  Max retries: %d\n", s.maxRetries)
	}

	fmt.Fprintf(w, "\nSchedule:\n")
	for _, p := range plans {
		fmt.Fprintf(w, "  Stream %d: %d files, %s, eta %s\n",
			p.Stream, len(p.Files), units.FormatSize(p.TotalBytes()),
			units.FormatSeconds(p.EstimatedTime))
	}

	makespan := schedule.Makespan(plans)
	fmt.Fprintf(w, "\nEstimates:\n")
	fmt.Fprintf(w, "  Transfer time: %s\n", units.FormatSeconds(makespan))
	if makespan > 0 {
		fmt.Fprintf(w, "  Average speed: %.2f MiB/s\n",
			float64(totalSize)/makespan/1024/1024)
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}
