// Package cmd provides CLI commands for the copyem binary.
package cmd

import "github.com/urfave/cli/v2"

// Defaults preserved from the historical CLI.
const (
	defaultSpeed      = "20M"
	defaultLatency    = 0.15
	defaultBufferSize = "1G"
	defaultParallel   = 1
)

// transferFlags are shared by run and plan: everything needed to build an
// inventory and a schedule.
func transferFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "include",
			Usage: "Include only files matching this pattern",
		},
		&cli.StringFlag{
			Name:    "speed",
			Aliases: []string{"s"},
			Usage:   "Assumed outgoing network speed (e.g. '10M', '100K')",
			Value:   defaultSpeed,
		},
		&cli.Float64Flag{
			Name:    "latency",
			Aliases: []string{"l"},
			Usage:   "Assumed per-file setup cost in seconds",
			Value:   defaultLatency,
		},
		&cli.StringFlag{
			Name:    "buffer-size",
			Aliases: []string{"b"},
			Usage:   "Per-stream memory buffer size (e.g. '64M', '1G')",
			Value:   defaultBufferSize,
		},
		&cli.IntFlag{
			Name:    "parallel",
			Aliases: []string{"p"},
			Usage:   "Number of parallel transfer streams",
			Value:   defaultParallel,
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to copyem.yaml config file",
		},
	}
}

// runFlags extend transferFlags with execution-only options.
func runFlags() []cli.Flag {
	return append(transferFlags(),
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Retry attempts after a partial failure (0 disables retry)",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Pause between retry attempts",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Skip the confirmation prompt",
		},
		&cli.BoolFlag{
			Name:  "no-tui",
			Usage: "Disable the live display; log JSON to stderr instead",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write the JSON run report to this path ('-' for stderr)",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Run log path (default: timestamped file in the working directory)",
		},
	)
}
